package codeblock

import "testing"

func TestExtractSingleFencedBlock(t *testing.T) {
	text := "look at this:\n```\nprint(1+1)\n```\nneat right?"
	got := Extract(text)
	if got.Kind != KindFenced {
		t.Fatalf("kind = %v, want KindFenced", got.Kind)
	}
	if got.Code != "print(1+1)" {
		t.Errorf("code = %q, want %q", got.Code, "print(1+1)")
	}
}

func TestExtractFencedBlockWithLanguage(t *testing.T) {
	got := Extract("```py\nx = 1\nprint(x)\n```")
	if got.Kind != KindFenced {
		t.Fatalf("kind = %v, want KindFenced", got.Kind)
	}
	if got.Lang != "py" {
		t.Errorf("lang = %q, want %q", got.Lang, "py")
	}
	if got.Code != "x = 1\nprint(x)" {
		t.Errorf("code = %q", got.Code)
	}
}

func TestExtractLanguageTagNeedsNewline(t *testing.T) {
	// "abc" is code, not a language tag, when no newline follows it.
	got := Extract("```abc```")
	if got.Lang != "" {
		t.Errorf("lang = %q, want empty", got.Lang)
	}
	if got.Code != "abc" {
		t.Errorf("code = %q, want %q", got.Code, "abc")
	}
}

func TestExtractMultipleFencedBlocksJoined(t *testing.T) {
	text := "first:\n```\na = 1\n```\nthen:\n```\nprint(a)\n```\ndone"
	got := Extract(text)
	if got.Kind != KindFencedMulti {
		t.Fatalf("kind = %v, want KindFencedMulti", got.Kind)
	}
	if got.Code != "a = 1\nprint(a)" {
		t.Errorf("code = %q, want %q", got.Code, "a = 1\nprint(a)")
	}
}

func TestExtractFencedWinsOverInline(t *testing.T) {
	text := "`inline` and then ```\nblock\n```"
	got := Extract(text)
	if got.Kind != KindFenced {
		t.Fatalf("kind = %v, want KindFenced", got.Kind)
	}
	if got.Code != "block" {
		t.Errorf("code = %q, want %q", got.Code, "block")
	}
}

func TestExtractInlineSingleBacktick(t *testing.T) {
	got := Extract("run `print(1+1)` please")
	if got.Kind != KindInline {
		t.Fatalf("kind = %v, want KindInline", got.Kind)
	}
	if got.Delim != "`" {
		t.Errorf("delim = %q, want backtick", got.Delim)
	}
	if got.Code != "print(1+1)" {
		t.Errorf("code = %q, want %q", got.Code, "print(1+1)")
	}
}

func TestExtractInlineDoubleBacktick(t *testing.T) {
	got := Extract("``print('hi')``")
	if got.Kind != KindInline {
		t.Fatalf("kind = %v, want KindInline", got.Kind)
	}
	if got.Delim != "``" {
		t.Errorf("delim = %q, want double backtick", got.Delim)
	}
	if got.Code != "print('hi')" {
		t.Errorf("code = %q", got.Code)
	}
}

func TestExtractFirstInlineWins(t *testing.T) {
	got := Extract("`one` and `two`")
	if got.Code != "one" {
		t.Errorf("code = %q, want %q", got.Code, "one")
	}
}

func TestExtractRawText(t *testing.T) {
	got := Extract("\n  \nprint('hello')  \n\n")
	if got.Kind != KindRaw {
		t.Fatalf("kind = %v, want KindRaw", got.Kind)
	}
	if got.Code != "print('hello')" {
		t.Errorf("code = %q, want %q", got.Code, "print('hello')")
	}
}

func TestExtractRawIdempotent(t *testing.T) {
	text := "x = 1\nprint(x)"
	once := Extract(text)
	twice := Extract(once.Code)
	if once.Code != twice.Code {
		t.Errorf("Extract not idempotent: %q vs %q", once.Code, twice.Code)
	}
	if once.Code != text {
		t.Errorf("clean text changed: %q", once.Code)
	}
}

func TestExtractEmptyInput(t *testing.T) {
	got := Extract("")
	if got.Kind != KindRaw {
		t.Fatalf("kind = %v, want KindRaw", got.Kind)
	}
	if got.Code != "" {
		t.Errorf("code = %q, want empty", got.Code)
	}
}

func TestExtractWhitespaceOnlyBlock(t *testing.T) {
	got := Extract("```\n   \n```")
	if got.Kind != KindFenced {
		t.Fatalf("kind = %v, want KindFenced", got.Kind)
	}
	if got.Code != "" {
		t.Errorf("code = %q, want empty", got.Code)
	}
}

func TestExtractDedentsSharedIndentation(t *testing.T) {
	text := "```\n    for i in range(3):\n        print(i)\n```"
	got := Extract(text)
	want := "for i in range(3):\n    print(i)"
	if got.Code != want {
		t.Errorf("code = %q, want %q", got.Code, want)
	}
}

func TestExtractSkipsBlankLinesInsideFence(t *testing.T) {
	got := Extract("```\n\n   \nprint(1)\n```")
	if got.Code != "print(1)" {
		t.Errorf("code = %q, want %q", got.Code, "print(1)")
	}
}

func TestExtractUnclosedFenceFallsBack(t *testing.T) {
	// ``` with no closing fence: the narrower delimiters also fail, so the
	// scanner moves on; the remaining backticks pair up as an inline span.
	got := Extract("```x`")
	if got.Kind != KindInline {
		t.Fatalf("kind = %v, want KindInline", got.Kind)
	}
}

func TestDescribe(t *testing.T) {
	cases := []struct {
		in   Extracted
		want string
	}{
		{Extracted{Kind: KindFencedMulti}, "several code blocks"},
		{Extracted{Kind: KindFenced, Lang: "py"}, "'py' highlighted code block"},
		{Extracted{Kind: KindFenced}, "plain code block"},
		{Extracted{Kind: KindInline, Delim: "``"}, "``-enclosed inline code"},
		{Extracted{Kind: KindRaw}, "unformatted or badly formatted code"},
	}
	for _, c := range cases {
		if got := c.in.Describe(); got != c.want {
			t.Errorf("Describe(%v) = %q, want %q", c.in.Kind, got, c.want)
		}
	}
}
