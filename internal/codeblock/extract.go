// Package codeblock recovers source code from free-form chat markup.
//
// Messages arrive as arbitrary text: fenced code blocks, inline code, or plain
// pasted source. Extract is total — any input yields a usable code string —
// and the classification rules are deliberate policy: fenced blocks win over
// inline matches, and multiple fenced blocks are concatenated into one program.
package codeblock

import (
	"strings"
	"unicode"
)

// Kind classifies where the extracted code came from.
type Kind int

const (
	// KindRaw means no code delimiters were found; the whole text was used.
	KindRaw Kind = iota
	// KindInline means a single inline span (one or two backticks) was used.
	KindInline
	// KindFenced means a single triple-backtick block was used.
	KindFenced
	// KindFencedMulti means several fenced blocks were joined together.
	KindFencedMulti
)

// Extracted is the result of one extraction pass.
type Extracted struct {
	Code  string
	Kind  Kind
	Lang  string // language tag, only for KindFenced
	Delim string // opening delimiter, only for KindInline
}

// Describe returns a short human-readable classification for logging.
func (e Extracted) Describe() string {
	switch e.Kind {
	case KindFencedMulti:
		return "several code blocks"
	case KindFenced:
		if e.Lang != "" {
			return "'" + e.Lang + "' highlighted code block"
		}
		return "plain code block"
	case KindInline:
		return e.Delim + "-enclosed inline code"
	default:
		return "unformatted or badly formatted code"
	}
}

// span is one delimited code region found by the scanner.
type span struct {
	code   string
	fenced bool
	lang   string
	delim  string
	end    int // offset just past the closing delimiter
}

// Extract parses text into the code string to evaluate.
//
// Policy, in precedence order:
//  1. more than one fenced block → their contents joined by a newline
//  2. exactly one fenced block → that block, ignoring surrounding prose
//  3. any inline span → the first span in the text
//  4. nothing delimited → the text itself, leading blank lines and trailing
//     whitespace removed
//
// The chosen code then has any shared leading indentation removed, so code
// pasted from an indented quote still runs as written.
func Extract(text string) Extracted {
	spans := scan(text)
	if len(spans) == 0 {
		return Extracted{Code: dedent(stripRaw(text)), Kind: KindRaw}
	}

	var fenced []span
	for _, s := range spans {
		if s.fenced {
			fenced = append(fenced, s)
		}
	}

	switch {
	case len(fenced) > 1:
		parts := make([]string, len(fenced))
		for i, s := range fenced {
			parts[i] = s.code
		}
		return Extracted{Code: dedent(strings.Join(parts, "\n")), Kind: KindFencedMulti}
	case len(fenced) == 1:
		return Extracted{Code: dedent(fenced[0].code), Kind: KindFenced, Lang: fenced[0].lang}
	default:
		first := spans[0]
		return Extracted{Code: dedent(first.code), Kind: KindInline, Delim: first.delim}
	}
}

// scan finds every non-overlapping delimited span, left to right.
func scan(text string) []span {
	var spans []span
	i := 0
	for i < len(text) {
		j := strings.IndexByte(text[i:], '`')
		if j < 0 {
			break
		}
		pos := i + j
		run := 0
		for pos+run < len(text) && text[pos+run] == '`' {
			run++
		}
		if run > 3 {
			run = 3
		}
		if s, ok := matchAt(text, pos, run); ok {
			spans = append(spans, s)
			i = s.end
		} else {
			// No close for any delimiter width here; retry one backtick later.
			i = pos + 1
		}
	}
	return spans
}

// matchAt tries to match a span opening at pos, preferring the widest
// delimiter and falling back to narrower ones when no close exists.
func matchAt(text string, pos, maxWidth int) (span, bool) {
	for w := maxWidth; w >= 1; w-- {
		delim := text[pos : pos+w]
		body := pos + w

		var lang string
		if w == 3 {
			lang, body = languageTag(text, body)
		}
		body = skipBlankLines(text, body)

		close := strings.Index(text[body:], delim)
		if close < 0 {
			continue
		}
		code := strings.TrimRightFunc(text[body:body+close], unicode.IsSpace)
		return span{
			code:   code,
			fenced: w == 3,
			lang:   lang,
			delim:  delim,
			end:    body + close + w,
		}, true
	}
	return span{}, false
}

// languageTag consumes an optional bare language tag (letters followed by a
// newline) at the start of a fenced block.
func languageTag(text string, i int) (string, int) {
	j := i
	for j < len(text) && isLetter(text[j]) {
		j++
	}
	if j > i && j < len(text) && text[j] == '\n' {
		return text[i:j], j + 1
	}
	return "", i
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// skipBlankLines consumes complete blank (empty or tabs/spaces only) lines.
// Leading indentation on the first code line is preserved for dedent.
func skipBlankLines(text string, i int) int {
	for {
		j := i
		for j < len(text) && (text[j] == ' ' || text[j] == '\t') {
			j++
		}
		if j < len(text) && text[j] == '\n' {
			i = j + 1
			continue
		}
		return i
	}
}

// stripRaw removes leading blank lines and trailing whitespace from
// undelimited text.
func stripRaw(text string) string {
	return strings.TrimRightFunc(text[skipBlankLines(text, 0):], unicode.IsSpace)
}

// dedent removes the whitespace prefix common to all non-blank lines.
// Whitespace-only lines are normalized to empty and ignored when computing
// the margin.
func dedent(s string) string {
	lines := strings.Split(s, "\n")

	margin := ""
	found := false
	for _, line := range lines {
		trimmed := strings.TrimLeft(line, " \t")
		if trimmed == "" {
			continue
		}
		indent := line[:len(line)-len(trimmed)]
		if !found {
			margin = indent
			found = true
			continue
		}
		n := 0
		for n < len(margin) && n < len(indent) && margin[n] == indent[n] {
			n++
		}
		margin = margin[:n]
	}

	for i, line := range lines {
		if strings.TrimLeft(line, " \t") == "" {
			lines[i] = ""
			continue
		}
		lines[i] = strings.TrimPrefix(line, margin)
	}
	return strings.Join(lines, "\n")
}
