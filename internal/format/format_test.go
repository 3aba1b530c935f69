package format

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
)

type fakeUploader struct {
	uploads []string
	url     string
	err     error
}

func (u *fakeUploader) Upload(_ context.Context, text, _ string) (string, error) {
	u.uploads = append(u.uploads, text)
	return u.url, u.err
}

func testFormatter(u *fakeUploader) *Formatter {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(u, logger)
}

func TestFormatSingleLine(t *testing.T) {
	u := &fakeUploader{url: "https://paste.example/abc"}
	r := testFormatter(u).Format(context.Background(), "2\n")

	if r.Body != "2" {
		t.Errorf("body = %q, want %q", r.Body, "2")
	}
	if r.Truncated {
		t.Error("unexpected truncation")
	}
	if r.PasteLink != "" {
		t.Errorf("paste link = %q, want empty", r.PasteLink)
	}
	if len(u.uploads) != 0 {
		t.Errorf("unexpected upload of %q", u.uploads)
	}
}

func TestFormatNumbersMultilineOutput(t *testing.T) {
	r := testFormatter(&fakeUploader{}).Format(context.Background(), "a\nb\nc\n")

	want := "001 | a\n002 | b\n003 | c"
	if r.Body != want {
		t.Errorf("body = %q, want %q", r.Body, want)
	}
	if r.Truncated {
		t.Error("unexpected truncation")
	}
}

func TestFormatTruncatesTooManyLines(t *testing.T) {
	u := &fakeUploader{url: "https://paste.example/full"}
	var b strings.Builder
	for i := 0; i < 20; i++ {
		fmt.Fprintf(&b, "line %d\n", i)
	}
	r := testFormatter(u).Format(context.Background(), b.String())

	if !r.Truncated {
		t.Fatal("expected truncation")
	}
	if !strings.HasSuffix(r.Body, "... (truncated - too many lines)") {
		t.Errorf("missing marker: %q", r.Body)
	}
	// Eleven numbered rows plus the marker line.
	if n := strings.Count(r.Body, "\n"); n != 11 {
		t.Errorf("body has %d newlines, want 11", n)
	}
	if !strings.HasPrefix(r.Body, "001 | line 0") {
		t.Errorf("body start = %q", r.Body[:20])
	}
	if r.PasteLink != "https://paste.example/full" {
		t.Errorf("paste link = %q", r.PasteLink)
	}
	if len(u.uploads) != 1 || strings.Contains(u.uploads[0], "001 |") {
		t.Errorf("upload should be the un-numbered original, got %q", u.uploads)
	}
}

func TestFormatTruncatesLongSingleLine(t *testing.T) {
	u := &fakeUploader{url: "https://paste.example/long"}
	r := testFormatter(u).Format(context.Background(), strings.Repeat("x", 1500))

	if !r.Truncated {
		t.Fatal("expected truncation")
	}
	if !strings.HasSuffix(r.Body, "... (truncated - too long)") {
		t.Errorf("missing marker: %q", r.Body[len(r.Body)-40:])
	}
	if got := len(strings.SplitN(r.Body, "\n", 2)[0]); got != 1000 {
		t.Errorf("capped body length = %d, want 1000", got)
	}
	if r.PasteLink == "" {
		t.Error("expected paste link")
	}
}

func TestFormatCombinedMarker(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 15; i++ {
		b.WriteString(strings.Repeat("y", 200) + "\n")
	}
	r := testFormatter(&fakeUploader{url: "u"}).Format(context.Background(), b.String())

	if !strings.HasSuffix(r.Body, "... (truncated - too long, too many lines)") {
		t.Errorf("missing combined marker: %q", r.Body[len(r.Body)-60:])
	}
}

func TestFormatEscapeSequenceBlocksOutput(t *testing.T) {
	u := &fakeUploader{url: "https://paste.example/esc"}
	r := testFormatter(u).Format(context.Background(), "fine\n```\nalso fine")

	if r.Body != EscapeWarning {
		t.Errorf("body = %q, want escape warning", r.Body)
	}
	if r.PasteLink != "https://paste.example/esc" {
		t.Errorf("paste link = %q", r.PasteLink)
	}
}

func TestFormatEscapeMixedSequence(t *testing.T) {
	// Two zero-width spaces and a backtick still form an escape run.
	r := testFormatter(&fakeUploader{}).Format(context.Background(), "x\u200b\u200b`y")
	if r.Body != EscapeWarning {
		t.Errorf("body = %q, want escape warning", r.Body)
	}
}

func TestFormatEscapeBeatsTruncation(t *testing.T) {
	// Short enough to display, but the escape check still wins.
	r := testFormatter(&fakeUploader{}).Format(context.Background(), "``` x")
	if r.Body != EscapeWarning {
		t.Errorf("body = %q, want escape warning", r.Body)
	}
}

func TestFormatNeutralizesMentions(t *testing.T) {
	r := testFormatter(&fakeUploader{}).Format(context.Background(), "<@1234> <!@here")

	if !strings.Contains(r.Body, "<@\u200b1234>") {
		t.Errorf("user mention not neutralized: %q", r.Body)
	}
	if !strings.Contains(r.Body, "<!@\u200bhere") {
		t.Errorf("everyone mention not neutralized: %q", r.Body)
	}
}

func TestFormatEmptyOutput(t *testing.T) {
	r := testFormatter(&fakeUploader{}).Format(context.Background(), "\n\n")
	if r.Body != NoOutput {
		t.Errorf("body = %q, want %q", r.Body, NoOutput)
	}
}

func TestFormatPasteCeiling(t *testing.T) {
	u := &fakeUploader{url: "should-not-be-used"}
	r := testFormatter(u).Format(context.Background(), strings.Repeat("z", 10001))

	if r.PasteLink != TooLongToUpload {
		t.Errorf("paste link = %q, want %q", r.PasteLink, TooLongToUpload)
	}
	if len(u.uploads) != 0 {
		t.Error("should not call the paste service past the ceiling")
	}
}

func TestFormatUploadFailureDropsLink(t *testing.T) {
	u := &fakeUploader{err: errors.New("paste service down")}
	r := testFormatter(u).Format(context.Background(), strings.Repeat("x", 1500))

	if !r.Truncated {
		t.Fatal("expected truncation")
	}
	if r.PasteLink != "" {
		t.Errorf("paste link = %q, want empty on upload failure", r.PasteLink)
	}
}

func TestFormatTimingSummaryLine(t *testing.T) {
	r := testFormatter(&fakeUploader{}).FormatTiming(context.Background(),
		"5000 loops, best of 5: 4.25 usec per loop\n")

	if r.Body != "5000 loops, best of 5: 4.25 usec per loop" {
		t.Errorf("body = %q", r.Body)
	}
	if r.Truncated || r.PasteLink != "" {
		t.Error("timing summary should skip truncation and paste logic")
	}
}

func TestFormatTimingFallsBackOnError(t *testing.T) {
	r := testFormatter(&fakeUploader{}).FormatTiming(context.Background(),
		"Traceback (most recent call last):\n  ValueError: boom\n")

	if !strings.HasPrefix(r.Body, "001 | Traceback") {
		t.Errorf("expected general formatting, got %q", r.Body)
	}
}
