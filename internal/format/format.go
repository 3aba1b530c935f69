// Package format turns raw process output into a bounded, chat-safe message
// body, overflowing the full output to a paste service when anything is
// dropped.
package format

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
)

const (
	// DefaultMaxLines is how many output lines are shown before truncating.
	DefaultMaxLines = 10
	// DefaultMaxChars bounds the displayed body length.
	DefaultMaxChars = 1000
	// DefaultMaxPaste is the largest output the paste service will accept.
	DefaultMaxPaste = 10000

	// NoOutput is substituted when the formatted body would be empty.
	NoOutput = "[No output]"
	// EscapeWarning replaces the body when the output tries to break out of
	// the surrounding code block.
	EscapeWarning = "Code block escape attempt detected; will not output result"
	// TooLongToUpload stands in for a paste link when even the paste service
	// can't take the full output.
	TooLongToUpload = "too long to upload"
)

// timingLine matches the summary line produced by a successful timing run.
var timingLine = regexp.MustCompile(`^\d+ loops, best of \d+: \d(?:\.\d\d?)? [mnu]?sec per loop$`)

// Uploader sends text to the paste service and returns a link to it.
type Uploader interface {
	Upload(ctx context.Context, text, extension string) (string, error)
}

// Result is a formatted, display-ready rendering of process output.
type Result struct {
	Body      string
	PasteLink string // empty, a URL, or TooLongToUpload
	Truncated bool
}

// Formatter renders stdout within fixed display limits.
type Formatter struct {
	MaxLines int
	MaxChars int
	MaxPaste int

	uploader Uploader
	log      *slog.Logger
}

// New creates a Formatter with the default limits.
func New(uploader Uploader, logger *slog.Logger) *Formatter {
	return &Formatter{
		MaxLines: DefaultMaxLines,
		MaxChars: DefaultMaxChars,
		MaxPaste: DefaultMaxPaste,
		uploader: uploader,
		log:      logger,
	}
}

// Format renders stdout for display. Line numbers are prepended when the
// output spans multiple lines; output beyond MaxLines lines or MaxChars
// characters is truncated and the full original is uploaded instead.
func (f *Formatter) Format(ctx context.Context, stdout string) Result {
	output := strings.TrimRight(stdout, "\n")
	original := output // uploaded whenever display drops information

	if containsEscape(output) {
		return Result{
			Body:      EscapeWarning,
			PasteLink: f.upload(ctx, original),
			Truncated: true,
		}
	}

	output = neutralizeMentions(output)

	lines := strings.Count(output, "\n")
	if lines > 0 {
		numbered := strings.Split(output, "\n")
		for i, line := range numbered {
			numbered[i] = fmt.Sprintf("%03d | %s", i+1, line)
		}
		if len(numbered) > f.MaxLines+1 {
			numbered = numbered[:f.MaxLines+1]
		}
		output = strings.Join(numbered, "\n")
	}

	truncated := false
	switch {
	case lines > f.MaxLines:
		truncated = true
		if runeLen(output) >= f.MaxChars {
			output = runeCap(output, f.MaxChars) + "\n... (truncated - too long, too many lines)"
		} else {
			output += "\n... (truncated - too many lines)"
		}
	case runeLen(output) >= f.MaxChars:
		truncated = true
		output = runeCap(output, f.MaxChars) + "\n... (truncated - too long)"
	}

	var link string
	if truncated {
		link = f.upload(ctx, original)
	}

	if output == "" {
		output = NoOutput
	}

	return Result{Body: output, PasteLink: link, Truncated: truncated}
}

// FormatTiming handles output from a timing run. A successful run ends with a
// "N loops, best of M: T per loop" summary line, which is returned alone;
// anything else (errors, partial output) falls back to Format.
func (f *Formatter) FormatTiming(ctx context.Context, stdout string) Result {
	trimmed := strings.TrimRight(stdout, "\n")
	last := trimmed
	if idx := strings.LastIndex(trimmed, "\n"); idx >= 0 {
		last = trimmed[idx+1:]
	}
	if last != "" && timingLine.MatchString(last) {
		return Result{Body: last}
	}
	return f.Format(ctx, stdout)
}

// upload sends the full output to the paste service, honoring the size
// ceiling. Upload failures degrade to no link.
func (f *Formatter) upload(ctx context.Context, output string) string {
	if len(output) > f.MaxPaste {
		f.log.Info("full output too long to upload", slog.Int("size", len(output)))
		return TooLongToUpload
	}
	link, err := f.uploader.Upload(ctx, output, "txt")
	if err != nil {
		f.log.Warn("paste upload failed", slog.String("error", err.Error()))
		return ""
	}
	return link
}

// containsEscape reports whether the output holds three or more consecutive
// characters drawn from backtick, right-to-left override, and zero-width
// space — sequences that could break out of the response code block.
func containsEscape(s string) bool {
	run := 0
	for _, r := range s {
		if r == '`' || r == '\u202e' || r == '\u200b' {
			run++
			if run >= 3 {
				return true
			}
		} else {
			run = 0
		}
	}
	return false
}

// neutralizeMentions inserts a zero-width space after mention sigils so
// echoed output can't ping users or everyone/here.
func neutralizeMentions(s string) string {
	s = strings.ReplaceAll(s, "<@", "<@\u200b")
	s = strings.ReplaceAll(s, "<!@", "<!@\u200b")
	return s
}

func runeLen(s string) int {
	return len([]rune(s))
}

func runeCap(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
