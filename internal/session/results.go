package session

import (
	"fmt"
	"strings"

	"github.com/doublevcodes/bot/internal/evalapi"
)

const (
	emojiWarning = "⚠️" // no output
	emojiSuccess = "✅"  // clean exit with output
	emojiFailure = "❌"  // nonzero exit, signal, or sandbox failure

)

// ReevalEmoji marks the invoking message once a qualifying edit arrives; the
// author confirms re-evaluation by reacting with the same emoji.
const ReevalEmoji = "\U0001f501"

// Exit codes above 128 mean the process was killed by signal (code-128).
// The names are fixed to the sandbox's platform rather than taken from the
// host, so classification is the same wherever the bot runs.
var signalNames = map[int]string{
	1: "SIGHUP", 2: "SIGINT", 3: "SIGQUIT", 4: "SIGILL", 5: "SIGTRAP",
	6: "SIGABRT", 7: "SIGBUS", 8: "SIGFPE", 9: "SIGKILL", 10: "SIGUSR1",
	11: "SIGSEGV", 12: "SIGUSR2", 13: "SIGPIPE", 14: "SIGALRM", 15: "SIGTERM",
	16: "SIGSTKFLT", 17: "SIGCHLD", 18: "SIGCONT", 19: "SIGSTOP", 20: "SIGTSTP",
	21: "SIGTTIN", 22: "SIGTTOU", 23: "SIGURG", 24: "SIGXCPU", 25: "SIGXFSZ",
	26: "SIGVTALRM", 27: "SIGPROF", 28: "SIGWINCH", 29: "SIGIO", 30: "SIGPWR",
	31: "SIGSYS",
}

const sigKill = 9

// resultsMessage returns the user-facing status sentence for a result, plus
// an error body that, when non-empty, replaces the formatted stdout entirely.
func resultsMessage(res *evalapi.Result) (msg, errText string) {
	if res.ReturnCode == nil {
		return "Your eval job has failed", strings.TrimSpace(res.Stdout)
	}

	rc := *res.ReturnCode
	msg = fmt.Sprintf("Your eval job has completed with return code %d", rc)

	switch {
	case rc == 128+sigKill:
		msg = "Your eval job timed out or ran out of memory"
	case rc == 255:
		msg = "Your eval job has failed"
		errText = "A fatal error occurred in the sandbox"
	default:
		if name, ok := signalNames[rc-128]; ok {
			msg = fmt.Sprintf("%s (%s)", msg, name)
		}
	}
	return msg, errText
}

// statusEmoji picks the indicator for a result: warning when there was no
// output at all, success only on a clean exit with output, failure otherwise.
func statusEmoji(res *evalapi.Result) string {
	if strings.TrimSpace(res.Stdout) == "" {
		return emojiWarning
	}
	if res.ReturnCode != nil && *res.ReturnCode == 0 {
		return emojiSuccess
	}
	return emojiFailure
}
