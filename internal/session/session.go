// Package session drives the lifecycle of one evaluation: command parsing,
// the single-job-per-user rule, dispatch to the execution service, response
// composition, and the edit-then-react re-evaluation loop.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/doublevcodes/bot/internal/chat"
	"github.com/doublevcodes/bot/internal/codeblock"
	"github.com/doublevcodes/bot/internal/evalapi"
	"github.com/doublevcodes/bot/internal/format"
	"github.com/doublevcodes/bot/internal/policy"
	"github.com/doublevcodes/bot/internal/storage"
)

const (
	defaultPrefix      = "!"
	defaultEditWindow  = 30 * time.Second
	defaultReactWindow = 10 * time.Second
)

// timeitWrapper silences the wrapped code's own stdout so the timing summary
// is the only thing the run prints.
const timeitWrapper = `
from contextlib import redirect_stdout
from io import StringIO

with redirect_stdout(StringIO()):
    del redirect_stdout, StringIO
%s
`

// Runner executes code remotely. *evalapi.Client implements it.
type Runner interface {
	Run(ctx context.Context, code string, args []string) (*evalapi.Result, error)
}

// Options tunes a Service. Zero values fall back to defaults.
type Options struct {
	Prefix      string
	EditWindow  time.Duration
	ReactWindow time.Duration
}

// Service handles evaluation commands end to end.
type Service struct {
	transport chat.Transport
	events    *chat.Dispatcher
	exec      Runner
	formatter *format.Formatter
	registry  *Registry
	store     storage.Store
	policy    *policy.Policy
	log       *slog.Logger

	prefix      string
	editWindow  time.Duration
	reactWindow time.Duration
}

// New wires up a Service. store may be nil to disable job history and
// counters.
func New(
	transport chat.Transport,
	events *chat.Dispatcher,
	exec Runner,
	formatter *format.Formatter,
	registry *Registry,
	store storage.Store,
	pol *policy.Policy,
	logger *slog.Logger,
	opts Options,
) *Service {
	if opts.Prefix == "" {
		opts.Prefix = defaultPrefix
	}
	if opts.EditWindow == 0 {
		opts.EditWindow = defaultEditWindow
	}
	if opts.ReactWindow == 0 {
		opts.ReactWindow = defaultReactWindow
	}
	return &Service{
		transport:   transport,
		events:      events,
		exec:        exec,
		formatter:   formatter,
		registry:    registry,
		store:       store,
		policy:      pol,
		log:         logger,
		prefix:      opts.Prefix,
		editWindow:  opts.EditWindow,
		reactWindow: opts.ReactWindow,
	}
}

// command identifies which evaluation command a message invokes.
type command struct {
	name string // canonical name: "eval" or "timeit"
	arg  string // raw text after the command word
}

// parseCommand splits a prefixed invocation into its command and argument.
// The command word ends at the first space or newline.
func parseCommand(content, prefix string) (command, bool) {
	if !strings.HasPrefix(content, prefix) {
		return command{}, false
	}
	rest := content[len(prefix):]
	word, arg := rest, ""
	if i := strings.IndexAny(rest, " \n"); i >= 0 {
		word, arg = rest[:i], rest[i+1:]
	}

	switch word {
	case "eval", "e":
		return command{name: "eval", arg: arg}, true
	case "timeit", "ti":
		return command{name: "timeit", arg: arg}, true
	}
	return command{}, false
}

// HandleMessage inspects an incoming message and, if it invokes an evaluation
// command, runs the full session. Non-command messages are ignored.
func (s *Service) HandleMessage(ctx context.Context, msg chat.Message) {
	cmd, ok := parseCommand(msg.Content, s.prefix)
	if !ok {
		return
	}

	verdict := s.policy.Gate.Check(msg)
	if !verdict.Allowed {
		s.send(ctx, msg.ChannelID, fmt.Sprintf("<@%s> That command can't be used here.", msg.AuthorID), msg.AuthorID)
		return
	}
	respondIn := msg.ChannelID
	if verdict.RedirectChannelID != "" {
		respondIn = verdict.RedirectChannelID
	}

	if strings.TrimSpace(cmd.arg) == "" {
		s.send(ctx, respondIn, fmt.Sprintf("<@%s> You must provide some code to evaluate.", msg.AuthorID), msg.AuthorID)
		return
	}

	s.countUsage(ctx, msg)

	ext := codeblock.Extract(cmd.arg)
	s.log.Debug("extracted code",
		slog.String("user", msg.AuthorID),
		slog.String("source", ext.Describe()))
	s.log.Info("received code for evaluation",
		slog.String("user", msg.AuthorID),
		slog.String("command", cmd.name))

	s.runLoop(ctx, msg, cmd.name, ext.Code, respondIn)
}

// runLoop is the session's main loop: one execution attempt per iteration,
// continuing while the user re-triggers evaluation by edit plus reaction.
//
// The registry entry is released after each attempt completes, before the
// re-evaluation wait begins. A brand-new command from the same user can
// therefore race in during the wait; a re-evaluation round proceeds even if
// it loses that race, but then only releases an entry it acquired itself.
func (s *Service) runLoop(ctx context.Context, invocation chat.Message, cmdName, code, respondIn string) {
	round := 1
	for {
		owned := s.registry.TryAcquire(invocation.AuthorID)
		if round == 1 && !owned {
			s.send(ctx, respondIn, fmt.Sprintf(
				"<@%s> You've already got a job running - please wait for it to finish!",
				invocation.AuthorID), invocation.AuthorID)
			return
		}

		response, err := s.attempt(ctx, invocation, cmdName, code, respondIn, round)
		if owned {
			s.registry.Release(invocation.AuthorID)
		}
		if err != nil {
			return
		}

		newCode, ok := s.continueEval(ctx, invocation, response, cmdName)
		if !ok {
			return
		}
		code = codeblock.Extract(newCode).Code
		round++
		s.log.Info("re-evaluating edited code",
			slog.String("user", invocation.AuthorID),
			slog.Int("round", round))
	}
}

// attempt executes the code once and sends the composed response. The
// returned error means the execution service itself was unreachable; a
// failure notice has already been sent and the session is over.
func (s *Service) attempt(ctx context.Context, invocation chat.Message, cmdName, code, respondIn string, round int) (chat.Message, error) {
	input, args := code, []string(nil)
	if cmdName == "timeit" {
		input = fmt.Sprintf(timeitWrapper, indent(code, "    "))
		args = []string{"-m", "timeit"}
	}

	started := time.Now().UTC()
	res, err := s.exec.Run(ctx, input, args)
	if err != nil {
		s.log.Error("eval service call failed", slog.String("error", err.Error()))
		s.send(ctx, respondIn, fmt.Sprintf(
			"<@%s> %s Your eval job has failed.\n\n```\nAn error occurred while contacting the evaluation service\n```",
			invocation.AuthorID, emojiFailure), invocation.AuthorID)
		s.recordJob(ctx, invocation, cmdName, round, nil, storage.StatusFailed, started)
		return chat.Message{}, err
	}

	statusMsg, errText := resultsMessage(res)
	icon := statusEmoji(res)

	var output, pasteLink string
	if errText != "" {
		output = errText
	} else {
		var formatted format.Result
		if cmdName == "timeit" {
			formatted = s.formatter.FormatTiming(ctx, res.Stdout)
		} else {
			formatted = s.formatter.Format(ctx, res.Stdout)
		}
		output, pasteLink = formatted.Body, formatted.PasteLink
	}

	body := fmt.Sprintf("<@%s> %s %s.\n\n```\n%s\n```", invocation.AuthorID, icon, statusMsg, output)
	if pasteLink != "" {
		body = fmt.Sprintf("%s\nFull output: %s", body, pasteLink)
	}

	status := storage.StatusSuccess
	counter := "eval.success"
	if icon == emojiFailure {
		status = storage.StatusFailed
		counter = "eval.fail"
	}
	s.incr(ctx, counter)
	s.recordJob(ctx, invocation, cmdName, round, res.ReturnCode, status, started)

	if s.policy.Filter.Triggered(body) {
		s.log.Warn("response vetoed by content filter", slog.String("user", invocation.AuthorID))
		return s.send(ctx, respondIn,
			"Attempt to circumvent filter detected. Moderator team has been alerted.", "")
	}

	response, err := s.send(ctx, respondIn, body, invocation.AuthorID)
	if err != nil {
		return chat.Message{}, err
	}

	s.log.Info("eval job finished",
		slog.String("user", invocation.AuthorID),
		slog.Any("returncode", res.ReturnCode))
	return response, nil
}

// continueEval decides whether the session gets another round: the invoking
// message must be edited within the edit window, then the author must confirm
// with the repeat reaction within the reaction window. Returns the new code
// to evaluate, or ok=false when the session should terminate.
func (s *Service) continueEval(ctx context.Context, invocation, response chat.Message, cmdName string) (string, bool) {
	edit, err := s.events.WaitForEdit(ctx, s.editWindow, func(e chat.Edit) bool {
		return e.New.ID == invocation.ID && e.Old.Content != e.New.Content
	})
	if err != nil {
		return "", false
	}

	if err := s.transport.AddReaction(ctx, invocation.ChannelID, invocation.ID, ReevalEmoji); err != nil {
		s.log.Warn("adding repeat reaction failed", slog.String("error", err.Error()))
	}

	_, err = s.events.WaitForReaction(ctx, s.reactWindow, func(r chat.Reaction) bool {
		return r.MessageID == invocation.ID && r.UserID == invocation.AuthorID && r.Emoji == ReevalEmoji
	})
	if err != nil {
		s.cleanupReaction(ctx, invocation)
		return "", false
	}

	code := s.resolveCode(edit.New, cmdName)
	s.cleanupReaction(ctx, invocation)
	s.deleteResponse(ctx, response)

	if strings.TrimSpace(code) == "" {
		return "", false
	}
	return code, true
}

// resolveCode picks the code out of the edited message. If the edit still
// invokes the same command, only its argument counts; otherwise the whole
// message body is the code.
func (s *Service) resolveCode(edited chat.Message, cmdName string) string {
	if cmd, ok := parseCommand(edited.Content, s.prefix); ok && cmd.name == cmdName {
		return cmd.arg
	}
	return edited.Content
}

// cleanupReaction removes the repeat marker, tolerating a message that is
// already gone.
func (s *Service) cleanupReaction(ctx context.Context, invocation chat.Message) {
	err := s.transport.RemoveReaction(ctx, invocation.ChannelID, invocation.ID, ReevalEmoji)
	if err != nil && !errors.Is(err, chat.ErrNotFound) {
		s.log.Debug("removing repeat reaction failed", slog.String("error", err.Error()))
	}
}

// deleteResponse best-effort deletes the superseded response message.
func (s *Service) deleteResponse(ctx context.Context, response chat.Message) {
	err := s.transport.DeleteMessage(ctx, response.ChannelID, response.ID)
	if err != nil && !errors.Is(err, chat.ErrNotFound) {
		s.log.Debug("deleting previous response failed", slog.String("error", err.Error()))
	}
}

// send posts a message, allowing only the given user to be pinged.
func (s *Service) send(ctx context.Context, channelID, body, allowedUser string) (chat.Message, error) {
	opts := chat.SendOptions{}
	if allowedUser != "" {
		opts.AllowedUsers = []string{allowedUser}
	}
	msg, err := s.transport.Send(ctx, channelID, body, opts)
	if err != nil {
		s.log.Error("sending response failed", slog.String("error", err.Error()))
	}
	return msg, err
}

// countUsage attributes the invocation to a role bucket and a channel bucket.
func (s *Service) countUsage(ctx context.Context, msg chat.Message) {
	if s.policy.Gate.HasBypassRole(msg.Roles) {
		s.incr(ctx, "eval.usage.roles.staff")
	} else {
		s.incr(ctx, "eval.usage.roles.member")
	}
	if msg.ChannelID == s.policy.Gate.RedirectChannel() {
		s.incr(ctx, "eval.usage.channels.commands")
	} else {
		s.incr(ctx, "eval.usage.channels.topical")
	}
}

func (s *Service) incr(ctx context.Context, name string) {
	if s.store == nil {
		return
	}
	if err := s.store.Incr(ctx, name); err != nil {
		s.log.Warn("incrementing counter failed",
			slog.String("counter", name), slog.String("error", err.Error()))
	}
}

func (s *Service) recordJob(ctx context.Context, invocation chat.Message, cmdName string, round int, rc *int, status storage.JobStatus, started time.Time) {
	if s.store == nil {
		return
	}
	job := &storage.Job{
		ID:         uuid.NewString(),
		UserID:     invocation.AuthorID,
		ChannelID:  invocation.ChannelID,
		Command:    cmdName,
		Round:      round,
		ReturnCode: rc,
		Status:     status,
		StartedAt:  started,
		FinishedAt: time.Now().UTC(),
	}
	if err := s.store.RecordJob(ctx, job); err != nil {
		s.log.Warn("recording job failed", slog.String("error", err.Error()))
	}
}

// indent prefixes every non-empty line of s with the given prefix.
func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		if strings.TrimSpace(line) != "" {
			lines[i] = prefix + line
		}
	}
	return strings.Join(lines, "\n")
}
