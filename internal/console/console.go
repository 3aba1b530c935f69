// Package console is a local, single-user chat transport for development.
// Lines typed at a readline prompt flow through the same session pipeline as
// gateway traffic; responses print to the terminal. Slash commands simulate
// the platform events a real gateway would deliver.
package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/chzyer/readline"

	"github.com/doublevcodes/bot/internal/chat"
	"github.com/doublevcodes/bot/internal/session"
)

const (
	channelID = "console"
	userID    = "local"
)

// MessageHandler receives each typed message, matching the gateway's shape.
type MessageHandler func(ctx context.Context, msg chat.Message)

// Console drives a terminal chat loop and implements chat.Transport.
type Console struct {
	events  *chat.Dispatcher
	handler MessageHandler
	out     io.Writer

	mu      sync.Mutex
	nextID  int
	last    chat.Message // most recent typed message, target for /edit and /react
	deleted map[string]bool
}

// New creates a Console writing responses to out.
func New(events *chat.Dispatcher, handler MessageHandler, out io.Writer) *Console {
	return &Console{
		events:  events,
		handler: handler,
		out:     out,
		deleted: make(map[string]bool),
	}
}

// --- chat.Transport ---

func (c *Console) Send(_ context.Context, channel, body string, _ chat.SendOptions) (chat.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	m := chat.Message{
		ID:        fmt.Sprintf("response-%d", c.nextID),
		ChannelID: channel,
		Content:   body,
	}
	fmt.Fprintf(c.out, "\n%s\n\n", body)
	return m, nil
}

func (c *Console) AddReaction(_ context.Context, _, messageID, emoji string) error {
	fmt.Fprintf(c.out, "[%s added to %s - /react to confirm re-evaluation]\n", emoji, messageID)
	return nil
}

func (c *Console) RemoveReaction(_ context.Context, _, messageID, emoji string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.deleted[messageID] {
		return chat.ErrNotFound
	}
	fmt.Fprintf(c.out, "[%s removed from %s]\n", emoji, messageID)
	return nil
}

func (c *Console) DeleteMessage(_ context.Context, _, messageID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.deleted[messageID] {
		return chat.ErrNotFound
	}
	c.deleted[messageID] = true
	fmt.Fprintf(c.out, "[%s deleted]\n", messageID)
	return nil
}

// --- input loop ---

// Run reads lines until EOF, interrupt, or ctx cancellation.
func (c *Console) Run(ctx context.Context) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "eval> ",
		HistoryFile:     "/tmp/evalbot_history",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("readline: %w", err)
	}
	defer rl.Close()

	fmt.Fprintf(c.out, "evalbot console - type a command (e.g. !eval `print(1+1)`)\n")
	fmt.Fprintf(c.out, "/edit <text> edits your last message, /react confirms re-evaluation, /quit exits\n\n")

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if !c.handleLine(ctx, strings.TrimSpace(line)) {
			return nil
		}
	}
}

// handleLine processes one input line. Returns false when the loop should
// exit.
func (c *Console) handleLine(ctx context.Context, line string) bool {
	switch {
	case line == "":
		return true

	case line == "/quit" || line == "/exit" || line == "/q":
		return false

	case line == "/help":
		fmt.Fprintln(c.out, "Commands:")
		fmt.Fprintln(c.out, "  /edit <text>  - edit your last message")
		fmt.Fprintln(c.out, "  /react        - add the repeat reaction to your last message")
		fmt.Fprintln(c.out, "  /quit         - exit")
		return true

	case strings.HasPrefix(line, "/edit "):
		c.mu.Lock()
		old := c.last
		c.mu.Unlock()
		if old.ID == "" {
			fmt.Fprintln(c.out, "[nothing to edit]")
			return true
		}
		edited := old
		edited.Content = strings.TrimPrefix(line, "/edit ")
		c.mu.Lock()
		c.last = edited
		c.mu.Unlock()
		c.events.PublishEdit(chat.Edit{Old: old, New: edited})
		return true

	case line == "/react":
		c.mu.Lock()
		last := c.last
		c.mu.Unlock()
		if last.ID == "" {
			fmt.Fprintln(c.out, "[nothing to react to]")
			return true
		}
		c.events.PublishReaction(chat.Reaction{
			MessageID: last.ID,
			ChannelID: last.ChannelID,
			UserID:    userID,
			Emoji:     session.ReevalEmoji,
		})
		return true

	case strings.HasPrefix(line, "/"):
		fmt.Fprintf(c.out, "[unknown command %s - try /help]\n", line)
		return true

	default:
		c.mu.Lock()
		c.nextID++
		msg := chat.Message{
			ID:        fmt.Sprintf("message-%d", c.nextID),
			ChannelID: channelID,
			AuthorID:  userID,
			Content:   line,
		}
		c.last = msg
		c.mu.Unlock()
		// The session blocks through its re-evaluation windows; run it off
		// the input loop so the prompt stays responsive for /edit and /react.
		go c.handler(ctx, msg)
		return true
	}
}
