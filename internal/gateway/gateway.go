// Package gateway connects the bot to the chat platform: a websocket stream
// of incoming events, and REST calls for outgoing actions.
package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/doublevcodes/bot/internal/chat"
)

// MessageHandler is invoked for each new chat message. Each message gets its
// own goroutine so one user's session never blocks another's events.
type MessageHandler func(ctx context.Context, msg chat.Message)

// Client consumes the platform's websocket event stream and feeds edits and
// reactions into the dispatcher.
type Client struct {
	wsURL   string
	token   string
	events  *chat.Dispatcher
	handler MessageHandler
	log     *slog.Logger

	// reconnectWait is the pause between connection attempts.
	reconnectWait time.Duration
}

// NewClient creates a gateway client for the given websocket URL.
func NewClient(wsURL, token string, events *chat.Dispatcher, handler MessageHandler, logger *slog.Logger) *Client {
	return &Client{
		wsURL:         wsURL,
		token:         token,
		events:        events,
		handler:       handler,
		log:           logger,
		reconnectWait: 5 * time.Second,
	}
}

// event is the envelope for everything the platform pushes.
type event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type wireMessage struct {
	ID         string   `json:"id"`
	ChannelID  string   `json:"channel_id"`
	CategoryID string   `json:"category_id"`
	AuthorID   string   `json:"author_id"`
	AuthorName string   `json:"author_name"`
	Roles      []string `json:"roles"`
	Content    string   `json:"content"`
}

func (m wireMessage) toMessage() chat.Message {
	return chat.Message{
		ID:         m.ID,
		ChannelID:  m.ChannelID,
		CategoryID: m.CategoryID,
		AuthorID:   m.AuthorID,
		AuthorName: m.AuthorName,
		Roles:      m.Roles,
		Content:    m.Content,
	}
}

type wireEdit struct {
	Old wireMessage `json:"old"`
	New wireMessage `json:"new"`
}

type wireReaction struct {
	MessageID string `json:"message_id"`
	ChannelID string `json:"channel_id"`
	UserID    string `json:"user_id"`
	Emoji     string `json:"emoji"`
}

// Run connects to the event stream and processes events until ctx is
// cancelled, reconnecting after connection failures.
func (c *Client) Run(ctx context.Context) error {
	for {
		if err := c.connectAndRead(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.log.Warn("gateway connection lost", slog.String("error", err.Error()))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.reconnectWait):
		}
	}
}

func (c *Client) connectAndRead(ctx context.Context) error {
	header := http.Header{}
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.wsURL, header)
	if err != nil {
		return err
	}
	defer conn.Close()
	c.log.Info("gateway connected", slog.String("url", c.wsURL))

	// Unblock ReadMessage when the context is cancelled.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		c.dispatch(ctx, data)
	}
}

func (c *Client) dispatch(ctx context.Context, data []byte) {
	var ev event
	if err := json.Unmarshal(data, &ev); err != nil {
		c.log.Warn("malformed gateway event", slog.String("error", err.Error()))
		return
	}

	switch ev.Type {
	case "message":
		var m wireMessage
		if err := json.Unmarshal(ev.Data, &m); err != nil {
			c.log.Warn("malformed message event", slog.String("error", err.Error()))
			return
		}
		go c.handler(ctx, m.toMessage())

	case "message_edit":
		var e wireEdit
		if err := json.Unmarshal(ev.Data, &e); err != nil {
			c.log.Warn("malformed edit event", slog.String("error", err.Error()))
			return
		}
		c.events.PublishEdit(chat.Edit{Old: e.Old.toMessage(), New: e.New.toMessage()})

	case "reaction_add":
		var r wireReaction
		if err := json.Unmarshal(ev.Data, &r); err != nil {
			c.log.Warn("malformed reaction event", slog.String("error", err.Error()))
			return
		}
		c.events.PublishReaction(chat.Reaction{
			MessageID: r.MessageID,
			ChannelID: r.ChannelID,
			UserID:    r.UserID,
			Emoji:     r.Emoji,
		})

	default:
		c.log.Debug("ignoring gateway event", slog.String("type", ev.Type))
	}
}
