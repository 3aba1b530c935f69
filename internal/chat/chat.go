package chat

import (
	"context"
	"errors"
)

// ErrNotFound is returned by transports when the target message or reaction no
// longer exists. Cleanup paths treat it as success.
var ErrNotFound = errors.New("message not found")

// Message is a single chat message as seen by the bot.
type Message struct {
	ID         string
	ChannelID  string
	CategoryID string
	AuthorID   string
	AuthorName string
	Roles      []string // role ids held by the author
	Content    string
}

// Reaction is an emoji added to a message by a user.
type Reaction struct {
	MessageID string
	ChannelID string
	UserID    string
	Emoji     string
}

// Edit pairs the pre- and post-edit versions of a message.
type Edit struct {
	Old Message
	New Message
}

// SendOptions controls mention behaviour for an outgoing message.
// Only the listed user ids may be pinged; everyone/here and role mentions
// are always suppressed.
type SendOptions struct {
	AllowedUsers []string
}

// Transport is the action side of the chat platform boundary.
type Transport interface {
	// Send posts a message to a channel and returns the created message.
	Send(ctx context.Context, channelID, body string, opts SendOptions) (Message, error)

	// AddReaction adds an emoji reaction to a message.
	AddReaction(ctx context.Context, channelID, messageID, emoji string) error

	// RemoveReaction removes the bot's reaction of the given emoji.
	// Returns ErrNotFound if the message or reaction is already gone.
	RemoveReaction(ctx context.Context, channelID, messageID, emoji string) error

	// DeleteMessage deletes a message. Returns ErrNotFound if already gone.
	DeleteMessage(ctx context.Context, channelID, messageID string) error
}
