package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/doublevcodes/bot/internal/chat"
)

// Transport performs chat actions against the platform's REST API.
// It implements chat.Transport.
type Transport struct {
	apiBase string
	token   string
	http    *http.Client
}

// NewTransport creates a REST transport rooted at apiBase.
func NewTransport(apiBase, token string) *Transport {
	return &Transport{
		apiBase: apiBase,
		token:   token,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

type sendRequest struct {
	Content      string   `json:"content"`
	AllowedUsers []string `json:"allowed_users"`
}

// Send posts a message to a channel. AllowedUsers is always sent, so an empty
// list means nobody gets pinged.
func (t *Transport) Send(ctx context.Context, channelID, body string, opts chat.SendOptions) (chat.Message, error) {
	allowed := opts.AllowedUsers
	if allowed == nil {
		allowed = []string{}
	}
	payload, err := json.Marshal(sendRequest{Content: body, AllowedUsers: allowed})
	if err != nil {
		return chat.Message{}, fmt.Errorf("encoding message: %w", err)
	}

	path := fmt.Sprintf("/channels/%s/messages", url.PathEscape(channelID))
	resp, err := t.do(ctx, http.MethodPost, path, payload)
	if err != nil {
		return chat.Message{}, err
	}
	defer resp.Body.Close()

	var m wireMessage
	if err := json.NewDecoder(resp.Body).Decode(&m); err != nil {
		return chat.Message{}, fmt.Errorf("decoding sent message: %w", err)
	}
	return m.toMessage(), nil
}

// AddReaction adds the bot's reaction to a message.
func (t *Transport) AddReaction(ctx context.Context, channelID, messageID, emoji string) error {
	path := fmt.Sprintf("/channels/%s/messages/%s/reactions/%s",
		url.PathEscape(channelID), url.PathEscape(messageID), url.PathEscape(emoji))
	resp, err := t.do(ctx, http.MethodPut, path, nil)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// RemoveReaction removes the bot's reaction from a message.
func (t *Transport) RemoveReaction(ctx context.Context, channelID, messageID, emoji string) error {
	path := fmt.Sprintf("/channels/%s/messages/%s/reactions/%s",
		url.PathEscape(channelID), url.PathEscape(messageID), url.PathEscape(emoji))
	resp, err := t.do(ctx, http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// DeleteMessage deletes a message.
func (t *Transport) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	path := fmt.Sprintf("/channels/%s/messages/%s",
		url.PathEscape(channelID), url.PathEscape(messageID))
	resp, err := t.do(ctx, http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// do issues one API request. A 404 maps to chat.ErrNotFound so cleanup paths
// can tolerate already-deleted targets.
func (t *Transport) do(ctx context.Context, method, path string, payload []byte) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, t.apiBase+path, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if t.token != "" {
		req.Header.Set("Authorization", "Bearer "+t.token)
	}

	resp, err := t.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling chat api: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		resp.Body.Close()
		return nil, chat.ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("chat api returned %d: %s", resp.StatusCode, string(msg))
	}
	return resp, nil
}
