// Package paste is a client for the paste service used to host output too
// large to display inline.
package paste

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client uploads documents to a hastebin-style paste service.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a paste client for the given service base URL.
func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// Upload posts text to the paste service and returns a link to the document,
// with the given extension appended for syntax highlighting.
func (c *Client) Upload(ctx context.Context, text, extension string) (string, error) {
	url := c.baseURL + "/documents"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(text))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("uploading paste: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("paste service returned %d: %s", resp.StatusCode, string(body))
	}

	var result struct {
		Key string `json:"key"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}
	if result.Key == "" {
		return "", fmt.Errorf("paste service returned no document key")
	}

	link := c.baseURL + "/" + result.Key
	if extension != "" {
		link += "." + extension
	}
	return link, nil
}
