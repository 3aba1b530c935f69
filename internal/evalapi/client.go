// Package evalapi is the client for the remote sandboxed execution service.
//
// The service is an opaque process runner: it accepts source code plus
// optional interpreter arguments and reports the process's stdout and return
// code. How the code is sandboxed is entirely the service's concern.
package evalapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Request is one evaluation job sent to the service.
type Request struct {
	Input string   `json:"input"`
	Args  []string `json:"args,omitempty"`
}

// Result is the outcome reported by the service. A nil ReturnCode means the
// service itself failed to run the job, which is distinct from the user's
// code exiting nonzero.
type Result struct {
	Stdout     string `json:"stdout"`
	ReturnCode *int   `json:"returncode"`
}

// Client issues evaluation requests over HTTP.
type Client struct {
	url  string
	http *http.Client
}

// New creates a client for the evaluation endpoint URL.
func New(url string) *Client {
	return &Client{
		url: url,
		// Generous client timeout: the service enforces its own execution
		// limit and reports timeouts via the return code.
		http: &http.Client{Timeout: 60 * time.Second},
	}
}

// Run submits code for execution and returns the structured result.
// Transport failures and non-2xx responses are returned as errors; the caller
// treats them as fatal for the attempt.
func (c *Client) Run(ctx context.Context, code string, args []string) (*Result, error) {
	payload, err := json.Marshal(Request{Input: code, Args: args})
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling eval service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("eval service returned %d: %s", resp.StatusCode, string(body))
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return &result, nil
}
