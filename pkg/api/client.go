package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/maristed/tether/pkg/feed"
)

// Client issues one-shot requests against the session server: sending a
// chat message, cancelling a turn, ending the session, and reading
// history or state snapshots. Failed actions are reported to the caller
// and never retried; a failed send must not produce a duplicate
// user-visible message. Every path is joined under the configured base
// URL so a proxy prefix in the base survives intact.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates an API client for the server at baseURL
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// CancelRequest selects what to cancel: the whole turn, or one tool
// call when ToolCallID is set.
type CancelRequest struct {
	Reason     string `json:"reason,omitempty"`
	ToolCallID string `json:"tool_call_id,omitempty"`
}

// EndRequest asks the server to end the session
type EndRequest struct {
	Reason string `json:"reason,omitempty"`
}

// SendMessage posts a user chat message. The echo of the message is
// expected to come back through the feed; local state is not touched.
func (c *Client) SendMessage(ctx context.Context, text string) error {
	if text == "" {
		return fmt.Errorf("message cannot be empty")
	}
	body := struct {
		Message string `json:"message"`
	}{Message: text}
	return c.doJSON(ctx, http.MethodPost, "chat", body, nil)
}

// Cancel cancels the turn in progress, or a single tool call
func (c *Client) Cancel(ctx context.Context, req CancelRequest) error {
	return c.doJSON(ctx, http.MethodPost, "cancel", req, nil)
}

// End asks the server to end the session
func (c *Client) End(ctx context.Context, req EndRequest) error {
	return c.doJSON(ctx, http.MethodPost, "end", req, nil)
}

// Messages fetches the half-open history range [start, end). It backs
// the lazy backfill of messages older than the stream cursor; merge the
// result with the same aggregation the feed uses.
func (c *Client) Messages(ctx context.Context, start, end int) ([]feed.AgentMessage, error) {
	path := "messages?start=" + strconv.Itoa(start) + "&end=" + strconv.Itoa(end)
	var msgs []feed.AgentMessage
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// State fetches a one-shot state snapshot; the stream stays the live path
func (c *Client) State(ctx context.Context) (*feed.State, error) {
	var st feed.State
	if err := c.doJSON(ctx, http.MethodGet, "state", nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// URL joins a relative path (no leading slash) under the base URL
func (c *Client) URL(path string) string {
	return c.baseURL + "/" + path
}

// doJSON performs a request with an optional JSON body and decodes the
// response into result when non-nil. Non-2xx responses become errors
// carrying the response body.
func (c *Client) doJSON(ctx context.Context, method, path string, reqBody, result any) error {
	var bodyReader io.Reader
	if reqBody != nil && method != http.MethodGet {
		data, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.URL(path), bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("parsing response: %w", err)
		}
	}
	return nil
}
