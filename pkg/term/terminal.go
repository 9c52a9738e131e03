package term

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/maristed/tether/pkg/feed"
	"github.com/maristed/tether/pkg/logger"
)

// Client reads a session terminal's output feed and writes input and
// resize messages back. The server hosts the PTY; this side only moves
// bytes. Terminal IDs are "1" through "9".
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        *logger.Logger
}

// NewClient creates a terminal client for the server at baseURL
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		log:        logger.WithComponent("terminal"),
	}
}

// resizeMessage is the JSON control message sent on the input endpoint
type resizeMessage struct {
	Type string `json:"type"`
	Cols uint16 `json:"cols"`
	Rows uint16 `json:"rows"`
}

// ValidID reports whether id names one of the nine server terminals
func ValidID(id string) bool {
	return len(id) == 1 && id[0] >= '1' && id[0] <= '9'
}

// StreamOutput subscribes to the terminal's output feed and calls out
// with each decoded chunk, in order, until the context is cancelled or
// the stream ends. Frames arrive as SSE events whose data is base64.
func (c *Client) StreamOutput(ctx context.Context, id string, out func([]byte) error) error {
	if !ValidID(id) {
		return fmt.Errorf("invalid terminal id %q", id)
	}

	url := c.baseURL + "/terminal/events/" + id
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("connecting to terminal feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("terminal feed returned status %d", resp.StatusCode)
	}

	return feed.ReadFrames(resp.Body, func(f feed.Frame) error {
		chunk, err := base64.StdEncoding.DecodeString(string(f.Data))
		if err != nil {
			c.log.Warn("Dropping undecodable terminal chunk", "terminal", id, "error", err)
			return nil
		}
		return out(chunk)
	})
}

// SendInput writes raw bytes to the terminal's stdin
func (c *Client) SendInput(ctx context.Context, id string, data []byte) error {
	if !ValidID(id) {
		return fmt.Errorf("invalid terminal id %q", id)
	}
	return c.postInput(ctx, id, "application/octet-stream", data)
}

// Resize tells the server the terminal's new dimensions
func (c *Client) Resize(ctx context.Context, id string, cols, rows uint16) error {
	if !ValidID(id) {
		return fmt.Errorf("invalid terminal id %q", id)
	}
	body, err := json.Marshal(resizeMessage{Type: "resize", Cols: cols, Rows: rows})
	if err != nil {
		return fmt.Errorf("marshaling resize: %w", err)
	}
	return c.postInput(ctx, id, "application/json", body)
}

func (c *Client) postInput(ctx context.Context, id, contentType string, body []byte) error {
	url := c.baseURL + "/terminal/input/" + id
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending terminal input: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("terminal input returned status %d", resp.StatusCode)
	}
	return nil
}
