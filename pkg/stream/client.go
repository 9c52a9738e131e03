package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/maristed/tether/pkg/events"
	"github.com/maristed/tether/pkg/feed"
	"github.com/maristed/tether/pkg/logger"
)

// Status is the connection state of the feed subscription
type Status string

const (
	StatusDisconnected Status = "disconnected"
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
)

// DataUpdate is the payload of an EventDataChanged notification: the
// state snapshot carried by the frame (nil when the frame had none) and
// the message deltas appended by the frame, in delivery order.
type DataUpdate struct {
	State       *feed.State
	NewMessages []feed.AgentMessage
}

// StatusUpdate is the payload of an EventConnectionStatusChanged
// notification. Err is a human-readable detail, set only on disconnect.
type StatusUpdate struct {
	Status Status
	Err    string
}

const source = "stream_client"

// Client maintains a long-lived subscription to the session feed. It
// reconnects with bounded exponential backoff, resumes from a cursor so
// redelivery is bounded, and folds message deltas into a render-ready
// transcript. All reconciliation and notification dispatch happens on
// the client's single feed goroutine: a frame is fully applied and
// published before the next one is read.
type Client struct {
	baseURL    string
	httpClient *http.Client
	bus        *events.Bus
	backoff    Backoff
	heartbeat  time.Duration
	log        *logger.Logger

	mu       sync.Mutex
	status   Status
	cursor   int
	messages []feed.AgentMessage
	state    *feed.State
	started  bool
	cancel   context.CancelFunc
	done     chan struct{}
}

// Option configures a Client
type Option func(*Client)

// WithBackoff sets the reconnect delay policy
func WithBackoff(b Backoff) Option {
	return func(c *Client) { c.backoff = b }
}

// WithHeartbeatTimeout enables a watchdog that drops a connection which
// has delivered no frame (heartbeats included) for d. Zero disables it.
func WithHeartbeatTimeout(d time.Duration) Option {
	return func(c *Client) { c.heartbeat = d }
}

// WithHTTPClient replaces the transport; the client used for the feed
// must not carry a request timeout, the stream is open indefinitely.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New creates a feed client publishing on bus. Call Start to connect.
func New(baseURL string, bus *events.Bus, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		bus:        bus,
		backoff:    Backoff{Initial: time.Second, Max: 30 * time.Second},
		log:        logger.WithComponent(source),
		status:     StatusDisconnected,
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start begins the feed subscription. Idempotent: a second call while
// the client is running (or after Close) is a no-op.
func (c *Client) Start() {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return
	}
	c.started = true
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.mu.Unlock()

	go c.run(ctx)
}

// Close tears the subscription down: it cancels any in-flight request
// and the pending reconnect timer, and waits for the feed goroutine to
// exit. Safe to call multiple times.
func (c *Client) Close() {
	c.mu.Lock()
	cancel := c.cancel
	started := c.started
	c.cancel = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if started {
		<-c.done
	}
}

// Status returns the current connection status
func (c *Client) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Cursor returns the resume position: the index after the highest
// message index applied so far.
func (c *Client) Cursor() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cursor
}

// Messages returns the current transcript snapshot. The slice is never
// mutated after publication (aggregation always builds a new one), so
// holders observe a stable view across later frames.
func (c *Client) Messages() []feed.AgentMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.messages
}

// State returns the last state snapshot, or nil before the first one
func (c *Client) State() *feed.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// OnData subscribes to merged data updates and returns a disposer
func (c *Client) OnData(fn func(DataUpdate)) events.Disposer {
	return c.bus.Subscribe(events.EventDataChanged, func(e events.Event) {
		if update, ok := e.Payload.(DataUpdate); ok {
			fn(update)
		}
	})
}

// OnStatus subscribes to connection status changes and returns a disposer
func (c *Client) OnStatus(fn func(StatusUpdate)) events.Disposer {
	return c.bus.Subscribe(events.EventConnectionStatusChanged, func(e events.Event) {
		if update, ok := e.Payload.(StatusUpdate); ok {
			fn(update)
		}
	})
}

// ApplyBackfill merges history fetched out of band (the messages range
// endpoint) into the transcript. The cursor is left alone: backfill
// pages in entries older than the stream position, and anything at or
// past the cursor will be redelivered harmlessly by the feed anyway.
func (c *Client) ApplyBackfill(msgs []feed.AgentMessage) {
	if len(msgs) == 0 {
		return
	}
	c.mu.Lock()
	c.messages = feed.Aggregate(c.messages, msgs)
	c.mu.Unlock()

	c.bus.Publish(events.EventDataChanged, DataUpdate{NewMessages: msgs}, source)
}

// run is the reconnect loop: connect, stream until failure, report the
// drop, wait out the backoff, repeat. Runs until the context is
// cancelled by Close.
func (c *Client) run(ctx context.Context) {
	defer close(c.done)

	attempt := 0
	for {
		if ctx.Err() != nil {
			c.setStatus(StatusDisconnected, "")
			return
		}

		c.setStatus(StatusConnecting, "")
		err := c.connectOnce(ctx, &attempt)
		if ctx.Err() != nil {
			c.setStatus(StatusDisconnected, "")
			return
		}

		detail := ""
		if err != nil {
			detail = err.Error()
		}
		c.setStatus(StatusDisconnected, detail)

		delay := c.backoff.Delay(attempt)
		attempt++
		c.log.Debug("Reconnecting after backoff", "attempt", attempt, "delay", delay, "cursor", c.Cursor())

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			c.setStatus(StatusDisconnected, "")
			return
		}
	}
}

// connectOnce opens one feed connection and consumes it until the
// stream ends or fails. The attempt counter resets once the connection
// proves itself by delivering a frame.
func (c *Client) connectOnce(ctx context.Context, attempt *int) error {
	connCtx, cancelConn := context.WithCancel(ctx)
	defer cancelConn()

	url := c.baseURL + "/stream?from=" + strconv.Itoa(c.Cursor())
	req, err := http.NewRequestWithContext(connCtx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("connecting to feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("feed returned status %d", resp.StatusCode)
	}

	c.setStatus(StatusConnected, "")
	c.log.Info("Feed connected", "from", c.Cursor())

	var watchdog *time.Timer
	if c.heartbeat > 0 {
		watchdog = time.AfterFunc(c.heartbeat, cancelConn)
		defer watchdog.Stop()
	}

	first := true
	err = feed.ReadFrames(resp.Body, func(f feed.Frame) error {
		if watchdog != nil {
			watchdog.Reset(c.heartbeat)
		}
		if first {
			*attempt = 0
			first = false
		}
		c.handleFrame(f)
		return nil
	})
	if err != nil {
		return fmt.Errorf("reading feed: %w", err)
	}
	return errors.New("feed closed by server")
}

// handleFrame applies one frame and publishes its notifications. A
// malformed payload is logged and dropped without advancing the cursor,
// so a corrected redelivery can still land.
func (c *Client) handleFrame(f feed.Frame) {
	switch f.Event {
	case "state":
		var st feed.State
		if err := json.Unmarshal(f.Data, &st); err != nil {
			c.log.Warn("Dropping malformed state frame", "error", err)
			return
		}
		c.mu.Lock()
		c.state = &st
		c.mu.Unlock()
		c.bus.Publish(events.EventDataChanged, DataUpdate{State: &st}, source)

	case "message":
		var msg feed.AgentMessage
		if err := json.Unmarshal(f.Data, &msg); err != nil {
			c.log.Warn("Dropping malformed message frame", "error", err)
			return
		}
		newMessages := []feed.AgentMessage{msg}
		c.mu.Lock()
		c.messages = feed.Aggregate(c.messages, newMessages)
		if msg.Idx >= c.cursor {
			c.cursor = msg.Idx + 1
		}
		c.mu.Unlock()
		c.bus.Publish(events.EventDataChanged, DataUpdate{NewMessages: newMessages}, source)

	case "heartbeat":
		// Liveness only; resets the watchdog above

	default:
		c.log.Debug("Ignoring unknown feed event", "event", f.Event)
	}
}

// setStatus records a status transition and publishes it when changed
func (c *Client) setStatus(status Status, errDetail string) {
	c.mu.Lock()
	if c.status == status {
		c.mu.Unlock()
		return
	}
	c.status = status
	c.mu.Unlock()

	if status == StatusDisconnected && errDetail != "" {
		c.log.Warn("Feed disconnected", "error", errDetail)
	}
	c.bus.Publish(events.EventConnectionStatusChanged, StatusUpdate{Status: status, Err: errDetail}, source)
}
