package monitor

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maristed/tether/pkg/config"
)

// syncBuffer guards a bytes.Buffer: the monitor writes from the feed
// goroutine while the test polls.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func testConfig(url string) *config.Config {
	return &config.Config{
		Server: config.ServerConfig{URL: url, Timeout: 5 * time.Second},
		Stream: config.StreamConfig{
			InitialBackoff: 10 * time.Millisecond,
			MaxBackoff:     50 * time.Millisecond,
		},
		Display: config.DisplayConfig{Width: 80},
	}
}

func TestMonitorFollowsSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)

		frames := []string{
			`event: state` + "\n" + `data: {"slug":"fix-bug"}` + "\n\n",
			`event: message` + "\n" + `data: {"type":"user","content":"please fix","idx":0}` + "\n\n",
			`event: message` + "\n" + `data: {"type":"agent","content":"on it","idx":1}` + "\n\n",
			`event: message` + "\n" + `data: {"type":"external","content":"CI: completed","idx":2,"workflow":{"name":"CI","branch":"main","commit_hash":"abc123","status":"completed","conclusion":"success"}}` + "\n\n",
		}
		for _, frame := range frames {
			fmt.Fprint(w, frame)
			w.(http.Flusher).Flush()
		}
		<-r.Context().Done()
	}))
	t.Cleanup(srv.Close)

	out := &syncBuffer{}
	m := New(testConfig(srv.URL), out)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	require.Eventually(t, func() bool {
		s := out.String()
		return strings.Contains(s, "on it") && strings.Contains(s, "CI: completed")
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	output := out.String()
	assert.Contains(t, output, "connected")
	assert.Contains(t, output, "please fix")
	// The workflow event was grouped and rendered for its branch/commit
	assert.Contains(t, output, "main @ abc123")

	// Transcript order is preserved
	assert.Less(t, strings.Index(output, "please fix"), strings.Index(output, "on it"))
}

func TestMonitorBackfill(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/messages" {
			http.NotFound(w, r)
			return
		}
		assert.Equal(t, "start=0&end=2", r.URL.RawQuery)
		fmt.Fprint(w, `[{"type":"user","content":"earlier","idx":0},{"type":"agent","content":"earlier reply","idx":1}]`)
	}))
	t.Cleanup(srv.Close)

	out := &syncBuffer{}
	m := New(testConfig(srv.URL), out)

	require.NoError(t, m.Backfill(context.Background(), 0, 2))

	msgs := m.client.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "earlier", msgs[0].Content)
}

func TestMonitorBackfillRecent(t *testing.T) {
	newHistoryServer := func(t *testing.T, messageCount int, wantRange string) *httptest.Server {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/state":
				fmt.Fprintf(w, `{"message_count":%d}`, messageCount)
			case "/messages":
				assert.Equal(t, wantRange, r.URL.RawQuery)
				fmt.Fprint(w, `[{"type":"user","content":"earlier","idx":3}]`)
			default:
				http.NotFound(w, r)
			}
		}))
		t.Cleanup(srv.Close)
		return srv
	}

	t.Run("fetches the newest n entries", func(t *testing.T) {
		srv := newHistoryServer(t, 5, "start=3&end=5")
		m := New(testConfig(srv.URL), &syncBuffer{})

		require.NoError(t, m.BackfillRecent(context.Background(), 2))
		require.Len(t, m.client.Messages(), 1)
	})

	t.Run("clamps to the start of the session", func(t *testing.T) {
		srv := newHistoryServer(t, 4, "start=0&end=4")
		m := New(testConfig(srv.URL), &syncBuffer{})

		require.NoError(t, m.BackfillRecent(context.Background(), 100))
	})

	t.Run("empty session skips the fetch", func(t *testing.T) {
		srv := newHistoryServer(t, 0, "")
		m := New(testConfig(srv.URL), &syncBuffer{})

		require.NoError(t, m.BackfillRecent(context.Background(), 10))
		assert.Empty(t, m.client.Messages())
	})
}
