package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maristed/tether/pkg/feed"
)

type recordedRequest struct {
	method string
	path   string
	query  string
	body   []byte
}

func newRecordingServer(t *testing.T, status int, response string) (*httptest.Server, *[]recordedRequest) {
	t.Helper()
	var requests []recordedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		requests = append(requests, recordedRequest{
			method: r.Method,
			path:   r.URL.Path,
			query:  r.URL.RawQuery,
			body:   body,
		})
		w.WriteHeader(status)
		io.WriteString(w, response)
	}))
	t.Cleanup(srv.Close)
	return srv, &requests
}

func TestSendMessage(t *testing.T) {
	t.Run("posts the message body to the chat endpoint", func(t *testing.T) {
		srv, requests := newRecordingServer(t, http.StatusOK, "")
		client := NewClient(srv.URL, 5*time.Second)

		err := client.SendMessage(context.Background(), "hello agent")
		require.NoError(t, err)

		require.Len(t, *requests, 1)
		req := (*requests)[0]
		assert.Equal(t, http.MethodPost, req.method)
		assert.Equal(t, "/chat", req.path)

		var body map[string]string
		require.NoError(t, json.Unmarshal(req.body, &body))
		assert.Equal(t, "hello agent", body["message"])
	})

	t.Run("rejects empty messages locally", func(t *testing.T) {
		srv, requests := newRecordingServer(t, http.StatusOK, "")
		client := NewClient(srv.URL, 5*time.Second)

		err := client.SendMessage(context.Background(), "")
		require.Error(t, err)
		assert.Empty(t, *requests)
	})

	t.Run("surfaces non-2xx as an error without retrying", func(t *testing.T) {
		srv, requests := newRecordingServer(t, http.StatusBadGateway, "upstream broken")
		client := NewClient(srv.URL, 5*time.Second)

		err := client.SendMessage(context.Background(), "hello")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "502")
		assert.Contains(t, err.Error(), "upstream broken")
		assert.Len(t, *requests, 1)
	})
}

func TestCancelAndEnd(t *testing.T) {
	t.Run("cancel posts reason and tool call id", func(t *testing.T) {
		srv, requests := newRecordingServer(t, http.StatusOK, `{"status":"cancelled"}`)
		client := NewClient(srv.URL, 5*time.Second)

		err := client.Cancel(context.Background(), CancelRequest{Reason: "stuck", ToolCallID: "call_9"})
		require.NoError(t, err)

		req := (*requests)[0]
		assert.Equal(t, "/cancel", req.path)
		assert.JSONEq(t, `{"reason":"stuck","tool_call_id":"call_9"}`, string(req.body))
	})

	t.Run("end posts the reason", func(t *testing.T) {
		srv, requests := newRecordingServer(t, http.StatusOK, `{"status":"ending"}`)
		client := NewClient(srv.URL, 5*time.Second)

		err := client.End(context.Background(), EndRequest{Reason: "done"})
		require.NoError(t, err)

		req := (*requests)[0]
		assert.Equal(t, "/end", req.path)
		assert.JSONEq(t, `{"reason":"done"}`, string(req.body))
	})
}

func TestMessages(t *testing.T) {
	srv, requests := newRecordingServer(t, http.StatusOK, `[{"type":"user","content":"hi","idx":3}]`)
	client := NewClient(srv.URL, 5*time.Second)

	msgs, err := client.Messages(context.Background(), 3, 5)
	require.NoError(t, err)

	req := (*requests)[0]
	assert.Equal(t, http.MethodGet, req.method)
	assert.Equal(t, "/messages", req.path)
	assert.Equal(t, "start=3&end=5", req.query)

	require.Len(t, msgs, 1)
	assert.Equal(t, 3, msgs[0].Idx)
	assert.Equal(t, feed.MessageTypeUser, msgs[0].Type)
}

func TestState(t *testing.T) {
	srv, _ := newRecordingServer(t, http.StatusOK, `{"slug":"fix-bug","message_count":7,"agent_state":"idle"}`)
	client := NewClient(srv.URL, 5*time.Second)

	st, err := client.State(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "fix-bug", st.Slug)
	assert.Equal(t, 7, st.MessageCount)
	assert.Equal(t, "idle", st.AgentState)
}

func TestURLJoining(t *testing.T) {
	t.Run("preserves a proxy prefix in the base URL", func(t *testing.T) {
		var gotPath string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			w.WriteHeader(http.StatusOK)
		}))
		t.Cleanup(srv.Close)

		client := NewClient(srv.URL+"/proxy/session-42/", 5*time.Second)
		require.NoError(t, client.SendMessage(context.Background(), "hi"))

		assert.Equal(t, "/proxy/session-42/chat", gotPath)
	})

	t.Run("joins relative paths without doubling slashes", func(t *testing.T) {
		client := NewClient("http://example.test/base/", 5*time.Second)
		assert.Equal(t, "http://example.test/base/chat", client.URL("chat"))
	})
}
