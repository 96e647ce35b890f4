package transport_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexohub/lexsync/internal/config"
	"github.com/lexohub/lexsync/internal/events"
	"github.com/lexohub/lexsync/internal/models"
	"github.com/lexohub/lexsync/internal/transport"
)

func newHTTPClient(t *testing.T, server *httptest.Server, maxRetries int) *transport.HTTPClient {
	t.Helper()
	return transport.NewHTTPClient(&config.APIConfig{
		BaseURL:    server.URL,
		Token:      "test-token",
		Timeout:    5 * time.Second,
		MaxRetries: maxRetries,
		UserAgent:  "lexsync-test",
	}, events.NewTestLogger())
}

func TestCreate(t *testing.T) {
	var gotPath, gotAuth, gotAgent string
	var gotBody map[string]interface{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.Method + " " + r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotAgent = r.Header.Get("User-Agent")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]interface{}{"id": "srv-1", "title": "m"})
	}))
	defer server.Close()

	c := newHTTPClient(t, server, 0)
	resp, err := c.Create(context.Background(), models.RecordMatter, map[string]interface{}{"title": "m"})
	require.NoError(t, err)

	assert.Equal(t, "POST /matter", gotPath)
	assert.Equal(t, "Bearer test-token", gotAuth)
	assert.Equal(t, "lexsync-test", gotAgent)
	assert.Equal(t, "m", gotBody["title"])
	assert.Equal(t, "srv-1", resp["id"])
}

func TestFetchNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"code":"NOT_FOUND","message":"no such record"}`, http.StatusNotFound)
	}))
	defer server.Close()

	c := newHTTPClient(t, server, 0)
	_, err := c.Fetch(context.Background(), models.RecordMatter, "missing")
	assert.ErrorIs(t, err, models.ErrRemoteNotFound)
}

func TestUpdateForce(t *testing.T) {
	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.Method + " " + r.URL.RequestURI()
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	c := newHTTPClient(t, server, 0)

	_, err := c.Update(context.Background(), models.RecordMatter, "m-1", map[string]interface{}{"title": "x"}, false)
	require.NoError(t, err)
	assert.Equal(t, "PUT /matter/m-1", gotQuery)

	_, err = c.Update(context.Background(), models.RecordMatter, "m-1", map[string]interface{}{"title": "x"}, true)
	require.NoError(t, err)
	assert.Equal(t, "PUT /matter/m-1?force=true", gotQuery)
}

func TestDeleteTreatsNotFoundAsSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	c := newHTTPClient(t, server, 0)
	assert.NoError(t, c.Delete(context.Background(), models.RecordMatter, "already-gone"))
}

func TestRetryOnServerError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, `{"message":"try again"}`, http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"id":"m-1"}`))
	}))
	defer server.Close()

	c := newHTTPClient(t, server, 2)
	resp, err := c.Fetch(context.Background(), models.RecordMatter, "m-1")
	require.NoError(t, err)

	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, "m-1", resp["id"])
}

func TestClientErrorsAreNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, `{"code":"VALIDATION","message":"title required","request_id":"req-7"}`, http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	c := newHTTPClient(t, server, 3)
	_, err := c.Create(context.Background(), models.RecordMatter, map[string]interface{}{})
	require.Error(t, err)

	assert.Equal(t, int32(1), calls.Load(), "4xx must not be retried")

	var apiErr *models.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
	assert.Equal(t, "VALIDATION", apiErr.Code)
	assert.Equal(t, "title required", apiErr.Message)
	assert.Equal(t, "req-7", apiErr.RequestID)
	assert.False(t, apiErr.Retryable())
}

func TestContextCancelAbortsRetries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := newHTTPClient(t, server, 5)
	_, err := c.Fetch(ctx, models.RecordMatter, "m-1")
	assert.Error(t, err)
}

func TestWSWatcher(t *testing.T) {
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/changes", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		require.NoError(t, conn.WriteJSON(models.ChangeEvent{
			RecordType: models.RecordMatter,
			RecordID:   "m-1",
			Action:     models.ActionUpdate,
		}))

		// Hold the connection open until the client goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	watcher := transport.NewWSWatcher(&config.APIConfig{
		BaseURL: server.URL,
		Token:   "test-token",
	}, events.NewTestLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	feed, err := watcher.Watch(ctx)
	require.NoError(t, err)

	select {
	case ev := <-feed:
		assert.Equal(t, models.RecordMatter, ev.RecordType)
		assert.Equal(t, "m-1", ev.RecordID)
		assert.Equal(t, models.ActionUpdate, ev.Action)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for change event")
	}

	cancel()

	select {
	case _, open := <-feed:
		assert.False(t, open, "channel closes after cancel")
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for channel close")
	}
}
