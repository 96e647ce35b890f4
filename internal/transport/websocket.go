package transport

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lexohub/lexsync/internal/config"
	"github.com/lexohub/lexsync/internal/events"
	"github.com/lexohub/lexsync/internal/models"
)

// WSWatcher streams remote change notifications over a websocket.
// It exists only to trigger sync passes; no record data flows here.
type WSWatcher struct {
	url    string
	token  string
	logger *events.Logger

	conn *websocket.Conn
}

// NewWSWatcher creates a change-feed watcher from API config.
func NewWSWatcher(cfg *config.APIConfig, logger *events.Logger) *WSWatcher {
	wsURL := strings.Replace(cfg.BaseURL, "https://", "wss://", 1)
	wsURL = strings.Replace(wsURL, "http://", "ws://", 1)

	return &WSWatcher{
		url:    wsURL + "/changes",
		token:  cfg.Token,
		logger: logger.WithField("component", "ws_watcher"),
	}
}

// Watch connects and streams change events until ctx is done or the
// connection drops. The returned channel is closed on exit.
func (w *WSWatcher) Watch(ctx context.Context) (<-chan models.ChangeEvent, error) {
	header := http.Header{}
	if w.token != "" {
		header.Set("Authorization", "Bearer "+w.token)
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, w.url, header)
	if err != nil {
		return nil, fmt.Errorf("connect change feed: %w", err)
	}
	w.conn = conn

	w.logger.WithField("url", w.url).Info("Connected to change feed")

	ch := make(chan models.ChangeEvent, 64)

	go func() {
		defer close(ch)
		defer conn.Close()

		// Unblock ReadJSON when the caller cancels.
		go func() {
			<-ctx.Done()
			conn.Close()
		}()

		for {
			var ev models.ChangeEvent
			if err := conn.ReadJSON(&ev); err != nil {
				if ctx.Err() == nil {
					w.logger.WithError(err).Warn("Change feed closed")
				}
				return
			}

			select {
			case ch <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	return ch, nil
}

// Close shuts the watcher connection if open.
func (w *WSWatcher) Close() error {
	if w.conn != nil {
		return w.conn.Close()
	}
	return nil
}

// DefaultTransport combines the HTTP CRUD client with the websocket
// change feed.
type DefaultTransport struct {
	*HTTPClient
	watcher *WSWatcher
}

// New creates the production transport.
func New(cfg *config.APIConfig, logger *events.Logger) *DefaultTransport {
	return &DefaultTransport{
		HTTPClient: NewHTTPClient(cfg, logger),
		watcher:    NewWSWatcher(cfg, logger),
	}
}

// Watch forwards to the websocket watcher.
func (t *DefaultTransport) Watch(ctx context.Context) (<-chan models.ChangeEvent, error) {
	return t.watcher.Watch(ctx)
}

// Close releases both clients.
func (t *DefaultTransport) Close() error {
	if err := t.watcher.Close(); err != nil {
		return err
	}
	return t.HTTPClient.Close()
}
