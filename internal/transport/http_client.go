package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/net/http2"

	"github.com/lexohub/lexsync/internal/config"
	"github.com/lexohub/lexsync/internal/events"
	"github.com/lexohub/lexsync/internal/models"
)

// HTTPClient talks to the per-record-type CRUD endpoints of the remote
// sync API.
type HTTPClient struct {
	client    *http.Client
	baseURL   string
	token     string
	userAgent string
	logger    *events.Logger

	timeout    time.Duration
	maxRetries int
}

// NewHTTPClient creates an HTTP transport from API config.
func NewHTTPClient(cfg *config.APIConfig, logger *events.Logger) *HTTPClient {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	if err := http2.ConfigureTransport(transport); err != nil {
		logger.WithError(err).Warn("Failed to configure HTTP/2")
	}

	return &HTTPClient{
		client:     &http.Client{Transport: transport},
		baseURL:    cfg.BaseURL,
		token:      cfg.Token,
		userAgent:  cfg.UserAgent,
		timeout:    cfg.Timeout,
		maxRetries: cfg.MaxRetries,
		logger:     logger.WithField("component", "http_client"),
	}
}

// Create posts a new record.
func (c *HTTPClient) Create(ctx context.Context, recordType models.RecordType, payload map[string]interface{}) (map[string]interface{}, error) {
	return c.doJSON(ctx, http.MethodPost, c.recordPath(recordType, ""), payload)
}

// Fetch returns the remote state of a record.
func (c *HTTPClient) Fetch(ctx context.Context, recordType models.RecordType, id string) (map[string]interface{}, error) {
	return c.doJSON(ctx, http.MethodGet, c.recordPath(recordType, id), nil)
}

// Update pushes a record update.
func (c *HTTPClient) Update(ctx context.Context, recordType models.RecordType, id string, payload map[string]interface{}, force bool) (map[string]interface{}, error) {
	path := c.recordPath(recordType, id)
	if force {
		path += "?force=true"
	}
	return c.doJSON(ctx, http.MethodPut, path, payload)
}

// Delete removes a record; a remote 404 is treated as success.
func (c *HTTPClient) Delete(ctx context.Context, recordType models.RecordType, id string) error {
	_, err := c.doJSON(ctx, http.MethodDelete, c.recordPath(recordType, id), nil)
	if err != nil {
		// Idempotent delete.
		var apiErr *models.APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return nil
		}
		return err
	}
	return nil
}

// Close is a no-op for the HTTP client; idle connections are managed
// by the shared transport.
func (c *HTTPClient) Close() error { return nil }

func (c *HTTPClient) recordPath(recordType models.RecordType, id string) string {
	if id == "" {
		return fmt.Sprintf("/%s", url.PathEscape(string(recordType)))
	}
	return fmt.Sprintf("/%s/%s", url.PathEscape(string(recordType)), url.PathEscape(id))
}

// doJSON executes one API call under the configured timeout, retrying
// transient failures with exponential backoff. 4xx responses are never
// retried.
func (c *HTTPClient) doJSON(ctx context.Context, method, path string, payload map[string]interface{}) (map[string]interface{}, error) {
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal payload: %w", err)
		}
	}

	c.logger.WithFields(map[string]interface{}{
		"method": method,
		"path":   path,
		"size":   len(body),
	}).Debug("Sending request")

	policy := backoff.WithContext(backoff.WithMaxRetries(
		backoff.NewExponentialBackOff(), uint64(c.maxRetries)), ctx)

	var result map[string]interface{}
	operation := func() error {
		reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		req, err := http.NewRequestWithContext(reqCtx, method, c.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("create request: %w", err))
		}
		if len(body) > 0 {
			req.Header.Set("Content-Type", "application/json")
		}
		req.Header.Set("User-Agent", c.userAgent)
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}

		if resp.StatusCode >= 400 {
			apiErr := parseAPIError(resp.StatusCode, data)
			if apiErr.Retryable() {
				return apiErr
			}
			return backoff.Permanent(error(apiErr))
		}

		result = nil
		if len(data) > 0 {
			if err := json.Unmarshal(data, &result); err != nil {
				return backoff.Permanent(fmt.Errorf("parse response: %w", err))
			}
		}
		return nil
	}

	if err := backoff.Retry(operation, policy); err != nil {
		var apiErr *models.APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound && method == http.MethodGet {
			return nil, models.ErrRemoteNotFound
		}
		return nil, err
	}
	return result, nil
}

func parseAPIError(status int, body []byte) *models.APIError {
	apiErr := &models.APIError{
		StatusCode: status,
		Code:       models.ErrCodeServer,
		Message:    http.StatusText(status),
	}

	var parsed struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		Error     string `json:"error"`
		RequestID string `json:"request_id"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil {
		if parsed.Code != "" {
			apiErr.Code = parsed.Code
		}
		if parsed.Message != "" {
			apiErr.Message = parsed.Message
		} else if parsed.Error != "" {
			apiErr.Message = parsed.Error
		}
		apiErr.RequestID = parsed.RequestID
	}
	return apiErr
}
