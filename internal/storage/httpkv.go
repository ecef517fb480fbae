package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const httpAttempts = 3

// HTTPKV talks to a nicofit-server mirror over its REST API.
type HTTPKV struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	backoff    time.Duration
}

var _ KV = (*HTTPKV)(nil)

// NewHTTPKV creates a client for the mirror at baseURL. Requests carry
// apiKey in the X-API-Key header when it is set.
func NewHTTPKV(baseURL, apiKey string) *HTTPKV {
	return &HTTPKV{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		backoff:    time.Second,
	}
}

// WithBackoff sets the base delay between retries; it doubles per attempt.
func (c *HTTPKV) WithBackoff(d time.Duration) *HTTPKV {
	c.backoff = d
	return c
}

func (c *HTTPKV) slotURL(key string) string {
	return c.baseURL + "/api/v1/mirror/" + url.PathEscape(key)
}

// do sends a request, retrying up to 3 times with exponential backoff on
// transport errors and 5xx responses. 4xx responses are returned at once.
func (c *HTTPKV) do(ctx context.Context, method, key string, body []byte) (int, []byte, error) {
	var lastErr error
	for attempt := range httpAttempts {
		if attempt > 0 {
			delay := c.backoff * time.Duration(1<<uint(attempt-1))
			select {
			case <-ctx.Done():
				return 0, nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		req, err := http.NewRequestWithContext(ctx, method, c.slotURL(key), bytes.NewReader(body))
		if err != nil {
			return 0, nil, fmt.Errorf("httpkv: create request: %w", err)
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.apiKey != "" {
			req.Header.Set("X-API-Key", c.apiKey)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		data, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("reading body: %w", err)
			continue
		}
		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("%s %s returned %d: %s", method, key, resp.StatusCode, data)
			continue
		}
		return resp.StatusCode, data, nil
	}
	return 0, nil, fmt.Errorf("httpkv: after %d attempts: %w", httpAttempts, lastErr)
}

func (c *HTTPKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	status, data, err := c.do(ctx, http.MethodGet, key, nil)
	if err != nil {
		return nil, false, err
	}
	switch status {
	case http.StatusOK:
		return data, true, nil
	case http.StatusNotFound:
		return nil, false, nil
	default:
		return nil, false, fmt.Errorf("httpkv: GET %s returned %d: %s", key, status, data)
	}
}

func (c *HTTPKV) Set(ctx context.Context, key string, value []byte) error {
	status, data, err := c.do(ctx, http.MethodPut, key, value)
	if err != nil {
		return err
	}
	if status != http.StatusNoContent && status != http.StatusOK {
		return fmt.Errorf("httpkv: PUT %s returned %d: %s", key, status, data)
	}
	return nil
}

func (c *HTTPKV) Delete(ctx context.Context, key string) error {
	status, data, err := c.do(ctx, http.MethodDelete, key, nil)
	if err != nil {
		return err
	}
	if status != http.StatusNoContent && status != http.StatusOK && status != http.StatusNotFound {
		return fmt.Errorf("httpkv: DELETE %s returned %d: %s", key, status, data)
	}
	return nil
}

func (c *HTTPKV) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
