// Package httpx provides the bearer-token JSON client shared by every
// service adapter.
package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// ErrUnauthorized is returned on HTTP 401. A 401 means a stored token
// is stale; callers do not retry within the same refresh round.
var ErrUnauthorized = errors.New("unauthorized (401): token may be expired")

// StatusError is a non-2xx response other than 401.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Code, Snippet(e.Body))
}

// Snippet truncates a response body for inclusion in error messages.
func Snippet(body string) string {
	const max = 200
	if len(body) > max {
		return body[:max]
	}
	return body
}

// Client performs authenticated JSON requests against provider APIs.
// It retries on HTTP 429 with Retry-After or exponential backoff.
type Client struct {
	httpClient *http.Client
	maxRetries int
}

// NewClient creates a client with a 30-second request timeout.
func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		maxRetries: 3,
	}
}

// Get performs a GET against url and decodes the JSON response into
// result.
func (c *Client) Get(ctx context.Context, url, token string, headers map[string]string, result any) error {
	return c.do(ctx, http.MethodGet, url, token, headers, nil, result)
}

// Post performs a POST with a JSON body and decodes the JSON response
// into result.
func (c *Client) Post(ctx context.Context, url, token string, headers map[string]string, body, result any) error {
	return c.do(ctx, http.MethodPost, url, token, headers, body, result)
}

func (c *Client) do(ctx context.Context, method, url, token string, headers map[string]string, body, result any) error {
	var payload []byte
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		payload = data
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		var bodyReader io.Reader
		if payload != nil {
			bodyReader = bytes.NewReader(payload)
		}

		req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}

		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", "workfeed/1.0")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("executing %s %s: %w", method, url, err)
		}

		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return fmt.Errorf("reading response body: %w", readErr)
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("rate limited (429) on %s %s", method, url)

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(retryAfterDuration(resp, attempt)):
				continue
			}
		}

		if resp.StatusCode == http.StatusUnauthorized {
			return ErrUnauthorized
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return &StatusError{Code: resp.StatusCode, Body: string(respBody)}
		}

		if result == nil || resp.StatusCode == http.StatusNoContent {
			return nil
		}

		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decoding response from %s %s: %w", method, url, err)
		}
		return nil
	}

	return fmt.Errorf("max retries (%d) exceeded: %w", c.maxRetries, lastErr)
}

// retryAfterDuration reads the Retry-After header, falling back to
// exponential backoff capped at 30s.
func retryAfterDuration(resp *http.Response, attempt int) time.Duration {
	if header := resp.Header.Get("Retry-After"); header != "" {
		if seconds, err := strconv.Atoi(header); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}

	backoff := time.Duration(1<<uint(attempt)) * time.Second
	if backoff > 30*time.Second {
		backoff = 30 * time.Second
	}
	return backoff
}
