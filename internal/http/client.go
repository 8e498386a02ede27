package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultUserAgent mimics a desktop browser; Bandcamp serves reduced pages
// to unknown agents.
const DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// StatusError is returned when the server answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Status     string
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Status)
}

// Client wraps HTTP operations with Bandcamp-specific configuration.
//
// Client provides:
//   - Browser-like User-Agent header for Bandcamp compatibility
//   - Cookie forwarding for authenticated fan requests
//   - JSON POST helpers for the fancollection API
//   - Cover art downloads into memory
//
// Example usage:
//
//	client := NewClient(30 * time.Second)
//
//	// Fetch an authenticated HTML page
//	html, err := client.GetString(ctx, "https://bandcamp.com/", Cookie(header))
//
//	// Call a JSON endpoint
//	var page dto.ItemsPage
//	err = client.PostJSON(ctx, apiURL, body, &page, Cookie(header))
type Client struct {
	httpClient *http.Client
	userAgent  string
}

// NewClient creates a new HTTP client configured for Bandcamp.
//
// A zero timeout falls back to 60 seconds.
func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		userAgent: DefaultUserAgent,
	}
}

// WithUserAgent overrides the User-Agent header sent with every request.
func (c *Client) WithUserAgent(ua string) *Client {
	if ua != "" {
		c.userAgent = ua
	}
	return c
}

// RequestOption adjusts an outgoing request.
type RequestOption func(*http.Request)

// Cookie sets the Cookie header. An empty header is ignored.
func Cookie(header string) RequestOption {
	return func(r *http.Request) {
		if header != "" {
			r.Header.Set("Cookie", header)
		}
	}
}

// Header sets an arbitrary request header.
func Header(key, value string) RequestOption {
	return func(r *http.Request) {
		r.Header.Set(key, value)
	}
}

func (c *Client) newRequest(ctx context.Context, method, url string, body io.Reader, opts []RequestOption) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	for _, opt := range opts {
		opt(req)
	}
	return req, nil
}

// do sends the request and returns the body of a 2xx response.
// Non-2xx responses yield a *StatusError carrying the body.
func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Status: resp.Status, Body: body}
	}
	return body, nil
}

// Get performs a GET request and returns the response body as bytes.
//
// Returns an error if the request fails, the response status is not 2xx,
// or reading the body fails.
func (c *Client) Get(ctx context.Context, url string, opts ...RequestOption) ([]byte, error) {
	req, err := c.newRequest(ctx, http.MethodGet, url, nil, opts)
	if err != nil {
		return nil, err
	}
	return c.do(req)
}

// GetString performs a GET request and returns the response body as a string.
//
// This is a convenience wrapper around Get for fetching HTML pages.
func (c *Client) GetString(ctx context.Context, url string, opts ...RequestOption) (string, error) {
	body, err := c.Get(ctx, url, opts...)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// PostJSON posts payload as JSON and decodes the JSON response into out.
//
// Bandcamp reports some API failures with a 2xx status and an error field in
// the body, so callers must still inspect the decoded value.
func (c *Client) PostJSON(ctx context.Context, url string, payload, out any, opts ...RequestOption) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, url, bytes.NewReader(data), opts)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	body, err := c.do(req)
	if err != nil {
		return err
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// DownloadBytes downloads a file and returns the bytes in memory.
//
// Use this for small files like cover art images.
func (c *Client) DownloadBytes(ctx context.Context, url string) ([]byte, error) {
	return c.Get(ctx, url)
}
