package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultTimeout bounds a single request.
const DefaultTimeout = 30 * time.Second

// StatusError is returned for any response with a 4xx or 5xx status.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server error (%d): %s", e.Code, e.Message)
}

// ErrorResponse is the error body shape returned by JSON APIs.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Client talks JSON to a REST endpoint, currently the mail relay's capture
// API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient returns a client rooted at baseURL. A trailing slash is dropped.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
}

// BaseURL returns the URL requests are resolved against.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Get decodes the JSON body at path into result. A nil result discards it.
func (c *Client) Get(ctx context.Context, path string, result any) error {
	return c.do(ctx, http.MethodGet, path, result)
}

// Delete issues a DELETE and ignores any response body.
func (c *Client) Delete(ctx context.Context, path string) error {
	return c.do(ctx, http.MethodDelete, path, nil)
}

func (c *Client) do(ctx context.Context, method, path string, result any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		msg := strings.TrimSpace(string(body))
		var errResp ErrorResponse
		if json.Unmarshal(body, &errResp) == nil && errResp.Error != "" {
			msg = errResp.Error
		}
		return &StatusError{Code: resp.StatusCode, Message: msg}
	}

	if result == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
