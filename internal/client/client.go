// ABOUTME: HTTP client for the statekeeper command API
// ABOUTME: Wraps each endpoint in a typed method and surfaces server messages as APIError

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/2389/statekeeper/internal/prefs"
)

// APIError is returned for non-2xx responses.
type APIError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s (status %d)", e.Op, e.Message, e.StatusCode)
}

// IsUnauthorized reports whether err is a 401 from the server.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized
}

// Client talks to a statekeeper server.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithToken sets the bearer token sent with every request.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// New creates a client for the server at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Health checks the server's /health endpoint.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, "health", http.MethodGet, "/health", nil, nil)
}

// GetSettings returns the saved settings, or nil if none have been saved.
func (c *Client) GetSettings(ctx context.Context) (*prefs.AccessibilitySettings, error) {
	var resp struct {
		Settings *prefs.AccessibilitySettings `json:"settings"`
	}
	if err := c.do(ctx, "get settings", http.MethodGet, "/api/settings", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Settings, nil
}

// SaveSettings replaces the saved settings.
func (c *Client) SaveSettings(ctx context.Context, s prefs.AccessibilitySettings) error {
	return c.do(ctx, "save settings", http.MethodPut, "/api/settings", s, nil)
}

// GetHistory returns recent commands, newest first. A nil limit uses the server default.
func (c *Client) GetHistory(ctx context.Context, limit *int) ([]prefs.VoiceCommand, error) {
	path := "/api/history"
	if limit != nil {
		path += "?" + url.Values{"limit": {strconv.Itoa(*limit)}}.Encode()
	}
	var resp struct {
		Commands []prefs.VoiceCommand `json:"commands"`
	}
	if err := c.do(ctx, "get history", http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Commands, nil
}

// SaveCommand appends cmd and returns it as stored.
func (c *Client) SaveCommand(ctx context.Context, cmd prefs.VoiceCommand) (prefs.VoiceCommand, error) {
	var resp struct {
		Command prefs.VoiceCommand `json:"command"`
	}
	if err := c.do(ctx, "save command", http.MethodPost, "/api/history", cmd, &resp); err != nil {
		return prefs.VoiceCommand{}, err
	}
	return resp.Command, nil
}

// ClearHistory removes every stored command.
func (c *Client) ClearHistory(ctx context.Context) error {
	return c.do(ctx, "clear history", http.MethodDelete, "/api/history", nil, nil)
}

// GetScan returns the cached scan with id, or nil if it is not cached.
func (c *Client) GetScan(ctx context.Context, id string) (*prefs.CachedScan, error) {
	var resp struct {
		Scan *prefs.CachedScan `json:"scan"`
	}
	if err := c.do(ctx, "get scan", http.MethodGet, "/api/scans/"+url.PathEscape(id), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Scan, nil
}

// SaveScan inserts or replaces scan and returns it as stored.
func (c *Client) SaveScan(ctx context.Context, scan prefs.CachedScan) (prefs.CachedScan, error) {
	var resp struct {
		Scan prefs.CachedScan `json:"scan"`
	}
	if err := c.do(ctx, "save scan", http.MethodPost, "/api/scans", scan, &resp); err != nil {
		return prefs.CachedScan{}, err
	}
	return resp.Scan, nil
}

// ClearScans removes every cached scan.
func (c *Client) ClearScans(ctx context.Context) error {
	return c.do(ctx, "clear scans", http.MethodDelete, "/api/scans", nil, nil)
}

// Status returns collection sizes.
func (c *Client) Status(ctx context.Context) (prefs.Stats, error) {
	var stats prefs.Stats
	if err := c.do(ctx, "status", http.MethodGet, "/api/status", nil, &stats); err != nil {
		return prefs.Stats{}, err
	}
	return stats, nil
}

// do sends a request with an optional JSON body and decodes a JSON response into result.
func (c *Client) do(ctx context.Context, op, method, path string, body, result any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: marshaling request: %w", op, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%s: creating request: %w", op, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: sending request: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return handleErrorResponse(op, resp)
	}

	if result == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("%s: decoding response: %w", op, err)
	}
	return nil
}

// handleErrorResponse extracts the server's message from a failed response.
func handleErrorResponse(op string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var errResp struct {
		Error string `json:"error"`
	}
	msg := strings.TrimSpace(string(body))
	if json.Unmarshal(body, &errResp) == nil && errResp.Error != "" {
		msg = errResp.Error
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}

	return &APIError{Op: op, StatusCode: resp.StatusCode, Message: msg}
}
