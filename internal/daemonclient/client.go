// Package daemonclient is the HTTP client for a running codegraph daemon.
// Commands use it to query and control the daemon without touching the
// graph directly.
package daemonclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/codegraphhq/codegraph/internal/config"
	"github.com/codegraphhq/codegraph/internal/daemon"
)

// DefaultTimeout bounds ordinary control calls.
const DefaultTimeout = 5 * time.Second

// Client talks to the daemon's HTTP endpoints.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the HTTP client timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// New creates a client from daemon configuration.
func New(cfg config.DaemonConfig, opts ...Option) *Client {
	c := &Client{
		baseURL:    ResolveBaseURL(cfg),
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ResolveBaseURL builds the daemon base URL from config.
func ResolveBaseURL(cfg config.DaemonConfig) string {
	return fmt.Sprintf("http://%s:%d", NormalizeBind(cfg.HTTPBind), cfg.HTTPPort)
}

// NormalizeBind maps wildcard binds to loopback for local clients.
func NormalizeBind(bind string) string {
	if bind == "" || bind == "0.0.0.0" {
		return "127.0.0.1"
	}
	if strings.Contains(bind, ":") && !strings.HasPrefix(bind, "[") {
		return "[" + bind + "]"
	}
	return bind
}

// Ready fetches the /readyz health snapshot.
func (c *Client) Ready(ctx context.Context) (*daemon.HealthStatus, error) {
	var status daemon.HealthStatus
	if err := c.doJSON(ctx, http.MethodGet, "/readyz", &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Status fetches the project status payload.
func (c *Client) Status(ctx context.Context) (map[string]any, error) {
	var payload map[string]any
	if err := c.doJSON(ctx, http.MethodGet, "/status", &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// Reindex queues a full ingestion pass.
func (c *Client) Reindex(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodPost, "/reindex", nil)
}

// Pause suspends filesystem event processing.
func (c *Client) Pause(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodPost, "/pause", nil)
}

// Resume re-enables filesystem event processing.
func (c *Client) Resume(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodPost, "/resume", nil)
}

func (c *Client) doJSON(ctx context.Context, method, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(nil))
	if err != nil {
		return fmt.Errorf("failed to build request; %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("daemon unreachable at %s; %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response; %w", err)
	}

	// Readiness endpoints return their payload with a 503 as well.
	if resp.StatusCode >= 400 && resp.StatusCode != http.StatusServiceUnavailable {
		return fmt.Errorf("daemon returned %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("failed to decode response; %w", err)
		}
	}
	return nil
}
