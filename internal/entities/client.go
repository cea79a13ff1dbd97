// Package entities coordinates named-entity extraction: it talks to the
// extraction service over HTTP, classifies files into domain combos, batches
// candidate nodes through the extractor and reconciles MENTIONS edges in the
// graph.
package entities

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

const (
	defaultServiceURL = "http://localhost:8001"

	// maxTextsPerCall is the service-side batch ceiling; larger requests
	// are split client-side.
	maxTextsPerCall = 100
)

// ErrServiceTimeout marks an extraction service call that exceeded its
// deadline. Callers map it to a typed pipeline error.
var ErrServiceTimeout = errors.New("entity service call timed out")

// Health is the service health report.
type Health struct {
	Status    string `json:"status"`
	ModelName string `json:"model_name"`
	Device    string `json:"device"`
}

// Classification is one domain label with its confidence.
type Classification struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Span locates an entity mention in the source text.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Entity is one extracted named entity.
type Entity struct {
	Name       string  `json:"name"`
	Type       string  `json:"type"`
	Confidence float64 `json:"confidence"`
	Span       *Span   `json:"span,omitempty"`
}

// Relation is one binary relation between two extracted entities.
type Relation struct {
	Subject    string  `json:"subject"`
	Predicate  string  `json:"predicate"`
	Object     string  `json:"object"`
	Confidence float64 `json:"confidence"`
}

// ExtractResult holds the extraction output for one input text.
type ExtractResult struct {
	Entities  []Entity   `json:"entities"`
	Relations []Relation `json:"relations"`
}

// Preset is a domain's extraction configuration.
type Preset struct {
	EntityTypes   []string `json:"entity_types"`
	RelationTypes []string `json:"relation_types"`
	Enabled       *bool    `json:"enabled,omitempty"`
}

// serviceConfig is the subset of GET /config the coordinator needs.
type serviceConfig struct {
	SkipEmbeddingTypes []string `json:"skip_embedding_types"`
}

// ClientConfig holds the HTTP client settings.
type ClientConfig struct {
	BaseURL string
	// BaseTimeout is the floor for any call; PerTextTimeout is added per
	// text so large batches get proportionally more time.
	BaseTimeout    time.Duration
	PerTextTimeout time.Duration
}

// DefaultClientConfig returns the local-service defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		BaseURL:        defaultServiceURL,
		BaseTimeout:    30 * time.Second,
		PerTextTimeout: 2 * time.Second,
	}
}

// Client is the extraction service HTTP client.
type Client struct {
	cfg        ClientConfig
	httpClient *http.Client

	mu        sync.Mutex
	skipTypes []string // memoized from GET /config
	skipSet   bool
}

// NewClient creates an extraction service client.
func NewClient(cfg ClientConfig) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultServiceURL
	}
	if cfg.BaseTimeout == 0 {
		cfg.BaseTimeout = 30 * time.Second
	}
	if cfg.PerTextTimeout == 0 {
		cfg.PerTextTimeout = 2 * time.Second
	}
	return &Client{cfg: cfg, httpClient: &http.Client{}}
}

func (c *Client) timeoutFor(texts int) time.Duration {
	return c.cfg.BaseTimeout + time.Duration(texts)*c.cfg.PerTextTimeout
}

// doJSON performs one call with a size-scaled deadline. A nil out skips
// decoding.
func (c *Client) doJSON(ctx context.Context, method, path string, body any, texts int, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request; %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeoutFor(texts))
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, method, c.cfg.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request; %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%s %s after %s; %w", method, path, c.timeoutFor(texts), ErrServiceTimeout)
		}
		return fmt.Errorf("%s %s failed; %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response; %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s %s returned %d: %s", method, path, resp.StatusCode, truncate(raw, 200))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode %s response; %w", path, err)
	}
	return nil
}

// Health fetches the service health report.
func (c *Client) Health(ctx context.Context) (Health, error) {
	var h Health
	if err := c.doJSON(ctx, http.MethodGet, "/health", nil, 0, &h); err != nil {
		return Health{}, err
	}
	return h, nil
}

// Available reports whether the service answers its health endpoint.
func (c *Client) Available(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	_, err := c.Health(probeCtx)
	return err == nil
}

// LoadModel asks the service to load the NER model onto the accelerator.
func (c *Client) LoadModel(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodPost, "/model/load", nil, 0, nil)
}

// UnloadModel releases accelerator memory. Embedding must not start until
// this has returned.
func (c *Client) UnloadModel(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodPost, "/model/unload", nil, 0, nil)
}

type classifyResponse struct {
	Classifications [][]Classification `json:"classifications"`
}

// ClassifyBatch classifies texts into domain labels, splitting the request
// into service-sized calls.
func (c *Client) ClassifyBatch(ctx context.Context, texts []string) ([][]Classification, error) {
	out := make([][]Classification, 0, len(texts))
	for start := 0; start < len(texts); start += maxTextsPerCall {
		end := start + maxTextsPerCall
		if end > len(texts) {
			end = len(texts)
		}
		slice := texts[start:end]

		var resp classifyResponse
		if err := c.doJSON(ctx, http.MethodPost, "/classify/batch", slice, len(slice), &resp); err != nil {
			return nil, err
		}
		if len(resp.Classifications) != len(slice) {
			return nil, fmt.Errorf("classify returned %d results for %d texts", len(resp.Classifications), len(slice))
		}
		out = append(out, resp.Classifications...)
	}
	return out, nil
}

type extractRequest struct {
	Texts             []string `json:"texts"`
	EntityTypes       []string `json:"entity_types"`
	RelationTypes     []string `json:"relation_types"`
	IncludeConfidence bool     `json:"include_confidence"`
	IncludeSpans      bool     `json:"include_spans"`
	BatchSize         int      `json:"batch_size"`
}

type extractResponse struct {
	Results []ExtractResult `json:"results"`
}

// ExtractBatch extracts entities and relations from texts with the given
// type sets, splitting the request into service-sized calls.
func (c *Client) ExtractBatch(ctx context.Context, texts, entityTypes, relationTypes []string) ([]ExtractResult, error) {
	out := make([]ExtractResult, 0, len(texts))
	for start := 0; start < len(texts); start += maxTextsPerCall {
		end := start + maxTextsPerCall
		if end > len(texts) {
			end = len(texts)
		}
		slice := texts[start:end]

		req := extractRequest{
			Texts:             slice,
			EntityTypes:       entityTypes,
			RelationTypes:     relationTypes,
			IncludeConfidence: true,
			IncludeSpans:      true,
			BatchSize:         len(slice),
		}
		var resp extractResponse
		if err := c.doJSON(ctx, http.MethodPost, "/extract/batch", req, len(slice), &resp); err != nil {
			return nil, err
		}
		if len(resp.Results) != len(slice) {
			return nil, fmt.Errorf("extract returned %d results for %d texts", len(resp.Results), len(slice))
		}
		out = append(out, resp.Results...)
	}
	return out, nil
}

// Presets fetches the per-domain extraction configuration.
func (c *Client) Presets(ctx context.Context) (map[string]Preset, error) {
	var presets map[string]Preset
	if err := c.doJSON(ctx, http.MethodGet, "/presets", nil, 0, &presets); err != nil {
		return nil, err
	}
	return presets, nil
}

// SkipEmbeddingTypes returns the service-declared value-like entity types,
// memoized after the first call.
func (c *Client) SkipEmbeddingTypes(ctx context.Context) ([]string, error) {
	c.mu.Lock()
	if c.skipSet {
		types := c.skipTypes
		c.mu.Unlock()
		return types, nil
	}
	c.mu.Unlock()

	var cfg serviceConfig
	if err := c.doJSON(ctx, http.MethodGet, "/config", nil, 0, &cfg); err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.skipTypes = cfg.SkipEmbeddingTypes
	c.skipSet = true
	c.mu.Unlock()
	return cfg.SkipEmbeddingTypes, nil
}

// InvalidateConfig drops the memoized service configuration so the next
// SkipEmbeddingTypes call re-fetches it.
func (c *Client) InvalidateConfig() {
	c.mu.Lock()
	c.skipSet = false
	c.skipTypes = nil
	c.mu.Unlock()
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
