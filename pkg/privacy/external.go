package privacy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrNoEndpoint is returned by NewClient when no endpoint is configured. The
// external embedder is a real dependency: there is no fabricated default
// URL to fall back to.
var ErrNoEndpoint = errors.New("privacy: external embedder endpoint not configured")

// HTTPDoer is the minimal interface the external embedding client needs,
// satisfied by *http.Client and by any fake transport a test injects.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ExternalEmbedder is anything that can turn text into a vector over the
// network.
type ExternalEmbedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Client calls a configurable external embedding HTTP endpoint.
type Client struct {
	doer     HTTPDoer
	endpoint string
	apiKey   string
	timeout  time.Duration
}

// ClientConfig configures a Client.
type ClientConfig struct {
	Endpoint string
	APIKey   string
	Timeout  time.Duration // default 30s
	Doer     HTTPDoer      // default http.DefaultClient
}

// NewClient returns an external embedder client. Endpoint must be
// non-empty; callers must not guess a default.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, ErrNoEndpoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Doer == nil {
		cfg.Doer = http.DefaultClient
	}
	return &Client{
		doer:     cfg.Doer,
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		timeout:  cfg.Timeout,
	}, nil
}

type embedRequest struct {
	Text string `json:"text"`
}

type embedResponse struct {
	Embedding []float64 `json:"embedding"`
}

// Embed POSTs text to the configured endpoint and returns the embedding.
func (c *Client) Embed(ctx context.Context, text string) ([]float64, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(embedRequest{Text: text})
	if err != nil {
		return nil, fmt.Errorf("privacy: encode embed request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("privacy: build embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.doer.Do(req)
	if err != nil {
		return nil, fmt.Errorf("privacy: embed request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("privacy: embed endpoint returned %d: %s", resp.StatusCode, string(data))
	}

	var out embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("privacy: decode embed response: %w", err)
	}
	return out.Embedding, nil
}
