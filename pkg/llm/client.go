// Package llm is the HTTP-based chat-completion client: no vendor SDK, no
// canned-reply stub, just an injectable transport and a retry policy over
// the gateway's request/response shape.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// HTTPDoer is the minimal interface the client needs, satisfied by
// *http.Client and by any fake transport a test injects.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatOptions controls a single chat call. MaxTokens, Temperature, and
// Model are required; the rest are passed through only when set.
type ChatOptions struct {
	Model       string
	MaxTokens   int
	Temperature float64
	TopP        *float64
	FreqPenalty *float64
	PresPenalty *float64
	Stop        []string
}

// Usage reports token accounting for one call.
type Usage struct {
	Prompt     int
	Completion int
	Total      int
}

// ChatResult is what a successful Chat call returns.
type ChatResult struct {
	Content string
	Model   string
	Usage   Usage
}

// Config configures a Client.
type Config struct {
	Endpoint      string
	APIKey        string
	Timeout       time.Duration // per-attempt timeout, default 30s
	MaxAttempts   int           // default 3
	BaseDelay     time.Duration // default 500ms, doubles each retry
	Doer          HTTPDoer      // default http.DefaultClient
}

// Client calls a configurable LLM gateway endpoint with retrying on
// classified-retryable failures.
type Client struct {
	doer        HTTPDoer
	endpoint    string
	apiKey      string
	timeout     time.Duration
	maxAttempts int
	baseDelay   time.Duration

	requests  int64
	retries   int64
	failures  int64
	tokens    int64
	costCents int64 // accumulated cost, in hundredths of a cent, to avoid float drift
}

// ErrNoEndpoint is returned when a Client is constructed without a gateway
// endpoint. There is no fabricated default URL.
var ErrNoEndpoint = errors.New("llm: gateway endpoint not configured")

// NewClient returns an LLM gateway client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, ErrNoEndpoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 500 * time.Millisecond
	}
	if cfg.Doer == nil {
		cfg.Doer = http.DefaultClient
	}
	return &Client{
		doer:        cfg.Doer,
		endpoint:    cfg.Endpoint,
		apiKey:      cfg.APIKey,
		timeout:     cfg.Timeout,
		maxAttempts: cfg.MaxAttempts,
		baseDelay:   cfg.BaseDelay,
	}, nil
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
	TopP        *float64  `json:"top_p,omitempty"`
	FreqPenalty *float64  `json:"frequency_penalty,omitempty"`
	PresPenalty *float64  `json:"presence_penalty,omitempty"`
	Stop        []string  `json:"stop,omitempty"`
}

type chatResponse struct {
	Content string `json:"content"`
	Model   string `json:"model"`
	Usage   struct {
		Prompt     int `json:"prompt_tokens"`
		Completion int `json:"completion_tokens"`
		Total      int `json:"total_tokens"`
	} `json:"usage"`
}

// retryableError wraps an error classified as retryable (timeout,
// connection failure, 429, or 5xx) so backoff.Retry knows to keep going;
// any other error is returned wrapped in backoff.Permanent.
type retryableError struct{ err error }

func (r *retryableError) Error() string { return r.err.Error() }
func (r *retryableError) Unwrap() error { return r.err }

// Chat sends messages to the gateway and returns the completion, retrying
// on classified-retryable failures with exponential backoff.
func (c *Client) Chat(ctx context.Context, messages []Message, opts ChatOptions) (ChatResult, error) {
	atomic.AddInt64(&c.requests, 1)

	var result ChatResult
	attempt := 0

	operation := func() error {
		attempt++
		if attempt > 1 {
			atomic.AddInt64(&c.retries, 1)
		}
		res, err := c.doAttempt(ctx, messages, opts)
		if err == nil {
			result = res
			return nil
		}
		if isRetryable(err) {
			return &retryableError{err: err}
		}
		return backoff.Permanent(err)
	}

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = c.baseDelay
	expBackoff.Multiplier = 2
	expBackoff.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(expBackoff, uint64(c.maxAttempts-1)), ctx)

	if err := backoff.Retry(operation, policy); err != nil {
		atomic.AddInt64(&c.failures, 1)
		var re *retryableError
		if errors.As(err, &re) {
			return ChatResult{}, re.err
		}
		return ChatResult{}, err
	}

	atomic.AddInt64(&c.tokens, int64(result.Usage.Total))
	cost := EstimateCost(result.Model, result.Usage.Prompt, result.Usage.Completion)
	atomic.AddInt64(&c.costCents, int64(cost*10000))
	return result, nil
}

func (c *Client) doAttempt(ctx context.Context, messages []Message, opts ChatOptions) (ChatResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(chatRequest{
		Model:       opts.Model,
		Messages:    messages,
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
		TopP:        opts.TopP,
		FreqPenalty: opts.FreqPenalty,
		PresPenalty: opts.PresPenalty,
		Stop:        opts.Stop,
	})
	if err != nil {
		return ChatResult{}, fmt.Errorf("llm: encode chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return ChatResult{}, fmt.Errorf("llm: build chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.doer.Do(req)
	if err != nil {
		return ChatResult{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return ChatResult{}, &statusError{code: resp.StatusCode, body: string(data)}
	}
	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return ChatResult{}, fmt.Errorf("llm: gateway returned %d: %s", resp.StatusCode, string(data))
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return ChatResult{}, fmt.Errorf("llm: decode chat response: %w", err)
	}
	return ChatResult{
		Content: out.Content,
		Model:   out.Model,
		Usage: Usage{
			Prompt:     out.Usage.Prompt,
			Completion: out.Usage.Completion,
			Total:      out.Usage.Total,
		},
	}, nil
}

// statusError represents a retryable HTTP status (429 or 5xx).
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("llm: gateway returned %d: %s", e.code, e.body)
}

// isRetryable classifies timeout, connection, rate-limited, and 5xx
// failures as retryable; everything else (bad request, auth failure,
// malformed response) is not.
func isRetryable(err error) bool {
	var statusErr *statusError
	if errors.As(err, &statusErr) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// Stats is a snapshot of the client's request counters.
type Stats struct {
	Requests    int64
	Retries     int64
	Failures    int64
	TotalTokens int64
	CostUSD     float64
}

// Snapshot returns the current counters.
func (c *Client) Snapshot() Stats {
	return Stats{
		Requests:    atomic.LoadInt64(&c.requests),
		Retries:     atomic.LoadInt64(&c.retries),
		Failures:    atomic.LoadInt64(&c.failures),
		TotalTokens: atomic.LoadInt64(&c.tokens),
		CostUSD:     float64(atomic.LoadInt64(&c.costCents)) / 10000,
	}
}
