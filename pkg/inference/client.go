package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/teslashibe/go-shopassist/internal/httpc"
)

// Config configures a Client.
type Config struct {
	BaseURL     string
	APIKey      string // optional for local servers
	Name        string // provider label in logs and errors
	Model       string // local llama.cpp servers ignore it
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
	MaxRetries  int
	RetryDelay  time.Duration
	Logger      *slog.Logger
}

// Option configures a Client.
type Option func(*Config)

// WithBaseURL sets the API base URL, e.g. "http://127.0.0.1:8080/v1".
func WithBaseURL(url string) Option { return func(c *Config) { c.BaseURL = url } }

// WithAPIKey sets the bearer token.
func WithAPIKey(key string) Option { return func(c *Config) { c.APIKey = key } }

// WithName sets the provider label.
func WithName(name string) Option { return func(c *Config) { c.Name = name } }

// WithModel sets the default model.
func WithModel(model string) Option { return func(c *Config) { c.Model = model } }

// WithMaxTokens sets the default completion length.
func WithMaxTokens(n int) Option { return func(c *Config) { c.MaxTokens = n } }

// WithTemperature sets the default temperature.
func WithTemperature(t float64) Option { return func(c *Config) { c.Temperature = t } }

// WithTimeout bounds one HTTP request.
func WithTimeout(d time.Duration) Option { return func(c *Config) { c.Timeout = d } }

// WithRetry configures retries on transport errors, 429 and 5xx.
func WithRetry(n int, delay time.Duration) Option {
	return func(c *Config) {
		c.MaxRetries = n
		c.RetryDelay = delay
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(c *Config) { c.Logger = l } }

// DefaultConfig returns defaults for a local llama.cpp server.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:     "http://127.0.0.1:8080/v1",
		Name:        "local",
		MaxTokens:   16,
		Temperature: 0.15,
		Timeout:     15 * time.Second,
		MaxRetries:  2,
		RetryDelay:  100 * time.Millisecond,
		Logger:      slog.Default(),
	}
}

// Client completes prompts against an OpenAI-compatible /completions
// endpoint (llama.cpp server, vLLM, OpenAI).
type Client struct {
	cfg     *Config
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

type completionRequest struct {
	Prompt           string   `json:"prompt"`
	Model            string   `json:"model,omitempty"`
	MaxTokens        int      `json:"max_tokens,omitempty"`
	Temperature      float64  `json:"temperature"`
	Stop             []string `json:"stop,omitempty"`
	FrequencyPenalty float64  `json:"frequency_penalty,omitempty"`
	PresencePenalty  float64  `json:"presence_penalty,omitempty"`
}

type completionResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Text         string `json:"text"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

// NewClient creates a completion client.
func NewClient(opts ...Option) (*Client, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.BaseURL == "" {
		return nil, ErrNoBaseURL
	}

	return &Client{
		cfg:     cfg,
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		http:    httpc.New(cfg.Timeout),
		logger:  cfg.Logger.With("component", "inference.client", "provider", cfg.Name),
	}, nil
}

// Name returns the provider label.
func (c *Client) Name() string { return c.cfg.Name }

// Complete generates a completion.
func (c *Client) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()

	body, err := json.Marshal(c.payload(req))
	if err != nil {
		return nil, WrapError(c.cfg.Name, err)
	}

	resp, err := c.do(ctx, http.MethodPost, "/completions", body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, WrapError(c.cfg.Name, fmt.Errorf("decode response: %w", err))
	}
	if len(out.Choices) == 0 {
		return nil, WrapError(c.cfg.Name, ErrEmptyCompletion)
	}

	return &CompletionResponse{
		Text:         out.Choices[0].Text,
		FinishReason: out.Choices[0].FinishReason,
		Model:        out.Model,
		Tokens:       out.Usage.TotalTokens,
		Latency:      time.Since(start),
	}, nil
}

// Health lists models once, without retries.
func (c *Client) Health(ctx context.Context) error {
	req, err := c.request(ctx, http.MethodGet, "/models", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return WrapError(c.cfg.Name, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return c.apiError(resp)
	}
	return nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

func (c *Client) payload(req *CompletionRequest) completionRequest {
	p := completionRequest{
		Prompt:           req.Prompt,
		Model:            req.Model,
		MaxTokens:        req.MaxTokens,
		Temperature:      req.Temperature,
		Stop:             req.Stop,
		FrequencyPenalty: req.FrequencyPenalty,
		PresencePenalty:  req.PresencePenalty,
	}
	if p.Model == "" {
		p.Model = c.cfg.Model
	}
	if p.MaxTokens == 0 {
		p.MaxTokens = c.cfg.MaxTokens
	}
	if p.Temperature == 0 {
		p.Temperature = c.cfg.Temperature
	}
	return p
}

func (c *Client) request(ctx context.Context, method, path string, body []byte) (*http.Request, error) {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return nil, WrapError(c.cfg.Name, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}
	return req, nil
}

// do sends the request, retrying with linear backoff. It returns only 200
// responses; everything else becomes an error.
func (c *Client) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.cfg.RetryDelay * time.Duration(attempt)):
			}
		}

		req, err := c.request(ctx, method, path, body)
		if err != nil {
			return nil, err
		}
		resp, err := c.http.Do(req)
		switch {
		case err != nil:
			lastErr = WrapError(c.cfg.Name, err)
			if ctx.Err() != nil {
				return nil, lastErr
			}
		case resp.StatusCode == http.StatusOK:
			return resp, nil
		default:
			lastErr = c.apiError(resp)
			resp.Body.Close()
			if !httpc.Retryable(resp.StatusCode) {
				return nil, lastErr
			}
		}
		c.logger.Warn("completion attempt failed", "attempt", attempt+1, "error", lastErr)
	}
	return nil, lastErr
}

func (c *Client) apiError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	e := &APIError{
		Provider:   c.cfg.Name,
		StatusCode: resp.StatusCode,
		Message:    strings.TrimSpace(string(raw)),
	}
	var body struct {
		Error struct {
			Message string `json:"message"`
			Code    string `json:"code"`
		} `json:"error"`
	}
	if json.Unmarshal(raw, &body) == nil && body.Error.Message != "" {
		e.Message = body.Error.Message
		e.Code = body.Error.Code
	}
	return e
}

var _ Provider = (*Client)(nil)
