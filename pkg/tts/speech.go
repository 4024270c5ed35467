package tts

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// Config configures a Speech client.
type Config struct {
	BaseURL    string
	APIKey     string // optional for local servers
	Model      string
	Voice      string
	Encoding   Encoding
	SampleRate int // rate the server uses for EncodingPCM
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
	Logger     *slog.Logger
}

// Option configures a Speech client.
type Option func(*Config)

// WithBaseURL sets the API base URL, e.g. "http://127.0.0.1:5002/v1".
func WithBaseURL(url string) Option { return func(c *Config) { c.BaseURL = url } }

// WithAPIKey sets the bearer token.
func WithAPIKey(key string) Option { return func(c *Config) { c.APIKey = key } }

// WithModel sets the model name.
func WithModel(model string) Option { return func(c *Config) { c.Model = model } }

// WithVoice sets the voice name.
func WithVoice(voice string) Option { return func(c *Config) { c.Voice = voice } }

// WithOutputFormat selects WAV or raw PCM output.
func WithOutputFormat(enc Encoding) Option { return func(c *Config) { c.Encoding = enc } }

// WithSampleRate sets the rate of raw PCM output.
func WithSampleRate(hz int) Option { return func(c *Config) { c.SampleRate = hz } }

// WithTimeout sets the request timeout.
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

// DefaultConfig returns defaults for a local Coqui server.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:    "http://127.0.0.1:5002/v1",
		Model:      "tts_models/en/ljspeech/vits",
		Voice:      "default",
		Encoding:   EncodingWAV,
		SampleRate: 24000,
		Timeout:    30 * time.Second,
		MaxRetries: 2,
		RetryDelay: 100 * time.Millisecond,
		Logger:     slog.Default(),
	}
}

// Validate checks required fields.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return ErrNoBaseURL
	}
	if c.Model == "" {
		return ErrNoModel
	}
	return nil
}

// Speech is an HTTP synthesis client.
type Speech struct {
	cfg    *Config
	client *resty.Client
	logger *slog.Logger
}

type speechRequest struct {
	Model          string `json:"model"`
	Voice          string `json:"voice"`
	Input          string `json:"input"`
	ResponseFormat string `json:"response_format"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// NewSpeech creates a synthesis client.
func NewSpeech(opts ...Option) (*Speech, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client := resty.New().
		SetBaseURL(strings.TrimSuffix(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.MaxRetries).
		SetRetryWaitTime(cfg.RetryDelay).
		SetRetryMaxWaitTime(cfg.RetryDelay * 10).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= 500
		})
	if cfg.APIKey != "" {
		client.SetAuthToken(cfg.APIKey)
	}

	return &Speech{
		cfg:    cfg,
		client: client,
		logger: cfg.Logger.With("component", "tts.speech"),
	}, nil
}

// Synthesize requests audio for text.
func (s *Speech) Synthesize(ctx context.Context, text string) (*Clip, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}
	start := time.Now()

	var apiErr errorResponse
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(speechRequest{
			Model:          s.cfg.Model,
			Voice:          s.cfg.Voice,
			Input:          text,
			ResponseFormat: string(s.cfg.Encoding),
		}).
		SetError(&apiErr).
		Post("/audio/speech")
	if err != nil {
		return nil, fmt.Errorf("tts: synthesize: %w", err)
	}
	if resp.IsError() {
		msg := apiErr.Error.Message
		if msg == "" {
			msg = strings.TrimSpace(resp.String())
		}
		return nil, &APIError{StatusCode: resp.StatusCode(), Message: msg}
	}

	audio := resp.Body()
	if len(audio) == 0 {
		return nil, ErrEmptyAudio
	}

	clip := &Clip{
		Audio:    audio,
		Encoding: s.cfg.Encoding,
		Latency:  time.Since(start),
	}
	if clip.Encoding == EncodingPCM {
		clip.SampleRate = s.cfg.SampleRate
		clip.Channels = 1
	}

	s.logger.Debug("synthesized", "chars", len(text), "bytes", len(audio), "latency", clip.Latency)
	return clip, nil
}

// Close releases idle connections.
func (s *Speech) Close() error {
	s.client.GetClient().CloseIdleConnections()
	return nil
}

var _ Provider = (*Speech)(nil)
