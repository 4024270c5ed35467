// Package stt transcribes recorded audio files.
//
// The Whisper client uploads a WAV file to an OpenAI-compatible
// /audio/transcriptions endpoint (faster-whisper server, whisper.cpp
// server, OpenAI).
package stt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// Sentinel errors.
var (
	// ErrNoBaseURL is returned when the endpoint is missing.
	ErrNoBaseURL = errors.New("stt: base URL required")

	// ErrEmptyTranscript is returned when the server recognized nothing.
	ErrEmptyTranscript = errors.New("stt: empty transcript")
)

// Result is a transcription.
type Result struct {
	Text      string
	Language  string
	Duration  time.Duration
	LatencyMs int64
}

// Transcriber converts an audio file into text.
type Transcriber interface {
	Transcribe(ctx context.Context, path string) (*Result, error)
}

// APIError is a non-2xx response.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("stt: API error %d: %s", e.StatusCode, e.Message)
}

// Config configures the Whisper client.
type Config struct {
	BaseURL    string
	APIKey     string
	Model      string
	Language   string
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
	Logger     *slog.Logger
}

// Option configures a Whisper client.
type Option func(*Config)

// WithBaseURL sets the API base URL, e.g. "http://127.0.0.1:8000/v1".
func WithBaseURL(url string) Option { return func(c *Config) { c.BaseURL = url } }

// WithAPIKey sets the bearer token.
func WithAPIKey(key string) Option { return func(c *Config) { c.APIKey = key } }

// WithModel sets the model name (e.g. "base", "whisper-1").
func WithModel(model string) Option { return func(c *Config) { c.Model = model } }

// WithLanguage sets the spoken language hint.
func WithLanguage(lang string) Option { return func(c *Config) { c.Language = lang } }

// WithTimeout sets the request timeout.
func WithTimeout(d time.Duration) Option { return func(c *Config) { c.Timeout = d } }

// WithRetry configures retries on 429 and 5xx.
func WithRetry(n int, delay time.Duration) Option {
	return func(c *Config) {
		c.MaxRetries = n
		c.RetryDelay = delay
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(c *Config) { c.Logger = l } }

// DefaultConfig returns defaults for a local whisper server.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:    "http://127.0.0.1:8000/v1",
		Model:      "base",
		Language:   "en",
		Timeout:    30 * time.Second,
		MaxRetries: 2,
		RetryDelay: 200 * time.Millisecond,
		Logger:     slog.Default(),
	}
}

// Whisper is an HTTP transcription client.
type Whisper struct {
	cfg    *Config
	client *resty.Client
	logger *slog.Logger
}

type transcriptionResponse struct {
	Text     string  `json:"text"`
	Language string  `json:"language"`
	Duration float64 `json:"duration"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// NewWhisper creates a transcription client.
func NewWhisper(opts ...Option) (*Whisper, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.BaseURL == "" {
		return nil, ErrNoBaseURL
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

	return &Whisper{
		cfg:    cfg,
		client: client,
		logger: cfg.Logger.With("component", "stt.whisper"),
	}, nil
}

// Transcribe uploads the file at path and returns the recognized text.
func (w *Whisper) Transcribe(ctx context.Context, path string) (*Result, error) {
	start := time.Now()

	form := map[string]string{
		"model":           w.cfg.Model,
		"response_format": "json",
	}
	if w.cfg.Language != "" {
		form["language"] = w.cfg.Language
	}

	var out transcriptionResponse
	var apiErr errorResponse
	resp, err := w.client.R().
		SetContext(ctx).
		SetFile("file", path).
		SetFormData(form).
		SetResult(&out).
		SetError(&apiErr).
		Post("/audio/transcriptions")
	if err != nil {
		return nil, fmt.Errorf("stt: transcribe %s: %w", filepath.Base(path), err)
	}
	if resp.IsError() {
		msg := apiErr.Error.Message
		if msg == "" {
			msg = strings.TrimSpace(resp.String())
		}
		return nil, &APIError{StatusCode: resp.StatusCode(), Message: msg}
	}

	text := strings.TrimSpace(out.Text)
	latency := time.Since(start).Milliseconds()
	w.logger.Debug("transcribed", "chars", len(text), "latency_ms", latency)

	if text == "" {
		return nil, ErrEmptyTranscript
	}

	return &Result{
		Text:      text,
		Language:  out.Language,
		Duration:  time.Duration(out.Duration * float64(time.Second)),
		LatencyMs: latency,
	}, nil
}

// Verify Whisper implements Transcriber at compile time.
var _ Transcriber = (*Whisper)(nil)
