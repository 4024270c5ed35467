// Package inference completes prompts against OpenAI-compatible servers.
//
// The same Client talks to a local llama.cpp server and to a remote
// endpoint. A Chain tries several providers in order, so the assistant keeps
// understanding commands when the local model is down.
//
//	local, _ := inference.NewClient(inference.WithBaseURL("http://127.0.0.1:8080/v1"))
//	remote, _ := inference.NewClient(
//	    inference.WithBaseURL("https://api.openai.com/v1"),
//	    inference.WithAPIKey(os.Getenv("OPENAI_API_KEY")),
//	    inference.WithModel("gpt-3.5-turbo-instruct"),
//	)
//	llm, _ := inference.NewChain(local, remote)
//	defer llm.Close()
//
//	resp, _ := llm.Complete(ctx, &inference.CompletionRequest{
//	    Prompt:    "Input: turn it off\nOutput: ",
//	    MaxTokens: 5,
//	    Stop:      []string{"\n"},
//	})
package inference

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrNoBaseURL is returned when a client has no endpoint.
	ErrNoBaseURL = errors.New("inference: base URL required")

	// ErrNoProviders is returned by NewChain with nothing to chain.
	ErrNoProviders = errors.New("inference: no providers")

	// ErrEmptyCompletion is returned when the server sends no choices.
	ErrEmptyCompletion = errors.New("inference: no choices returned")

	// ErrServerNotReady is returned when a local server does not become healthy.
	ErrServerNotReady = errors.New("inference: local server not ready")
)

// Provider completes raw prompts.
type Provider interface {
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)
	Health(ctx context.Context) error
	Close() error
}

// CompletionRequest is sent verbatim apart from zero values, which fall back
// to the client defaults.
type CompletionRequest struct {
	Prompt           string
	Model            string
	MaxTokens        int
	Temperature      float64
	Stop             []string
	FrequencyPenalty float64
	PresencePenalty  float64
}

// CompletionResponse is the generated text. Text is not trimmed.
type CompletionResponse struct {
	Text         string
	FinishReason string
	Model        string
	Tokens       int
	Latency      time.Duration
}

// APIError is a non-2xx answer from a provider.
type APIError struct {
	Provider   string
	StatusCode int
	Message    string
	Code       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("inference [%s]: %d %s: %s", e.Provider, e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("inference [%s]: %d: %s", e.Provider, e.StatusCode, e.Message)
}

// Retryable reports whether the request may succeed if repeated.
func (e *APIError) Retryable() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}

// ProviderError tags a transport or decoding failure with its provider.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string { return fmt.Sprintf("inference [%s]: %v", e.Provider, e.Err) }

func (e *ProviderError) Unwrap() error { return e.Err }

// WrapError returns nil for a nil err.
func WrapError(provider string, err error) error {
	if err == nil {
		return nil
	}
	return &ProviderError{Provider: provider, Err: err}
}

// ChainError holds one failure per provider, in chain order.
type ChainError struct {
	Errors []error
}

func (e *ChainError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("inference chain: %d providers failed: %s", len(e.Errors), strings.Join(msgs, "; "))
}

// Unwrap exposes every provider error to errors.Is and errors.As.
func (e *ChainError) Unwrap() []error { return e.Errors }
