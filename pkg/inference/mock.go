package inference

import (
	"context"
	"sync"
)

// Mock implements Provider for testing.
type Mock struct {
	// CompleteFunc answers Complete. Nil means ErrEmptyCompletion.
	CompleteFunc func(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)

	// HealthErr is returned by Health.
	HealthErr error

	mu       sync.Mutex
	requests []CompletionRequest
}

// NewMock returns a mock that answers NO_MATCH.
func NewMock() *Mock { return WithText("NO_MATCH") }

// WithText returns a mock that always completes with text.
func WithText(text string) *Mock {
	return &Mock{CompleteFunc: func(context.Context, *CompletionRequest) (*CompletionResponse, error) {
		return &CompletionResponse{Text: text, FinishReason: "stop"}, nil
	}}
}

// WithError returns a mock whose Complete and Health fail with err.
func WithError(err error) *Mock {
	return &Mock{
		CompleteFunc: func(context.Context, *CompletionRequest) (*CompletionResponse, error) {
			return nil, err
		},
		HealthErr: err,
	}
}

// Complete records req and calls CompleteFunc.
func (m *Mock) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	m.mu.Lock()
	m.requests = append(m.requests, *req)
	m.mu.Unlock()
	if m.CompleteFunc == nil {
		return nil, WrapError("mock", ErrEmptyCompletion)
	}
	return m.CompleteFunc(ctx, req)
}

// Health returns HealthErr.
func (m *Mock) Health(context.Context) error { return m.HealthErr }

// Close is a no-op.
func (m *Mock) Close() error { return nil }

// Requests returns every completion request in call order.
func (m *Mock) Requests() []CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]CompletionRequest(nil), m.requests...)
}

// LastRequest returns the most recent completion request.
func (m *Mock) LastRequest() (CompletionRequest, bool) {
	reqs := m.Requests()
	if len(reqs) == 0 {
		return CompletionRequest{}, false
	}
	return reqs[len(reqs)-1], true
}

var _ Provider = (*Mock)(nil)
