package stt

import (
	"context"
	"sync"
)

// Mock implements Transcriber for testing.
type Mock struct {
	// TranscribeFunc is called when Transcribe is invoked.
	TranscribeFunc func(ctx context.Context, path string) (*Result, error)

	mu    sync.Mutex
	paths []string
}

// WithText returns a mock that always transcribes to text.
func WithText(text string) *Mock {
	return &Mock{TranscribeFunc: func(ctx context.Context, path string) (*Result, error) {
		return &Result{Text: text}, nil
	}}
}

// WithError returns a mock that always fails.
func WithError(err error) *Mock {
	return &Mock{TranscribeFunc: func(ctx context.Context, path string) (*Result, error) {
		return nil, err
	}}
}

// Transcribe records path and calls TranscribeFunc.
func (m *Mock) Transcribe(ctx context.Context, path string) (*Result, error) {
	m.mu.Lock()
	m.paths = append(m.paths, path)
	m.mu.Unlock()
	if m.TranscribeFunc == nil {
		return nil, ErrEmptyTranscript
	}
	return m.TranscribeFunc(ctx, path)
}

// Paths returns every transcribed path in call order.
func (m *Mock) Paths() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.paths))
	copy(out, m.paths)
	return out
}

var _ Transcriber = (*Mock)(nil)
