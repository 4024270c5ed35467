package tts

import (
	"context"
	"sync"
	"time"
)

// Mock implements Provider for testing.
type Mock struct {
	// SynthesizeFunc is called when Synthesize is invoked.
	SynthesizeFunc func(ctx context.Context, text string) (*Clip, error)

	mu     sync.Mutex
	texts  []string
	closed bool
}

// NewMock returns a mock that answers with 20ms of 16 kHz silence per
// character.
func NewMock() *Mock {
	return &Mock{SynthesizeFunc: func(ctx context.Context, text string) (*Clip, error) {
		return &Clip{
			Audio:      make([]byte, len(text)*640),
			Encoding:   EncodingPCM,
			SampleRate: 16000,
			Channels:   1,
		}, nil
	}}
}

// WithError returns a mock that always fails.
func WithError(err error) *Mock {
	return &Mock{SynthesizeFunc: func(ctx context.Context, text string) (*Clip, error) {
		return nil, err
	}}
}

// WithLatency delays every Synthesize of m by d, honouring cancellation.
func WithLatency(m *Mock, d time.Duration) *Mock {
	next := m.SynthesizeFunc
	m.SynthesizeFunc = func(ctx context.Context, text string) (*Clip, error) {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		return next(ctx, text)
	}
	return m
}

// Synthesize records text and calls SynthesizeFunc.
func (m *Mock) Synthesize(ctx context.Context, text string) (*Clip, error) {
	m.mu.Lock()
	m.texts = append(m.texts, text)
	m.mu.Unlock()
	if m.SynthesizeFunc == nil {
		return nil, ErrEmptyAudio
	}
	return m.SynthesizeFunc(ctx, text)
}

// Close marks the mock closed.
func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Texts returns every synthesized text in call order.
func (m *Mock) Texts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.texts...)
}

// Closed reports whether Close was called.
func (m *Mock) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

var _ Provider = (*Mock)(nil)
