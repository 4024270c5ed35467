// Package tts turns assistant replies into audio.
//
// A Provider returns one complete clip per utterance. The voice pipeline
// writes it to a scratch WAV file and plays it. Speech talks to any
// OpenAI-compatible /audio/speech endpoint, including local servers that wrap
// Coqui or Piper models.
//
//	synth, _ := tts.NewSpeech(
//	    tts.WithBaseURL("http://127.0.0.1:5002/v1"),
//	    tts.WithModel("tts_models/en/ljspeech/vits"),
//	)
//	defer synth.Close()
//
//	clip, _ := synth.Synthesize(ctx, "Clearing the cart...")
package tts

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNoBaseURL is returned when the endpoint is missing.
	ErrNoBaseURL = errors.New("tts: base URL required")

	// ErrNoModel is returned when the model is missing.
	ErrNoModel = errors.New("tts: model required")

	// ErrEmptyText is returned when asked to synthesize nothing.
	ErrEmptyText = errors.New("tts: empty text")

	// ErrEmptyAudio is returned when the server answers with no audio.
	ErrEmptyAudio = errors.New("tts: empty audio response")
)

// Provider synthesizes speech.
type Provider interface {
	Synthesize(ctx context.Context, text string) (*Clip, error)
	Close() error
}

// Encoding is the container of a Clip.
type Encoding string

const (
	// EncodingWAV is a RIFF/WAVE file; rate and channels come from its header.
	EncodingWAV Encoding = "wav"

	// EncodingPCM is headerless little-endian PCM16. The Clip carries the
	// rate and channel count.
	EncodingPCM Encoding = "pcm"
)

// Clip is one synthesized utterance.
type Clip struct {
	Audio      []byte
	Encoding   Encoding
	SampleRate int // PCM only
	Channels   int // PCM only
	Latency    time.Duration
}

// APIError is a non-2xx response.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("tts: API error %d: %s", e.StatusCode, e.Message)
}

// Retryable reports whether the request is worth repeating.
func (e *APIError) Retryable() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}
