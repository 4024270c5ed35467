package audioio

import (
	"context"
	"io"
	"time"
)

// AudioChunk is a block of interleaved PCM16 samples.
type AudioChunk struct {
	Samples    []int16
	SampleRate int
	Channels   int
}

// Bytes returns the samples as little-endian PCM16.
func (c *AudioChunk) Bytes() []byte {
	return SamplesToBytes(c.Samples)
}

// FromBytes populates the chunk from raw PCM16 bytes.
func (c *AudioChunk) FromBytes(data []byte, sampleRate, channels int) {
	c.SampleRate = sampleRate
	c.Channels = channels
	c.Samples = BytesToSamples(data)
}

// Duration returns the playback length of the chunk.
func (c *AudioChunk) Duration() time.Duration {
	if c.SampleRate == 0 || c.Channels == 0 {
		return 0
	}
	frames := len(c.Samples) / c.Channels
	return time.Duration(frames) * time.Second / time.Duration(c.SampleRate)
}

// Append adds other's samples to c.
func (c *AudioChunk) Append(other AudioChunk) {
	if c.SampleRate == 0 {
		c.SampleRate = other.SampleRate
		c.Channels = other.Channels
	}
	c.Samples = append(c.Samples, other.Samples...)
}

// Source captures audio from a microphone.
type Source interface {
	// Start begins capture. Chunks become available through Read.
	Start(ctx context.Context) error

	// Stop halts capture. Safe to call more than once.
	Stop() error

	// Read blocks for the next chunk. Returns io.EOF once stopped.
	Read(ctx context.Context) (AudioChunk, error)

	Config() Config

	// Name returns the backend name ("alsa", "mock").
	Name() string

	io.Closer
}
