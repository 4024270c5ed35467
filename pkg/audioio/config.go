// Package audioio records from a microphone and plays back through a speaker.
//
// Two backends exist:
//   - ALSA (Linux) drives the arecord/aplay utilities from alsa-utils
//   - Mock generates silence or a tone and captures playback, for CI
//
// Recordings are raw PCM16. WAV helpers convert to and from the files the
// speech services exchange.
package audioio

import (
	"fmt"
	"time"
)

// Backend represents the audio backend type.
type Backend string

const (
	// BackendAuto selects ALSA when arecord is installed, mock otherwise.
	BackendAuto Backend = "auto"
	// BackendALSA uses the alsa-utils command line tools.
	BackendALSA Backend = "alsa"
	// BackendMock uses an in-memory implementation.
	BackendMock Backend = "mock"
)

// ParseBackend maps a configuration string to a Backend.
func ParseBackend(s string) (Backend, error) {
	switch Backend(s) {
	case "", BackendAuto:
		return BackendAuto, nil
	case BackendALSA, BackendMock:
		return Backend(s), nil
	}
	return "", fmt.Errorf("unknown audio backend %q", s)
}

// Config holds audio configuration.
type Config struct {
	Backend Backend `json:"backend"`

	// SampleRate is the audio sample rate in Hz.
	// Default: 16000 (what the transcriber expects)
	SampleRate int `json:"sample_rate"`

	// Channels is the number of audio channels.
	// Default: 1 (mono)
	Channels int `json:"channels"`

	// BufferDuration is the size of one chunk.
	// Default: 100ms
	BufferDuration time.Duration `json:"buffer_duration"`

	// Device is the ALSA PCM name, e.g. "default" or "plughw:1,0".
	Device string `json:"device"`
}

// DefaultConfig returns the capture format used for voice commands.
func DefaultConfig() Config {
	return Config{
		Backend:        BackendAuto,
		SampleRate:     16000,
		Channels:       1,
		BufferDuration: 100 * time.Millisecond,
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample_rate must be positive, got %d", c.SampleRate)
	}
	if c.Channels <= 0 {
		return fmt.Errorf("channels must be positive, got %d", c.Channels)
	}
	if c.BufferDuration <= 0 {
		return fmt.Errorf("buffer_duration must be positive, got %v", c.BufferDuration)
	}
	return nil
}

// BufferSize returns the number of frames per chunk.
func (c *Config) BufferSize() int {
	return int(float64(c.SampleRate) * c.BufferDuration.Seconds())
}

// BufferBytes returns the size of a chunk in bytes.
func (c *Config) BufferBytes() int {
	return c.BufferSize() * c.Channels * 2
}

// SamplesFor returns the interleaved sample count covering d.
func (c *Config) SamplesFor(d time.Duration) int {
	return int(float64(c.SampleRate)*d.Seconds()) * c.Channels
}
