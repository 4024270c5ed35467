package voice

import (
	"errors"
	"time"

	"github.com/teslashibe/go-shopassist/pkg/audioio"
)

// Config holds the tunable parameters of the voice pipeline.
type Config struct {
	// Audio devices. SampleRate/Channels describe the recording format.
	Audio audioio.Config

	// RecordDuration is the fixed length of one spoken command.
	RecordDuration time.Duration

	// ScratchDir holds the temporary WAV files. Empty means os.TempDir().
	ScratchDir string

	// SpeakTimeout bounds synthesis plus playback of one utterance.
	SpeakTimeout time.Duration

	// ListenTimeout bounds recording plus transcription.
	ListenTimeout time.Duration

	// ProfileLatency logs the per-stage breakdown after every utterance.
	ProfileLatency bool
}

// DefaultConfig returns a 2 second, 16 kHz mono recording setup.
func DefaultConfig() Config {
	return Config{
		Audio:          audioio.DefaultConfig(),
		RecordDuration: 2 * time.Second,
		SpeakTimeout:   30 * time.Second,
		ListenTimeout:  30 * time.Second,
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if err := c.Audio.Validate(); err != nil {
		return errors.New("voice: audio: " + err.Error())
	}
	if c.RecordDuration <= 0 {
		return errors.New("voice: record duration must be positive")
	}
	if c.ListenTimeout > 0 && c.ListenTimeout <= c.RecordDuration {
		return errors.New("voice: listen timeout must exceed record duration")
	}
	return nil
}

// WithAudioBackend returns a copy using backend for both devices.
func (c Config) WithAudioBackend(b audioio.Backend) Config {
	c.Audio.Backend = b
	return c
}

// WithRecordDuration returns a copy with the recording length set.
func (c Config) WithRecordDuration(d time.Duration) Config {
	c.RecordDuration = d
	return c
}

// WithScratchDir returns a copy with the scratch directory set.
func (c Config) WithScratchDir(dir string) Config {
	c.ScratchDir = dir
	return c
}
