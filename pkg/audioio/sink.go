package audioio

import (
	"context"
	"io"
)

// Sink plays audio to a speaker.
type Sink interface {
	// Start opens the output device.
	Start(ctx context.Context) error

	// Write queues a chunk for playback. May block while the device drains.
	Write(ctx context.Context, chunk AudioChunk) error

	// Flush waits until everything written has been played.
	Flush(ctx context.Context) error

	// Stop halts playback, discarding anything still queued.
	Stop() error

	Config() Config

	// Name returns the backend name ("alsa", "mock").
	Name() string

	io.Closer
}
