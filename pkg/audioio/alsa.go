package audioio

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"sync"
	"sync/atomic"
)

// ALSA utility names, overridable for tests and unusual installs.
var (
	RecordBinary = "arecord"
	PlayBinary   = "aplay"
)

// alsaArgs builds the common raw PCM16 arguments for arecord/aplay.
func alsaArgs(cfg Config) []string {
	args := []string{"-q", "-t", "raw", "-f", "S16_LE",
		"-r", strconv.Itoa(cfg.SampleRate),
		"-c", strconv.Itoa(cfg.Channels),
	}
	if cfg.Device != "" {
		args = append(args, "-D", cfg.Device)
	}
	return args
}

// ALSASource captures audio by reading raw PCM from an arecord process.
type ALSASource struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	cmd     *exec.Cmd
	stdout  io.ReadCloser
	chunks  chan AudioChunk
	stopCh  chan struct{}
	done    chan struct{}
	running bool
	closed  bool

	chunksRead atomic.Int64
}

func newALSASource(cfg Config, logger *slog.Logger) (*ALSASource, error) {
	if _, err := exec.LookPath(RecordBinary); err != nil {
		return nil, fmt.Errorf("alsa source: %w", err)
	}
	return &ALSASource{
		cfg:    cfg,
		logger: logger.With("component", "audioio.alsa_source"),
	}, nil
}

// Start spawns arecord and begins reading chunks.
func (s *ALSASource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return io.ErrClosedPipe
	}
	if s.running {
		return nil
	}

	cmd := exec.Command(RecordBinary, alsaArgs(s.cfg)...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("arecord stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start arecord: %w", err)
	}

	s.cmd = cmd
	s.stdout = stdout
	s.chunks = make(chan AudioChunk, 16)
	s.stopCh = make(chan struct{})
	s.done = make(chan struct{})
	s.running = true

	go s.captureLoop(ctx, stdout, s.chunks, s.stopCh, s.done)

	s.logger.Debug("capture started", "device", s.cfg.Device, "pid", cmd.Process.Pid)
	return nil
}

func (s *ALSASource) captureLoop(ctx context.Context, r io.Reader, out chan<- AudioChunk, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	defer close(out)

	br := bufio.NewReaderSize(r, s.cfg.BufferBytes())
	buf := make([]byte, s.cfg.BufferBytes())
	for {
		n, err := io.ReadFull(br, buf)
		if n >= 2 {
			var chunk AudioChunk
			chunk.FromBytes(buf[:n-n%2], s.cfg.SampleRate, s.cfg.Channels)
			select {
			case out <- chunk:
				s.chunksRead.Add(1)
			case <-stop:
				return
			case <-ctx.Done():
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
				s.logger.Debug("capture read ended", "error", err)
			}
			return
		}
	}
}

// Stop terminates arecord. The process is reaped only after captureLoop
// has stopped reading its stdout.
func (s *ALSASource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.running = false
	close(s.stopCh)

	if s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
	<-s.done
	_ = s.cmd.Wait()

	s.logger.Debug("capture stopped", "chunks", s.chunksRead.Load())
	return nil
}

// Read returns the next captured chunk.
func (s *ALSASource) Read(ctx context.Context) (AudioChunk, error) {
	s.mu.Lock()
	ch := s.chunks
	s.mu.Unlock()
	if ch == nil {
		return AudioChunk{}, io.EOF
	}

	select {
	case <-ctx.Done():
		return AudioChunk{}, ctx.Err()
	case chunk, ok := <-ch:
		if !ok {
			return AudioChunk{}, io.EOF
		}
		return chunk, nil
	}
}

func (s *ALSASource) Config() Config { return s.cfg }

// Name returns "alsa".
func (s *ALSASource) Name() string { return string(BackendALSA) }

// Close stops capture permanently.
func (s *ALSASource) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return s.Stop()
}

// ALSASink plays audio by writing raw PCM into an aplay process.
type ALSASink struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	running bool
	closed  bool
}

func newALSASink(cfg Config, logger *slog.Logger) (*ALSASink, error) {
	if _, err := exec.LookPath(PlayBinary); err != nil {
		return nil, fmt.Errorf("alsa sink: %w", err)
	}
	return &ALSASink{
		cfg:    cfg,
		logger: logger.With("component", "audioio.alsa_sink"),
	}, nil
}

// Start spawns aplay.
func (s *ALSASink) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return io.ErrClosedPipe
	}
	if s.running {
		return nil
	}

	cmd := exec.Command(PlayBinary, alsaArgs(s.cfg)...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("aplay stdin: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start aplay: %w", err)
	}

	s.cmd = cmd
	s.stdin = stdin
	s.running = true
	return nil
}

// Write pipes the chunk to aplay, resampling when the rate differs.
func (s *ALSASink) Write(ctx context.Context, chunk AudioChunk) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return io.ErrClosedPipe
	}

	chunk = Conform(chunk, s.cfg)
	if _, err := s.stdin.Write(chunk.Bytes()); err != nil {
		return fmt.Errorf("aplay write: %w", err)
	}
	return nil
}

// Flush closes aplay's input and waits for it to finish playing.
func (s *ALSASink) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return nil
	}
	s.running = false

	_ = s.stdin.Close()

	done := make(chan error, 1)
	go func() { done <- s.cmd.Wait() }()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("aplay: %w", err)
		}
		return nil
	case <-ctx.Done():
		_ = s.cmd.Process.Kill()
		<-done
		return ctx.Err()
	}
}

// Stop kills aplay without draining.
func (s *ALSASink) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return nil
	}
	s.running = false

	_ = s.stdin.Close()
	if s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
	_ = s.cmd.Wait()
	return nil
}

func (s *ALSASink) Config() Config { return s.cfg }

// Name returns "alsa".
func (s *ALSASink) Name() string { return string(BackendALSA) }

// Close stops playback permanently.
func (s *ALSASink) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return s.Stop()
}

var (
	_ Source = (*ALSASource)(nil)
	_ Sink   = (*ALSASink)(nil)
)
