package inference

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"
)

// LocalServerConfig describes a llama.cpp-compatible server process.
type LocalServerConfig struct {
	// Binary is the server executable (e.g. llama-server).
	Binary string

	// ModelPath is the GGUF model passed with -m.
	ModelPath string

	// GPULayers is passed with -ngl.
	GPULayers int

	// Host and Port the server listens on.
	Host string
	Port int

	// ContextSize is passed with -c when non-zero.
	ContextSize int

	// ReadyTimeout bounds the wait for the first successful health check.
	ReadyTimeout time.Duration

	Logger *slog.Logger
}

// BaseURL returns the OpenAI-compatible base URL of the server.
func (c LocalServerConfig) BaseURL() string {
	return fmt.Sprintf("http://%s:%d/v1", c.Host, c.Port)
}

// Args returns the command line arguments.
func (c LocalServerConfig) Args() []string {
	args := []string{
		"-m", c.ModelPath,
		"-ngl", strconv.Itoa(c.GPULayers),
		"--host", c.Host,
		"--port", strconv.Itoa(c.Port),
	}
	if c.ContextSize > 0 {
		args = append(args, "-c", strconv.Itoa(c.ContextSize))
	}
	return args
}

// LocalServer supervises a local completion server process.
type LocalServer struct {
	cfg    LocalServerConfig
	cmd    *exec.Cmd
	logger *slog.Logger

	mu      sync.Mutex
	done    chan struct{}
	exitErr error
}

// StartLocalServer launches the server and waits until probe reports it healthy.
func StartLocalServer(ctx context.Context, cfg LocalServerConfig, probe Provider) (*LocalServer, error) {
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadyTimeout == 0 {
		cfg.ReadyTimeout = 2 * time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, fmt.Errorf("local model: %w", err)
	}

	s := &LocalServer{
		cfg:    cfg,
		logger: cfg.Logger.With("component", "inference.local"),
		done:   make(chan struct{}),
	}

	s.cmd = exec.Command(cfg.Binary, cfg.Args()...)
	stderr, err := s.cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}
	if err := s.cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", cfg.Binary, err)
	}

	s.logger.Info("local llm server started",
		"pid", s.cmd.Process.Pid,
		"model", cfg.ModelPath,
		"gpu_layers", cfg.GPULayers,
		"url", cfg.BaseURL(),
	)

	go s.logOutput(stderr)
	go s.wait()

	if err := s.waitReady(ctx, probe); err != nil {
		s.Stop()
		return nil, err
	}
	return s, nil
}

func (s *LocalServer) waitReady(ctx context.Context, probe Provider) error {
	deadline := time.NewTimer(s.cfg.ReadyTimeout)
	defer deadline.Stop()
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return ErrServerNotReady
		case <-s.done:
			return fmt.Errorf("%w: process exited: %v", ErrServerNotReady, s.exitErr)
		case <-ticker.C:
			hctx, cancel := context.WithTimeout(ctx, time.Second)
			err := probe.Health(hctx)
			cancel()
			if err == nil {
				s.logger.Info("local llm server ready")
				return nil
			}
		}
	}
}

func (s *LocalServer) logOutput(r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		s.logger.Debug("llm server", "line", scanner.Text())
	}
}

func (s *LocalServer) wait() {
	err := s.cmd.Wait()
	s.mu.Lock()
	s.exitErr = err
	s.mu.Unlock()
	close(s.done)
	if err != nil {
		s.logger.Warn("local llm server exited", "error", err)
	}
}

// Stop interrupts the server and kills it if it does not exit in time.
func (s *LocalServer) Stop() {
	if s.cmd == nil || s.cmd.Process == nil {
		return
	}
	select {
	case <-s.done:
		return
	default:
	}

	_ = s.cmd.Process.Signal(os.Interrupt)
	select {
	case <-s.done:
	case <-time.After(5 * time.Second):
		_ = s.cmd.Process.Kill()
		<-s.done
	}
	s.logger.Info("local llm server stopped")
}
