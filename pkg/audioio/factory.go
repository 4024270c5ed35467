package audioio

import (
	"fmt"
	"log/slog"
	"os/exec"
	"runtime"
)

// NewSource creates an audio source for cfg.
// BackendAuto resolves to ALSA when arecord is installed.
func NewSource(cfg Config, logger *slog.Logger) (Source, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	switch backend := resolveBackend(cfg.Backend); backend {
	case BackendMock:
		return NewMockSource(cfg, logger), nil
	case BackendALSA:
		return newALSASource(cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported backend: %s", backend)
	}
}

// NewSink creates an audio sink for cfg.
func NewSink(cfg Config, logger *slog.Logger) (Sink, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	switch backend := resolveBackend(cfg.Backend); backend {
	case BackendMock:
		return NewMockSink(cfg, logger), nil
	case BackendALSA:
		return newALSASink(cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported backend: %s", backend)
	}
}

func resolveBackend(b Backend) Backend {
	if b != BackendAuto && b != "" {
		return b
	}
	return detectBestBackend()
}

// detectBestBackend picks ALSA on Linux hosts with alsa-utils installed.
func detectBestBackend() Backend {
	if runtime.GOOS != "linux" {
		return BackendMock
	}
	if _, err := exec.LookPath(RecordBinary); err != nil {
		return BackendMock
	}
	return BackendALSA
}

// AvailableBackends lists the backends usable on this host.
func AvailableBackends() []Backend {
	backends := []Backend{BackendMock}
	if detectBestBackend() == BackendALSA {
		backends = append(backends, BackendALSA)
	}
	return backends
}
