package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/teslashibe/go-shopassist/internal/config"
	"github.com/teslashibe/go-shopassist/pkg/audioio"
	"github.com/teslashibe/go-shopassist/pkg/camera"
	"github.com/teslashibe/go-shopassist/pkg/catalog"
	"github.com/teslashibe/go-shopassist/pkg/inference"
	"github.com/teslashibe/go-shopassist/pkg/stt"
	"github.com/teslashibe/go-shopassist/pkg/tts"
	"github.com/teslashibe/go-shopassist/pkg/vision"
	"github.com/teslashibe/go-shopassist/pkg/voice"
)

// ErrNoLLM is returned when neither a local nor a remote model is usable.
var ErrNoLLM = errors.New("assistant: no language model configured")

// snapshotTTL bounds how long a cached catalog survives in Redis.
const snapshotTTL = 7 * 24 * time.Hour

// LLM is the language model stack and the process it may own.
type LLM struct {
	Provider inference.Provider
	server   *inference.LocalServer
}

func (l *LLM) Close() error {
	var err error
	if l.Provider != nil {
		err = l.Provider.Close()
	}
	if l.server != nil {
		l.server.Stop()
	}
	return err
}

// BuildLLM prefers the local server and falls back to the remote endpoint.
// With both configured the result is a chain, local first.
func BuildLLM(ctx context.Context, s *config.Settings, logger *slog.Logger) (*LLM, error) {
	out := &LLM{}
	var providers []inference.Provider

	if s.UseLocalLLM && s.LLMLocalURL != "" {
		local, err := inference.NewClient(
			inference.WithBaseURL(s.LLMLocalURL),
			inference.WithName("local"),
			inference.WithLogger(logger),
		)
		if err != nil {
			return nil, fmt.Errorf("local llm: %w", err)
		}

		if s.LLMServerBin != "" && s.LocalLLMPath != "" {
			host, port, err := hostPort(s.LLMLocalURL)
			if err != nil {
				return nil, fmt.Errorf("local llm url: %w", err)
			}
			srv, err := inference.StartLocalServer(ctx, inference.LocalServerConfig{
				Binary:    s.LLMServerBin,
				ModelPath: s.LocalLLMPath,
				GPULayers: s.NGPULayers,
				Host:      host,
				Port:      port,
				Logger:    logger,
			}, local)
			if err != nil {
				logger.Warn("local llm server unavailable", "error", err)
			} else {
				out.server = srv
			}
		}
		providers = append(providers, local)
	}

	if s.LLMRemoteURL != "" && (s.OpenAIAPIKey != "" || !s.UseLocalLLM) {
		remote, err := inference.NewClient(
			inference.WithBaseURL(s.LLMRemoteURL),
			inference.WithAPIKey(s.OpenAIAPIKey),
			inference.WithModel(s.LLMModel),
			inference.WithName("remote"),
			inference.WithLogger(logger),
		)
		if err != nil {
			return nil, fmt.Errorf("remote llm: %w", err)
		}
		providers = append(providers, remote)
	}

	switch len(providers) {
	case 0:
		out.Close()
		return nil, ErrNoLLM
	case 1:
		out.Provider = providers[0]
	default:
		chain, err := inference.NewChainWithLogger(logger, providers...)
		if err != nil {
			out.Close()
			return nil, err
		}
		out.Provider = chain
	}
	return out, nil
}

// hostPort splits the host and port out of a base URL such as
// http://localhost:8081/v1.
func hostPort(raw string) (string, int, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", 0, err
	}
	host, portText, err := net.SplitHostPort(u.Host)
	if err != nil {
		return "", 0, err
	}
	port, err := strconv.Atoi(portText)
	if err != nil {
		return "", 0, fmt.Errorf("port %q: %w", portText, err)
	}
	return host, port, nil
}

func BuildSpeech(s *config.Settings, logger *slog.Logger) (tts.Provider, stt.Transcriber, error) {
	synth, err := tts.NewSpeech(
		tts.WithBaseURL(s.TTSURL),
		tts.WithAPIKey(s.OpenAIAPIKey),
		tts.WithModel(s.TTSModelName),
		tts.WithVoice(s.TTSVoice),
		tts.WithOutputFormat(tts.EncodingWAV),
		tts.WithLogger(logger),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("tts: %w", err)
	}

	whisper, err := stt.NewWhisper(
		stt.WithBaseURL(s.STTURL),
		stt.WithAPIKey(s.OpenAIAPIKey),
		stt.WithModel(s.STTModelName),
		stt.WithLogger(logger),
	)
	if err != nil {
		synth.Close()
		return nil, nil, fmt.Errorf("stt: %w", err)
	}
	return synth, whisper, nil
}

// VoiceConfig maps settings onto the pipeline configuration. backend
// overrides AUDIO_BACKEND when non-empty.
func VoiceConfig(s *config.Settings, backend string) (voice.Config, error) {
	if backend == "" {
		backend = s.AudioBackend
	}
	b, err := audioio.ParseBackend(backend)
	if err != nil {
		return voice.Config{}, err
	}
	cfg := voice.DefaultConfig().WithAudioBackend(b).WithScratchDir(s.ScratchDir)
	cfg.Audio.Device = s.AudioDevice
	if err := cfg.Validate(); err != nil {
		return voice.Config{}, err
	}
	return cfg, nil
}

// catalogStack is the catalog with the resources backing it.
type catalogStack struct {
	catalog *catalog.Catalog
	db      *catalog.PostgresSource
	cache   *catalog.RedisCache
}

func (c *catalogStack) Close() error {
	var errs []error
	if c.db != nil {
		errs = append(errs, c.db.Close())
	}
	if c.cache != nil {
		errs = append(errs, c.cache.Close())
	}
	return errors.Join(errs...)
}

// buildCatalog wires postgres behind a circuit breaker and, when REDIS_URL is
// set, a write-through snapshot cache. Without a database the catalog stays
// empty and every refresh fails.
func buildCatalog(s *config.Settings, obs catalog.Observer, logger *slog.Logger) *catalogStack {
	out := &catalogStack{}

	var source catalog.Source = catalog.SourceFunc(func(context.Context) (*catalog.Snapshot, error) {
		return nil, errors.New("catalog database unavailable")
	})

	db, err := catalog.NewPostgres(s.DSN(), logger)
	if err != nil {
		logger.Warn("catalog database unavailable", "error", err)
	} else {
		out.db = db
		source = catalog.NewBreaker(db, logger)
	}

	if s.RedisURL != "" {
		cache, err := catalog.NewRedisCache(s.RedisURL, snapshotTTL, logger)
		if err != nil {
			logger.Warn("catalog cache unavailable", "error", err)
		} else {
			out.cache = cache
			source = catalog.NewCachingSource(source, cache, logger)
		}
	}

	out.catalog = catalog.New(source, catalog.WithLogger(logger), catalog.WithObserver(obs))
	return out
}

// load refreshes the catalog and falls back to the cached snapshot.
func (c *catalogStack) load(ctx context.Context, logger *slog.Logger) error {
	err := c.catalog.Refresh(ctx)
	if err == nil || c.cache == nil {
		return err
	}
	warmed, werr := catalog.Warm(ctx, c.catalog, c.cache)
	if werr != nil {
		return errors.Join(err, werr)
	}
	if warmed {
		products, barcodes := c.catalog.Snapshot().Len()
		logger.Warn("catalog restored from cache", "products", products, "barcodes", barcodes, "error", err)
		return nil
	}
	return err
}

func faceConfig(s *config.Settings) vision.FaceConfig {
	cfg := vision.DefaultFaceConfig()
	cfg.DetectorModel = s.FaceModel
	cfg.RecognizerModel = s.FaceRecognitionModel
	cfg.KnownFacesDir = s.KnownFacesDir
	cfg.Tolerance = s.FaceTolerance
	cfg.InputWidth = s.CameraWidth
	cfg.InputHeight = s.CameraHeight
	return cfg
}

func cameraConfig(s *config.Settings, headless bool) camera.Config {
	cfg := camera.DefaultConfig()
	cfg.Device = s.CameraDevice
	cfg.Width = s.CameraWidth
	cfg.Height = s.CameraHeight
	if headless {
		cfg.WindowTitle = ""
	}
	return cfg
}
