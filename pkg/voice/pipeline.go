package voice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-shopassist/pkg/audioio"
	"github.com/teslashibe/go-shopassist/pkg/debug"
	"github.com/teslashibe/go-shopassist/pkg/stt"
	"github.com/teslashibe/go-shopassist/pkg/tts"
)

// ErrBusy is logged when Listen is called while a recording is in progress.
var ErrBusy = errors.New("voice: already listening")

// State is the phase of the current (or last) Listen.
type State int32

const (
	Idle State = iota
	Recording
	Transcribing
	Delivered
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Recording:
		return "recording"
	case Transcribing:
		return "transcribing"
	case Delivered:
		return "delivered"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// Observer receives one call per finished utterance.
type Observer interface {
	UtteranceFinished(kind string, ok bool, took time.Duration)
}

// SourceFactory opens a microphone.
type SourceFactory func(cfg audioio.Config) (audioio.Source, error)

// SinkFactory opens a speaker.
type SinkFactory func(cfg audioio.Config) (audioio.Sink, error)

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithObserver reports utterance outcomes to o.
func WithObserver(o Observer) Option {
	return func(p *Pipeline) { p.observer = o }
}

// WithDevices overrides how microphones and speakers are opened.
func WithDevices(src SourceFactory, sink SinkFactory) Option {
	return func(p *Pipeline) {
		if src != nil {
			p.newSource = src
		}
		if sink != nil {
			p.newSink = sink
		}
	}
}

// WithMetrics shares a collector, e.g. with the dashboard.
func WithMetrics(m *MetricsCollector) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// Pipeline implements fire-and-forget speech output and command capture.
type Pipeline struct {
	cfg         Config
	synth       tts.Provider
	transcriber stt.Transcriber
	inbox       *Inbox

	newSource SourceFactory
	newSink   SinkFactory
	observer  Observer
	metrics   *MetricsCollector
	logger    *slog.Logger

	state     atomic.Int32
	listening atomic.Bool
	onState   atomic.Pointer[func(State)]

	// playMu keeps two utterances from playing over each other.
	playMu sync.Mutex
	wg     sync.WaitGroup
}

// NewPipeline builds a pipeline delivering transcripts into inbox.
func NewPipeline(synth tts.Provider, transcriber stt.Transcriber, inbox *Inbox, cfg Config, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:         cfg,
		synth:       synth,
		transcriber: transcriber,
		inbox:       inbox,
		metrics:     NewMetricsCollector(),
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With("component", "voice.pipeline")

	if p.newSource == nil {
		p.newSource = func(c audioio.Config) (audioio.Source, error) { return audioio.NewSource(c, p.logger) }
	}
	if p.newSink == nil {
		p.newSink = func(c audioio.Config) (audioio.Sink, error) { return audioio.NewSink(c, p.logger) }
	}
	return p
}

// State returns the phase of the current or last Listen.
func (p *Pipeline) State() State {
	return State(p.state.Load())
}

// OnState registers a callback fired on every Listen state change.
func (p *Pipeline) OnState(fn func(State)) {
	p.onState.Store(&fn)
}

// Metrics returns the latency collector.
func (p *Pipeline) Metrics() *MetricsCollector {
	return p.metrics
}

// Wait blocks until every in-flight Speak and Listen has finished.
func (p *Pipeline) Wait() {
	p.wg.Wait()
}

// Speak synthesizes and plays text on a background goroutine.
func (p *Pipeline) Speak(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		turn := p.metrics.Begin(KindSpeak)
		err := p.speak(text, turn)
		p.finish(turn, err, "text", text)
	}()
}

// Listen records one command on a background goroutine and pushes the
// transcript into the inbox.
func (p *Pipeline) Listen() {
	if !p.listening.CompareAndSwap(false, true) {
		p.logger.Warn("listen ignored", "error", ErrBusy)
		return
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer p.listening.Store(false)
		turn := p.metrics.Begin(KindListen)
		err := p.listen(turn)
		if err != nil {
			p.setState(Idle)
		}
		p.finish(turn, err)
	}()
}

func (p *Pipeline) speak(text string, turn *Turn) error {
	ctx, cancel := p.timeout(p.cfg.SpeakTimeout)
	defer cancel()

	audio, err := p.synth.Synthesize(ctx, text)
	if err != nil {
		return fmt.Errorf("synthesize: %w", err)
	}
	turn.MarkSynthesized()

	wav := audio.Audio
	if audio.Encoding == tts.EncodingPCM {
		var chunk audioio.AudioChunk
		chunk.FromBytes(audio.Audio, audio.SampleRate, max(audio.Channels, 1))
		wav = audioio.EncodeWAV(chunk)
	}

	path, err := p.scratch("tts-*.wav", wav)
	if err != nil {
		return err
	}
	defer os.Remove(path)

	clip, err := audioio.ReadWAVFile(path)
	if err != nil {
		return fmt.Errorf("decode speech: %w", err)
	}

	p.playMu.Lock()
	defer p.playMu.Unlock()

	// Open the speaker at the clip's native format so aplay does no resampling.
	sinkCfg := p.cfg.Audio
	sinkCfg.SampleRate = clip.SampleRate
	sinkCfg.Channels = clip.Channels
	sink, err := p.newSink(sinkCfg)
	if err != nil {
		return fmt.Errorf("open speaker: %w", err)
	}
	defer sink.Close()

	if err := audioio.Play(ctx, sink, clip); err != nil {
		return fmt.Errorf("play: %w", err)
	}
	turn.MarkPlayed()
	return nil
}

func (p *Pipeline) listen(turn *Turn) error {
	ctx, cancel := p.timeout(p.cfg.ListenTimeout)
	defer cancel()

	p.setState(Recording)

	src, err := p.newSource(p.cfg.Audio)
	if err != nil {
		return fmt.Errorf("open microphone: %w", err)
	}
	chunk, err := audioio.Record(ctx, src, p.cfg.RecordDuration)
	src.Close()
	if err != nil {
		return fmt.Errorf("record: %w", err)
	}
	turn.MarkRecorded()
	p.logger.Debug("recorded", "duration", chunk.Duration(), "level_dbfs", audioio.Level(chunk.Samples))

	path, err := p.scratch("stt-*.wav", audioio.EncodeWAV(chunk))
	if err != nil {
		return err
	}
	defer os.Remove(path)

	p.setState(Transcribing)

	result, err := p.transcriber.Transcribe(ctx, path)
	if err != nil {
		return fmt.Errorf("transcribe: %w", err)
	}
	turn.MarkTranscribed()

	text := strings.TrimSpace(result.Text)
	if text == "" {
		return stt.ErrEmptyTranscript
	}

	p.inbox.Push(NewTranscript(text, SourceVoice))
	p.setState(Delivered)
	p.logger.Info("transcript delivered", "text", text)
	return nil
}

// scratch writes data to a fresh temp file and returns its path.
func (p *Pipeline) scratch(pattern string, data []byte) (string, error) {
	f, err := os.CreateTemp(p.cfg.ScratchDir, pattern)
	if err != nil {
		return "", fmt.Errorf("scratch file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("scratch file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("scratch file: %w", err)
	}
	return f.Name(), nil
}

func (p *Pipeline) timeout(d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(context.Background())
	}
	return context.WithTimeout(context.Background(), d)
}

func (p *Pipeline) setState(s State) {
	p.state.Store(int32(s))
	if fn := p.onState.Load(); fn != nil && *fn != nil {
		(*fn)(s)
	}
}

func (p *Pipeline) finish(turn *Turn, err error, attrs ...any) {
	m := turn.Finish(err == nil)
	if p.observer != nil {
		p.observer.UtteranceFinished(m.Kind, m.OK, m.TotalLatency)
	}

	attrs = append(attrs, "kind", m.Kind)
	switch {
	case err != nil:
		p.logger.Warn("utterance failed", append(attrs, "error", err)...)
	case p.cfg.ProfileLatency:
		p.logger.Info("utterance latency", append(attrs, "breakdown", m.FormatLatency())...)
	default:
		debug.Log("⏱️  %s %s\n", m.Kind, m.FormatLatency())
	}
}
