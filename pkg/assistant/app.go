// Package assistant assembles the shop assistant from its settings: camera,
// vision, catalog, cart, voice, language model, dashboard and the
// perception loop that ties them together.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/teslashibe/go-shopassist/internal/config"
	ilog "github.com/teslashibe/go-shopassist/internal/log"
	"github.com/teslashibe/go-shopassist/pkg/camera"
	"github.com/teslashibe/go-shopassist/pkg/cart"
	"github.com/teslashibe/go-shopassist/pkg/command"
	"github.com/teslashibe/go-shopassist/pkg/debug"
	"github.com/teslashibe/go-shopassist/pkg/intent"
	"github.com/teslashibe/go-shopassist/pkg/metrics"
	"github.com/teslashibe/go-shopassist/pkg/perception"
	"github.com/teslashibe/go-shopassist/pkg/render"
	"github.com/teslashibe/go-shopassist/pkg/scene"
	"github.com/teslashibe/go-shopassist/pkg/vision"
	"github.com/teslashibe/go-shopassist/pkg/voice"
	"github.com/teslashibe/go-shopassist/pkg/web"
)

// Options are the command line overrides on top of the settings.
type Options struct {
	Debug        bool
	RebuildFaces bool
	Headless     bool
	AudioBackend string // overrides AUDIO_BACKEND when set
	StaticDir    string // dashboard assets, optional
}

// App owns every component and their lifecycle.
type App struct {
	settings *config.Settings
	opts     Options
	base     *slog.Logger
	logger   *slog.Logger

	inbox   *voice.Inbox
	cart    *cart.Cart
	scene   *scene.Store
	panels  *scene.Panels
	metrics *metrics.Recorder
	web     *web.Server
	tel     *Telemetry

	llm      *LLM
	pipeline *voice.Pipeline
	catalog  *catalogStack
	faces    *vision.Faces
	capture  *camera.Capture

	dispatcher *command.Dispatcher
	cycle      *perception.Cycle[*camera.Frame]
}

// New validates the settings and creates the always-present state. Call
// Init before Run.
func New(s *config.Settings, opts Options) (*App, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	debug.Enabled = opts.Debug

	a := &App{
		settings: s,
		opts:     opts,
		base:     ilog.L(),
		inbox:    voice.NewInbox(),
		cart:     cart.New(nil),
		scene:    &scene.Store{},
		panels:   &scene.Panels{},
		metrics:  metrics.New(),
	}

	// The dashboard logs through the base logger so its own lines are not
	// mirrored back into it.
	a.web = web.NewServer(web.Config{
		Port:      s.WebPort,
		StaticDir: opts.StaticDir,
		Cart:      a.cart,
		Inbox:     a.inbox,
		Metrics:   a.metrics.Handler(),
		Logger:    a.base,
	})
	a.logger = slog.New(web.NewLogHandler(a.base.Handler(), a.web, ilog.ParseLevel(s.LogLevel)))
	a.tel = NewTelemetry(a.metrics, a.web, a.cart, a.scene, a.panels)
	return a, nil
}

// Logger returns the logger that also feeds the dashboard.
func (a *App) Logger() *slog.Logger {
	return a.logger
}

// Init connects to every collaborator and loads reference data. Optional
// parts (face recognition, database, cache) degrade with a warning.
func (a *App) Init(ctx context.Context) error {
	fmt.Println("🛒 Robotic Shop Assistant")
	fmt.Println("========================")
	if debug.Enabled {
		fmt.Println("🐛 Debug mode enabled")
	}
	s := a.settings

	fmt.Print("🧠 Connecting to language model... ")
	l, err := BuildLLM(ctx, s, a.logger)
	if err != nil {
		return fmt.Errorf("llm: %w", err)
	}
	a.llm = l
	fmt.Println("✅")

	fmt.Print("🎙️  Preparing voice... ")
	synth, transcriber, err := BuildSpeech(s, a.logger)
	if err != nil {
		return err
	}
	vcfg, err := VoiceConfig(s, a.opts.AudioBackend)
	if err != nil {
		return fmt.Errorf("voice: %w", err)
	}
	a.pipeline = voice.NewPipeline(synth, transcriber, a.inbox, vcfg,
		voice.WithLogger(a.logger),
		voice.WithObserver(a.tel),
	)
	a.pipeline.OnState(a.tel.VoiceState)
	fmt.Printf("✅ (%s)\n", vcfg.Audio.Backend)

	fmt.Print("📦 Loading product catalog... ")
	a.catalog = buildCatalog(s, a.tel, a.logger)
	if err := a.catalog.load(ctx, a.logger); err != nil {
		fmt.Printf("⚠️  %v\n", err)
	} else {
		products, barcodes := a.catalog.catalog.Snapshot().Len()
		fmt.Printf("✅ %d products, %d barcodes\n", products, barcodes)
	}

	fmt.Print("🙂 Loading known faces... ")
	if err := a.initFaces(); err != nil {
		fmt.Printf("⚠️  %v\n", err)
	} else {
		fmt.Printf("✅ %s\n", strings.Join(a.faces.Known(), ", "))
	}

	fmt.Print("📹 Opening camera... ")
	capture, err := camera.Open(cameraConfig(s, a.opts.Headless), a.logger)
	if err != nil {
		return fmt.Errorf("camera: %w", err)
	}
	a.capture = capture
	fmt.Println("✅")

	return a.initLoop()
}

func (a *App) initFaces() error {
	faces, err := vision.NewFaces(faceConfig(a.settings), a.logger)
	if err != nil {
		return err
	}
	if err := faces.Load(a.opts.RebuildFaces); err != nil {
		faces.Close()
		return err
	}
	a.faces = faces
	return nil
}

// initLoop wires the dispatcher and the perception cycle.
func (a *App) initLoop() error {
	env := &command.Env{
		Voice:   a.pipeline,
		Cart:    a.cart,
		Catalog: command.RefresherFunc(a.refresh),
		Display: a.panels,
		Scene:   a.scene,
		Logger:  a.logger,
	}
	a.dispatcher = command.NewDispatcher(env, command.DefaultKeyBinding())
	a.dispatcher.SetObserver(a.tel)
	RegisterCommands(a.dispatcher)

	var faces vision.FaceSource
	if a.faces != nil {
		faces = a.faces
	}
	detector := vision.NewDetector(faces, vision.NewBarcodes(), a.logger)

	overlay := render.New(
		render.WithDisplay(a.capture),
		render.WithStream(a.web.SendCameraFrame, a.capture.Config().JPEGQuality),
		render.WithStreamGate(a.web.WantsFrames),
		render.WithLogger(a.logger),
	)

	cycle, err := perception.New(perception.Config[*camera.Frame]{
		Capture:    a.capture,
		Detector:   detector,
		Renderer:   overlay,
		Catalog:    a.catalog.catalog,
		Scene:      a.scene,
		Dispatcher: a.dispatcher,
		Intents:    intent.NewResolver(a.llm.Provider, intent.WithLogger(a.logger), intent.WithObserver(a.tel)),
		Inbox:      trackedInbox{Inbox: a.inbox, onPop: a.tel.TranscriptTaken},
		Voice:      a.pipeline,
		Cart:       a.cart,
		Panels:     a.panels,
		Observer:   a.tel,
		Logger:     a.logger,
	})
	if err != nil {
		return err
	}
	a.cycle = cycle

	vocabulary := a.dispatcher.Vocabulary()
	words := make([]string, len(vocabulary))
	for i, c := range vocabulary {
		words[i] = string(c)
	}
	a.web.UpdateState(func(st *web.State) {
		st.Vocabulary = words
		st.VoiceState = a.pipeline.State().String()
	})
	return nil
}

// refresh reloads the catalog and the known faces gallery.
func (a *App) refresh(ctx context.Context) error {
	err := a.catalog.catalog.Refresh(ctx)
	if a.faces != nil {
		if ferr := a.faces.Refresh(ctx); ferr != nil {
			err = errors.Join(err, fmt.Errorf("known faces: %w", ferr))
		}
	}
	return err
}

// Run serves the dashboard and runs the perception loop until a quit
// command or ctx is done.
func (a *App) Run(ctx context.Context) error {
	if a.cycle == nil {
		return errors.New("assistant: Run before Init")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	a.web.StartAsync(ctx)

	fmt.Printf("\n🌐 Dashboard: http://localhost:%s\n", a.settings.WebPort)
	fmt.Println("⌨️  q quit · r refresh · a add · c clear · s list · b pay · v voice")

	err := a.cycle.Run(ctx)
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	// Let the goodbye finish before tearing anything down.
	a.pipeline.Wait()
	return err
}

// Shutdown releases every component. It is safe after a failed Init.
func (a *App) Shutdown() {
	fmt.Println("\n👋 Goodbye!")

	if a.pipeline != nil {
		a.pipeline.Wait()
	}
	if a.capture != nil {
		a.capture.Close()
	}
	if a.faces != nil {
		a.faces.Close()
	}
	if a.catalog != nil {
		if err := a.catalog.Close(); err != nil {
			a.logger.Debug("catalog close", "error", err)
		}
	}
	if a.llm != nil {
		a.llm.Close()
	}
	if err := a.web.Shutdown(); err != nil {
		a.base.Debug("dashboard shutdown", "error", err)
	}
}
