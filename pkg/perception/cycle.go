// Package perception runs the per-frame loop: capture, detect, render,
// publish, then dispatch at most one keyboard command and one voice
// command.
//
// The loop is a single goroutine. Everything it calls is synchronous
// except speech, which the voice pipeline performs in the background.
package perception

import (
	"context"
	"errors"
	"image"
	"log/slog"
	"time"

	"github.com/teslashibe/go-shopassist/pkg/cart"
	"github.com/teslashibe/go-shopassist/pkg/catalog"
	"github.com/teslashibe/go-shopassist/pkg/command"
	"github.com/teslashibe/go-shopassist/pkg/debug"
	"github.com/teslashibe/go-shopassist/pkg/scene"
	"github.com/teslashibe/go-shopassist/pkg/voice"
)

// Utterances spoken around the loop.
const (
	StartupUtterance  = "Turning on..."
	ShutdownUtterance = "Turning off..."
)

// ErrIncomplete is returned by New when a required collaborator is missing.
var ErrIncomplete = errors.New("perception: missing collaborator")

// Frame is one captured image. Frames may own native memory.
type Frame interface {
	Bounds() image.Rectangle
	Close() error
}

// Capture yields the next frame and a key code (command.NoKey when none).
type Capture[F Frame] interface {
	Next(ctx context.Context) (F, int, error)
}

// Detector finds faces and barcodes in a frame.
type Detector[F Frame] interface {
	Detect(ctx context.Context, frame F) ([]scene.Face, []scene.Barcode, error)
}

// Renderer draws the overlay. It must not mutate shop state.
type Renderer[F Frame] interface {
	Render(frame F, view scene.View) error
}

// Resolver matches barcode payloads against the catalog.
type Resolver interface {
	Resolve(payload string) catalog.Match
}

// SceneSink receives the detections of every processed frame.
type SceneSink interface {
	Publish(d scene.Detections)
}

// Dispatcher runs commands.
type Dispatcher interface {
	DispatchFromKey(ctx context.Context, key int) bool
	DispatchFrom(ctx context.Context, cmd command.Command, source string) bool
	Vocabulary() []command.Command
}

// IntentResolver maps a transcript to a command.
type IntentResolver interface {
	Resolve(ctx context.Context, transcript string, vocabulary []command.Command) command.Command
}

// Transcripts is the voice inbox.
type Transcripts interface {
	TryPop() (voice.Transcript, bool)
	Len() int
}

// Speaker says things without blocking.
type Speaker interface {
	Speak(text string)
}

// Panels reports overlay visibility.
type Panels interface {
	ShoppingListVisible() bool
}

// Observer receives per-frame statistics.
type Observer interface {
	FrameProcessed(faces, products int, took time.Duration)
	FrameSkipped()
	InboxDepth(n int)
}

// Config wires a Cycle. Renderer, Scene, Panels, Observer and Logger are
// optional.
type Config[F Frame] struct {
	Capture    Capture[F]
	Detector   Detector[F]
	Renderer   Renderer[F]
	Catalog    Resolver
	Scene      SceneSink
	Dispatcher Dispatcher
	Intents    IntentResolver
	Inbox      Transcripts
	Voice      Speaker
	Cart       *cart.Cart
	Panels     Panels
	Observer   Observer
	Logger     *slog.Logger

	// SkipDelay is slept after a failed capture so a missing camera does
	// not spin the loop. Default 100ms.
	SkipDelay time.Duration
}

// Cycle is the perception loop.
type Cycle[F Frame] struct {
	cfg    Config[F]
	logger *slog.Logger
	frames uint64
}

// New validates cfg and builds a Cycle.
func New[F Frame](cfg Config[F]) (*Cycle[F], error) {
	switch {
	case cfg.Capture == nil:
		return nil, errors.Join(ErrIncomplete, errors.New("capture"))
	case cfg.Detector == nil:
		return nil, errors.Join(ErrIncomplete, errors.New("detector"))
	case cfg.Catalog == nil:
		return nil, errors.Join(ErrIncomplete, errors.New("catalog"))
	case cfg.Dispatcher == nil:
		return nil, errors.Join(ErrIncomplete, errors.New("dispatcher"))
	case cfg.Intents == nil:
		return nil, errors.Join(ErrIncomplete, errors.New("intent resolver"))
	case cfg.Inbox == nil:
		return nil, errors.Join(ErrIncomplete, errors.New("inbox"))
	case cfg.Voice == nil:
		return nil, errors.Join(ErrIncomplete, errors.New("voice"))
	case cfg.Cart == nil:
		return nil, errors.Join(ErrIncomplete, errors.New("cart"))
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.SkipDelay <= 0 {
		cfg.SkipDelay = 100 * time.Millisecond
	}

	return &Cycle[F]{
		cfg:    cfg,
		logger: logger.With("component", "perception.cycle"),
	}, nil
}

// Run announces startup and steps until a command terminates the loop or
// ctx is cancelled. Termination by command returns nil.
func (c *Cycle[F]) Run(ctx context.Context) error {
	c.cfg.Voice.Speak(StartupUtterance)
	c.logger.Info("perception loop started")

	for {
		if err := ctx.Err(); err != nil {
			c.logger.Info("perception loop cancelled", "frames", c.frames)
			return err
		}
		if c.Step(ctx) {
			c.logger.Info("perception loop terminated", "frames", c.frames)
			return nil
		}
	}
}

// Step runs one iteration and reports whether the loop must stop.
func (c *Cycle[F]) Step(ctx context.Context) bool {
	start := time.Now()

	// A failed capture still carries the polled key: keyboard and voice
	// keep working without a camera.
	frame, key, err := c.cfg.Capture.Next(ctx)
	if err != nil {
		c.skip(ctx, err)
	} else {
		det := c.perceive(ctx, frame)
		if closeErr := frame.Close(); closeErr != nil {
			c.logger.Debug("frame close failed", "error", closeErr)
		}
		c.frames++

		if c.cfg.Observer != nil {
			c.cfg.Observer.FrameProcessed(len(det.Faces), len(det.Products), time.Since(start))
		}
	}

	if c.dispatchKey(ctx, key) {
		return true
	}
	return c.drainInbox(ctx)
}

// dispatchKey runs the command bound to key. The dispatcher's observer
// counts it.
func (c *Cycle[F]) dispatchKey(ctx context.Context, key int) bool {
	if key == command.NoKey {
		return false
	}
	if c.cfg.Dispatcher.DispatchFromKey(ctx, key) {
		c.shutdown()
		return true
	}
	return false
}

// perceive detects, resolves, renders and publishes one frame.
func (c *Cycle[F]) perceive(ctx context.Context, frame F) scene.Detections {
	faces, barcodes, err := c.cfg.Detector.Detect(ctx, frame)
	if err != nil {
		c.logger.Warn("detection failed", "error", err)
		faces, barcodes = nil, nil
	}

	det := scene.Detections{
		Faces:    faces,
		Products: scene.Resolve(barcodes, c.cfg.Catalog),
		At:       time.Now(),
	}

	if c.cfg.Renderer != nil {
		if err := c.cfg.Renderer.Render(frame, c.view(det)); err != nil {
			c.logger.Warn("render failed", "error", err)
		}
	}
	if c.cfg.Scene != nil {
		c.cfg.Scene.Publish(det)
	}

	if len(det.Faces) > 0 || len(det.Products) > 0 {
		debug.VisionLog("👁️  frame %d: %d faces, %d products\n", c.frames, len(det.Faces), len(det.Products))
	}
	return det
}

func (c *Cycle[F]) view(det scene.Detections) scene.View {
	v := scene.View{
		Detections: det,
		Total:      c.cfg.Cart.TotalText(),
	}
	if c.cfg.Panels != nil && c.cfg.Panels.ShoppingListVisible() {
		v.ShowShoppingList = true
		v.ShoppingList = c.cfg.Cart.Names()
	}
	return v
}

// drainInbox dispatches at most one queued transcript.
func (c *Cycle[F]) drainInbox(ctx context.Context) bool {
	t, ok := c.cfg.Inbox.TryPop()
	if c.cfg.Observer != nil {
		c.cfg.Observer.InboxDepth(c.cfg.Inbox.Len())
	}
	if !ok {
		return false
	}

	cmd := c.cfg.Intents.Resolve(ctx, t.Text, c.cfg.Dispatcher.Vocabulary())
	c.logger.Info("voice command", "transcript", t.Text, "command", cmd, "source", t.Source, "id", t.ID)

	source := t.Source
	if source == "" {
		source = command.SourceVoice
	}
	if c.cfg.Dispatcher.DispatchFrom(ctx, cmd, source) {
		c.shutdown()
		return true
	}
	return false
}

func (c *Cycle[F]) skip(ctx context.Context, err error) {
	if c.cfg.Observer != nil {
		c.cfg.Observer.FrameSkipped()
	}
	if ctx.Err() == nil {
		c.logger.Warn("frame unavailable", "error", err)
	}

	t := time.NewTimer(c.cfg.SkipDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func (c *Cycle[F]) shutdown() {
	c.cfg.Voice.Speak(ShutdownUtterance)
}

// Frames returns the number of frames processed.
func (c *Cycle[F]) Frames() uint64 {
	return c.frames
}
