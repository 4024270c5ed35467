package camera

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-shopassist/pkg/command"
)

// ErrNoFrame is returned when the camera delivers nothing.
var ErrNoFrame = errors.New("camera: no frame")

// Capture owns the VideoCapture and the preview window.
type Capture struct {
	cfg    Config
	video  *gocv.VideoCapture
	window *gocv.Window
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
}

// Open starts the camera and, unless headless, the preview window.
func Open(cfg Config, logger *slog.Logger) (*Capture, error) {
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("camera: invalid config: %v", errs)
	}
	if logger == nil {
		logger = slog.Default()
	}

	video, err := gocv.OpenVideoCapture(cfg.Device)
	if err != nil {
		return nil, fmt.Errorf("open camera %d: %w", cfg.Device, err)
	}
	video.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
	video.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))

	c := &Capture{cfg: cfg, video: video, logger: logger.With("component", "camera")}
	if !cfg.Headless() {
		c.window = gocv.NewWindow(cfg.WindowTitle)
	}
	c.logger.Info("camera opened",
		"device", cfg.Device,
		"width", int(video.Get(gocv.VideoCaptureFrameWidth)),
		"height", int(video.Get(gocv.VideoCaptureFrameHeight)),
		"headless", cfg.Headless())
	return c, nil
}

// Config returns the capture settings.
func (c *Capture) Config() Config {
	return c.cfg
}

// Next reads a frame and the key pressed since the last call
// (command.NoKey when none or headless).
func (c *Capture) Next(ctx context.Context) (*Frame, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, command.NoKey, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, command.NoKey, ErrNoFrame
	}

	mat := gocv.NewMat()
	ok := c.video.Read(&mat)

	key := command.NoKey
	if c.window != nil {
		key = c.window.WaitKey(1) & 0xFF
	}

	if !ok || mat.Empty() {
		mat.Close()
		return nil, key, ErrNoFrame
	}
	return &Frame{Mat: mat}, key, nil
}

// Show displays f in the preview window. It is a no-op when headless.
func (c *Capture) Show(f *Frame) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.window != nil && !c.closed {
		c.window.IMShow(f.Mat)
	}
}

// Close releases the camera and the window.
func (c *Capture) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if c.window != nil {
		c.window.Close()
	}
	return c.video.Close()
}
