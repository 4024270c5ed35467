package render

import (
	"errors"
	"image"
	"image/color"
	"log/slog"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-shopassist/pkg/camera"
	"github.com/teslashibe/go-shopassist/pkg/scene"
)

// ErrEmptyFrame is returned when asked to draw on an empty frame.
var ErrEmptyFrame = errors.New("render: empty frame")

// Display shows a finished frame, e.g. the preview window.
type Display interface {
	Show(f *camera.Frame)
}

// Style holds line and font settings.
type Style struct {
	FrameThickness int
	FontThickness  int
	FontScale      float64
}

// DefaultStyle returns the standard overlay style.
func DefaultStyle() Style {
	return Style{FrameThickness: 2, FontThickness: 2, FontScale: 0.6}
}

// Option configures an Overlay.
type Option func(*Overlay)

// WithDisplay shows every rendered frame on d.
func WithDisplay(d Display) Option {
	return func(o *Overlay) { o.display = d }
}

// WithStream hands every rendered frame to fn as a JPEG.
func WithStream(fn func(jpeg []byte), quality int) Option {
	return func(o *Overlay) {
		o.stream = fn
		o.quality = quality
	}
}

// WithStreamGate skips JPEG encoding while gate reports false, e.g. when no
// viewer is connected.
func WithStreamGate(gate func() bool) Option {
	return func(o *Overlay) { o.gate = gate }
}

// WithStyle overrides the default style.
func WithStyle(s Style) Option {
	return func(o *Overlay) { o.style = s }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Overlay) { o.logger = l }
}

// Overlay draws a scene.View over camera frames.
type Overlay struct {
	style   Style
	display Display
	stream  func([]byte)
	gate    func() bool
	quality int
	logger  *slog.Logger
}

// New creates an overlay renderer.
func New(opts ...Option) *Overlay {
	o := &Overlay{style: DefaultStyle(), quality: 75, logger: slog.Default()}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = o.logger.With("component", "render")
	return o
}

// Render draws v onto f in place, then displays and streams it.
func (o *Overlay) Render(f *camera.Frame, v scene.View) error {
	if f.Mat.Empty() {
		return ErrEmptyFrame
	}
	img := &f.Mat
	bounds := f.Bounds()

	for _, face := range v.Detections.Faces {
		gocv.Rectangle(img, face.Box, NameToColor(face.Label), o.style.FrameThickness)
		o.label(img, face.Label, LabelOrigin(face.Box))
	}
	for _, hit := range v.Detections.Products {
		o.barcode(img, hit)
	}

	blend(img, TotalBox(bounds), GUIColor)
	if v.ShowShoppingList {
		blend(img, ListPanel(bounds), GUIColor)
		for i, pt := range ListOrigins(bounds, len(v.ShoppingList)) {
			o.text(img, v.ShoppingList[i], pt, TextColor, o.style.FontThickness)
		}
	}
	o.text(img, TotalLabel(v.Total), TotalOrigin(bounds), TextColor, o.style.FontThickness)

	if o.display != nil {
		o.display.Show(f)
	}
	if o.stream != nil && (o.gate == nil || o.gate()) {
		if jpeg, err := f.JPEG(o.quality); err != nil {
			o.logger.Debug("frame stream encode failed", "error", err)
		} else {
			o.stream(jpeg)
		}
	}
	return nil
}

func (o *Overlay) barcode(img *gocv.Mat, hit scene.ProductHit) {
	b := hit.Barcode
	gocv.Rectangle(img, b.Box, BarcodeBoxColor, o.style.FrameThickness)
	if len(b.Polygon) >= 2 {
		pts := gocv.NewPointsVectorFromPoints([][]image.Point{b.Polygon})
		gocv.Polylines(img, pts, true, BarcodeEdgeColor, o.style.FrameThickness)
		pts.Close()
	}
	o.label(img, hit.Label(), LabelOrigin(b.Box))
}

// label draws an outlined caption: a thick dark pass under a light one.
func (o *Overlay) label(img *gocv.Mat, s string, at image.Point) {
	o.text(img, s, at, TextColor, o.style.FontThickness+3)
	o.text(img, s, at, LabelFill, o.style.FontThickness)
}

func (o *Overlay) text(img *gocv.Mat, s string, at image.Point, c color.RGBA, thickness int) {
	gocv.PutText(img, s, at, gocv.FontHersheySimplex, o.style.FontScale, c, thickness)
}

// blend mixes c into r at PanelAlpha.
func blend(img *gocv.Mat, r image.Rectangle, c color.RGBA) {
	r = r.Intersect(image.Rect(0, 0, img.Cols(), img.Rows()))
	if r.Empty() {
		return
	}
	roi := img.Region(r)
	defer roi.Close()

	fill := gocv.NewMatWithSizeFromScalar(
		gocv.NewScalar(float64(c.B), float64(c.G), float64(c.R), 0),
		r.Dy(), r.Dx(), img.Type())
	defer fill.Close()

	gocv.AddWeighted(roi, PanelAlpha, fill, 1-PanelAlpha, 0, &roi)
}
