package vision

import (
	"context"
	"log/slog"
	"sync/atomic"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-shopassist/pkg/scene"
)

// Faces labels faces in frames against the known faces gallery.
type Faces struct {
	cfg      FaceConfig
	embedder *SFace
	gallery  atomic.Pointer[Gallery]
	logger   *slog.Logger
}

// NewFaces loads the models. The gallery starts empty until Load.
func NewFaces(cfg FaceConfig, logger *slog.Logger) (*Faces, error) {
	if logger == nil {
		logger = slog.Default()
	}
	embedder, err := NewSFace(cfg)
	if err != nil {
		return nil, err
	}
	f := &Faces{cfg: cfg, embedder: embedder, logger: logger.With("component", "vision.faces")}
	f.gallery.Store(NewGallery())
	return f, nil
}

// Load reads the gallery cache, building it when needed or when rebuild
// is set.
func (f *Faces) Load(rebuild bool) error {
	g, err := LoadKnownFaces(f.cfg.KnownFacesDir, rebuild, f.embedder.EmbedFile, f.logger)
	if err != nil {
		return err
	}
	f.gallery.Store(g)
	return nil
}

// Refresh reloads the gallery from cache.
func (f *Faces) Refresh(ctx context.Context) error {
	return f.Load(false)
}

// Known returns the names in the gallery.
func (f *Faces) Known() []string {
	return f.gallery.Load().Names()
}

// Recognize finds and labels every face in img.
func (f *Faces) Recognize(img gocv.Mat) ([]scene.Face, error) {
	embs, err := f.embedder.Embed(img)
	if err != nil {
		return nil, err
	}
	return f.gallery.Load().Label(embs, f.cfg.Tolerance), nil
}

// Close releases the models.
func (f *Faces) Close() error {
	return f.embedder.Close()
}
