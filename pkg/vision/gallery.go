package vision

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-shopassist/pkg/scene"
)

// GalleryVersion is bumped whenever the cache layout or embedding model
// changes. Caches with another version are rebuilt.
const GalleryVersion = 1

// EmbeddingModel names the model whose vectors the gallery stores.
const EmbeddingModel = "sface-2021dec"

// ErrStaleGallery is returned by LoadGallery for caches from another
// version or model.
var ErrStaleGallery = errors.New("vision: gallery cache is stale")

// KnownFace is one reference embedding of a known person.
type KnownFace struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Source    string    `json:"source"`
	Embedding []float32 `json:"embedding"`
}

// Gallery is the set of known faces.
type Gallery struct {
	Version   int         `json:"version"`
	Model     string      `json:"model"`
	CreatedAt time.Time   `json:"created_at"`
	Faces     []KnownFace `json:"faces"`
}

// NewGallery returns an empty gallery for the current model.
func NewGallery() *Gallery {
	return &Gallery{Version: GalleryVersion, Model: EmbeddingModel, CreatedAt: time.Now().UTC()}
}

// Add appends a reference embedding for name.
func (g *Gallery) Add(name, source string, embedding []float32) {
	g.Faces = append(g.Faces, KnownFace{
		ID:        uuid.NewString(),
		Name:      name,
		Source:    source,
		Embedding: embedding,
	})
}

// Names returns the distinct known names, sorted.
func (g *Gallery) Names() []string {
	seen := make(map[string]bool)
	var names []string
	for _, f := range g.Faces {
		if !seen[f.Name] {
			seen[f.Name] = true
			names = append(names, f.Name)
		}
	}
	sort.Strings(names)
	return names
}

// Match returns the nearest known face within tolerance.
func (g *Gallery) Match(embedding []float32, tolerance float64) (name string, distance float64, ok bool) {
	if g == nil {
		return "", 0, false
	}
	best := math.Inf(1)
	for _, f := range g.Faces {
		d := CosineDistance(embedding, f.Embedding)
		if d < best {
			best = d
			name = f.Name
		}
	}
	if best > tolerance {
		return "", best, false
	}
	return name, best, true
}

// Label turns embeddings into labelled faces. Faces matching nobody get
// scene.UnknownFaceLabel.
func (g *Gallery) Label(embs []Embedding, tolerance float64) []scene.Face {
	faces := make([]scene.Face, len(embs))
	for i, e := range embs {
		name, d, ok := g.Match(e.Vector, tolerance)
		faces[i] = scene.Face{Box: e.Box, Label: scene.UnknownFaceLabel, Distance: d}
		if ok {
			faces[i].Label = name
			faces[i].Known = true
		}
	}
	return faces
}

// CosineDistance is 1 - cosine similarity. Vectors of different length or
// zero norm are infinitely far apart.
func CosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return math.Inf(1)
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return math.Inf(1)
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}

// LoadGallery reads a cache file.
func LoadGallery(path string) (*Gallery, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var g Gallery
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if g.Version != GalleryVersion || g.Model != EmbeddingModel {
		return nil, fmt.Errorf("%w: version %d model %q", ErrStaleGallery, g.Version, g.Model)
	}
	return &g, nil
}

// Save writes the gallery atomically.
func (g *Gallery) Save(path string) error {
	data, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// EncodeFunc embeds the first face of an image file. It returns nil when
// the image holds no face.
type EncodeFunc func(path string) ([]float32, error)

// BuildGallery embeds every image under dir/<name>/.
func BuildGallery(dir string, encode EncodeFunc, logger *slog.Logger) (*Gallery, error) {
	if logger == nil {
		logger = slog.Default()
	}
	people, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read known faces: %w", err)
	}

	g := NewGallery()
	for _, person := range people {
		if !person.IsDir() {
			continue
		}
		personDir := filepath.Join(dir, person.Name())
		files, err := os.ReadDir(personDir)
		if err != nil {
			logger.Warn("skipping known face directory", "dir", personDir, "error", err)
			continue
		}
		for _, file := range files {
			if file.IsDir() {
				continue
			}
			path := filepath.Join(personDir, file.Name())
			vec, err := encode(path)
			switch {
			case err != nil:
				logger.Warn("skipping known face image", "path", path, "error", err)
			case vec == nil:
				logger.Warn("no face found in image", "path", path)
			default:
				g.Add(person.Name(), filepath.Join(person.Name(), file.Name()), vec)
			}
		}
	}
	return g, nil
}

// LoadKnownFaces returns the cached gallery of dir, or builds and caches
// it when the cache is missing, stale or rebuild is set.
func LoadKnownFaces(dir string, rebuild bool, encode EncodeFunc, logger *slog.Logger) (*Gallery, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cache := filepath.Join(dir, CacheFileName)

	if !rebuild {
		g, err := LoadGallery(cache)
		if err == nil {
			logger.Info("known faces loaded from cache", "faces", len(g.Faces), "people", len(g.Names()))
			return g, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			logger.Warn("known faces cache unusable, rebuilding", "error", err)
		}
	}

	logger.Info("building known faces cache", "dir", dir)
	g, err := BuildGallery(dir, encode, logger)
	if err != nil {
		return nil, err
	}
	if err := g.Save(cache); err != nil {
		return nil, fmt.Errorf("save known faces cache: %w", err)
	}
	logger.Info("known faces cached", "faces", len(g.Faces), "people", len(g.Names()))
	return g, nil
}
