package vision

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/teslashibe/go-shopassist/pkg/scene"
)

func TestCosineDistance(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 0},
		{"scaled", []float32{1, 0}, []float32{5, 0}, 0},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 1},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, 2},
		{"length mismatch", []float32{1}, []float32{1, 0}, math.Inf(1)},
		{"zero vector", []float32{0, 0}, []float32{1, 0}, math.Inf(1)},
		{"empty", nil, nil, math.Inf(1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CosineDistance(tt.a, tt.b)
			if math.IsInf(tt.want, 1) {
				if !math.IsInf(got, 1) {
					t.Errorf("got %v, want +Inf", got)
				}
				return
			}
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func testGallery() *Gallery {
	g := NewGallery()
	g.Add("alice", "alice/1.jpg", []float32{1, 0, 0})
	g.Add("bob", "bob/1.jpg", []float32{0, 1, 0})
	g.Add("alice", "alice/2.jpg", []float32{0.9, 0.1, 0})
	return g
}

func TestGalleryMatchNearest(t *testing.T) {
	g := testGallery()

	name, d, ok := g.Match([]float32{0.2, 1, 0}, DefaultTolerance)
	if !ok || name != "bob" {
		t.Errorf("Match = %q, %v, %v; want bob", name, d, ok)
	}

	if _, _, ok := g.Match([]float32{0, 0, 1}, DefaultTolerance); ok {
		t.Error("orthogonal embedding should not match")
	}

	var empty *Gallery
	if _, _, ok := empty.Match([]float32{1}, DefaultTolerance); ok {
		t.Error("nil gallery matched")
	}
}

func TestGalleryLabel(t *testing.T) {
	g := testGallery()
	faces := g.Label([]Embedding{
		{Vector: []float32{1, 0.05, 0}},
		{Vector: []float32{0, 0, 1}},
	}, DefaultTolerance)

	if len(faces) != 2 {
		t.Fatalf("got %d faces", len(faces))
	}
	if faces[0].Label != "alice" || !faces[0].Known {
		t.Errorf("faces[0] = %+v", faces[0])
	}
	if faces[1].Label != scene.UnknownFaceLabel || faces[1].Known {
		t.Errorf("faces[1] = %+v", faces[1])
	}
}

func TestGalleryNames(t *testing.T) {
	got := testGallery().Names()
	if len(got) != 2 || got[0] != "alice" || got[1] != "bob" {
		t.Errorf("Names = %v", got)
	}
}

func TestGallerySaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), CacheFileName)
	g := testGallery()
	if err := g.Save(path); err != nil {
		t.Fatal(err)
	}

	loaded, err := LoadGallery(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded.Faces) != 3 || loaded.Faces[0].ID == "" || loaded.Faces[0].ID == loaded.Faces[1].ID {
		t.Errorf("loaded = %+v", loaded.Faces)
	}
}

func TestLoadGalleryStale(t *testing.T) {
	path := filepath.Join(t.TempDir(), CacheFileName)
	g := testGallery()
	g.Version = GalleryVersion + 1
	if err := g.Save(path); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadGallery(path); !errors.Is(err, ErrStaleGallery) {
		t.Errorf("err = %v, want ErrStaleGallery", err)
	}
}

// knownFacesDir lays out dir/<name>/<file> with placeholder images.
func knownFacesDir(t *testing.T, files ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, f := range files {
		path := filepath.Join(dir, f)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(f), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

// fakeEncoder returns a vector per file, nil for files named noface*.
func fakeEncoder(calls *int) EncodeFunc {
	return func(path string) ([]float32, error) {
		*calls++
		switch filepath.Base(path) {
		case "noface.jpg":
			return nil, nil
		case "broken.jpg":
			return nil, errors.New("not an image")
		}
		return []float32{1, float32(len(path))}, nil
	}
}

func TestBuildGallery(t *testing.T) {
	dir := knownFacesDir(t,
		"alice/1.jpg", "alice/noface.jpg",
		"bob/1.jpg", "bob/broken.jpg",
		"stray.jpg",
	)
	var calls int
	g, err := BuildGallery(dir, fakeEncoder(&calls), nil)
	if err != nil {
		t.Fatal(err)
	}
	if calls != 4 {
		t.Errorf("encoded %d files, want 4 (top-level files are skipped)", calls)
	}
	if len(g.Faces) != 2 {
		t.Fatalf("gallery has %d faces, want 2", len(g.Faces))
	}
	if g.Faces[0].Source != filepath.Join("alice", "1.jpg") {
		t.Errorf("source = %q", g.Faces[0].Source)
	}
}

func TestLoadKnownFacesUsesCache(t *testing.T) {
	dir := knownFacesDir(t, "alice/1.jpg")
	var calls int
	enc := fakeEncoder(&calls)

	if _, err := LoadKnownFaces(dir, false, enc, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, CacheFileName)); err != nil {
		t.Fatalf("cache not written: %v", err)
	}

	g, err := LoadKnownFaces(dir, false, enc, nil)
	if err != nil {
		t.Fatal(err)
	}
	if calls != 1 || len(g.Faces) != 1 {
		t.Errorf("calls = %d faces = %d, want cached load", calls, len(g.Faces))
	}

	if _, err := LoadKnownFaces(dir, true, enc, nil); err != nil {
		t.Fatal(err)
	}
	if calls != 2 {
		t.Errorf("rebuild did not re-encode (calls = %d)", calls)
	}
}

func TestLoadKnownFacesMissingDir(t *testing.T) {
	var calls int
	if _, err := LoadKnownFaces(filepath.Join(t.TempDir(), "nope"), false, fakeEncoder(&calls), nil); err == nil {
		t.Error("expected error for missing directory")
	}
}
