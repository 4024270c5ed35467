// Package scene defines the per-frame detection results shared by the
// perception loop, the renderer, the dispatcher actions and the dashboard.
package scene

import (
	"image"
	"sync"
	"time"

	"github.com/teslashibe/go-shopassist/pkg/catalog"
)

// UnknownFaceLabel labels faces not found in the gallery.
const UnknownFaceLabel = "Customer"

// Face is a located face with its gallery label.
type Face struct {
	Box      image.Rectangle `json:"box"`
	Label    string          `json:"label"`
	Known    bool            `json:"known"`
	Distance float64         `json:"distance"`
}

// Barcode is a decoded barcode and its location in the frame.
type Barcode struct {
	Payload string          `json:"payload"`
	Format  string          `json:"format"`
	Box     image.Rectangle `json:"box"`
	Polygon []image.Point   `json:"polygon,omitempty"`
}

// ProductHit pairs a decoded barcode with its catalog match.
type ProductHit struct {
	Barcode Barcode       `json:"barcode"`
	Match   catalog.Match `json:"-"`
}

// Label returns "<name>, <price>" for recognized products and the raw
// payload otherwise.
func (h ProductHit) Label() string {
	if p, ok := catalog.ProductOf(h.Match); ok {
		return p.Name + ", " + p.PriceText()
	}
	return h.Barcode.Payload
}

// Recognized reports whether the barcode matched a catalog product.
func (h ProductHit) Recognized() bool {
	_, ok := catalog.ProductOf(h.Match)
	return ok
}

// Detections is everything found in one frame.
type Detections struct {
	Faces    []Face       `json:"faces"`
	Products []ProductHit `json:"products"`
	At       time.Time    `json:"at"`
}

// Matches returns the catalog matches of every product hit, in frame order.
func (d Detections) Matches() []catalog.Match {
	out := make([]catalog.Match, 0, len(d.Products))
	for _, h := range d.Products {
		if h.Match == nil {
			out = append(out, catalog.Unrecognized{Payload: h.Barcode.Payload})
			continue
		}
		out = append(out, h.Match)
	}
	return out
}

// Resolve attaches catalog matches to raw barcodes.
func Resolve(barcodes []Barcode, c interface{ Resolve(string) catalog.Match }) []ProductHit {
	hits := make([]ProductHit, len(barcodes))
	for i, b := range barcodes {
		hits[i] = ProductHit{Barcode: b, Match: c.Resolve(b.Payload)}
	}
	return hits
}

// Store holds the most recently published detections.
type Store struct {
	mu     sync.RWMutex
	latest Detections
}

// Publish replaces the latest detections.
func (s *Store) Publish(d Detections) {
	s.mu.Lock()
	s.latest = d
	s.mu.Unlock()
}

// Latest returns the latest detections.
func (s *Store) Latest() Detections {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest
}
