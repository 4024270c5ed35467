// Package catalog holds the in-memory product and barcode reference data.
//
// The data lives in an immutable Snapshot that is replaced wholesale on every
// successful refresh. Readers always see either the previous or the new
// snapshot, never a mix. A failed refresh leaves the previous snapshot in place.
//
// Example usage:
//
//	src, _ := catalog.NewPostgres(dsn, logger)
//	cat := catalog.New(catalog.NewBreaker(src, logger), catalog.WithLogger(logger))
//	if err := cat.Refresh(ctx); err != nil {
//	    // previous snapshot still served
//	}
//	switch m := cat.Resolve("5901234123457").(type) {
//	case catalog.Recognized:
//	    fmt.Println(m.Product.Name)
//	case catalog.Unrecognized:
//	    fmt.Println("unknown", m.Payload)
//	}
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
)

// Sentinel errors.
var (
	// ErrUnavailable is returned when the catalog source cannot be reached.
	ErrUnavailable = errors.New("catalog: source unavailable")

	// ErrNoSource is returned by Refresh when the catalog has no source.
	ErrNoSource = errors.New("catalog: no source configured")
)

// Product is a sellable item.
type Product struct {
	ID    int64           `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

// PriceText returns the price with two decimals, e.g. "4.50".
func (p Product) PriceText() string {
	return p.Price.StringFixed(2)
}

// Snapshot is an immutable view of products and barcodes.
// Callers must not modify the maps.
type Snapshot struct {
	Products  map[int64]Product `json:"products"`
	Barcodes  map[string]int64  `json:"barcodes"`
	FetchedAt time.Time         `json:"fetched_at"`
}

// NewSnapshot builds a snapshot from a product list and a barcode index.
func NewSnapshot(products []Product, barcodes map[string]int64) *Snapshot {
	s := &Snapshot{
		Products:  make(map[int64]Product, len(products)),
		Barcodes:  make(map[string]int64, len(barcodes)),
		FetchedAt: time.Now(),
	}
	for _, p := range products {
		s.Products[p.ID] = p
	}
	for code, id := range barcodes {
		s.Barcodes[code] = id
	}
	return s
}

// Empty returns a snapshot with no products.
func Empty() *Snapshot {
	return NewSnapshot(nil, nil)
}

// Lookup finds the product for a barcode payload.
func (s *Snapshot) Lookup(payload string) (Product, bool) {
	if s == nil {
		return Product{}, false
	}
	id, ok := s.Barcodes[payload]
	if !ok {
		return Product{}, false
	}
	p, ok := s.Products[id]
	return p, ok
}

// Len returns the number of products and barcodes.
func (s *Snapshot) Len() (products, barcodes int) {
	if s == nil {
		return 0, 0
	}
	return len(s.Products), len(s.Barcodes)
}

// Match is the outcome of resolving a barcode payload against the catalog.
// It is either Recognized or Unrecognized.
type Match interface {
	isMatch()
}

// Recognized is a barcode that maps to a known product.
type Recognized struct {
	Product Product
}

// Unrecognized is a barcode with no catalog entry.
type Unrecognized struct {
	Payload string
}

func (Recognized) isMatch()   {}
func (Unrecognized) isMatch() {}

// ProductOf returns the product of a Recognized match.
func ProductOf(m Match) (Product, bool) {
	if r, ok := m.(Recognized); ok {
		return r.Product, true
	}
	return Product{}, false
}

// Source fetches a complete catalog.
type Source interface {
	Fetch(ctx context.Context) (*Snapshot, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) (*Snapshot, error)

// Fetch calls f.
func (f SourceFunc) Fetch(ctx context.Context) (*Snapshot, error) {
	return f(ctx)
}

// Observer receives refresh outcomes (metrics).
type Observer interface {
	CatalogRefreshed(ok bool, products, barcodes int, took time.Duration)
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Catalog) { c.logger = l.With("component", "catalog") }
}

// WithObserver sets the refresh observer.
func WithObserver(o Observer) Option {
	return func(c *Catalog) { c.observer = o }
}

// WithSnapshot seeds the catalog with an initial snapshot.
func WithSnapshot(s *Snapshot) Option {
	return func(c *Catalog) { c.current.Store(s) }
}

// Catalog serves the current snapshot and refreshes it from a Source.
type Catalog struct {
	source   Source
	current  atomic.Pointer[Snapshot]
	logger   *slog.Logger
	observer Observer

	// refreshMu serializes refreshes; readers never take it.
	refreshMu sync.Mutex
}

// New creates a catalog backed by source, starting from an empty snapshot.
func New(source Source, opts ...Option) *Catalog {
	c := &Catalog{
		source: source,
		logger: slog.Default().With("component", "catalog"),
	}
	c.current.Store(Empty())
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Snapshot returns the current snapshot. It is never nil.
func (c *Catalog) Snapshot() *Snapshot {
	return c.current.Load()
}

// Resolve maps a barcode payload to a Match using the current snapshot.
func (c *Catalog) Resolve(payload string) Match {
	if p, ok := c.Snapshot().Lookup(payload); ok {
		return Recognized{Product: p}
	}
	return Unrecognized{Payload: payload}
}

// Restore installs snap only if the catalog is still empty. Used to warm
// start from a cache when the primary source is down at boot.
func (c *Catalog) Restore(snap *Snapshot) bool {
	if snap == nil {
		return false
	}
	for {
		cur := c.current.Load()
		if n, _ := cur.Len(); n > 0 {
			return false
		}
		if c.current.CompareAndSwap(cur, snap) {
			products, barcodes := snap.Len()
			c.logger.Info("catalog restored from cache", "products", products, "barcodes", barcodes)
			return true
		}
	}
}

// Refresh replaces the snapshot with a freshly fetched one. On error the
// current snapshot is kept and the error is returned.
func (c *Catalog) Refresh(ctx context.Context) error {
	if c.source == nil {
		return ErrNoSource
	}

	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	start := time.Now()
	snap, err := c.source.Fetch(ctx)
	if err == nil && snap == nil {
		err = fmt.Errorf("catalog: source returned no snapshot")
	}
	if err != nil {
		c.logger.Warn("catalog refresh failed, keeping previous snapshot", "error", err)
		if c.observer != nil {
			products, barcodes := c.Snapshot().Len()
			c.observer.CatalogRefreshed(false, products, barcodes, time.Since(start))
		}
		return fmt.Errorf("refresh catalog: %w", err)
	}

	c.current.Store(snap)

	products, barcodes := snap.Len()
	c.logger.Info("catalog refreshed", "products", products, "barcodes", barcodes)
	if c.observer != nil {
		c.observer.CatalogRefreshed(true, products, barcodes, time.Since(start))
	}
	return nil
}
