package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// SeedEntry is one product of a seed file with the barcodes that map to it.
type SeedEntry struct {
	Product
	Barcodes []string `json:"barcodes"`
}

// Upserter writes products, e.g. PostgresSource.
type Upserter interface {
	Upsert(ctx context.Context, p Product, barcodes ...string) error
}

// LoadSeed decodes a JSON array of seed entries. IDs must be positive and
// unique, names non-empty, prices non-negative, and a barcode may map to one
// product only.
func LoadSeed(r io.Reader) ([]SeedEntry, error) {
	var entries []SeedEntry
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&entries); err != nil {
		return nil, fmt.Errorf("decode seed: %w", err)
	}

	ids := make(map[int64]bool, len(entries))
	codes := make(map[string]int64)
	var errs []error
	for i, e := range entries {
		switch {
		case e.ID <= 0:
			errs = append(errs, fmt.Errorf("entry %d: id must be positive", i))
		case ids[e.ID]:
			errs = append(errs, fmt.Errorf("entry %d: duplicate id %d", i, e.ID))
		case strings.TrimSpace(e.Name) == "":
			errs = append(errs, fmt.Errorf("entry %d: empty name", i))
		case e.Price.IsNegative():
			errs = append(errs, fmt.Errorf("entry %d: negative price", i))
		}
		ids[e.ID] = true
		for _, code := range e.Barcodes {
			if owner, ok := codes[code]; ok && owner != e.ID {
				errs = append(errs, fmt.Errorf("entry %d: barcode %s already maps to %d", i, code, owner))
			}
			codes[code] = e.ID
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return entries, nil
}

// Seed writes every entry and returns how many were written before the
// first failure.
func Seed(ctx context.Context, dst Upserter, entries []SeedEntry) (int, error) {
	for i, e := range entries {
		if err := dst.Upsert(ctx, e.Product, e.Barcodes...); err != nil {
			return i, err
		}
	}
	return len(entries), nil
}
