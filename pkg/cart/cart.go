// Package cart holds the shopping cart: an ordered list of products and an
// exact decimal running total.
package cart

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/teslashibe/go-shopassist/pkg/catalog"
)

// Currency is appended to every formatted total.
const Currency = "PLN"

// Finalizer is the payment hook invoked by Finalize.
type Finalizer interface {
	Finalize(ctx context.Context, items []catalog.Product, total decimal.Decimal) error
}

// FinalizerFunc adapts a function to Finalizer.
type FinalizerFunc func(ctx context.Context, items []catalog.Product, total decimal.Decimal) error

// Finalize calls f.
func (f FinalizerFunc) Finalize(ctx context.Context, items []catalog.Product, total decimal.Decimal) error {
	return f(ctx, items, total)
}

// NoopFinalizer accepts every transaction and leaves the cart as is.
var NoopFinalizer = FinalizerFunc(func(context.Context, []catalog.Product, decimal.Decimal) error {
	return nil
})

// Cart is safe for concurrent use. Mutations come from dispatcher actions,
// reads also come from the dashboard.
type Cart struct {
	mu        sync.RWMutex
	items     []catalog.Product
	total     decimal.Decimal
	finalizer Finalizer
}

// New creates an empty cart. A nil finalizer means NoopFinalizer.
func New(f Finalizer) *Cart {
	if f == nil {
		f = NoopFinalizer
	}
	return &Cart{total: decimal.Zero, finalizer: f}
}

// Add appends every recognized product in matches and returns how many were
// added. Unrecognized matches are skipped.
func (c *Cart) Add(matches []catalog.Match) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	added := 0
	for _, m := range matches {
		p, ok := catalog.ProductOf(m)
		if !ok {
			continue
		}
		c.items = append(c.items, p)
		c.total = c.total.Add(p.Price)
		added++
	}
	return added
}

// Clear empties the cart and resets the total to zero.
func (c *Cart) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = nil
	c.total = decimal.Zero
}

// Total returns the exact sum of item prices.
func (c *Cart) Total() decimal.Decimal {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.total
}

// Items returns a copy of the cart contents in insertion order.
func (c *Cart) Items() []catalog.Product {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]catalog.Product, len(c.items))
	copy(out, c.items)
	return out
}

// Len returns the number of items.
func (c *Cart) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Names returns the item names in insertion order.
func (c *Cart) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, len(c.items))
	for i, p := range c.items {
		names[i] = p.Name
	}
	return names
}

// Finalize hands the current contents to the finalizer. The cart itself is
// not modified.
func (c *Cart) Finalize(ctx context.Context) error {
	items := c.Items()
	return c.finalizer.Finalize(ctx, items, c.Total())
}

// TotalText formats the total as "12.50 [PLN]".
func (c *Cart) TotalText() string {
	return FormatTotal(c.Total())
}

// FormatTotal formats an amount with two decimals and the currency tag.
func FormatTotal(d decimal.Decimal) string {
	return d.StringFixed(2) + " [" + Currency + "]"
}
