package cart

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/teslashibe/go-shopassist/pkg/catalog"
)

func product(id int64, name, price string) catalog.Product {
	return catalog.Product{ID: id, Name: name, Price: decimal.RequireFromString(price)}
}

func sum(items []catalog.Product) decimal.Decimal {
	total := decimal.Zero
	for _, p := range items {
		total = total.Add(p.Price)
	}
	return total
}

func TestAddSkipsUnrecognized(t *testing.T) {
	c := New(nil)
	added := c.Add([]catalog.Match{
		catalog.Recognized{Product: product(1, "Milk", "4.50")},
		catalog.Unrecognized{Payload: "5900000000999"},
	})

	if added != 1 {
		t.Errorf("Add() = %d, want 1", added)
	}
	if c.Len() != 1 || c.Items()[0].Name != "Milk" {
		t.Errorf("Items() = %+v", c.Items())
	}
	if !c.Total().Equal(decimal.RequireFromString("4.50")) {
		t.Errorf("Total() = %s, want 4.50", c.Total())
	}
}

func TestClearResetsToZero(t *testing.T) {
	c := New(nil)
	c.Add([]catalog.Match{
		catalog.Recognized{Product: product(1, "Milk", "4.50")},
		catalog.Recognized{Product: product(2, "Bread", "3.20")},
	})
	c.Clear()

	if !c.Total().IsZero() {
		t.Errorf("Total() after Clear = %s, want 0", c.Total())
	}
	if c.Len() != 0 {
		t.Errorf("Len() after Clear = %d", c.Len())
	}
	if got := c.TotalText(); got != "0.00 [PLN]" {
		t.Errorf("TotalText() = %q", got)
	}
}

func TestTotalHasNoDrift(t *testing.T) {
	prices := []string{"0.10", "0.20", "0.30", "1.99", "4.50", "0.01"}
	rng := rand.New(rand.NewSource(42))
	c := New(nil)

	for i := 0; i < 2000; i++ {
		if rng.Intn(10) == 0 {
			c.Clear()
		} else {
			n := rng.Intn(3) + 1
			matches := make([]catalog.Match, 0, n)
			for j := 0; j < n; j++ {
				matches = append(matches, catalog.Recognized{
					Product: product(int64(j), "p", prices[rng.Intn(len(prices))]),
				})
			}
			c.Add(matches)
		}

		if want := sum(c.Items()); !c.Total().Equal(want) {
			t.Fatalf("step %d: Total() = %s, sum of items = %s", i, c.Total(), want)
		}
	}
}

func TestTenthsAddUpExactly(t *testing.T) {
	c := New(nil)
	for i := 0; i < 3; i++ {
		c.Add([]catalog.Match{catalog.Recognized{Product: product(1, "Gum", "0.10")}})
	}
	if got := c.Total().String(); got != "0.3" {
		t.Errorf("0.10 * 3 = %s, want 0.3", got)
	}
}

func TestFinalizeLeavesCart(t *testing.T) {
	var gotTotal decimal.Decimal
	var gotItems int
	c := New(FinalizerFunc(func(ctx context.Context, items []catalog.Product, total decimal.Decimal) error {
		gotItems = len(items)
		gotTotal = total
		return nil
	}))
	c.Add([]catalog.Match{catalog.Recognized{Product: product(1, "Milk", "4.50")}})

	if err := c.Finalize(context.Background()); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if gotItems != 1 || !gotTotal.Equal(decimal.RequireFromString("4.5")) {
		t.Errorf("finalizer saw %d items, total %s", gotItems, gotTotal)
	}
	if c.Len() != 1 {
		t.Error("Finalize must not clear the cart")
	}
}

func TestFinalizeError(t *testing.T) {
	fail := errors.New("terminal offline")
	c := New(FinalizerFunc(func(context.Context, []catalog.Product, decimal.Decimal) error {
		return fail
	}))
	if err := c.Finalize(context.Background()); !errors.Is(err, fail) {
		t.Errorf("Finalize() = %v, want %v", err, fail)
	}
}

func TestFormatTotal(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0", "0.00 [PLN]"},
		{"12.5", "12.50 [PLN]"},
		{"3.499", "3.50 [PLN]"},
	}
	for _, tt := range tests {
		if got := FormatTotal(decimal.RequireFromString(tt.in)); got != tt.want {
			t.Errorf("FormatTotal(%s) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestItemsIsACopy(t *testing.T) {
	c := New(nil)
	c.Add([]catalog.Match{catalog.Recognized{Product: product(1, "Milk", "4.50")}})
	items := c.Items()
	items[0].Name = "changed"
	if c.Names()[0] != "Milk" {
		t.Error("Items() must return a copy")
	}
}
