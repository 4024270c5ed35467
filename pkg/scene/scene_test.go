package scene

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/teslashibe/go-shopassist/pkg/catalog"
)

func TestProductHitLabel(t *testing.T) {
	milk := catalog.Product{ID: 1, Name: "Milk", Price: decimal.RequireFromString("4.5")}

	tests := []struct {
		name string
		hit  ProductHit
		want string
	}{
		{"recognized", ProductHit{Barcode: Barcode{Payload: "111"}, Match: catalog.Recognized{Product: milk}}, "Milk, 4.50"},
		{"unrecognized", ProductHit{Barcode: Barcode{Payload: "222"}, Match: catalog.Unrecognized{Payload: "222"}}, "222"},
		{"nil match", ProductHit{Barcode: Barcode{Payload: "333"}}, "333"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.hit.Label(); got != tt.want {
				t.Errorf("Label() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResolveAndMatches(t *testing.T) {
	cat := catalog.New(nil, catalog.WithSnapshot(catalog.NewSnapshot(
		[]catalog.Product{{ID: 1, Name: "Milk", Price: decimal.RequireFromString("4.50")}},
		map[string]int64{"111": 1},
	)))

	hits := Resolve([]Barcode{{Payload: "111"}, {Payload: "999"}}, cat)
	d := Detections{Products: append(hits, ProductHit{Barcode: Barcode{Payload: "000"}})}

	m := d.Matches()
	if len(m) != 3 {
		t.Fatalf("Matches() len = %d, want 3", len(m))
	}
	if _, ok := m[0].(catalog.Recognized); !ok {
		t.Errorf("m[0] = %T, want Recognized", m[0])
	}
	if u, ok := m[1].(catalog.Unrecognized); !ok || u.Payload != "999" {
		t.Errorf("m[1] = %#v", m[1])
	}
	if _, ok := m[2].(catalog.Unrecognized); !ok {
		t.Errorf("nil match should surface as Unrecognized, got %T", m[2])
	}
}

func TestStore(t *testing.T) {
	var s Store
	if len(s.Latest().Faces) != 0 {
		t.Fatal("zero Store should be empty")
	}
	s.Publish(Detections{Faces: []Face{{Label: UnknownFaceLabel}}})
	if got := s.Latest().Faces[0].Label; got != "Customer" {
		t.Errorf("Latest face = %q", got)
	}
}

func TestPanelsToggle(t *testing.T) {
	var p Panels
	if p.ShoppingListVisible() {
		t.Fatal("shopping list should start hidden")
	}
	if !p.ToggleShoppingList() || !p.ShoppingListVisible() {
		t.Error("first toggle should show the list")
	}
	if p.ToggleShoppingList() || p.ShoppingListVisible() {
		t.Error("second toggle should hide the list")
	}
}
