package scene

import "sync/atomic"

// View is everything the overlay draws for one frame.
type View struct {
	Detections       Detections `json:"detections"`
	ShoppingList     []string   `json:"shopping_list"`
	ShowShoppingList bool       `json:"show_shopping_list"`
	Total            string     `json:"total"`
}

// Panels holds overlay visibility toggles shared by the command actions
// and the renderer.
type Panels struct {
	shoppingList atomic.Bool
}

// ToggleShoppingList flips the shopping list panel and returns the new
// visibility.
func (p *Panels) ToggleShoppingList() bool {
	for {
		old := p.shoppingList.Load()
		if p.shoppingList.CompareAndSwap(old, !old) {
			return !old
		}
	}
}

// ShoppingListVisible reports whether the shopping list panel is shown.
func (p *Panels) ShoppingListVisible() bool {
	return p.shoppingList.Load()
}
