package assistant

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/teslashibe/go-shopassist/pkg/cart"
	"github.com/teslashibe/go-shopassist/pkg/catalog"
	"github.com/teslashibe/go-shopassist/pkg/command"
	"github.com/teslashibe/go-shopassist/pkg/scene"
)

type recordingVoice struct {
	mu      sync.Mutex
	spoken  []string
	listens int
}

func (v *recordingVoice) Speak(text string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.spoken = append(v.spoken, text)
}

func (v *recordingVoice) Listen() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.listens++
}

func (v *recordingVoice) said() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string(nil), v.spoken...)
}

var (
	milk  = catalog.Product{ID: 1, Name: "Milk", Price: decimal.RequireFromString("4.50")}
	bread = catalog.Product{ID: 2, Name: "Bread", Price: decimal.RequireFromString("3.20")}
)

type harness struct {
	d       *command.Dispatcher
	voice   *recordingVoice
	cart    *cart.Cart
	scene   *scene.Store
	panels  *scene.Panels
	refresh int
	paid    []catalog.Product
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		voice:  &recordingVoice{},
		scene:  &scene.Store{},
		panels: &scene.Panels{},
	}
	h.cart = cart.New(cart.FinalizerFunc(func(_ context.Context, items []catalog.Product, _ decimal.Decimal) error {
		h.paid = items
		return nil
	}))
	env := &command.Env{
		Voice: h.voice,
		Cart:  h.cart,
		Catalog: command.RefresherFunc(func(context.Context) error {
			h.refresh++
			return nil
		}),
		Display: h.panels,
		Scene:   h.scene,
	}
	h.d = command.NewDispatcher(env, command.DefaultKeyBinding())
	RegisterCommands(h.d)
	return h
}

func (h *harness) show(products ...catalog.Product) {
	hits := make([]scene.ProductHit, 0, len(products)+1)
	for _, p := range products {
		hits = append(hits, scene.ProductHit{
			Barcode: scene.Barcode{Payload: "59000000000" + p.Name},
			Match:   catalog.Recognized{Product: p},
		})
	}
	hits = append(hits, scene.ProductHit{
		Barcode: scene.Barcode{Payload: "unknown"},
		Match:   catalog.Unrecognized{Payload: "unknown"},
	})
	h.scene.Publish(scene.Detections{Products: hits})
}

func TestRegisterCommandsVocabulary(t *testing.T) {
	h := newHarness(t)

	want := []command.Command{
		command.AddProduct,
		command.ClearCart,
		command.FinalizeTransaction,
		command.Quit,
		command.RefreshData,
		command.ToggleShoppingList,
		command.VoiceInterface,
	}
	if got := h.d.Vocabulary(); !reflect.DeepEqual(got, want) {
		t.Errorf("Vocabulary() = %v, want %v", got, want)
	}
}

func TestConfirmationsSpokenFirst(t *testing.T) {
	tests := []struct {
		cmd  command.Command
		want string
	}{
		{command.RefreshData, SayRefreshing},
		{command.AddProduct, SayAdding},
		{command.ClearCart, SayClearing},
		{command.ToggleShoppingList, SayToggling},
		{command.FinalizeTransaction, "0.00 [PLN]"},
	}

	for _, tt := range tests {
		t.Run(string(tt.cmd), func(t *testing.T) {
			h := newHarness(t)
			if h.d.Dispatch(context.Background(), tt.cmd) {
				t.Fatal("Dispatch reported termination")
			}
			got := h.voice.said()
			if len(got) != 1 || got[0] != tt.want {
				t.Errorf("spoken = %q, want [%q]", got, tt.want)
			}
		})
	}
}

func TestAddProductUsesLatestScene(t *testing.T) {
	h := newHarness(t)
	h.show(milk, bread)

	h.d.Dispatch(context.Background(), command.AddProduct)

	if got := h.cart.Names(); !reflect.DeepEqual(got, []string{"Milk", "Bread"}) {
		t.Errorf("cart = %v, want [Milk Bread]", got)
	}
	if got := h.cart.TotalText(); got != "7.70 [PLN]" {
		t.Errorf("total = %q, want 7.70 [PLN]", got)
	}

	// Nothing in view adds nothing.
	h.scene.Publish(scene.Detections{})
	h.d.Dispatch(context.Background(), command.AddProduct)
	if h.cart.Len() != 2 {
		t.Errorf("Len() = %d after empty scene, want 2", h.cart.Len())
	}
}

func TestClearCart(t *testing.T) {
	h := newHarness(t)
	h.show(milk)
	h.d.Dispatch(context.Background(), command.AddProduct)

	h.d.Dispatch(context.Background(), command.ClearCart)

	if h.cart.Len() != 0 || !h.cart.Total().IsZero() {
		t.Errorf("cart after clear = %d items, total %s", h.cart.Len(), h.cart.Total())
	}
}

func TestToggleShoppingList(t *testing.T) {
	h := newHarness(t)

	h.d.DispatchFromKey(context.Background(), 's')
	if !h.panels.ShoppingListVisible() {
		t.Error("shopping list hidden after first toggle")
	}
	h.d.DispatchFromKey(context.Background(), 's')
	if h.panels.ShoppingListVisible() {
		t.Error("shopping list visible after second toggle")
	}
}

func TestFinalizeSpeaksTotalThenPays(t *testing.T) {
	h := newHarness(t)
	h.show(milk)
	h.d.Dispatch(context.Background(), command.AddProduct)
	h.d.Dispatch(context.Background(), command.AddProduct)

	h.d.DispatchFromKey(context.Background(), 'b')

	said := h.voice.said()
	if last := said[len(said)-1]; last != "9.00 [PLN]" {
		t.Errorf("last utterance = %q, want 9.00 [PLN]", last)
	}
	if len(h.paid) != 2 {
		t.Errorf("finalizer got %d items, want 2", len(h.paid))
	}
	if h.cart.Len() != 2 {
		t.Errorf("finalize changed the cart: %d items", h.cart.Len())
	}
}

func TestRefreshAndListen(t *testing.T) {
	h := newHarness(t)

	h.d.DispatchFromKey(context.Background(), 'r')
	h.d.DispatchFromKey(context.Background(), 'v')

	if h.refresh != 1 {
		t.Errorf("refresh ran %d times, want 1", h.refresh)
	}
	if h.voice.listens != 1 {
		t.Errorf("Listen called %d times, want 1", h.voice.listens)
	}
	// Listening is not announced.
	if got := h.voice.said(); !reflect.DeepEqual(got, []string{SayRefreshing}) {
		t.Errorf("spoken = %q", got)
	}
}

func TestQuitTerminatesSilently(t *testing.T) {
	h := newHarness(t)
	if !h.d.DispatchFromKey(context.Background(), 'q') {
		t.Fatal("quit did not terminate")
	}
	if got := h.voice.said(); len(got) != 0 {
		t.Errorf("quit spoke %q", got)
	}
}

func TestMissingCapability(t *testing.T) {
	tests := []struct {
		name   string
		action command.Action
	}{
		{"refresh", refreshData},
		{"add", addProduct},
		{"clear", clearCart},
		{"toggle", toggleShoppingList},
		{"finalize", finalize},
		{"listen", listen},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.action(context.Background(), &command.Env{})
			if !errors.Is(err, ErrUnavailable) {
				t.Errorf("err = %v, want ErrUnavailable", err)
			}
		})
	}
}

func TestRefreshFailureIsContained(t *testing.T) {
	voice := &recordingVoice{}
	env := &command.Env{
		Voice: voice,
		Catalog: command.RefresherFunc(func(context.Context) error {
			return errors.New("db down")
		}),
	}
	d := command.NewDispatcher(env, command.DefaultKeyBinding())
	RegisterCommands(d)

	if d.Dispatch(context.Background(), command.RefreshData) {
		t.Error("failed refresh terminated the loop")
	}
	if got := voice.said(); !reflect.DeepEqual(got, []string{SayRefreshing}) {
		t.Errorf("spoken = %q", got)
	}
}
