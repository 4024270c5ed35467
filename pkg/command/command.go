// Package command maps command identifiers from the keyboard and from voice
// intents to actions over the shared shop state.
//
// A Dispatcher is built once at startup. Every action receives an explicit
// *Env with the capabilities it may use, so no action captures globals.
//
//	d := command.NewDispatcher(env, command.DefaultKeyBinding())
//	d.Register(command.ClearCart, func(ctx context.Context, env *command.Env) error {
//	    env.Cart.Clear()
//	    return nil
//	})
//	if d.DispatchFromKey(ctx, key) {
//	    // quit
//	}
package command

import (
	"context"
	"log/slog"

	"github.com/teslashibe/go-shopassist/pkg/cart"
	"github.com/teslashibe/go-shopassist/pkg/scene"
)

// Command is a canonical action identifier.
type Command string

// Reserved commands.
const (
	// Quit terminates the loop. It never runs an action.
	Quit Command = "quit_application"

	// NoMatch means no actionable intent was found. It is never registered.
	NoMatch Command = "NO_MATCH"
)

// Built-in commands.
const (
	RefreshData         Command = "refresh_data"
	AddProduct          Command = "add_product"
	ClearCart           Command = "clear_cart"
	ToggleShoppingList  Command = "toggle_shopping_list"
	FinalizeTransaction Command = "finalize_transaction"
	VoiceInterface      Command = "voice_interface"
)

// Action runs a command. Returned errors are logged by the dispatcher and
// never reach the caller; actions should tell the user themselves.
type Action func(ctx context.Context, env *Env) error

// Voice is the speech capability available to actions.
type Voice interface {
	// Speak starts speaking text and returns immediately.
	Speak(text string)
	// Listen starts one recording in the background and returns immediately.
	Listen()
}

// Refresher reloads reference data.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// RefresherFunc adapts a function to Refresher.
type RefresherFunc func(ctx context.Context) error

// Refresh calls f.
func (f RefresherFunc) Refresh(ctx context.Context) error { return f(ctx) }

// Display controls overlay panels.
type Display interface {
	ToggleShoppingList() bool
}

// SceneProvider returns the latest per-frame detections.
type SceneProvider interface {
	Latest() scene.Detections
}

// Env is the set of capabilities handed to every action.
type Env struct {
	Voice   Voice
	Cart    *cart.Cart
	Catalog Refresher
	Display Display
	Scene   SceneProvider
	Logger  *slog.Logger
}

// Say speaks text if a voice is configured.
func (e *Env) Say(text string) {
	if e.Voice != nil {
		e.Voice.Speak(text)
	}
}
