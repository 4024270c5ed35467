package assistant

import (
	"context"
	"errors"
	"fmt"

	"github.com/teslashibe/go-shopassist/pkg/command"
)

// Confirmations spoken before an action runs.
const (
	SayRefreshing = "Refreshing data..."
	SayAdding     = "Adding products to the cart..."
	SayClearing   = "Clearing the cart..."
	SayToggling   = "Toggling the shopping list..."
)

// ErrUnavailable is returned by an action whose capability is not wired.
var ErrUnavailable = errors.New("assistant: capability unavailable")

// sayAndExecute speaks msg, then runs action. msg is computed when the
// command runs so totals are current.
func sayAndExecute(msg func(env *command.Env) string, action command.Action) command.Action {
	return func(ctx context.Context, env *command.Env) error {
		env.Say(msg(env))
		return action(ctx, env)
	}
}

func say(text string) func(*command.Env) string {
	return func(*command.Env) string { return text }
}

// RegisterCommands installs the built-in shop commands on d.
func RegisterCommands(d *command.Dispatcher) {
	// The dispatcher terminates on Quit before any action runs.
	d.Register(command.Quit, func(context.Context, *command.Env) error { return nil })

	d.Register(command.RefreshData, sayAndExecute(say(SayRefreshing), refreshData))
	d.Register(command.AddProduct, sayAndExecute(say(SayAdding), addProduct))
	d.Register(command.ClearCart, sayAndExecute(say(SayClearing), clearCart))
	d.Register(command.ToggleShoppingList, sayAndExecute(say(SayToggling), toggleShoppingList))
	d.Register(command.FinalizeTransaction, sayAndExecute(totalText, finalize))
	d.Register(command.VoiceInterface, listen)
}

func refreshData(ctx context.Context, env *command.Env) error {
	if env.Catalog == nil {
		return fmt.Errorf("refresh: %w", ErrUnavailable)
	}
	return env.Catalog.Refresh(ctx)
}

func addProduct(_ context.Context, env *command.Env) error {
	if env.Cart == nil || env.Scene == nil {
		return fmt.Errorf("add product: %w", ErrUnavailable)
	}
	added := env.Cart.Add(env.Scene.Latest().Matches())
	if env.Logger != nil {
		env.Logger.Info("products added", "added", added, "items", env.Cart.Len(), "total", env.Cart.TotalText())
	}
	return nil
}

func clearCart(_ context.Context, env *command.Env) error {
	if env.Cart == nil {
		return fmt.Errorf("clear cart: %w", ErrUnavailable)
	}
	env.Cart.Clear()
	return nil
}

func toggleShoppingList(_ context.Context, env *command.Env) error {
	if env.Display == nil {
		return fmt.Errorf("toggle shopping list: %w", ErrUnavailable)
	}
	visible := env.Display.ToggleShoppingList()
	if env.Logger != nil {
		env.Logger.Debug("shopping list toggled", "visible", visible)
	}
	return nil
}

func totalText(env *command.Env) string {
	if env.Cart == nil {
		return ""
	}
	return env.Cart.TotalText()
}

func finalize(ctx context.Context, env *command.Env) error {
	if env.Cart == nil {
		return fmt.Errorf("finalize: %w", ErrUnavailable)
	}
	return env.Cart.Finalize(ctx)
}

func listen(_ context.Context, env *command.Env) error {
	if env.Voice == nil {
		return fmt.Errorf("listen: %w", ErrUnavailable)
	}
	env.Voice.Listen()
	return nil
}
