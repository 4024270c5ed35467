package command

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sort"
	"sync"
	"time"
)

// NoKey is the key code reported when no key was pressed.
const NoKey = 255

// KeyBinding maps raw key codes to commands.
type KeyBinding map[int]Command

// DefaultKeyBinding returns the fixed keyboard surface.
func DefaultKeyBinding() KeyBinding {
	return KeyBinding{
		'q': Quit,
		'r': RefreshData,
		'a': AddProduct,
		'c': ClearCart,
		's': ToggleShoppingList,
		'b': FinalizeTransaction,
		'v': VoiceInterface,
	}
}

// Lookup returns the command bound to key.
func (k KeyBinding) Lookup(key int) (Command, bool) {
	if key == NoKey {
		return "", false
	}
	cmd, ok := k[key]
	return cmd, ok
}

// Outcome describes what a dispatch did.
type Outcome string

const (
	OutcomeTerminate Outcome = "terminate"
	OutcomeExecuted  Outcome = "executed"
	OutcomeFailed    Outcome = "failed"
	OutcomePanicked  Outcome = "panicked"
	OutcomeIgnored   Outcome = "ignored"
)

// Observer is notified after every dispatch (metrics, dashboard).
type Observer interface {
	CommandDispatched(cmd Command, source string, outcome Outcome, took time.Duration)
}

// Dispatch sources.
const (
	SourceKey   = "key"
	SourceVoice = "voice"
	SourceWeb   = "web"
)

// Dispatcher is the command registry and execution gate.
type Dispatcher struct {
	mu       sync.RWMutex
	actions  map[Command]Action
	keys     KeyBinding
	env      *Env
	logger   *slog.Logger
	observer Observer
}

// NewDispatcher creates a dispatcher over env with a static key binding.
func NewDispatcher(env *Env, keys KeyBinding) *Dispatcher {
	if env == nil {
		env = &Env{}
	}
	logger := env.Logger
	if logger == nil {
		logger = slog.Default()
	}
	bound := make(KeyBinding, len(keys))
	for k, c := range keys {
		bound[k] = c
	}
	return &Dispatcher{
		actions: make(map[Command]Action),
		keys:    bound,
		env:     env,
		logger:  logger.With("component", "command.dispatcher"),
	}
}

// SetObserver installs a dispatch observer.
func (d *Dispatcher) SetObserver(o Observer) {
	d.mu.Lock()
	d.observer = o
	d.mu.Unlock()
}

// Register binds cmd to action. A later registration replaces an earlier one.
func (d *Dispatcher) Register(cmd Command, action Action) {
	d.mu.Lock()
	d.actions[cmd] = action
	d.mu.Unlock()
}

// Vocabulary returns the registered commands, sorted.
func (d *Dispatcher) Vocabulary() []Command {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Command, 0, len(d.actions))
	for cmd := range d.actions {
		out = append(out, cmd)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Dispatch runs the action for cmd and reports whether the loop should stop.
// Quit returns true without running anything. Unknown commands and NoMatch
// are no-ops.
func (d *Dispatcher) Dispatch(ctx context.Context, cmd Command) bool {
	return d.dispatch(ctx, cmd, SourceVoice)
}

// DispatchFrom is Dispatch with an explicit source label.
func (d *Dispatcher) DispatchFrom(ctx context.Context, cmd Command, source string) bool {
	return d.dispatch(ctx, cmd, source)
}

// DispatchFromKey resolves key through the key binding and dispatches it.
// Unbound keys are no-ops.
func (d *Dispatcher) DispatchFromKey(ctx context.Context, key int) bool {
	cmd, ok := d.keys.Lookup(key)
	if !ok {
		return false
	}
	return d.dispatch(ctx, cmd, SourceKey)
}

func (d *Dispatcher) dispatch(ctx context.Context, cmd Command, source string) bool {
	start := time.Now()

	if cmd == Quit {
		d.notify(cmd, source, OutcomeTerminate, start)
		return true
	}

	d.mu.RLock()
	action, ok := d.actions[cmd]
	d.mu.RUnlock()

	if !ok || cmd == NoMatch {
		d.notify(cmd, source, OutcomeIgnored, start)
		return false
	}

	outcome := d.run(ctx, cmd, action)
	d.notify(cmd, source, outcome, start)
	return false
}

func (d *Dispatcher) run(ctx context.Context, cmd Command, action Action) (outcome Outcome) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("command panicked",
				"command", string(cmd),
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()),
			)
			outcome = OutcomePanicked
		}
	}()

	if err := action(ctx, d.env); err != nil {
		d.logger.Warn("command failed", "command", string(cmd), "error", err)
		return OutcomeFailed
	}
	d.logger.Debug("command executed", "command", string(cmd))
	return OutcomeExecuted
}

func (d *Dispatcher) notify(cmd Command, source string, outcome Outcome, start time.Time) {
	d.mu.RLock()
	o := d.observer
	d.mu.RUnlock()
	if o != nil {
		o.CommandDispatched(cmd, source, outcome, time.Since(start))
	}
}
