package assistant

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/teslashibe/go-shopassist/pkg/cart"
	"github.com/teslashibe/go-shopassist/pkg/catalog"
	"github.com/teslashibe/go-shopassist/pkg/command"
	"github.com/teslashibe/go-shopassist/pkg/metrics"
	"github.com/teslashibe/go-shopassist/pkg/scene"
	"github.com/teslashibe/go-shopassist/pkg/voice"
	"github.com/teslashibe/go-shopassist/pkg/web"
)

type fakeDashboard struct {
	mu      sync.Mutex
	state   web.State
	updates int
	logs    []web.LogEntry
}

func (d *fakeDashboard) UpdateState(update func(*web.State)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	update(&d.state)
	d.updates++
}

func (d *fakeDashboard) AddLog(kind, message string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.logs = append(d.logs, web.LogEntry{Type: kind, Message: message})
}

func (d *fakeDashboard) snapshot() (web.State, int, []web.LogEntry) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state, d.updates, append([]web.LogEntry(nil), d.logs...)
}

func newTelemetry(t *testing.T) (*Telemetry, *fakeDashboard, *metrics.Recorder, *cart.Cart, *scene.Store, *scene.Panels) {
	t.Helper()
	rec := metrics.NewWithRegistry(prometheus.NewRegistry())
	dash := &fakeDashboard{}
	c := cart.New(nil)
	store := &scene.Store{}
	panels := &scene.Panels{}
	return NewTelemetry(rec, dash, c, store, panels), dash, rec, c, store, panels
}

func TestTelemetryCommandUpdatesDashboard(t *testing.T) {
	tel, dash, _, _, _, panels := newTelemetry(t)
	panels.ToggleShoppingList()

	tel.CommandDispatched(command.ToggleShoppingList, command.SourceKey, command.OutcomeExecuted, time.Millisecond)

	state, _, logs := dash.snapshot()
	if state.LastCommand != string(command.ToggleShoppingList) {
		t.Errorf("LastCommand = %q", state.LastCommand)
	}
	if !state.ShowShoppingList {
		t.Error("ShowShoppingList not mirrored")
	}
	if len(logs) != 1 || logs[0].Type != "command" || !strings.Contains(logs[0].Message, "via key") {
		t.Errorf("logs = %+v", logs)
	}
}

func TestTelemetryIgnoredCommandsAreQuiet(t *testing.T) {
	tel, dash, _, _, _, _ := newTelemetry(t)

	tel.CommandDispatched(command.NoMatch, command.SourceVoice, command.OutcomeIgnored, 0)

	if _, updates, logs := dash.snapshot(); updates != 0 || len(logs) != 0 {
		t.Errorf("ignored command produced %d updates and %d logs", updates, len(logs))
	}
}

func TestTelemetryFailedCommandNotLoggedTwice(t *testing.T) {
	tel, dash, _, _, _, _ := newTelemetry(t)

	tel.CommandDispatched(command.RefreshData, command.SourceVoice, command.OutcomeFailed, 0)

	state, _, logs := dash.snapshot()
	if len(logs) != 0 {
		t.Errorf("logs = %+v, want none", logs)
	}
	if state.LastCommand != string(command.RefreshData) {
		t.Errorf("LastCommand = %q", state.LastCommand)
	}
}

func TestTelemetryCartGauges(t *testing.T) {
	tel, _, rec, c, _, _ := newTelemetry(t)
	c.Add([]catalog.Match{catalog.Recognized{Product: milk}, catalog.Recognized{Product: bread}})

	tel.CommandDispatched(command.AddProduct, command.SourceKey, command.OutcomeExecuted, time.Millisecond)

	families, err := rec.Registry().Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	var items, total float64
	for _, f := range families {
		switch f.GetName() {
		case "shopassist_cart_items":
			items = f.GetMetric()[0].GetGauge().GetValue()
		case "shopassist_cart_total":
			total = f.GetMetric()[0].GetGauge().GetValue()
		}
	}
	if items != 2 {
		t.Errorf("cart items gauge = %v, want 2", items)
	}
	if total < 7.69 || total > 7.71 {
		t.Errorf("cart total gauge = %v, want 7.70", total)
	}
}

func TestTelemetryFramePushThrottled(t *testing.T) {
	tel, dash, _, _, store, _ := newTelemetry(t)
	tel.interval = time.Hour
	store.Publish(scene.Detections{
		Faces: []scene.Face{{Label: "Alice", Known: true}},
		Products: []scene.ProductHit{{
			Barcode: scene.Barcode{Payload: "5900000000001", Format: "EAN_13"},
			Match:   catalog.Recognized{Product: milk},
		}},
	})

	for i := 0; i < 5; i++ {
		tel.FrameProcessed(1, 1, time.Millisecond)
	}

	state, updates, _ := dash.snapshot()
	if updates != 1 {
		t.Errorf("updates = %d, want 1", updates)
	}
	if state.Frames != 1 {
		t.Errorf("Frames = %d, want 1", state.Frames)
	}
	if len(state.Products) != 1 || state.Products[0].Label != "Milk, 4.50" || !state.Products[0].Recognized {
		t.Errorf("Products = %+v", state.Products)
	}
	if len(state.Faces) != 1 || state.Faces[0].Label != "Alice" {
		t.Errorf("Faces = %+v", state.Faces)
	}
}

func TestTelemetryCatalogRefresh(t *testing.T) {
	tel, dash, _, _, _, _ := newTelemetry(t)

	tel.CatalogRefreshed(true, 12, 15, time.Millisecond)
	tel.CatalogRefreshed(false, 0, 0, time.Millisecond)

	state, _, logs := dash.snapshot()
	if state.CatalogProducts != 12 || state.CatalogBarcodes != 15 {
		t.Errorf("catalog = %d/%d, want 12/15", state.CatalogProducts, state.CatalogBarcodes)
	}
	if len(logs) != 2 || logs[0].Type != "info" || logs[1].Type != "warn" {
		t.Errorf("logs = %+v", logs)
	}
}

func TestTelemetryNilSinks(t *testing.T) {
	tel := NewTelemetry(nil, nil, nil, nil, nil)

	tel.CommandDispatched(command.ClearCart, command.SourceKey, command.OutcomeExecuted, 0)
	tel.IntentResolved(command.ClearCart, true, 0)
	tel.UtteranceFinished("speak", false, 0)
	tel.CatalogRefreshed(true, 1, 1, 0)
	tel.FrameProcessed(0, 0, 0)
	tel.FrameSkipped()
	tel.InboxDepth(3)
	tel.VoiceState(voice.Recording)
	tel.TranscriptTaken(voice.NewTranscript("clear", voice.SourceVoice))
}

func TestTrackedInbox(t *testing.T) {
	tel, dash, _, _, _, _ := newTelemetry(t)
	inbox := voice.NewInbox()
	tracked := trackedInbox{Inbox: inbox, onPop: tel.TranscriptTaken}

	if _, ok := tracked.TryPop(); ok {
		t.Fatal("TryPop on empty inbox succeeded")
	}
	inbox.Push(voice.NewTranscript("add the milk", voice.SourceWeb))
	tr, ok := tracked.TryPop()
	if !ok || tr.Text != "add the milk" {
		t.Fatalf("TryPop = %+v, %v", tr, ok)
	}
	if tracked.Len() != 0 {
		t.Errorf("Len() = %d, want 0", tracked.Len())
	}
	if state, _, _ := dash.snapshot(); state.LastTranscript != "add the milk" {
		t.Errorf("LastTranscript = %q", state.LastTranscript)
	}
}
