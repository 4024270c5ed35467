package assistant

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-shopassist/pkg/cart"
	"github.com/teslashibe/go-shopassist/pkg/command"
	"github.com/teslashibe/go-shopassist/pkg/metrics"
	"github.com/teslashibe/go-shopassist/pkg/scene"
	"github.com/teslashibe/go-shopassist/pkg/voice"
	"github.com/teslashibe/go-shopassist/pkg/web"
)

// Dashboard is the part of the web server telemetry writes to.
type Dashboard interface {
	UpdateState(update func(*web.State))
	AddLog(kind, message string)
}

// Telemetry fans observer callbacks out to the metrics recorder and the
// dashboard. Both are optional.
type Telemetry struct {
	metrics *metrics.Recorder
	dash    Dashboard
	cart    *cart.Cart
	scene   command.SceneProvider
	panels  interface{ ShoppingListVisible() bool }

	// interval throttles per-frame dashboard pushes.
	interval time.Duration
	lastPush atomic.Int64
	frames   atomic.Uint64
}

// NewTelemetry builds a fan-out. Any argument may be nil.
func NewTelemetry(m *metrics.Recorder, dash Dashboard, c *cart.Cart, sc command.SceneProvider, panels interface{ ShoppingListVisible() bool }) *Telemetry {
	return &Telemetry{
		metrics:  m,
		dash:     dash,
		cart:     c,
		scene:    sc,
		panels:   panels,
		interval: 200 * time.Millisecond,
	}
}

// CommandDispatched implements command.Observer.
func (t *Telemetry) CommandDispatched(cmd command.Command, source string, outcome command.Outcome, took time.Duration) {
	if t.metrics != nil {
		t.metrics.CommandDispatched(cmd, source, outcome, took)
	}
	if outcome == command.OutcomeIgnored {
		return
	}

	t.cartChanged()
	if t.dash == nil {
		return
	}
	// Failures reach the dashboard through the dispatcher's log lines.
	if outcome == command.OutcomeExecuted || outcome == command.OutcomeTerminate {
		t.dash.AddLog("command", fmt.Sprintf("%s via %s", cmd, source))
	}
	t.dash.UpdateState(func(s *web.State) {
		s.LastCommand = string(cmd)
		if t.panels != nil {
			s.ShowShoppingList = t.panels.ShoppingListVisible()
		}
	})
}

// IntentResolved implements intent.Observer.
func (t *Telemetry) IntentResolved(cmd command.Command, ok bool, took time.Duration) {
	if t.metrics != nil {
		t.metrics.IntentResolved(cmd, ok, took)
	}
}

// UtteranceFinished implements voice.Observer.
func (t *Telemetry) UtteranceFinished(kind string, ok bool, took time.Duration) {
	if t.metrics != nil {
		t.metrics.UtteranceFinished(kind, ok, took)
	}
	if !ok && t.dash != nil {
		t.dash.AddLog("warn", kind+" failed after "+took.Round(time.Millisecond).String())
	}
}

// CatalogRefreshed implements catalog.Observer.
func (t *Telemetry) CatalogRefreshed(ok bool, products, barcodes int, took time.Duration) {
	if t.metrics != nil {
		t.metrics.CatalogRefreshed(ok, products, barcodes, took)
	}
	if t.dash == nil {
		return
	}
	if !ok {
		t.dash.AddLog("warn", "catalog refresh failed")
		return
	}
	t.dash.AddLog("info", fmt.Sprintf("catalog refreshed: %d products, %d barcodes", products, barcodes))
	t.dash.UpdateState(func(s *web.State) {
		s.CatalogProducts = products
		s.CatalogBarcodes = barcodes
	})
}

// FrameProcessed implements perception.Observer.
func (t *Telemetry) FrameProcessed(faces, products int, took time.Duration) {
	if t.metrics != nil {
		t.metrics.FrameProcessed(faces, products, took)
	}
	frames := t.frames.Add(1)
	if t.dash == nil || !t.due() {
		return
	}

	var det scene.Detections
	if t.scene != nil {
		det = t.scene.Latest()
	}
	t.dash.UpdateState(func(s *web.State) {
		s.Frames = frames
		s.Faces = det.Faces
		s.Products = productViews(det.Products)
	})
}

// FrameSkipped implements perception.Observer.
func (t *Telemetry) FrameSkipped() {
	if t.metrics != nil {
		t.metrics.FrameSkipped()
	}
}

// InboxDepth implements perception.Observer.
func (t *Telemetry) InboxDepth(n int) {
	if t.metrics != nil {
		t.metrics.InboxDepth(n)
	}
}

// VoiceState reports a voice pipeline phase change.
func (t *Telemetry) VoiceState(st voice.State) {
	if t.dash != nil {
		t.dash.UpdateState(func(s *web.State) { s.VoiceState = st.String() })
	}
}

// TranscriptTaken records a transcript leaving the inbox.
func (t *Telemetry) TranscriptTaken(tr voice.Transcript) {
	if t.dash == nil {
		return
	}
	t.dash.UpdateState(func(s *web.State) { s.LastTranscript = tr.Text })
}

func (t *Telemetry) cartChanged() {
	if t.metrics == nil || t.cart == nil {
		return
	}
	t.metrics.CartChanged(t.cart.Len(), t.cart.Total().InexactFloat64())
}

// due reports whether a throttled push may happen now.
func (t *Telemetry) due() bool {
	now := time.Now().UnixNano()
	last := t.lastPush.Load()
	if now-last < int64(t.interval) {
		return false
	}
	return t.lastPush.CompareAndSwap(last, now)
}

func productViews(hits []scene.ProductHit) []web.ProductView {
	out := make([]web.ProductView, len(hits))
	for i, h := range hits {
		out[i] = web.ProductView{
			Payload:    h.Barcode.Payload,
			Format:     h.Barcode.Format,
			Label:      h.Label(),
			Recognized: h.Recognized(),
		}
	}
	return out
}

// trackedInbox reports every popped transcript.
type trackedInbox struct {
	*voice.Inbox
	onPop func(voice.Transcript)
}

func (b trackedInbox) TryPop() (voice.Transcript, bool) {
	t, ok := b.Inbox.TryPop()
	if ok && b.onPop != nil {
		b.onPop(t)
	}
	return t, ok
}
