package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/teslashibe/go-shopassist/pkg/command"
)

func newTestRecorder() *Recorder {
	return NewWithRegistry(prometheus.NewRegistry())
}

func TestCommandDispatched(t *testing.T) {
	r := newTestRecorder()

	r.CommandDispatched(command.ClearCart, command.SourceKey, command.OutcomeExecuted, 3*time.Millisecond)
	r.CommandDispatched(command.ClearCart, command.SourceKey, command.OutcomeExecuted, time.Millisecond)
	r.CommandDispatched(command.NoMatch, command.SourceVoice, command.OutcomeIgnored, 0)

	if got := testutil.ToFloat64(r.commandsTotal.WithLabelValues("clear_cart", "key", "executed")); got != 2 {
		t.Errorf("clear_cart executed = %v, want 2", got)
	}
	if got := testutil.ToFloat64(r.commandsTotal.WithLabelValues("NO_MATCH", "voice", "ignored")); got != 1 {
		t.Errorf("NO_MATCH ignored = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(r.commandDuration); got != 1 {
		t.Errorf("duration series = %d, want 1 (ignored commands are not timed)", got)
	}
}

func TestCatalogRefreshed(t *testing.T) {
	r := newTestRecorder()

	r.CatalogRefreshed(true, 12, 15, 40*time.Millisecond)
	r.CatalogRefreshed(false, 0, 0, time.Second)

	if got := testutil.ToFloat64(r.catalogProducts); got != 12 {
		t.Errorf("catalog_products = %v, failed refresh must not reset it", got)
	}
	if got := testutil.ToFloat64(r.refreshesTotal.WithLabelValues("error")); got != 1 {
		t.Errorf("error refreshes = %v", got)
	}
}

func TestPerceptionAndVoice(t *testing.T) {
	r := newTestRecorder()

	r.FrameProcessed(2, 1, 30*time.Millisecond)
	r.FrameProcessed(1, 0, 30*time.Millisecond)
	r.FrameSkipped()
	r.InboxDepth(3)
	r.UtteranceFinished("listen", false, time.Second)
	r.IntentResolved(command.AddProduct, true, 200*time.Millisecond)
	r.CartChanged(2, 12.5)

	tests := []struct {
		name string
		c    prometheus.Collector
		want float64
	}{
		{"frames", r.framesTotal, 2},
		{"skipped", r.framesSkipped, 1},
		{"faces", r.facesInFrame, 1},
		{"inbox", r.inboxDepth, 3},
		{"listen errors", r.utterancesTotal.WithLabelValues("listen", "error"), 1},
		{"intents", r.intentsTotal.WithLabelValues("add_product", "ok"), 1},
		{"cart total", r.cartTotal, 12.5},
	}
	for _, tt := range tests {
		if got := testutil.ToFloat64(tt.c); got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestHandler(t *testing.T) {
	r := New()
	r.FrameProcessed(0, 0, time.Millisecond)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	for _, want := range []string{"shopassist_frames_total 1", "go_goroutines"} {
		if !strings.Contains(string(body), want) {
			t.Errorf("exposition missing %q", want)
		}
	}
}
