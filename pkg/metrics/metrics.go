// Package metrics exports Prometheus metrics for the shop assistant.
//
// A Recorder implements the observer interfaces of the catalog, command,
// intent, voice and perception packages, so each component reports through
// a narrow interface and never imports Prometheus itself.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/teslashibe/go-shopassist/pkg/command"
)

const namespace = "shopassist"

// Recorder owns a registry and every shop assistant metric.
type Recorder struct {
	registry *prometheus.Registry

	framesTotal      prometheus.Counter
	framesSkipped    prometheus.Counter
	frameDuration    prometheus.Histogram
	facesInFrame     prometheus.Gauge
	productsInFrame  prometheus.Gauge
	commandsTotal    *prometheus.CounterVec
	commandDuration  *prometheus.HistogramVec
	intentsTotal     *prometheus.CounterVec
	intentDuration   prometheus.Histogram
	utterancesTotal  *prometheus.CounterVec
	utteranceLatency *prometheus.HistogramVec
	refreshesTotal   *prometheus.CounterVec
	refreshDuration  prometheus.Histogram
	catalogProducts  prometheus.Gauge
	catalogBarcodes  prometheus.Gauge
	cartItems        prometheus.Gauge
	cartTotal        prometheus.Gauge
	inboxDepth       prometheus.Gauge
}

// New creates a Recorder on a fresh registry that also carries the Go
// runtime and process collectors.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return NewWithRegistry(reg)
}

// NewWithRegistry registers every metric on reg.
func NewWithRegistry(reg *prometheus.Registry) *Recorder {
	f := promauto.With(reg)

	return &Recorder{
		registry: reg,

		framesTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_total",
			Help:      "Frames processed by the perception loop",
		}),
		framesSkipped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_skipped_total",
			Help:      "Iterations skipped because no frame was available",
		}),
		frameDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "frame_duration_seconds",
			Help:      "Detection, rendering and dispatch time per frame",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1},
		}),
		facesInFrame: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "faces_in_frame",
			Help:      "Faces detected in the latest frame",
		}),
		productsInFrame: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "products_in_frame",
			Help:      "Barcodes detected in the latest frame",
		}),
		commandsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Dispatched commands by command, source and outcome",
		}, []string{"command", "source", "outcome"}),
		commandDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "command_duration_seconds",
			Help:      "Time spent inside command actions",
			Buckets:   prometheus.DefBuckets,
		}, []string{"command"}),
		intentsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "intents_total",
			Help:      "Transcripts resolved to a command",
		}, []string{"command", "status"}),
		intentDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "intent_duration_seconds",
			Help:      "Language model latency per transcript",
			Buckets:   prometheus.DefBuckets,
		}),
		utterancesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "utterances_total",
			Help:      "Speak and listen operations by outcome",
		}, []string{"kind", "status"}),
		utteranceLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "utterance_latency_seconds",
			Help:      "End to end latency of speak and listen",
			Buckets:   []float64{.25, .5, 1, 2, 3, 5, 10, 30},
		}, []string{"kind"}),
		refreshesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_refreshes_total",
			Help:      "Catalog refresh attempts by outcome",
		}, []string{"status"}),
		refreshDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "catalog_refresh_duration_seconds",
			Help:      "Catalog refresh latency",
			Buckets:   prometheus.DefBuckets,
		}),
		catalogProducts: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "catalog_products",
			Help:      "Products in the active catalog snapshot",
		}),
		catalogBarcodes: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "catalog_barcodes",
			Help:      "Barcodes in the active catalog snapshot",
		}),
		cartItems: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cart_items",
			Help:      "Products currently in the cart",
		}),
		cartTotal: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cart_total",
			Help:      "Current cart total in the shop currency",
		}),
		inboxDepth: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "inbox_depth",
			Help:      "Transcripts waiting for dispatch",
		}),
	}
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// CommandDispatched implements command.Observer.
func (r *Recorder) CommandDispatched(cmd command.Command, source string, outcome command.Outcome, took time.Duration) {
	r.commandsTotal.WithLabelValues(string(cmd), source, string(outcome)).Inc()
	if outcome != command.OutcomeIgnored && outcome != command.OutcomeTerminate {
		r.commandDuration.WithLabelValues(string(cmd)).Observe(took.Seconds())
	}
}

// IntentResolved implements intent.Observer.
func (r *Recorder) IntentResolved(cmd command.Command, ok bool, took time.Duration) {
	r.intentsTotal.WithLabelValues(string(cmd), status(ok)).Inc()
	r.intentDuration.Observe(took.Seconds())
}

// UtteranceFinished implements voice.Observer.
func (r *Recorder) UtteranceFinished(kind string, ok bool, took time.Duration) {
	r.utterancesTotal.WithLabelValues(kind, status(ok)).Inc()
	if ok {
		r.utteranceLatency.WithLabelValues(kind).Observe(took.Seconds())
	}
}

// CatalogRefreshed implements catalog.Observer.
func (r *Recorder) CatalogRefreshed(ok bool, products, barcodes int, took time.Duration) {
	r.refreshesTotal.WithLabelValues(status(ok)).Inc()
	r.refreshDuration.Observe(took.Seconds())
	if ok {
		r.catalogProducts.Set(float64(products))
		r.catalogBarcodes.Set(float64(barcodes))
	}
}

// FrameProcessed implements perception.Observer.
func (r *Recorder) FrameProcessed(faces, products int, took time.Duration) {
	r.framesTotal.Inc()
	r.frameDuration.Observe(took.Seconds())
	r.facesInFrame.Set(float64(faces))
	r.productsInFrame.Set(float64(products))
}

// FrameSkipped implements perception.Observer.
func (r *Recorder) FrameSkipped() {
	r.framesSkipped.Inc()
}

// InboxDepth implements perception.Observer.
func (r *Recorder) InboxDepth(n int) {
	r.inboxDepth.Set(float64(n))
}

// CartChanged records the cart size and total.
func (r *Recorder) CartChanged(items int, total float64) {
	r.cartItems.Set(float64(items))
	r.cartTotal.Set(total)
}

func status(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}
