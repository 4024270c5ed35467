package voice

import (
	"sync"
	"time"
)

// Utterance kinds.
const (
	KindSpeak  = "speak"
	KindListen = "listen"
)

// Metrics holds the stage timings of one utterance. Durations are measured
// from Start.
type Metrics struct {
	Kind  string
	Start time.Time
	OK    bool

	// Speak
	SynthLatency    time.Duration // text to audio bytes
	PlaybackLatency time.Duration // audio bytes to end of playback

	// Listen
	RecordLatency time.Duration // end of the fixed-length recording
	STTLatency    time.Duration // recording end to transcript

	TotalLatency time.Duration
}

// MetricsCollector keeps the current utterance and a bounded history.
// It is goroutine-safe.
type MetricsCollector struct {
	mu      sync.Mutex
	history []Metrics

	onUpdate func(Metrics)
}

// NewMetricsCollector creates a new metrics collector.
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		history: make([]Metrics, 0, 100),
	}
}

// OnUpdate sets a callback fired after every finished utterance.
func (m *MetricsCollector) OnUpdate(fn func(Metrics)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onUpdate = fn
}

// Turn tracks one utterance in flight.
type Turn struct {
	c       *MetricsCollector
	metrics Metrics
	last    time.Time
}

// Begin starts timing an utterance of the given kind.
func (m *MetricsCollector) Begin(kind string) *Turn {
	now := time.Now()
	return &Turn{c: m, metrics: Metrics{Kind: kind, Start: now}, last: now}
}

// lap returns the time since the previous mark.
func (t *Turn) lap() time.Duration {
	now := time.Now()
	d := now.Sub(t.last)
	t.last = now
	return d
}

// MarkSynthesized records that TTS returned audio.
func (t *Turn) MarkSynthesized() { t.metrics.SynthLatency = t.lap() }

// MarkPlayed records that playback finished.
func (t *Turn) MarkPlayed() { t.metrics.PlaybackLatency = t.lap() }

// MarkRecorded records that the recording window closed.
func (t *Turn) MarkRecorded() { t.metrics.RecordLatency = t.lap() }

// MarkTranscribed records that the transcript arrived.
func (t *Turn) MarkTranscribed() { t.metrics.STTLatency = t.lap() }

// Finish archives the utterance and returns its metrics.
func (t *Turn) Finish(ok bool) Metrics {
	t.metrics.OK = ok
	t.metrics.TotalLatency = time.Since(t.metrics.Start)
	t.c.archive(t.metrics)
	return t.metrics
}

func (m *MetricsCollector) archive(metrics Metrics) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.history = append(m.history, metrics)
	if len(m.history) > 100 {
		m.history = m.history[1:]
	}
	if m.onUpdate != nil {
		go m.onUpdate(metrics)
	}
}

// Last returns the most recent finished utterance.
func (m *MetricsCollector) Last() (Metrics, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.history) == 0 {
		return Metrics{}, false
	}
	return m.history[len(m.history)-1], true
}

// Average returns average stage timings over recent successful utterances
// of the given kind.
func (m *MetricsCollector) Average(kind string) Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	avg := Metrics{Kind: kind}
	var n time.Duration
	for _, h := range m.history {
		if h.Kind != kind || !h.OK {
			continue
		}
		avg.SynthLatency += h.SynthLatency
		avg.PlaybackLatency += h.PlaybackLatency
		avg.RecordLatency += h.RecordLatency
		avg.STTLatency += h.STTLatency
		avg.TotalLatency += h.TotalLatency
		n++
	}
	if n == 0 {
		return avg
	}

	avg.OK = true
	avg.SynthLatency /= n
	avg.PlaybackLatency /= n
	avg.RecordLatency /= n
	avg.STTLatency /= n
	avg.TotalLatency /= n
	return avg
}

// FormatLatency returns a one-line breakdown.
func (m *Metrics) FormatLatency() string {
	if m.Kind == KindSpeak {
		return formatDuration(m.SynthLatency) + " TTS | " +
			formatDuration(m.PlaybackLatency) + " PLAY | " +
			formatDuration(m.TotalLatency) + " TOTAL"
	}
	return formatDuration(m.RecordLatency) + " REC | " +
		formatDuration(m.STTLatency) + " STT | " +
		formatDuration(m.TotalLatency) + " TOTAL"
}

func formatDuration(d time.Duration) string {
	if d == 0 {
		return "---ms"
	}
	return d.Round(time.Millisecond).String()
}
