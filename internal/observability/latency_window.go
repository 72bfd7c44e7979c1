package observability

import (
	"math"
	"sort"
	"sync"
	"time"
)

// Latency stages tracked by the window.
const (
	StageSpeechToText = "speech_to_text"
	StageProcessing   = "processing"
	StageTextToSpeech = "text_to_speech"
	StageTotal        = "total"
)

// DefaultWindowSamples caps each stage's rolling buffer.
const DefaultWindowSamples = 100

// StageStats summarizes one stage's rolling buffer.
type StageStats struct {
	Stage   string  `json:"stage"`
	Samples int     `json:"samples"`
	LastMS  float64 `json:"last_ms"`
	AvgMS   float64 `json:"avg_ms"`
	P50MS   float64 `json:"p50_ms"`
	P95MS   float64 `json:"p95_ms"`
}

// WindowSnapshot is a point-in-time view of all stage buffers.
type WindowSnapshot struct {
	GeneratedAt time.Time    `json:"generated_at"`
	WindowSize  int          `json:"window_size"`
	Stages      []StageStats `json:"stages"`
}

// LatencyWindow keeps a bounded rolling buffer of latency samples per
// stage. Once a buffer is full the oldest sample is evicted first.
type LatencyWindow struct {
	mu         sync.RWMutex
	maxSamples int
	stages     map[string]*stageBuffer
}

type stageBuffer struct {
	values []float64
	next   int
	filled bool
	last   float64
}

func NewLatencyWindow(maxSamples int) *LatencyWindow {
	if maxSamples <= 0 {
		maxSamples = DefaultWindowSamples
	}
	return &LatencyWindow{
		maxSamples: maxSamples,
		stages:     make(map[string]*stageBuffer),
	}
}

// Observe records one latency sample in milliseconds for the stage.
func (w *LatencyWindow) Observe(stage string, ms float64) {
	if stage == "" || ms < 0 {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	buf, ok := w.stages[stage]
	if !ok {
		buf = &stageBuffer{values: make([]float64, w.maxSamples)}
		w.stages[stage] = buf
	}
	buf.values[buf.next] = ms
	buf.last = ms
	buf.next++
	if buf.next >= len(buf.values) {
		buf.next = 0
		buf.filled = true
	}
}

// ObserveDuration records a duration sample for the stage.
func (w *LatencyWindow) ObserveDuration(stage string, d time.Duration) {
	w.Observe(stage, float64(d.Microseconds())/1000)
}

// Average returns the mean of the stage's buffered samples, 0 if empty.
func (w *LatencyWindow) Average(stage string) float64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	samples := w.samplesLocked(stage)
	if len(samples) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range samples {
		sum += v
	}
	return sum / float64(len(samples))
}

// Count returns the number of buffered samples for the stage.
func (w *LatencyWindow) Count(stage string) int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.samplesLocked(stage))
}

// Values returns the stage's buffered samples in oldest-first order.
func (w *LatencyWindow) Values(stage string) []float64 {
	w.mu.RLock()
	defer w.mu.RUnlock()

	buf, ok := w.stages[stage]
	if !ok {
		return nil
	}
	if !buf.filled {
		out := make([]float64, buf.next)
		copy(out, buf.values[:buf.next])
		return out
	}
	out := make([]float64, 0, len(buf.values))
	out = append(out, buf.values[buf.next:]...)
	out = append(out, buf.values[:buf.next]...)
	return out
}

// Snapshot summarizes every stage, sorted by stage name.
func (w *LatencyWindow) Snapshot() WindowSnapshot {
	w.mu.RLock()
	defer w.mu.RUnlock()

	keys := make([]string, 0, len(w.stages))
	for stage := range w.stages {
		keys = append(keys, stage)
	}
	sort.Strings(keys)

	stages := make([]StageStats, 0, len(keys))
	for _, stage := range keys {
		samples := w.samplesLocked(stage)
		if len(samples) == 0 {
			continue
		}
		sorted := make([]float64, len(samples))
		copy(sorted, samples)
		sort.Float64s(sorted)

		sum := 0.0
		for _, v := range sorted {
			sum += v
		}

		stages = append(stages, StageStats{
			Stage:   stage,
			Samples: len(sorted),
			LastMS:  round2(w.stages[stage].last),
			AvgMS:   round2(sum / float64(len(sorted))),
			P50MS:   round2(quantile(sorted, 0.50)),
			P95MS:   round2(quantile(sorted, 0.95)),
		})
	}

	return WindowSnapshot{
		GeneratedAt: time.Now().UTC(),
		WindowSize:  w.maxSamples,
		Stages:      stages,
	}
}

// Reset drops all buffered samples.
func (w *LatencyWindow) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stages = make(map[string]*stageBuffer)
}

func (w *LatencyWindow) samplesLocked(stage string) []float64 {
	buf, ok := w.stages[stage]
	if !ok {
		return nil
	}
	n := buf.next
	if buf.filled {
		n = len(buf.values)
	}
	return buf.values[:n]
}

func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	idx := q * float64(len(sorted)-1)
	lo := int(math.Floor(idx))
	hi := int(math.Ceil(idx))
	if lo == hi {
		return sorted[lo]
	}
	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// PerformanceReport aggregates provider round-trip health. The speech
// gateway produces it and the session store holds the latest copy.
type PerformanceReport struct {
	AvgSpeechToTextMS float64 `json:"avg_speech_to_text_ms"`
	AvgProcessingMS   float64 `json:"avg_processing_ms"`
	AvgTextToSpeechMS float64 `json:"avg_text_to_speech_ms"`
	AvgTotalMS        float64 `json:"avg_total_ms"`
	ErrorRate         float64 `json:"error_rate"`
	Successes         int64   `json:"successes"`
	Errors            int64   `json:"errors"`
}
