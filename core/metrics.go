package core

import (
	"context"
	"sync"
)

type NopMetricsRecorder struct{}

func (NopMetricsRecorder) IncCounter(context.Context, string, int64, map[string]string) {}

func (NopMetricsRecorder) ObserveHistogram(context.Context, string, float64, map[string]string) {}

// CounterSnapshot is a point-in-time copy of an InMemoryMetricsRecorder
// counter keyed by metric name.
type CounterSnapshot map[string]int64

// InMemoryMetricsRecorder keeps process-local counter totals. It backs the
// health endpoint when no external metrics pipeline is wired.
type InMemoryMetricsRecorder struct {
	mu       sync.Mutex
	counters map[string]int64
}

func NewInMemoryMetricsRecorder() *InMemoryMetricsRecorder {
	return &InMemoryMetricsRecorder{counters: map[string]int64{}}
}

func (r *InMemoryMetricsRecorder) IncCounter(_ context.Context, name string, value int64, tags map[string]string) {
	if r == nil {
		return
	}
	key := name
	if status := tags["status"]; status != "" {
		key = name + "." + status
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.counters == nil {
		r.counters = map[string]int64{}
	}
	r.counters[key] += value
}

func (*InMemoryMetricsRecorder) ObserveHistogram(context.Context, string, float64, map[string]string) {}

func (r *InMemoryMetricsRecorder) Counters() CounterSnapshot {
	if r == nil {
		return CounterSnapshot{}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(CounterSnapshot, len(r.counters))
	for key, value := range r.counters {
		out[key] = value
	}
	return out
}

func cloneTags(tags map[string]string) map[string]string {
	if len(tags) == 0 {
		return map[string]string{}
	}
	copied := make(map[string]string, len(tags))
	for key, value := range tags {
		copied[key] = value
	}
	return copied
}

var (
	_ MetricsRecorder = NopMetricsRecorder{}
	_ MetricsRecorder = (*InMemoryMetricsRecorder)(nil)
)
