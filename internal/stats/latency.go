// Package stats keeps rolling latency windows for search-backend calls.
package stats

import (
	"sort"
	"sync"
	"time"
)

type sample struct {
	timestamp  time.Time
	durationMs int64
	failed     bool
}

// Snapshot is a point-in-time aggregate of latency samples.
type Snapshot struct {
	Count  int     `json:"count"`
	Errors int     `json:"errors"`
	MinMs  int64   `json:"min_ms"`
	MaxMs  int64   `json:"max_ms"`
	AvgMs  float64 `json:"avg_ms"`
	P50Ms  float64 `json:"p50_ms"`
	P95Ms  float64 `json:"p95_ms"`
	P99Ms  float64 `json:"p99_ms"`
}

// Latency tracks recent call latencies within a rolling window.
type Latency struct {
	mu      sync.Mutex
	samples []sample
	maxAge  time.Duration
}

func NewLatency(maxAge time.Duration) *Latency {
	if maxAge <= 0 {
		maxAge = time.Hour
	}
	return &Latency{
		samples: make([]sample, 0, 256),
		maxAge:  maxAge,
	}
}

// Record adds one call. Failed calls count towards Errors as well as the
// latency distribution.
func (l *Latency) Record(d time.Duration, failed bool) {
	ms := d.Milliseconds()
	if ms < 0 {
		ms = 0
	}
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.pruneLocked(now)
	l.samples = append(l.samples, sample{timestamp: now, durationMs: ms, failed: failed})
}

func (l *Latency) Snapshot() Snapshot {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.pruneLocked(now)
	if len(l.samples) == 0 {
		return Snapshot{}
	}

	values := make([]int64, 0, len(l.samples))
	var sum int64
	var errs int
	for _, sm := range l.samples {
		values = append(values, sm.durationMs)
		sum += sm.durationMs
		if sm.failed {
			errs++
		}
	}
	sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })

	return Snapshot{
		Count:  len(values),
		Errors: errs,
		MinMs:  values[0],
		MaxMs:  values[len(values)-1],
		AvgMs:  float64(sum) / float64(len(values)),
		P50Ms:  percentile(values, 50),
		P95Ms:  percentile(values, 95),
		P99Ms:  percentile(values, 99),
	}
}

func (l *Latency) pruneLocked(now time.Time) {
	cutoff := now.Add(-l.maxAge)
	keep := 0
	for _, sm := range l.samples {
		if !sm.timestamp.Before(cutoff) {
			l.samples[keep] = sm
			keep++
		}
	}
	l.samples = l.samples[:keep]
}

func percentile(sorted []int64, pct float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if pct <= 0 {
		return float64(sorted[0])
	}
	if pct >= 100 {
		return float64(sorted[len(sorted)-1])
	}

	index := (float64(len(sorted)-1) * pct) / 100.0
	lower := int(index)
	upper := lower + 1
	if upper >= len(sorted) {
		return float64(sorted[lower])
	}
	weight := index - float64(lower)
	lo, hi := float64(sorted[lower]), float64(sorted[upper])
	return lo + (hi-lo)*weight
}

// Registry holds one Latency per operation name.
type Registry struct {
	mu     sync.Mutex
	maxAge time.Duration
	ops    map[string]*Latency
}

func NewRegistry(maxAge time.Duration) *Registry {
	return &Registry{maxAge: maxAge, ops: make(map[string]*Latency)}
}

// Op returns the window for name, creating it on first use.
func (r *Registry) Op(name string) *Latency {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.ops[name]
	if !ok {
		l = NewLatency(r.maxAge)
		r.ops[name] = l
	}
	return l
}

// Snapshot returns every operation's aggregate keyed by name.
func (r *Registry) Snapshot() map[string]Snapshot {
	r.mu.Lock()
	names := make([]string, 0, len(r.ops))
	for name := range r.ops {
		names = append(names, name)
	}
	r.mu.Unlock()

	out := make(map[string]Snapshot, len(names))
	for _, name := range names {
		out[name] = r.Op(name).Snapshot()
	}
	return out
}
