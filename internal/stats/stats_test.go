package stats

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dgallion1/docsearch/internal/searchstore"
	"github.com/dgallion1/docsearch/internal/searchstore/blevestore"
)

func TestLatencySnapshotPercentiles(t *testing.T) {
	l := NewLatency(time.Hour)
	for _, ms := range []int64{100, 200, 300, 400, 500} {
		l.Record(time.Duration(ms)*time.Millisecond, false)
	}

	snap := l.Snapshot()
	if snap.Count != 5 {
		t.Fatalf("expected count=5, got %d", snap.Count)
	}
	if snap.MinMs != 100 || snap.MaxMs != 500 {
		t.Fatalf("expected min=100 max=500, got min=%d max=%d", snap.MinMs, snap.MaxMs)
	}
	if snap.AvgMs != 300 {
		t.Fatalf("expected avg=300, got %f", snap.AvgMs)
	}
	if snap.P50Ms != 300 {
		t.Fatalf("expected p50=300, got %f", snap.P50Ms)
	}
	if snap.P95Ms != 480 {
		t.Fatalf("expected p95=480, got %f", snap.P95Ms)
	}
	if snap.P99Ms != 496 {
		t.Fatalf("expected p99=496, got %f", snap.P99Ms)
	}
}

func TestLatencyPrunesExpiredSamples(t *testing.T) {
	l := NewLatency(10 * time.Millisecond)
	l.Record(100*time.Millisecond, false)
	time.Sleep(25 * time.Millisecond)

	if snap := l.Snapshot(); snap.Count != 0 {
		t.Fatalf("expected count=0 after prune, got %d", snap.Count)
	}

	l.Record(200*time.Millisecond, true)
	snap := l.Snapshot()
	if snap.Count != 1 || snap.Errors != 1 {
		t.Fatalf("expected count=1 errors=1, got count=%d errors=%d", snap.Count, snap.Errors)
	}
}

func TestLatencyClampsNegativeDuration(t *testing.T) {
	l := NewLatency(time.Hour)
	l.Record(-10*time.Millisecond, false)
	snap := l.Snapshot()
	if snap.MinMs != 0 || snap.MaxMs != 0 {
		t.Fatalf("expected clamped duration=0, got min=%d max=%d", snap.MinMs, snap.MaxMs)
	}
}

func TestInstrumentRecordsPerOperation(t *testing.T) {
	inner, err := blevestore.New("")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	reg := NewRegistry(time.Hour)
	store := Instrument(inner, reg)
	defer store.Close()
	ctx := context.Background()

	if err := store.EnsureIndex(ctx); err != nil {
		t.Fatalf("ensure index: %v", err)
	}
	if err := store.Put(ctx, searchstore.StoredDocument{ID: "a", Role: "User", Content: "x"}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := store.Get(ctx, "missing"); !errors.Is(err, searchstore.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := store.Get(ctx, "a"); err != nil {
		t.Fatalf("get: %v", err)
	}

	snap := reg.Snapshot()
	if snap["put"].Count != 1 {
		t.Fatalf("expected 1 put sample, got %d", snap["put"].Count)
	}
	if snap["get"].Count != 2 {
		t.Fatalf("expected 2 get samples, got %d", snap["get"].Count)
	}
	if snap["get"].Errors != 0 {
		t.Fatalf("expected not-found to be excluded from errors, got %d", snap["get"].Errors)
	}
	if _, ok := snap["search"]; ok {
		t.Fatal("expected no search window before any search")
	}
}
