package database

import (
	"fmt"
	"testing"
	"time"

	"github.com/eslsoft/lexloop/internal/infrastructure/config"
)

func newTestStats(threshold time.Duration) *Stats {
	return NewStats(&config.Config{Database: config.DatabaseConfig{SlowQuery: threshold}})
}

func TestStatsAggregates(t *testing.T) {
	stats := newTestStats(50 * time.Millisecond)

	stats.Observe("items.list", 10*time.Millisecond)
	stats.Observe("records.upsert", 20*time.Millisecond)
	stats.Observe("records.due", 60*time.Millisecond)

	snap := stats.Snapshot()
	if snap.QueryCount != 3 {
		t.Fatalf("expected 3 queries, got %d", snap.QueryCount)
	}
	if snap.TotalTime != 90*time.Millisecond {
		t.Errorf("expected total 90ms, got %s", snap.TotalTime)
	}
	if snap.AverageTime != 30*time.Millisecond {
		t.Errorf("expected average 30ms, got %s", snap.AverageTime)
	}
	if len(snap.SlowQueries) != 1 || snap.SlowQueries[0].Query != "records.due" {
		t.Errorf("expected one slow query records.due, got %+v", snap.SlowQueries)
	}
}

func TestStatsSlowWindowCaps(t *testing.T) {
	stats := newTestStats(time.Millisecond)

	for i := 0; i < slowWindowSize+10; i++ {
		stats.Observe(fmt.Sprintf("q%d", i), 5*time.Millisecond)
	}

	snap := stats.Snapshot()
	if len(snap.SlowQueries) != slowWindowSize {
		t.Fatalf("expected window of %d, got %d", slowWindowSize, len(snap.SlowQueries))
	}
	// Oldest entries are evicted first.
	if got := snap.SlowQueries[0].Query; got != "q10" {
		t.Errorf("expected oldest retained query q10, got %s", got)
	}
}

func TestStatsSnapshotIsACopy(t *testing.T) {
	stats := newTestStats(time.Millisecond)
	stats.Observe("records.due", 5*time.Millisecond)

	snap := stats.Snapshot()
	snap.SlowQueries[0].Query = "mutated"

	if got := stats.Snapshot().SlowQueries[0].Query; got != "records.due" {
		t.Errorf("snapshot mutation leaked into collector: %s", got)
	}
}
