package database

import (
	"sync"
	"time"

	"github.com/eslsoft/lexloop/internal/infrastructure/config"
)

// slowWindowSize bounds the rolling window of retained slow queries.
const slowWindowSize = 32

// Stats collects query timings across all repositories. Recording is cheap
// and never gates a request; the stats command reads it back via Snapshot.
type Stats struct {
	mu        sync.Mutex
	threshold time.Duration
	count     int64
	total     time.Duration
	slow      []SlowQuery
}

// SlowQuery is one retained slow-query observation.
type SlowQuery struct {
	Query    string
	Duration time.Duration
	At       time.Time
}

// StatsSnapshot is a point-in-time copy of the collected metrics.
type StatsSnapshot struct {
	QueryCount  int64
	TotalTime   time.Duration
	AverageTime time.Duration
	SlowQueries []SlowQuery
}

// NewStats creates a collector that retains queries slower than the
// configured slow-query threshold.
func NewStats(cfg *config.Config) *Stats {
	threshold := cfg.Database.SlowQuery
	if threshold <= 0 {
		threshold = 100 * time.Millisecond
	}
	return &Stats{threshold: threshold}
}

// Observe records one finished query.
func (s *Stats) Observe(query string, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.count++
	s.total += d
	if d < s.threshold {
		return
	}
	s.slow = append(s.slow, SlowQuery{Query: query, Duration: d, At: time.Now()})
	if len(s.slow) > slowWindowSize {
		s.slow = s.slow[len(s.slow)-slowWindowSize:]
	}
}

// Track times a query from the call until the returned func runs:
//
//	defer stats.Track("records.upsert")()
func (s *Stats) Track(query string) func() {
	start := time.Now()
	return func() { s.Observe(query, time.Since(start)) }
}

// Snapshot returns a copy of the collected metrics.
func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := StatsSnapshot{
		QueryCount: s.count,
		TotalTime:  s.total,
	}
	if s.count > 0 {
		snap.AverageTime = s.total / time.Duration(s.count)
	}
	snap.SlowQueries = append([]SlowQuery(nil), s.slow...)
	return snap
}
