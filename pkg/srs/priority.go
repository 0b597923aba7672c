package srs

import "math"

// Priority score weights. The score orders records for bulk runners only;
// per-user due lists are ordered by (next_review_at, memory_strength) and
// never consult it.
const (
	weightOverdue     = 10
	weightPerformance = 5
	weightQuality     = 2
)

// PriorityInput carries the per-record signals the bulk score combines.
type PriorityInput struct {
	// DaysOverdue is how far past due the record is; negative values count
	// as zero.
	DaysOverdue float64
	// RecentPerformance is the user's recent hit rate in [0,1].
	RecentPerformance float64
	// LevelWeight ranks the item's difficulty band.
	LevelWeight float64
	// QualityScore grades the item's content completeness in [0,1].
	QualityScore float64
}

// PriorityBreakdown reports the score with its components, so batch runners
// can log why a record ranked where it did.
type PriorityBreakdown struct {
	Overdue     float64
	Performance float64
	Level       float64
	Quality     float64
	Total       float64
}

// Priority computes the bulk prioritization score.
func Priority(in PriorityInput) PriorityBreakdown {
	perf := math.Min(1, math.Max(0, in.RecentPerformance))
	b := PriorityBreakdown{
		Overdue:     weightOverdue * math.Max(0, in.DaysOverdue),
		Performance: weightPerformance * (1 - perf),
		Level:       in.LevelWeight,
		Quality:     weightQuality * math.Min(1, math.Max(0, in.QualityScore)),
	}
	b.Total = b.Overdue + b.Performance + b.Level + b.Quality
	return b
}
