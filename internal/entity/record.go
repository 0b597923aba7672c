package entity

import (
	"fmt"
	"time"
)

// MinEaseFactor is the floor below which an easiness factor never drops.
const MinEaseFactor = 1.3

// LearningRecord is the per-(user, item) mnemonic state. At most one record
// exists per (UserID, ItemID, Kind); it is created on the first attempt and
// updated in place on every later one.
type LearningRecord struct {
	ID     int64
	UserID int64
	ItemID int64
	Kind   ItemKind

	LearnCount         int32
	CorrectCount       int32
	ConsecutiveCorrect int32
	EaseFactor         float64
	MemoryStrength     float64
	MasteryLevel       int32

	// IntervalDays is the previously scheduled interval, kept explicitly so
	// growth is stable against early or late reviews.
	IntervalDays int32
	LastReviewAt time.Time
	NextReviewAt time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Derive recomputes the fields that are functions of the counters.
func (r *LearningRecord) Derive() {
	if r.LearnCount > 0 {
		r.MemoryStrength = float64(r.CorrectCount) / float64(r.LearnCount)
	} else {
		r.MemoryStrength = 0
	}
	r.MasteryLevel = r.CorrectCount / 2
	if r.MasteryLevel > 5 {
		r.MasteryLevel = 5
	}
}

// Mastered reports whether the record has left the new-item selection pool.
func (r *LearningRecord) Mastered() bool {
	return r.MasteryLevel >= 3
}

// Due reports whether the record is due at the given time.
func (r *LearningRecord) Due(now time.Time) bool {
	return !r.NextReviewAt.IsZero() && !r.NextReviewAt.After(now)
}

// DaysOverdue returns how many whole days past due the record is, never
// negative.
func (r *LearningRecord) DaysOverdue(now time.Time) float64 {
	if r.NextReviewAt.IsZero() {
		return 0
	}
	d := now.Sub(r.NextReviewAt).Hours() / 24
	if d < 0 {
		return 0
	}
	return d
}

// Normalize ensures defaults & constraints before persistence.
func (r *LearningRecord) Normalize(now time.Time) {
	if r.EaseFactor < MinEaseFactor {
		r.EaseFactor = MinEaseFactor
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = now
	r.Derive()
}

// Validate checks the record invariants that must hold at all times.
func (r *LearningRecord) Validate() error {
	if r.UserID <= 0 {
		return fmt.Errorf("%w: user id must be positive", ErrInvalidInput)
	}
	if r.ItemID <= 0 {
		return fmt.Errorf("%w: item id must be positive", ErrInvalidInput)
	}
	if !r.Kind.Valid() {
		return fmt.Errorf("%w: unknown item kind %q", ErrInvalidInput, r.Kind)
	}
	if r.LearnCount < 0 || r.CorrectCount < 0 || r.CorrectCount > r.LearnCount {
		return fmt.Errorf("%w: counter invariant violated (learn=%d correct=%d)", ErrCorrupt, r.LearnCount, r.CorrectCount)
	}
	if r.ConsecutiveCorrect < 0 || r.ConsecutiveCorrect > r.CorrectCount {
		return fmt.Errorf("%w: consecutive_correct out of range", ErrCorrupt)
	}
	if r.EaseFactor < MinEaseFactor {
		return fmt.Errorf("%w: ease factor %.3f below floor", ErrCorrupt, r.EaseFactor)
	}
	if !r.LastReviewAt.IsZero() && !r.NextReviewAt.After(r.LastReviewAt) {
		return fmt.Errorf("%w: next_review_at must follow last_review_at", ErrCorrupt)
	}
	return nil
}

// DueReview couples a due record with its item projection.
type DueReview struct {
	Record LearningRecord
	Item   ItemCard
}

// MasteryBucket is one slot of a user's mastery distribution.
type MasteryBucket struct {
	Level int32
	Count int64
}

// DailyActivity is one day of a user's recent review history.
type DailyActivity struct {
	Day       time.Time
	Attempted int64
	Correct   int64
}

// UserStats aggregates a user's learning state for the progress surface.
type UserStats struct {
	TotalRecords   int64
	DueCount       int64
	MasteredCount  int64
	Mastery        []MasteryBucket
	RecentActivity []DailyActivity
}

// HitRate is the share of recent attempts answered correctly, in [0,1].
// Returns 1 when there is no recent activity so fresh users are not treated
// as struggling by the bulk priority score.
func (s *UserStats) HitRate() float64 {
	var attempted, correct int64
	for _, day := range s.RecentActivity {
		attempted += day.Attempted
		correct += day.Correct
	}
	if attempted == 0 {
		return 1
	}
	return float64(correct) / float64(attempted)
}
