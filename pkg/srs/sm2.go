// Package srs implements the SM-2 variant used by the review scheduler: the
// easiness-factor update over the Ebbinghaus forgetting curve, the 1/6/EF
// interval ladder, and the bulk priority score. The package is pure; callers
// own persistence and clocks.
package srs

import (
	"math"
	"time"
)

const (
	// InitialEaseFactor seeds a brand-new record.
	InitialEaseFactor = 2.5
	// MinEaseFactor is the SM-2 floor; EF never drops below it.
	MinEaseFactor = 1.3
	// MinIntervalDays and MaxIntervalDays clamp every scheduled interval.
	MinIntervalDays = 1
	MaxIntervalDays = 365

	// QualityCorrect and QualityIncorrect map a binary attempt outcome onto
	// the 0..5 SM-2 quality scale.
	QualityCorrect   = 5
	QualityIncorrect = 2
	// PassThreshold separates passing from failing qualities.
	PassThreshold = 3
)

// State is the scheduling slice of a learning record.
type State struct {
	EaseFactor         float64
	IntervalDays       int32
	ConsecutiveCorrect int32
}

// NewState returns the state of a record that has never been reviewed.
func NewState() State {
	return State{EaseFactor: InitialEaseFactor}
}

// Next is the schedule produced by applying one attempt.
type Next struct {
	State
	Quality      int
	Passed       bool
	NextReviewAt time.Time
}

// Grade maps a binary outcome onto the quality scale.
func Grade(correct bool) int {
	if correct {
		return QualityCorrect
	}
	return QualityIncorrect
}

// First schedules a record's very first attempt. The initial easiness factor
// is recorded unchanged; the update formula applies from the second attempt
// on. Either way the item comes back tomorrow.
func First(correct bool, now time.Time) Next {
	next := Next{Quality: Grade(correct), Passed: correct, NextReviewAt: now.AddDate(0, 0, MinIntervalDays)}
	next.EaseFactor = InitialEaseFactor
	next.IntervalDays = MinIntervalDays
	if correct {
		next.ConsecutiveCorrect = 1
	}
	return next
}

// NextEaseFactor applies the SM-2 easiness update for one attempt of the
// given quality and clamps the result to the floor.
func NextEaseFactor(ef float64, quality int) float64 {
	q := float64(clampQuality(quality))
	next := ef + (0.1 - (5-q)*(0.08+(5-q)*0.02))
	return math.Max(MinEaseFactor, next)
}

// NextInterval computes the interval in whole days for a record whose new
// consecutive-correct count is n, given the previously scheduled interval and
// the already-updated easiness factor. n <= 0 means the attempt failed.
func NextInterval(n int32, prevIntervalDays int32, ef float64) int32 {
	switch {
	case n <= 0:
		return MinIntervalDays
	case n == 1:
		return MinIntervalDays
	case n == 2:
		return 6
	}
	next := int32(math.Floor(float64(prevIntervalDays) * ef))
	if next < MinIntervalDays {
		next = MinIntervalDays
	}
	if next > MaxIntervalDays {
		next = MaxIntervalDays
	}
	return next
}

// Apply advances the state by one binary attempt at the given review time.
func Apply(s State, correct bool, now time.Time) Next {
	return ApplyQuality(s, Grade(correct), now)
}

// ApplyQuality advances the state by one graded attempt. A quality below the
// pass threshold resets the consecutive-correct run and schedules the item
// for tomorrow; a passing quality climbs the 1/6/EF ladder. The easiness
// factor is updated first so interval growth uses the fresh value.
func ApplyQuality(s State, quality int, now time.Time) Next {
	quality = clampQuality(quality)
	if s.EaseFactor <= 0 {
		s.EaseFactor = InitialEaseFactor
	}

	next := Next{Quality: quality, Passed: quality >= PassThreshold}
	next.EaseFactor = NextEaseFactor(s.EaseFactor, quality)
	if next.Passed {
		next.ConsecutiveCorrect = s.ConsecutiveCorrect + 1
	} else {
		next.ConsecutiveCorrect = 0
	}
	next.IntervalDays = NextInterval(next.ConsecutiveCorrect, s.IntervalDays, next.EaseFactor)
	next.NextReviewAt = now.AddDate(0, 0, int(next.IntervalDays))
	return next
}

func clampQuality(q int) int {
	if q < 0 {
		return 0
	}
	if q > 5 {
		return 5
	}
	return q
}
