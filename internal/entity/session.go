package entity

import (
	"fmt"
	"time"
)

// ActivityMode tells the front end how an activity is studied.
type ActivityMode string

const (
	ActivityModeLearn  ActivityMode = "learn"
	ActivityModeReview ActivityMode = "review"
	ActivityModeRead   ActivityMode = "read"
)

// ActivityStatus is the lifecycle state of one planned activity.
type ActivityStatus string

const (
	ActivityPlanned    ActivityStatus = "planned"
	ActivityInProgress ActivityStatus = "in_progress"
	ActivityCompleted  ActivityStatus = "completed"
	ActivityAbandoned  ActivityStatus = "abandoned"
)

// Activity is one planned step of a study session.
type Activity struct {
	Seq       int
	ItemID    int64
	Kind      ItemKind
	Language  Language
	Mode      ActivityMode
	Minutes   int32
	Status    ActivityStatus
	Attempts  int32
	UpdatedAt time.Time
}

// Advance moves the activity through its lifecycle. Completion requires at
// least one recorded attempt.
func (a *Activity) Advance(next ActivityStatus, now time.Time) error {
	switch {
	case a.Status == ActivityPlanned && next == ActivityInProgress:
	case a.Status == ActivityInProgress && next == ActivityCompleted:
		if a.Attempts == 0 {
			return fmt.Errorf("%w: activity %d has no recorded attempt", ErrInvalidInput, a.Seq)
		}
	case (a.Status == ActivityPlanned || a.Status == ActivityInProgress) && next == ActivityAbandoned:
	default:
		return fmt.Errorf("%w: activity transition %s -> %s", ErrInvalidInput, a.Status, next)
	}
	a.Status = next
	a.UpdatedAt = now
	return nil
}

// Session is the transient plan for one study day. It is rebuilt on demand
// from persisted records; only attempts are ever persisted.
type Session struct {
	ID             string
	UserID         int64
	PlannedMinutes int32
	ReviewMinutes  int32
	Activities     []Activity
	StartedAt      time.Time
	EndedAt        time.Time
}

// ActivityBySeq finds a planned activity by its sequence number.
func (s *Session) ActivityBySeq(seq int) (*Activity, error) {
	for i := range s.Activities {
		if s.Activities[i].Seq == seq {
			return &s.Activities[i], nil
		}
	}
	return nil, fmt.Errorf("%w: activity %d in session %s", ErrItemNotFound, seq, s.ID)
}

// SessionRollup is derived after a session ends and never persisted.
type SessionRollup struct {
	Attempted     int64
	Correct       int64
	NewlyLearned  int64
	NewlyMastered int64
	ReviewHitRate float64
	MinutesByLang map[Language]int32
	WindowStart   time.Time
	WindowEnd     time.Time
}
