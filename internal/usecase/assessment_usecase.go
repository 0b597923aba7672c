package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"github.com/eslsoft/lexloop/internal/entity"
	"github.com/eslsoft/lexloop/internal/repository"
	"github.com/eslsoft/lexloop/pkg/srs"
)

// defaultWriteAttempts bounds retries of the attempt upsert on transient
// store errors.
const defaultWriteAttempts = 3

// masteryCorrects is how many correct answers lift a record to the top
// mastery level (level = correct count / 2, capped at 5).
const masteryCorrects = 10

// AttemptResult is the next-state response for one recorded attempt. When
// Feedback.Recorded is false the store rejected the write and Record holds
// the unchanged prior state.
type AttemptResult struct {
	Record       *entity.LearningRecord
	NextReviewAt time.Time
	Feedback     entity.Feedback
}

// AssessmentUsecase accepts attempt outcomes and derives session roll-ups.
type AssessmentUsecase interface {
	RecordAttempt(ctx context.Context, userID, itemID int64, kind entity.ItemKind, correct bool) (*AttemptResult, error)

	// EvaluateSessionOutcome rolls up the records whose last review falls
	// inside [from, to). Nothing is persisted.
	EvaluateSessionOutcome(ctx context.Context, userID int64, from, to time.Time) (*entity.SessionRollup, error)
}

// NewAssessmentUsecase wires the repositories with default behaviour.
func NewAssessmentUsecase(records repository.RecordRepository, items repository.ItemRepository, logger *logrus.Logger) AssessmentUsecase {
	return &assessmentUsecase{
		records:  records,
		items:    items,
		logger:   logger,
		clock:    time.Now,
		attempts: defaultWriteAttempts,
	}
}

type assessmentUsecase struct {
	records  repository.RecordRepository
	items    repository.ItemRepository
	logger   *logrus.Logger
	clock    func() time.Time
	attempts int

	// userLocks serializes attempts per user so each one observes the
	// effects of the user's immediately preceding attempt.
	userLocks sync.Map
}

func (u *assessmentUsecase) lockUser(userID int64) func() {
	mu, _ := u.userLocks.LoadOrStore(userID, &sync.Mutex{})
	lock := mu.(*sync.Mutex)
	lock.Lock()
	return lock.Unlock
}

func (u *assessmentUsecase) RecordAttempt(ctx context.Context, userID, itemID int64, kind entity.ItemKind, correct bool) (*AttemptResult, error) {
	if userID <= 0 {
		return nil, fmt.Errorf("%w: user id required", entity.ErrInvalidInput)
	}
	if itemID <= 0 {
		return nil, fmt.Errorf("%w: item id required", entity.ErrInvalidInput)
	}
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: unknown item kind %q", entity.ErrInvalidInput, kind)
	}

	defer u.lockUser(userID)()

	current, err := u.records.GetByItem(ctx, userID, itemID, kind)
	if err != nil && !isNotFound(err) {
		return nil, err
	}
	if current == nil {
		// First attempt: the item must exist before a record is created.
		if _, err := u.items.GetByID(ctx, kind, itemID); err != nil {
			return nil, err
		}
	}

	now := u.clock()
	next := u.applyAttempt(current, userID, itemID, kind, correct, now)
	if err := next.Validate(); err != nil {
		return nil, err
	}

	stored, err := u.upsertWithRetry(ctx, next)
	if err != nil {
		u.logger.WithFields(logrus.Fields{
			"user_id": userID,
			"item_id": itemID,
			"kind":    kind.String(),
		}).WithError(err).Error("attempt not recorded")
		return u.notRecorded(current, correct), err
	}

	return &AttemptResult{
		Record:       stored,
		NextReviewAt: stored.NextReviewAt,
		Feedback:     entity.GradeAttempt(correct, stored.MemoryStrength),
	}, nil
}

// applyAttempt computes the successor record without touching the store.
func (u *assessmentUsecase) applyAttempt(current *entity.LearningRecord, userID, itemID int64, kind entity.ItemKind, correct bool, now time.Time) *entity.LearningRecord {
	next := &entity.LearningRecord{UserID: userID, ItemID: itemID, Kind: kind}
	var schedule srs.Next
	if current == nil {
		schedule = srs.First(correct, now)
	} else {
		*next = *current
		schedule = srs.Apply(srs.State{
			EaseFactor:         current.EaseFactor,
			IntervalDays:       current.IntervalDays,
			ConsecutiveCorrect: current.ConsecutiveCorrect,
		}, correct, now)
	}

	next.LearnCount++
	if correct {
		next.CorrectCount++
	}
	next.ConsecutiveCorrect = schedule.ConsecutiveCorrect
	next.EaseFactor = schedule.EaseFactor
	next.IntervalDays = schedule.IntervalDays
	next.LastReviewAt = now
	next.NextReviewAt = schedule.NextReviewAt
	next.Normalize(now)
	return next
}

func (u *assessmentUsecase) upsertWithRetry(ctx context.Context, record *entity.LearningRecord) (*entity.LearningRecord, error) {
	var stored *entity.LearningRecord
	op := func() error {
		var err error
		stored, err = u.records.Upsert(ctx, record)
		if err != nil && !entity.Retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(u.attempts-1)), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		return nil, err
	}
	return stored, nil
}

// notRecorded builds the unchanged-state response for a failed write.
func (u *assessmentUsecase) notRecorded(current *entity.LearningRecord, correct bool) *AttemptResult {
	res := &AttemptResult{}
	if current != nil {
		copy := *current
		res.Record = &copy
		res.NextReviewAt = current.NextReviewAt
		res.Feedback = entity.NotRecorded(correct, current.MemoryStrength)
		return res
	}
	res.Feedback = entity.NotRecorded(correct, 0)
	return res
}

func (u *assessmentUsecase) EvaluateSessionOutcome(ctx context.Context, userID int64, from, to time.Time) (*entity.SessionRollup, error) {
	if userID <= 0 {
		return nil, fmt.Errorf("%w: user id required", entity.ErrInvalidInput)
	}
	if !to.After(from) {
		return nil, fmt.Errorf("%w: empty session window", entity.ErrInvalidInput)
	}

	records, err := u.records.ListReviewedBetween(ctx, userID, from, to)
	if err != nil {
		return nil, err
	}

	rollup := &entity.SessionRollup{WindowStart: from, WindowEnd: to}
	for _, rec := range records {
		rollup.Attempted++
		latestCorrect := rec.ConsecutiveCorrect > 0
		if latestCorrect {
			rollup.Correct++
		}
		if rec.LearnCount == 1 {
			rollup.NewlyLearned++
		}
		// A record counts as newly mastered when its current correct streak
		// contains the tenth correct answer: everything before the streak
		// still falls short of mastery, so the crossing happened within it.
		if rec.MasteryLevel == 5 && latestCorrect &&
			rec.CorrectCount-rec.ConsecutiveCorrect < masteryCorrects {
			rollup.NewlyMastered++
		}
	}
	if rollup.Attempted > 0 {
		rollup.ReviewHitRate = float64(rollup.Correct) / float64(rollup.Attempted)
	}
	return rollup, nil
}

func isNotFound(err error) bool {
	return entity.KindOf(err) == entity.KindNotFound
}
