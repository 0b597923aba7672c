package usecase

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/eslsoft/lexloop/internal/entity"
	"github.com/eslsoft/lexloop/internal/infrastructure/config"
	"github.com/eslsoft/lexloop/internal/repository"
)

// Per-activity minute costs by kind.
const (
	vocabularyMinutes = 1
	grammarMinutes    = 3
	readingMinutes    = 5

	// warmUpReviews is how many review activities open a session before the
	// first new item.
	warmUpReviews = 3

	// planDueLimit bounds how many due records a single plan considers.
	planDueLimit = 500
)

// PlanOverrides carries optional per-call replacements for the user's stored
// preferences.
type PlanOverrides struct {
	EnglishLevel  entity.Level
	JapaneseLevel entity.Level
	DailyMinutes  int32
}

// SessionUsecase composes daily study plans and tracks their lifecycle.
type SessionUsecase interface {
	StartSession(ctx context.Context, userID int64, overrides *PlanOverrides) (*entity.Session, error)
	GetSession(ctx context.Context, sessionID string) (*entity.Session, error)
	AdvanceActivity(ctx context.Context, sessionID string, seq int, next entity.ActivityStatus) (*entity.Session, error)

	// NoteAttempt marks one recorded attempt against an activity, moving it
	// into progress if still planned.
	NoteAttempt(ctx context.Context, sessionID string, seq int) error

	// FinishSession closes the session and derives its roll-up.
	FinishSession(ctx context.Context, sessionID string) (*entity.SessionRollup, error)
}

// NewSessionUsecase wires the plan composer with default behaviour.
func NewSessionUsecase(
	cfg *config.Config,
	users repository.UserRepository,
	items repository.ItemRepository,
	reviews ReviewUsecase,
	assessments AssessmentUsecase,
	logger *logrus.Logger,
) SessionUsecase {
	return &sessionUsecase{
		cfg:         cfg,
		users:       users,
		items:       items,
		reviews:     reviews,
		assessments: assessments,
		logger:      logger,
		registry:    newSessionRegistry(),
		clock:       time.Now,
		newID:       uuid.NewString,
	}
}

type sessionUsecase struct {
	cfg         *config.Config
	users       repository.UserRepository
	items       repository.ItemRepository
	reviews     ReviewUsecase
	assessments AssessmentUsecase
	logger      *logrus.Logger
	registry    *sessionRegistry
	clock       func() time.Time
	newID       func() string
}

func activityMinutes(kind entity.ItemKind) int32 {
	switch kind {
	case entity.ItemKindGrammar:
		return grammarMinutes
	case entity.ItemKindReading:
		return readingMinutes
	default:
		return vocabularyMinutes
	}
}

func (u *sessionUsecase) StartSession(ctx context.Context, userID int64, overrides *PlanOverrides) (*entity.Session, error) {
	if userID <= 0 {
		return nil, fmt.Errorf("%w: user id required", entity.ErrInvalidInput)
	}

	user, err := u.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := applyOverrides(user, overrides); err != nil {
		return nil, err
	}

	total := user.DailyMinutes
	if total <= 0 {
		total = u.cfg.Session.DefaultDailyMinutes
	}
	reviewBudget := int32(math.Round(float64(total) * u.cfg.Session.ReviewRatio))

	now := u.clock()
	due, err := u.reviews.GetDue(ctx, &repository.DueQuery{UserID: userID, Now: now, Limit: planDueLimit})
	if err != nil {
		return nil, err
	}

	// Every due item is planned; dropping reviews silently is never allowed.
	reviewActivities := make([]entity.Activity, 0, len(due))
	var reviewCost int32
	for _, review := range due {
		reviewActivities = append(reviewActivities, entity.Activity{
			ItemID:   review.Item.ItemID,
			Kind:     review.Record.Kind,
			Language: review.Item.Language,
			Mode:     entity.ActivityModeReview,
			Minutes:  activityMinutes(review.Record.Kind),
			Status:   entity.ActivityPlanned,
		})
		reviewCost += activityMinutes(review.Record.Kind)
	}

	remaining := total - reviewBudget
	if reviewCost > reviewBudget {
		overrun := reviewCost - reviewBudget
		u.logger.WithFields(logrus.Fields{
			"user_id":        userID,
			"review_minutes": reviewCost,
			"review_budget":  reviewBudget,
			"overrun":        overrun,
		}).Warn("due list exceeds review allocation")
		remaining -= overrun
	}
	if remaining < 0 {
		remaining = 0
	}

	englishBudget := int32(math.Round(float64(remaining) * u.cfg.Session.EnglishShare))
	japaneseBudget := remaining - englishBudget

	english, err := u.pickNewItems(ctx, userID, entity.LanguageEnglish, user.EnglishLevel, englishBudget)
	if err != nil {
		return nil, err
	}
	japanese, err := u.pickNewItems(ctx, userID, entity.LanguageJapanese, user.JapaneseLevel, japaneseBudget)
	if err != nil {
		return nil, err
	}

	session := &entity.Session{
		ID:             u.newID(),
		UserID:         userID,
		PlannedMinutes: total,
		ReviewMinutes:  reviewCost,
		StartedAt:      now,
	}
	session.Activities = arrangeActivities(reviewActivities, append(english, japanese...), now)
	u.registry.put(session)
	return session, nil
}

func applyOverrides(user *entity.User, overrides *PlanOverrides) error {
	if overrides == nil {
		return nil
	}
	if overrides.EnglishLevel != entity.LevelUnspecified {
		if overrides.EnglishLevel.Language() != entity.LanguageEnglish {
			return fmt.Errorf("%w: english level %q", entity.ErrInvalidInput, overrides.EnglishLevel)
		}
		user.EnglishLevel = overrides.EnglishLevel
	}
	if overrides.JapaneseLevel != entity.LevelUnspecified {
		if overrides.JapaneseLevel.Language() != entity.LanguageJapanese {
			return fmt.Errorf("%w: japanese level %q", entity.ErrInvalidInput, overrides.JapaneseLevel)
		}
		user.JapaneseLevel = overrides.JapaneseLevel
	}
	if overrides.DailyMinutes < 0 {
		return fmt.Errorf("%w: negative daily minutes", entity.ErrInvalidInput)
	}
	if overrides.DailyMinutes > 0 {
		user.DailyMinutes = overrides.DailyMinutes
	}
	return nil
}

// pickNewItems fills one language's budget with unmastered items: one
// reading passage when the budget is roomy, a couple of grammar points, and
// vocabulary for the rest.
func (u *sessionUsecase) pickNewItems(ctx context.Context, userID int64, lang entity.Language, level entity.Level, budget int32) ([]entity.Activity, error) {
	if budget <= 0 {
		return nil, nil
	}

	var plan []entity.Activity
	add := func(item *entity.Item, mode entity.ActivityMode) {
		cost := activityMinutes(item.Kind)
		plan = append(plan, entity.Activity{
			ItemID:   item.ID,
			Kind:     item.Kind,
			Language: lang,
			Mode:     mode,
			Minutes:  cost,
			Status:   entity.ActivityPlanned,
		})
		budget -= cost
	}

	if budget >= 2*readingMinutes {
		passages, err := u.sample(ctx, userID, entity.ItemKindReading, lang, level, 1)
		if err != nil {
			return nil, err
		}
		for _, item := range passages {
			add(item, entity.ActivityModeRead)
		}
	}

	if budget >= grammarMinutes {
		points, err := u.sample(ctx, userID, entity.ItemKindGrammar, lang, level, 2)
		if err != nil {
			return nil, err
		}
		for _, item := range points {
			if budget < grammarMinutes {
				break
			}
			add(item, entity.ActivityModeLearn)
		}
	}

	if budget > 0 {
		words, err := u.sample(ctx, userID, entity.ItemKindVocabulary, lang, level, budget)
		if err != nil {
			return nil, err
		}
		for _, item := range words {
			if budget < vocabularyMinutes {
				break
			}
			add(item, entity.ActivityModeLearn)
		}
	}
	return plan, nil
}

func (u *sessionUsecase) sample(ctx context.Context, userID int64, kind entity.ItemKind, lang entity.Language, level entity.Level, limit int32) ([]*entity.Item, error) {
	return u.items.SampleUnmastered(ctx, &repository.SampleQuery{
		UserID:   userID,
		Kind:     kind,
		Language: lang,
		Level:    level,
		Limit:    limit,
	})
}

// arrangeActivities interleaves a short review warm-up before the new items
// and assigns sequence numbers.
func arrangeActivities(reviews, fresh []entity.Activity, now time.Time) []entity.Activity {
	warmUp := len(reviews)
	if warmUp > warmUpReviews {
		warmUp = warmUpReviews
	}

	ordered := make([]entity.Activity, 0, len(reviews)+len(fresh))
	ordered = append(ordered, reviews[:warmUp]...)
	ordered = append(ordered, fresh...)
	ordered = append(ordered, reviews[warmUp:]...)
	for i := range ordered {
		ordered[i].Seq = i + 1
		ordered[i].UpdatedAt = now
	}
	return ordered
}

func (u *sessionUsecase) GetSession(ctx context.Context, sessionID string) (*entity.Session, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("%w: session id required", entity.ErrInvalidInput)
	}
	return u.registry.get(sessionID)
}

func (u *sessionUsecase) AdvanceActivity(ctx context.Context, sessionID string, seq int, next entity.ActivityStatus) (*entity.Session, error) {
	now := u.clock()
	return u.registry.mutate(sessionID, func(s *entity.Session) error {
		activity, err := s.ActivityBySeq(seq)
		if err != nil {
			return err
		}
		return activity.Advance(next, now)
	})
}

func (u *sessionUsecase) NoteAttempt(ctx context.Context, sessionID string, seq int) error {
	now := u.clock()
	_, err := u.registry.mutate(sessionID, func(s *entity.Session) error {
		activity, err := s.ActivityBySeq(seq)
		if err != nil {
			return err
		}
		if activity.Status == entity.ActivityPlanned {
			if err := activity.Advance(entity.ActivityInProgress, now); err != nil {
				return err
			}
		}
		activity.Attempts++
		activity.UpdatedAt = now
		return nil
	})
	return err
}

func (u *sessionUsecase) FinishSession(ctx context.Context, sessionID string) (*entity.SessionRollup, error) {
	now := u.clock()
	session, err := u.registry.mutate(sessionID, func(s *entity.Session) error {
		if s.EndedAt.IsZero() {
			s.EndedAt = now
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	rollup, err := u.assessments.EvaluateSessionOutcome(ctx, session.UserID, session.StartedAt, session.EndedAt.Add(time.Second))
	if err != nil {
		return nil, err
	}

	minutes := make(map[entity.Language]int32)
	for _, activity := range session.Activities {
		if activity.Status == entity.ActivityCompleted {
			minutes[activity.Language] += activity.Minutes
		}
	}
	rollup.MinutesByLang = minutes

	u.registry.remove(sessionID)
	return rollup, nil
}
