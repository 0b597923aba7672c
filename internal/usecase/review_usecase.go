package usecase

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/eslsoft/lexloop/internal/entity"
	"github.com/eslsoft/lexloop/internal/repository"
	"github.com/eslsoft/lexloop/pkg/srs"
)

// DefaultDueLimit clips the due list when the caller does not pass one.
const DefaultDueLimit = 50

// PrioritizedReview pairs a due review with its bulk priority breakdown.
type PrioritizedReview struct {
	Review entity.DueReview
	Score  srs.PriorityBreakdown
}

// ReviewUsecase builds due lists and progress roll-ups for a user.
type ReviewUsecase interface {
	// GetDue returns the user's due reviews ordered by next_review_at,
	// then memory strength (weakest first), then item id.
	GetDue(ctx context.Context, query *repository.DueQuery) ([]entity.DueReview, error)
	Progress(ctx context.Context, userID int64) (*entity.UserStats, error)

	// PrioritizeBacklog ranks the user's due backlog by the bulk priority
	// score. Batch runners only; the per-user due list never consults it.
	PrioritizeBacklog(ctx context.Context, userID int64, limit int32) ([]PrioritizedReview, error)
}

// NewReviewUsecase wires the record repository with default behaviour.
func NewReviewUsecase(records repository.RecordRepository) ReviewUsecase {
	return &reviewUsecase{records: records, clock: time.Now}
}

type reviewUsecase struct {
	records repository.RecordRepository
	clock   func() time.Time
}

func (u *reviewUsecase) GetDue(ctx context.Context, query *repository.DueQuery) ([]entity.DueReview, error) {
	if query == nil || query.UserID <= 0 {
		return nil, fmt.Errorf("%w: user id required", entity.ErrInvalidInput)
	}
	if query.Limit < 0 {
		return nil, fmt.Errorf("%w: negative limit %d", entity.ErrInvalidInput, query.Limit)
	}
	if query.Kind != entity.ItemKindUnspecified && !query.Kind.Valid() {
		return nil, fmt.Errorf("%w: unknown item kind %q", entity.ErrInvalidInput, query.Kind)
	}

	q := *query
	if q.Now.IsZero() {
		q.Now = u.clock()
	}
	if q.Limit == 0 {
		q.Limit = DefaultDueLimit
	}
	return u.records.ListDue(ctx, &q)
}

func (u *reviewUsecase) Progress(ctx context.Context, userID int64) (*entity.UserStats, error) {
	if userID <= 0 {
		return nil, fmt.Errorf("%w: user id required", entity.ErrInvalidInput)
	}
	return u.records.UserStats(ctx, userID, u.clock())
}

func (u *reviewUsecase) PrioritizeBacklog(ctx context.Context, userID int64, limit int32) ([]PrioritizedReview, error) {
	due, err := u.GetDue(ctx, &repository.DueQuery{UserID: userID, Limit: limit})
	if err != nil {
		return nil, err
	}
	if len(due) == 0 {
		return nil, nil
	}

	stats, err := u.records.UserStats(ctx, userID, u.clock())
	if err != nil {
		return nil, err
	}
	hitRate := stats.HitRate()

	now := u.clock()
	ranked := make([]PrioritizedReview, 0, len(due))
	for _, review := range due {
		ranked = append(ranked, PrioritizedReview{
			Review: review,
			Score: srs.Priority(srs.PriorityInput{
				DaysOverdue:       review.Record.DaysOverdue(now),
				RecentPerformance: hitRate,
				LevelWeight:       review.Item.Level.Weight(),
				QualityScore:      cardQuality(review.Item),
			}),
		})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score.Total != ranked[j].Score.Total {
			return ranked[i].Score.Total > ranked[j].Score.Total
		}
		return ranked[i].Review.Item.ItemID < ranked[j].Review.Item.ItemID
	})
	return ranked, nil
}

// cardQuality grades how complete an item's content is, in [0,1].
func cardQuality(card entity.ItemCard) float64 {
	score := 0.0
	if card.Meaning != "" {
		score += 0.4
	}
	if card.Reading != "" {
		score += 0.3
	}
	if card.AudioRef != "" {
		score += 0.3
	}
	return score
}
