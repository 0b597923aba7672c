package repository

import (
	"context"
	"time"

	"github.com/eslsoft/lexloop/internal/entity"
)

// DueQuery holds parameters for the due-list query. Kind narrows the list to
// one item kind when set; the zero value means all kinds.
type DueQuery struct {
	UserID int64
	Kind   entity.ItemKind
	Now    time.Time
	Limit  int32
}

// RecordRepository abstracts persistence for per-user learning records.
type RecordRepository interface {
	GetByItem(ctx context.Context, userID, itemID int64, kind entity.ItemKind) (*entity.LearningRecord, error)

	// Upsert inserts the record on first attempt or updates it in place.
	// Re-executing with identical input leaves the row unchanged.
	Upsert(ctx context.Context, record *entity.LearningRecord) (*entity.LearningRecord, error)

	// BatchUpsert writes all records in one transaction; any failure rolls
	// the whole batch back.
	BatchUpsert(ctx context.Context, records []*entity.LearningRecord) error

	// ListDue returns due records with their item projection, ordered by
	// next_review_at, then memory_strength, then item id.
	ListDue(ctx context.Context, query *DueQuery) ([]entity.DueReview, error)

	// ListReviewedBetween returns the user's records whose last review falls
	// inside [from, to), for session roll-ups.
	ListReviewedBetween(ctx context.Context, userID int64, from, to time.Time) ([]*entity.LearningRecord, error)

	// UserStats aggregates totals, mastery distribution, due count, and the
	// recent seven-day activity for one user.
	UserStats(ctx context.Context, userID int64, now time.Time) (*entity.UserStats, error)
}
