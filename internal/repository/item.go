package repository

import (
	"context"

	"github.com/eslsoft/lexloop/internal/entity"
)

// ListItemQuery holds parameters for listing study items of one kind.
type ListItemQuery struct {
	Pagination
	FilterOrder

	Kind entity.ItemKind
}

// SampleQuery selects candidate new items for a study plan: random order,
// restricted to one language/level, excluding items the user has already
// pushed to mastery level 3 or above.
type SampleQuery struct {
	UserID   int64
	Kind     entity.ItemKind
	Language entity.Language
	Level    entity.Level
	Limit    int32
}

// ItemRepository defines data access for study items of all three kinds.
// The kind selects the backing table.
type ItemRepository interface {
	Create(ctx context.Context, item *entity.Item) (*entity.Item, error)
	Update(ctx context.Context, item *entity.Item) (*entity.Item, error)
	GetByID(ctx context.Context, kind entity.ItemKind, id int64) (*entity.Item, error)
	List(ctx context.Context, query *ListItemQuery) ([]*entity.Item, int64, error)

	// BatchUpsert writes items in one transaction, replacing payload fields
	// of rows that collide on (headword, language, level). Returns how many
	// rows were written.
	BatchUpsert(ctx context.Context, items []*entity.Item) (int64, error)

	// SampleUnmastered picks up to Limit random items the user has not
	// mastered yet, including items with no learning record at all.
	SampleUnmastered(ctx context.Context, query *SampleQuery) ([]*entity.Item, error)

	// KnownHeadwords returns the dedup keys already stored for a kind, used
	// to seed the ingest dedup set.
	KnownHeadwords(ctx context.Context, kind entity.ItemKind, language entity.Language) (map[string]struct{}, error)

	// AttachAudio sets the audio reference of an existing item. The only
	// mutation allowed on an item after creation.
	AttachAudio(ctx context.Context, kind entity.ItemKind, id int64, audioRef string) error
}
