package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/eslsoft/lexloop/internal/entity"
	"github.com/eslsoft/lexloop/internal/repository"
)

// ItemUsecase encapsulates business logic for the item corpus.
type ItemUsecase interface {
	CreateItem(ctx context.Context, item *entity.Item) (*entity.Item, error)
	GetItem(ctx context.Context, kind entity.ItemKind, id int64) (*entity.Item, error)
	ListItems(ctx context.Context, query *repository.ListItemQuery) ([]*entity.Item, int64, error)

	// AttachAudio sets the audio reference, the only mutation an item
	// allows after creation.
	AttachAudio(ctx context.Context, kind entity.ItemKind, id int64, audioRef string) error
}

// NewItemUsecase wires the repository with default behaviour.
func NewItemUsecase(items repository.ItemRepository) ItemUsecase {
	return &itemUsecase{items: items, clock: time.Now}
}

type itemUsecase struct {
	items repository.ItemRepository
	clock func() time.Time
}

func (u *itemUsecase) CreateItem(ctx context.Context, item *entity.Item) (*entity.Item, error) {
	if item == nil {
		return nil, fmt.Errorf("%w: item required", entity.ErrInvalidInput)
	}
	copy := *item
	copy.Normalize(u.clock())
	if err := copy.Validate(); err != nil {
		return nil, err
	}
	return u.items.Create(ctx, &copy)
}

func (u *itemUsecase) GetItem(ctx context.Context, kind entity.ItemKind, id int64) (*entity.Item, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: unknown item kind %q", entity.ErrInvalidInput, kind)
	}
	if id <= 0 {
		return nil, fmt.Errorf("%w: item id required", entity.ErrInvalidInput)
	}
	return u.items.GetByID(ctx, kind, id)
}

func (u *itemUsecase) ListItems(ctx context.Context, query *repository.ListItemQuery) ([]*entity.Item, int64, error) {
	if query == nil || !query.Kind.Valid() {
		return nil, 0, fmt.Errorf("%w: item kind required", entity.ErrInvalidInput)
	}
	if query.PageSize < 0 || query.PageNo < 0 {
		return nil, 0, fmt.Errorf("%w: negative pagination", entity.ErrInvalidInput)
	}
	return u.items.List(ctx, query)
}

func (u *itemUsecase) AttachAudio(ctx context.Context, kind entity.ItemKind, id int64, audioRef string) error {
	if !kind.Valid() {
		return fmt.Errorf("%w: unknown item kind %q", entity.ErrInvalidInput, kind)
	}
	if id <= 0 {
		return fmt.Errorf("%w: item id required", entity.ErrInvalidInput)
	}
	if audioRef == "" {
		return fmt.Errorf("%w: empty audio reference", entity.ErrInvalidInput)
	}
	return u.items.AttachAudio(ctx, kind, id, audioRef)
}
