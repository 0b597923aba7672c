package repository

import (
	"context"

	"github.com/eslsoft/lexloop/internal/entity"
)

// UserRepository abstracts persistence for user accounts and preferences.
type UserRepository interface {
	Create(ctx context.Context, user *entity.User) (*entity.User, error)
	Update(ctx context.Context, user *entity.User) (*entity.User, error)
	GetByID(ctx context.Context, id int64) (*entity.User, error)
	GetByUsername(ctx context.Context, username string) (*entity.User, error)
}
