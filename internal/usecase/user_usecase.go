package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/eslsoft/lexloop/internal/entity"
	"github.com/eslsoft/lexloop/internal/repository"
)

// Preferences carries the mutable slice of a user profile.
type Preferences struct {
	EnglishLevel  entity.Level
	JapaneseLevel entity.Level
	DailyMinutes  int32
}

// UserUsecase manages profiles. Credential verification belongs to the
// transport collaborator; this surface only stores the salted hash.
type UserUsecase interface {
	Register(ctx context.Context, username, password string, prefs Preferences) (*entity.User, error)
	GetProfile(ctx context.Context, userID int64) (*entity.User, error)
	UpdatePreferences(ctx context.Context, userID int64, prefs Preferences) (*entity.User, error)
}

// NewUserUsecase wires the repository with default behaviour.
func NewUserUsecase(users repository.UserRepository) UserUsecase {
	return &userUsecase{users: users, clock: time.Now}
}

type userUsecase struct {
	users repository.UserRepository
	clock func() time.Time
}

func (u *userUsecase) Register(ctx context.Context, username, password string, prefs Preferences) (*entity.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, fmt.Errorf("%w: empty username", entity.ErrInvalidInput)
	}
	if len(password) < 8 {
		return nil, fmt.Errorf("%w: password must be at least 8 characters", entity.ErrInvalidInput)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash credential: %w", err)
	}

	user := &entity.User{
		Username:       username,
		CredentialHash: string(hash),
		EnglishLevel:   prefs.EnglishLevel,
		JapaneseLevel:  prefs.JapaneseLevel,
		DailyMinutes:   prefs.DailyMinutes,
	}
	user.Normalize(u.clock())
	if err := user.Validate(); err != nil {
		return nil, err
	}

	created, err := u.users.Create(ctx, user)
	if err != nil {
		return nil, err
	}
	created.CredentialHash = ""
	return created, nil
}

func (u *userUsecase) GetProfile(ctx context.Context, userID int64) (*entity.User, error) {
	if userID <= 0 {
		return nil, fmt.Errorf("%w: user id required", entity.ErrInvalidInput)
	}
	user, err := u.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	user.CredentialHash = ""
	return user, nil
}

func (u *userUsecase) UpdatePreferences(ctx context.Context, userID int64, prefs Preferences) (*entity.User, error) {
	if userID <= 0 {
		return nil, fmt.Errorf("%w: user id required", entity.ErrInvalidInput)
	}

	user, err := u.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if prefs.EnglishLevel != entity.LevelUnspecified {
		user.EnglishLevel = prefs.EnglishLevel
	}
	if prefs.JapaneseLevel != entity.LevelUnspecified {
		user.JapaneseLevel = prefs.JapaneseLevel
	}
	if prefs.DailyMinutes < 0 {
		return nil, fmt.Errorf("%w: negative daily minutes", entity.ErrInvalidInput)
	}
	if prefs.DailyMinutes > 0 {
		user.DailyMinutes = prefs.DailyMinutes
	}
	user.Normalize(u.clock())
	if err := user.Validate(); err != nil {
		return nil, err
	}

	updated, err := u.users.Update(ctx, user)
	if err != nil {
		return nil, err
	}
	updated.CredentialHash = ""
	return updated, nil
}
