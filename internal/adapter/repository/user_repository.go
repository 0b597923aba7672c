package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/eslsoft/lexloop/internal/entity"
	"github.com/eslsoft/lexloop/internal/infrastructure/database"
	"github.com/eslsoft/lexloop/internal/repository"
)

const userColumns = "id, username, credential_hash, english_level, japanese_level, daily_minutes, created_at, updated_at"

type userRepository struct {
	db  *database.DB
	now func() time.Time
}

// NewUserRepository returns the SQL-backed user repository.
func NewUserRepository(db *database.DB) repository.UserRepository {
	return &userRepository{db: db, now: time.Now}
}

func scanUser(row scanner) (*entity.User, error) {
	user := &entity.User{}
	var english, japanese string
	err := row.Scan(&user.ID, &user.Username, &user.CredentialHash,
		&english, &japanese, &user.DailyMinutes, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, err
	}
	user.EnglishLevel = entity.Level(english)
	user.JapaneseLevel = entity.Level(japanese)
	return user, nil
}

func (r *userRepository) Create(ctx context.Context, user *entity.User) (*entity.User, error) {
	defer r.db.Stats.Track("users.create")()

	now := r.now()
	createdAt := user.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}

	created := *user
	created.CreatedAt = createdAt
	created.UpdatedAt = now
	err := withTx(ctx, r.db.DB, func(tx *sql.Tx) error {
		query := `INSERT INTO users (username, credential_hash, english_level, japanese_level, daily_minutes, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`
		args := []any{user.Username, user.CredentialHash,
			string(user.EnglishLevel), string(user.JapaneseLevel), user.DailyMinutes, createdAt, now}
		if r.db.Driver == "postgres" {
			query += " RETURNING id"
			return tx.QueryRowContext(ctx, rebind(r.db.Driver, query), args...).Scan(&created.ID)
		}
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		created.ID, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return nil, translateError(err, entity.ErrDuplicateUser)
	}
	return &created, nil
}

// Update writes the mutable preference fields. Username and credentials are
// immutable through this path.
func (r *userRepository) Update(ctx context.Context, user *entity.User) (*entity.User, error) {
	defer r.db.Stats.Track("users.update")()

	err := withTx(ctx, r.db.DB, func(tx *sql.Tx) error {
		query := "UPDATE users SET english_level = ?, japanese_level = ?, daily_minutes = ?, updated_at = ? WHERE id = ?"
		res, err := tx.ExecContext(ctx, rebind(r.db.Driver, query),
			string(user.EnglishLevel), string(user.JapaneseLevel), user.DailyMinutes, r.now(), user.ID)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return entity.ErrUserNotFound
		}
		return nil
	})
	if err != nil {
		return nil, translateError(err, entity.ErrDuplicateUser)
	}
	return r.GetByID(ctx, user.ID)
}

func (r *userRepository) GetByID(ctx context.Context, id int64) (*entity.User, error) {
	defer r.db.Stats.Track("users.get")()

	query := fmt.Sprintf("SELECT %s FROM users WHERE id = ?", userColumns)
	user, err := scanUser(r.db.QueryRowContext(ctx, rebind(r.db.Driver, query), id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, entity.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (*entity.User, error) {
	defer r.db.Stats.Track("users.get_by_username")()

	query := fmt.Sprintf("SELECT %s FROM users WHERE username = ?", userColumns)
	user, err := scanUser(r.db.QueryRowContext(ctx, rebind(r.db.Driver, query), username))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, entity.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user by name: %w", err)
	}
	return user, nil
}
