package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/eslsoft/lexloop/internal/entity"

	"github.com/goccy/go-json"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

// scanner covers *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// rebind rewrites ? placeholders into $N for postgres. Our query literals
// never contain question marks outside bind positions.
func rebind(driver, query string) string {
	if driver != "postgres" {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// marks renders count comma-separated ? placeholders.
func marks(count int) string {
	if count <= 0 {
		return ""
	}
	return strings.Repeat("?, ", count-1) + "?"
}

// escapeLike escapes LIKE wildcards in user input; conditions using it must
// carry ESCAPE '\'.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	s = strings.ReplaceAll(s, "_", `\_`)
	return s
}

// withTx runs fn inside a transaction, rolling back unless it commits.
func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	committed = true
	return nil
}

// translateError maps driver errors onto the entity error taxonomy. The
// duplicate sentinel is per call site; the only foreign key in the schema
// points at users.
func translateError(err error, duplicate error) error {
	if err == nil {
		return nil
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505":
			return duplicate
		case "23503":
			return entity.ErrUserNotFound
		case "40001", "40P01", "55P03":
			return fmt.Errorf("%w: %v", entity.ErrLockTimeout, err)
		}
		return err
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch {
		case sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique,
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey:
			return duplicate
		case sqliteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey:
			return entity.ErrUserNotFound
		case sqliteErr.Code == sqlite3.ErrBusy, sqliteErr.Code == sqlite3.ErrLocked:
			return fmt.Errorf("%w: %v", entity.ErrLockTimeout, err)
		}
		return err
	}

	return err
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

func timeValue(t sql.NullTime) time.Time {
	if t.Valid {
		return t.Time
	}
	return time.Time{}
}

// encodeExamples renders the example list as a JSON string. Bound as text so
// postgres coerces it into jsonb; []byte would arrive as bytea.
func encodeExamples(examples []string) (string, error) {
	if examples == nil {
		examples = []string{}
	}
	raw, err := json.Marshal(examples)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func decodeExamples(raw []byte) ([]string, error) {
	if len(raw) == 0 {
		return []string{}, nil
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode examples: %w", err)
	}
	return out, nil
}
