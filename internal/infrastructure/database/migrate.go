package database

import (
	"context"
	"database/sql"
	"fmt"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"entgo.io/ent/dialect/sql/schema"
)

// Migrate creates missing tables, columns, and indexes, then applies the
// additive data fixups that schema diffing cannot express. Existing columns
// and indexes are never dropped.
func Migrate(ctx context.Context, db *sql.DB, driverName string) error {
	dialectName := dialect.SQLite
	if driverName == "postgres" {
		dialectName = dialect.Postgres
	}

	migrator, err := schema.NewMigrate(entsql.OpenDB(dialectName, db),
		schema.WithDropColumn(false),
		schema.WithDropIndex(false),
		schema.WithForeignKeys(true),
	)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	if err := migrator.Create(ctx, Tables...); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}

	return backfillConsecutiveCorrect(ctx, db)
}

// backfillConsecutiveCorrect fills the streak column for rows written before
// the column existed. A record that never missed has a streak equal to its
// correct count; everything else stays at zero, which the next attempt
// corrects on its own.
func backfillConsecutiveCorrect(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
UPDATE learning_records
SET consecutive_correct = correct_count
WHERE consecutive_correct = 0
  AND correct_count > 0
  AND correct_count = learn_count`)
	if err != nil {
		return fmt.Errorf("backfill consecutive_correct: %w", err)
	}
	return nil
}
