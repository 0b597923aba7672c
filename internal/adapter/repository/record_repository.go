package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/eslsoft/lexloop/internal/entity"
	"github.com/eslsoft/lexloop/internal/infrastructure/database"
	"github.com/eslsoft/lexloop/internal/repository"
)

const recordColumns = "id, user_id, item_id, kind, learn_count, correct_count, consecutive_correct, " +
	"ease_factor, memory_strength, mastery_level, interval_days, last_review_at, next_review_at, created_at, updated_at"

const upsertRecordQuery = `INSERT INTO learning_records
(user_id, item_id, kind, learn_count, correct_count, consecutive_correct, ease_factor, memory_strength, mastery_level, interval_days, last_review_at, next_review_at, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (user_id, item_id, kind) DO UPDATE SET
learn_count = excluded.learn_count,
correct_count = excluded.correct_count,
consecutive_correct = excluded.consecutive_correct,
ease_factor = excluded.ease_factor,
memory_strength = excluded.memory_strength,
mastery_level = excluded.mastery_level,
interval_days = excluded.interval_days,
last_review_at = excluded.last_review_at,
next_review_at = excluded.next_review_at,
updated_at = excluded.updated_at`

type recordRepository struct {
	db  *database.DB
	now func() time.Time
}

// NewRecordRepository returns the SQL-backed learning record repository.
func NewRecordRepository(db *database.DB) repository.RecordRepository {
	return &recordRepository{db: db, now: time.Now}
}

func scanRecord(row scanner) (*entity.LearningRecord, error) {
	rec := &entity.LearningRecord{}
	var kind string
	var lastReview sql.NullTime
	err := row.Scan(&rec.ID, &rec.UserID, &rec.ItemID, &kind,
		&rec.LearnCount, &rec.CorrectCount, &rec.ConsecutiveCorrect,
		&rec.EaseFactor, &rec.MemoryStrength, &rec.MasteryLevel, &rec.IntervalDays,
		&lastReview, &rec.NextReviewAt, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}
	rec.Kind = entity.ItemKind(kind)
	rec.LastReviewAt = timeValue(lastReview)
	return rec, nil
}

func (r *recordRepository) GetByItem(ctx context.Context, userID, itemID int64, kind entity.ItemKind) (*entity.LearningRecord, error) {
	defer r.db.Stats.Track("records.get")()

	query := fmt.Sprintf("SELECT %s FROM learning_records WHERE user_id = ? AND item_id = ? AND kind = ?", recordColumns)
	rec, err := scanRecord(r.db.QueryRowContext(ctx, rebind(r.db.Driver, query), userID, itemID, kind.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, entity.ErrRecordNotFound
		}
		return nil, fmt.Errorf("get record: %w", err)
	}
	return rec, nil
}

func upsertRecordTx(ctx context.Context, tx *sql.Tx, driver string, rec *entity.LearningRecord, now time.Time) error {
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	updatedAt := rec.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = now
	}
	_, err := tx.ExecContext(ctx, rebind(driver, upsertRecordQuery),
		rec.UserID, rec.ItemID, rec.Kind.String(),
		rec.LearnCount, rec.CorrectCount, rec.ConsecutiveCorrect,
		rec.EaseFactor, rec.MemoryStrength, rec.MasteryLevel, rec.IntervalDays,
		nullTime(rec.LastReviewAt), rec.NextReviewAt, createdAt, updatedAt)
	return err
}

func (r *recordRepository) Upsert(ctx context.Context, record *entity.LearningRecord) (*entity.LearningRecord, error) {
	defer r.db.Stats.Track("records.upsert")()

	var stored *entity.LearningRecord
	err := withTx(ctx, r.db.DB, func(tx *sql.Tx) error {
		if err := upsertRecordTx(ctx, tx, r.db.Driver, record, r.now()); err != nil {
			return err
		}
		query := fmt.Sprintf("SELECT %s FROM learning_records WHERE user_id = ? AND item_id = ? AND kind = ?", recordColumns)
		var err error
		stored, err = scanRecord(tx.QueryRowContext(ctx, rebind(r.db.Driver, query),
			record.UserID, record.ItemID, record.Kind.String()))
		return err
	})
	if err != nil {
		return nil, translateError(err, entity.ErrDuplicateItem)
	}
	return stored, nil
}

func (r *recordRepository) BatchUpsert(ctx context.Context, records []*entity.LearningRecord) error {
	if len(records) == 0 {
		return nil
	}
	defer r.db.Stats.Track("records.batch_upsert")()

	now := r.now()
	err := withTx(ctx, r.db.DB, func(tx *sql.Tx) error {
		for _, rec := range records {
			if err := upsertRecordTx(ctx, tx, r.db.Driver, rec, now); err != nil {
				return fmt.Errorf("upsert record for item %d: %w", rec.ItemID, err)
			}
		}
		return nil
	})
	return translateError(err, entity.ErrDuplicateItem)
}

// dueArm builds one branch of the due-list union for a single item table.
// The kind literal is a trusted constant, never user input.
func dueArm(table, kind, readingExpr string) string {
	return fmt.Sprintf(`SELECT r.id, r.user_id, r.item_id, r.kind, r.learn_count, r.correct_count, r.consecutive_correct, r.ease_factor, r.memory_strength, r.mastery_level, r.interval_days, r.last_review_at, r.next_review_at, r.created_at, r.updated_at, i.headword, %s AS reading, i.meaning, i.audio_ref, i.language, i.level
FROM learning_records r
JOIN %s i ON i.id = r.item_id
WHERE r.user_id = ? AND r.kind = '%s' AND r.next_review_at <= ?`, readingExpr, table, kind)
}

func (r *recordRepository) ListDue(ctx context.Context, query *repository.DueQuery) ([]entity.DueReview, error) {
	arms := []struct {
		kind    entity.ItemKind
		table   string
		reading string
	}{
		{entity.ItemKindVocabulary, "vocab_items", "i.reading"},
		{entity.ItemKindGrammar, "grammar_items", "''"},
		{entity.ItemKindReading, "reading_items", "''"},
	}

	var parts []string
	var args []any
	for _, arm := range arms {
		if query.Kind != "" && query.Kind != arm.kind {
			continue
		}
		parts = append(parts, dueArm(arm.table, arm.kind.String(), arm.reading))
		args = append(args, query.UserID, query.Now)
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("%w: unknown item kind %q", entity.ErrInvalidInput, query.Kind)
	}

	limit := query.Limit
	if limit <= 0 {
		limit = 50
	}

	defer r.db.Stats.Track("records.due")()

	dueQuery := fmt.Sprintf(
		"SELECT * FROM (%s) due ORDER BY next_review_at ASC, memory_strength ASC, item_id ASC LIMIT %d",
		strings.Join(parts, "\nUNION ALL\n"), limit)
	rows, err := r.db.QueryContext(ctx, rebind(r.db.Driver, dueQuery), args...)
	if err != nil {
		return nil, fmt.Errorf("list due: %w", err)
	}
	defer rows.Close()

	var due []entity.DueReview
	for rows.Next() {
		var rec entity.LearningRecord
		var kind, language, level string
		var lastReview sql.NullTime
		var card entity.ItemCard
		err := rows.Scan(&rec.ID, &rec.UserID, &rec.ItemID, &kind,
			&rec.LearnCount, &rec.CorrectCount, &rec.ConsecutiveCorrect,
			&rec.EaseFactor, &rec.MemoryStrength, &rec.MasteryLevel, &rec.IntervalDays,
			&lastReview, &rec.NextReviewAt, &rec.CreatedAt, &rec.UpdatedAt,
			&card.Headword, &card.Reading, &card.Meaning, &card.AudioRef, &language, &level)
		if err != nil {
			return nil, fmt.Errorf("scan due row: %w", err)
		}
		rec.Kind = entity.ItemKind(kind)
		rec.LastReviewAt = timeValue(lastReview)
		card.ItemID = rec.ItemID
		card.Kind = rec.Kind
		card.Language = entity.ParseLanguage(language)
		card.Level = entity.Level(level)
		due = append(due, entity.DueReview{Record: rec, Item: card})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate due rows: %w", err)
	}
	return due, nil
}

func (r *recordRepository) ListReviewedBetween(ctx context.Context, userID int64, from, to time.Time) ([]*entity.LearningRecord, error) {
	defer r.db.Stats.Track("records.reviewed_between")()

	query := fmt.Sprintf(`SELECT %s FROM learning_records
WHERE user_id = ? AND last_review_at IS NOT NULL AND last_review_at >= ? AND last_review_at < ?
ORDER BY last_review_at ASC`, recordColumns)
	rows, err := r.db.QueryContext(ctx, rebind(r.db.Driver, query), userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list reviewed: %w", err)
	}
	defer rows.Close()

	var records []*entity.LearningRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return records, nil
}

func (r *recordRepository) UserStats(ctx context.Context, userID int64, now time.Time) (*entity.UserStats, error) {
	defer r.db.Stats.Track("records.user_stats")()

	stats := &entity.UserStats{}
	totalsQuery := `SELECT COUNT(*),
COALESCE(SUM(CASE WHEN next_review_at <= ? THEN 1 ELSE 0 END), 0),
COALESCE(SUM(CASE WHEN mastery_level >= 3 THEN 1 ELSE 0 END), 0)
FROM learning_records WHERE user_id = ?`
	err := r.db.QueryRowContext(ctx, rebind(r.db.Driver, totalsQuery), now, userID).
		Scan(&stats.TotalRecords, &stats.DueCount, &stats.MasteredCount)
	if err != nil {
		return nil, fmt.Errorf("user totals: %w", err)
	}

	bucketQuery := "SELECT mastery_level, COUNT(*) FROM learning_records WHERE user_id = ? GROUP BY mastery_level ORDER BY mastery_level"
	rows, err := r.db.QueryContext(ctx, rebind(r.db.Driver, bucketQuery), userID)
	if err != nil {
		return nil, fmt.Errorf("mastery distribution: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var bucket entity.MasteryBucket
		if err := rows.Scan(&bucket.Level, &bucket.Count); err != nil {
			return nil, fmt.Errorf("scan mastery bucket: %w", err)
		}
		stats.Mastery = append(stats.Mastery, bucket)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate mastery buckets: %w", err)
	}

	activity, err := r.recentActivity(ctx, userID, now)
	if err != nil {
		return nil, err
	}
	stats.RecentActivity = activity
	return stats, nil
}

// recentActivity buckets the user's records by the UTC day of their latest
// attempt over the past seven days. A record counts once per snapshot; a
// positive streak means that latest attempt was correct.
func (r *recordRepository) recentActivity(ctx context.Context, userID int64, now time.Time) ([]entity.DailyActivity, error) {
	nowUTC := now.UTC()
	today := time.Date(nowUTC.Year(), nowUTC.Month(), nowUTC.Day(), 0, 0, 0, 0, time.UTC)

	days := make([]entity.DailyActivity, 7)
	index := make(map[time.Time]int, len(days))
	for i := range days {
		days[i].Day = today.AddDate(0, 0, i-6)
		index[days[i].Day] = i
	}

	query := "SELECT last_review_at, consecutive_correct FROM learning_records WHERE user_id = ? AND last_review_at IS NOT NULL AND last_review_at >= ?"
	rows, err := r.db.QueryContext(ctx, rebind(r.db.Driver, query), userID, days[0].Day)
	if err != nil {
		return nil, fmt.Errorf("recent activity: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var reviewedAt time.Time
		var streak int32
		if err := rows.Scan(&reviewedAt, &streak); err != nil {
			return nil, fmt.Errorf("scan activity row: %w", err)
		}
		at := reviewedAt.UTC()
		day := time.Date(at.Year(), at.Month(), at.Day(), 0, 0, 0, 0, time.UTC)
		i, ok := index[day]
		if !ok {
			continue
		}
		days[i].Attempted++
		if streak > 0 {
			days[i].Correct++
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate activity rows: %w", err)
	}
	return days, nil
}
