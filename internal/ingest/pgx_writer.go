package ingest

import (
	"context"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/eslsoft/lexloop/internal/entity"
)

// PgxBulkWriter is the postgres fast path for ingest batches: one pgx.Batch
// round trip per chunk instead of row-at-a-time statements. Wire it only when
// the store runs on postgres.
type PgxBulkWriter struct {
	pool  *pgxpool.Pool
	clock func() time.Time
}

// NewPgxBulkWriter wraps a pgx pool as a BulkWriter.
func NewPgxBulkWriter(pool *pgxpool.Pool) *PgxBulkWriter {
	return &PgxBulkWriter{pool: pool, clock: time.Now}
}

func (w *PgxBulkWriter) WriteItems(ctx context.Context, items []*entity.Item) (int64, error) {
	if len(items) == 0 {
		return 0, nil
	}

	now := w.clock()
	batch := &pgx.Batch{}
	for _, item := range items {
		if err := queueItem(batch, item, now); err != nil {
			return 0, err
		}
	}

	results := w.pool.SendBatch(ctx, batch)
	var written int64
	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return written, fmt.Errorf("batch item %d: %w", i, err)
		}
		written++
	}
	return written, results.Close()
}

func queueItem(batch *pgx.Batch, item *entity.Item, now time.Time) error {
	createdAt := item.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	switch item.Kind {
	case entity.ItemKindVocabulary:
		batch.Queue(`INSERT INTO vocab_items (headword, reading, meaning, example, language, level, audio_ref, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
			ON CONFLICT (headword, language, level) DO UPDATE SET
				reading = excluded.reading, meaning = excluded.meaning,
				example = excluded.example, updated_at = excluded.updated_at`,
			item.Headword, item.Reading, item.Meaning, item.Example,
			item.Language.Code(), string(item.Level), item.AudioRef, createdAt, now)
	case entity.ItemKindGrammar:
		examples, err := json.Marshal(item.Examples)
		if err != nil {
			return fmt.Errorf("marshal examples for %s: %w", item.Headword, err)
		}
		batch.Queue(`INSERT INTO grammar_items (headword, meaning, examples, language, level, audio_ref, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
			ON CONFLICT (headword, language, level) DO UPDATE SET
				meaning = excluded.meaning, examples = excluded.examples,
				updated_at = excluded.updated_at`,
			item.Headword, item.Meaning, examples,
			item.Language.Code(), string(item.Level), item.AudioRef, createdAt, now)
	case entity.ItemKindReading:
		batch.Queue(`INSERT INTO reading_items (headword, body, meaning, language, level, audio_ref, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
			ON CONFLICT (headword, language, level) DO UPDATE SET
				body = excluded.body, meaning = excluded.meaning,
				updated_at = excluded.updated_at`,
			item.Headword, item.Body, item.Meaning,
			item.Language.Code(), string(item.Level), item.AudioRef, createdAt, now)
	default:
		return fmt.Errorf("%w: unknown item kind %q", entity.ErrInvalidInput, item.Kind)
	}
	return nil
}
