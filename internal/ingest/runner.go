package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"github.com/eslsoft/lexloop/internal/entity"
	"github.com/eslsoft/lexloop/internal/repository"
)

// defaultBatchSize is used when config supplies no batch size.
const defaultBatchSize = 100

// Stats is the roll-up of one ingest run.
type Stats struct {
	Sources   int           `json:"sources"`
	Requests  int           `json:"requests"`
	Successes int           `json:"successes"`
	Failures  int           `json:"failures"`
	Retries   int           `json:"retries"`
	Parsed    int           `json:"parsed"`
	Written   int64         `json:"written"`
	Skipped   int           `json:"skipped"`
	Fallbacks int           `json:"fallbacks"`
	Elapsed   time.Duration `json:"elapsed"`
}

// RequestsPerSecond derives the effective request rate of the run.
func (s *Stats) RequestsPerSecond() float64 {
	if s.Elapsed <= 0 {
		return 0
	}
	return float64(s.Requests) / s.Elapsed.Seconds()
}

// BulkWriter is the batch write path. The postgres pgx implementation
// replaces the portable repository path when available.
type BulkWriter interface {
	WriteItems(ctx context.Context, items []*entity.Item) (int64, error)
}

// repoWriter adapts the item repository's transactional batch upsert.
type repoWriter struct {
	items repository.ItemRepository
}

func (w repoWriter) WriteItems(ctx context.Context, items []*entity.Item) (int64, error) {
	return w.items.BatchUpsert(ctx, items)
}

// Options selects what one run covers.
type Options struct {
	// Incremental skips headwords already present in the store. Full mode
	// rewrites payload fields of colliding rows instead.
	Incremental bool
	Language    entity.Language // optional filter
	Level       entity.Level    // optional filter
}

// Runner drives the ingest pipeline: fetch, parse, normalize, dedup, batch
// write, per-run stats.
type Runner struct {
	items     repository.ItemRepository
	writer    BulkWriter
	fetcher   *Fetcher
	logger    *logrus.Logger
	batchSize int
	clock     func() time.Time
}

// NewRunner wires the pipeline. A nil writer falls back to the repository
// batch path.
func NewRunner(items repository.ItemRepository, writer BulkWriter, fetcher *Fetcher, batchSize int, logger *logrus.Logger) *Runner {
	if writer == nil {
		writer = repoWriter{items: items}
	}
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &Runner{
		items:     items,
		writer:    writer,
		fetcher:   fetcher,
		logger:    logger,
		batchSize: batchSize,
		clock:     time.Now,
	}
}

// Run processes every source matching the options. Individual source and
// batch failures are logged and counted, never fatal to the run; only a
// cancelled context aborts.
func (r *Runner) Run(ctx context.Context, sources []Source, opts Options) (*Stats, error) {
	start := r.clock()
	stats := &Stats{}

	// One dedup set per (kind, language), shared across that pair's sources
	// so two levels never double-ingest the same headword.
	dedup := make(map[entity.ItemKind]map[entity.Language]map[string]struct{})

	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if opts.Language != entity.LanguageUnspecified && src.Language != opts.Language {
			continue
		}
		if opts.Level != entity.LevelUnspecified && src.Level != opts.Level {
			continue
		}
		if src.Disabled {
			r.logger.WithField("source", src.Name()).Debug("source disabled, skipping")
			continue
		}
		stats.Sources++

		seen, err := r.dedupSet(ctx, dedup, src)
		if err != nil {
			stats.Failures++
			r.logger.WithField("source", src.Name()).WithError(err).Error("seeding dedup set failed")
			continue
		}
		if err := r.runSource(ctx, src, opts, seen, stats); err != nil {
			if ctx.Err() != nil {
				return stats, err
			}
			stats.Failures++
			r.logger.WithField("source", src.Name()).WithError(err).Error("source ingest failed")
		}
	}

	stats.Elapsed = r.clock().Sub(start)
	r.logger.WithFields(logrus.Fields{
		"sources":   stats.Sources,
		"requests":  stats.Requests,
		"successes": stats.Successes,
		"failures":  stats.Failures,
		"retries":   stats.Retries,
		"written":   stats.Written,
		"skipped":   stats.Skipped,
		"elapsed":   stats.Elapsed,
		"req_per_s": stats.RequestsPerSecond(),
	}).Info("ingest run finished")
	return stats, nil
}

// dedupSet lazily seeds the in-memory (headword, language) set from the
// store the first time a (kind, language) pair appears.
func (r *Runner) dedupSet(ctx context.Context, dedup map[entity.ItemKind]map[entity.Language]map[string]struct{}, src Source) (map[string]struct{}, error) {
	byLang, ok := dedup[src.Kind]
	if !ok {
		byLang = make(map[entity.Language]map[string]struct{})
		dedup[src.Kind] = byLang
	}
	seen, ok := byLang[src.Language]
	if ok {
		return seen, nil
	}
	known, err := r.items.KnownHeadwords(ctx, src.Kind, src.Language)
	if err != nil {
		return nil, fmt.Errorf("known headwords: %w", err)
	}
	byLang[src.Language] = known
	return known, nil
}

func (r *Runner) runSource(ctx context.Context, src Source, opts Options, seen map[string]struct{}, stats *Stats) error {
	now := r.clock()

	stats.Requests++
	payload, retries, err := r.fetcher.Fetch(ctx, src)
	stats.Retries += retries

	var items []*entity.Item
	switch {
	case err == nil:
		stats.Successes++
		entries, parseErr := Parse(src.Format, payload)
		if parseErr != nil {
			return parseErr
		}
		items = Normalize(entries, src, now)
	case src.Fallback == FallbackBuiltin:
		stats.Fallbacks++
		r.logger.WithField("source", src.Name()).WithError(err).Warn("source unreachable, using built-in seed list")
		items = SeedItems(src.Language, src.Level, now)
	default:
		return err
	}
	stats.Parsed += len(items)

	fresh := make([]*entity.Item, 0, len(items))
	for _, item := range items {
		key := item.DedupKey()
		if _, dup := seen[key]; dup {
			if opts.Incremental {
				stats.Skipped++
				continue
			}
			// Full mode replaces the stored payload via upsert.
		}
		seen[key] = struct{}{}
		fresh = append(fresh, item)
	}

	for _, batch := range lo.Chunk(fresh, r.batchSize) {
		if err := ctx.Err(); err != nil {
			return err
		}
		written, err := r.writer.WriteItems(ctx, batch)
		if err != nil {
			// The store path rolls the batch back as a unit; later batches
			// still get their chance.
			stats.Failures++
			r.logger.WithFields(logrus.Fields{
				"source": src.Name(),
				"batch":  len(batch),
			}).WithError(err).Error("batch write failed")
			continue
		}
		stats.Written += written
	}
	return nil
}
