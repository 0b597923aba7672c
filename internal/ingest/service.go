package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/eslsoft/lexloop/internal/entity"
	"github.com/eslsoft/lexloop/internal/infrastructure/config"
	"github.com/eslsoft/lexloop/internal/repository"
)

// Service ties the pipeline together for callers that just want "run the
// configured sources": the API trigger and the ingest command. The fetcher is
// rebuilt per run because the sources file carries crawler overrides.
type Service struct {
	cfg    config.IngestConfig
	items  repository.ItemRepository
	writer BulkWriter // nil outside postgres
	logger *logrus.Logger
}

// NewService wires the ingest entry point.
func NewService(cfg config.IngestConfig, items repository.ItemRepository, writer BulkWriter, logger *logrus.Logger) *Service {
	return &Service{cfg: cfg, items: items, writer: writer, logger: logger}
}

// Run loads the configured sources file and processes it.
func (s *Service) Run(ctx context.Context, opts Options) (*Stats, error) {
	sources, settings, err := LoadSources(s.cfg.SourcesFile)
	if err != nil {
		return nil, err
	}
	fetcher := NewFetcher(s.cfg, settings, s.logger)
	runner := NewRunner(s.items, s.writer, fetcher, s.cfg.BatchSize, s.logger)
	return runner.Run(ctx, sources, opts)
}

// Seed writes the built-in seed lists for every level of both languages
// through the batch path. Used by the seed command on fresh installs.
func (s *Service) Seed(ctx context.Context) (*Stats, error) {
	writer := s.writer
	if writer == nil {
		writer = repoWriter{items: s.items}
	}

	stats := &Stats{}
	start := time.Now()
	for _, lang := range []entity.Language{entity.LanguageEnglish, entity.LanguageJapanese} {
		for _, level := range SeedLevels(lang) {
			items := SeedItems(lang, level, time.Now())
			stats.Parsed += len(items)
			written, err := writer.WriteItems(ctx, items)
			if err != nil {
				return stats, fmt.Errorf("seed %s/%s: %w", lang.Code(), level, err)
			}
			stats.Written += written
		}
	}
	stats.Elapsed = time.Since(start)
	return stats, nil
}
