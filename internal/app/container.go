package app

import (
	"context"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/eslsoft/lexloop/internal/adapter/api"
	"github.com/eslsoft/lexloop/internal/infrastructure/config"
	"github.com/eslsoft/lexloop/internal/infrastructure/database"
	"github.com/eslsoft/lexloop/internal/infrastructure/server"
	"github.com/eslsoft/lexloop/internal/ingest"
	"github.com/eslsoft/lexloop/internal/repository"
)

// Container aggregates the application dependencies produced by Wire.
type Container struct {
	Config *config.Config
	Logger *logrus.Logger
	DB     *database.DB
	Ingest *ingest.Service
	Server *server.Server
}

// provideBulkWriter picks the bulk write path for the configured database.
// Postgres gets the pgx batch writer; everything else falls back to the
// item repository inside the ingest service.
func provideBulkWriter(cfg *config.Config) (ingest.BulkWriter, func(), error) {
	driver, err := cfg.DatabaseDriver()
	if err != nil {
		return nil, nil, err
	}
	if driver != "postgres" {
		return nil, func() {}, nil
	}
	pool, cleanup, err := database.NewPgxPool(context.Background(), cfg)
	if err != nil {
		return nil, nil, err
	}
	return ingest.NewPgxBulkWriter(pool), cleanup, nil
}

func provideIngestService(cfg *config.Config, items repository.ItemRepository, writer ingest.BulkWriter, logger *logrus.Logger) *ingest.Service {
	return ingest.NewService(cfg.Ingest, items, writer, logger)
}

func provideHandler(cfg *config.Config, svc *api.Service, db *database.DB, logger *logrus.Logger) http.Handler {
	return api.NewHandler(svc, db.Stats, cfg.Server.RequestTimeout, logger)
}
