//go:build wireinject
// +build wireinject

package app

import (
	"github.com/google/wire"

	"github.com/eslsoft/lexloop/internal/adapter/api"
	adapterrepo "github.com/eslsoft/lexloop/internal/adapter/repository"
	"github.com/eslsoft/lexloop/internal/infrastructure/config"
	"github.com/eslsoft/lexloop/internal/infrastructure/database"
	"github.com/eslsoft/lexloop/internal/infrastructure/server"
	"github.com/eslsoft/lexloop/internal/ingest"
	"github.com/eslsoft/lexloop/internal/usecase"
)

var configSet = wire.NewSet(
	config.Load,
)

var databaseSet = wire.NewSet(
	database.NewDatabase,
)

var repositorySet = wire.NewSet(
	adapterrepo.NewUserRepository,
	adapterrepo.NewItemRepository,
	adapterrepo.NewRecordRepository,
)

var usecaseSet = wire.NewSet(
	usecase.NewUserUsecase,
	usecase.NewItemUsecase,
	usecase.NewReviewUsecase,
	usecase.NewAssessmentUsecase,
	usecase.NewSessionUsecase,
)

var ingestSet = wire.NewSet(
	provideBulkWriter,
	provideIngestService,
	wire.Bind(new(api.IngestTrigger), new(*ingest.Service)),
)

var serviceSet = wire.NewSet(
	api.NewService,
	provideHandler,
)

var serverSet = wire.NewSet(
	server.NewLogger,
	server.NewServer,
)

// Initialize builds the application container using Wire.
func Initialize() (*Container, func(), error) {
	wire.Build(
		configSet,
		databaseSet,
		repositorySet,
		usecaseSet,
		ingestSet,
		serviceSet,
		serverSet,
		wire.Struct(new(Container), "Config", "Logger", "DB", "Ingest", "Server"),
	)
	return nil, nil, nil
}
