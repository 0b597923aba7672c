package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/eslsoft/lexloop/internal/infrastructure/config"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/tracelog"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// DB bundles the sql handle with the driver name the SQL was written for
// and the query stats collector shared by all repositories.
type DB struct {
	*sql.DB
	Driver string
	Stats  *Stats
}

// NewDatabase opens the configured database and wraps it for the
// repositories.
func NewDatabase(cfg *config.Config) (*DB, func(), error) {
	sqlDB, cleanup, err := NewDB(cfg)
	if err != nil {
		return nil, nil, err
	}
	driver, err := cfg.DatabaseDriver()
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return &DB{DB: sqlDB, Driver: driver, Stats: NewStats(cfg)}, cleanup, nil
}

// Migrate applies the schema and data migrations to this database.
func (d *DB) Migrate(ctx context.Context) error {
	return Migrate(ctx, d.DB, d.Driver)
}

// NewDB opens the application database for the configured driver and
// verifies connectivity.
func NewDB(cfg *config.Config) (*sql.DB, func(), error) {
	driver, err := cfg.DatabaseDriver()
	if err != nil {
		return nil, nil, fmt.Errorf("determine database driver: %w", err)
	}

	dsn, err := cfg.DatabaseURL()
	if err != nil {
		return nil, nil, fmt.Errorf("determine database dsn: %w", err)
	}

	switch driver {
	case "postgres":
		return newPostgresDB(cfg, dsn)
	case "sqlite3":
		return newSQLiteDB(dsn)
	default:
		return nil, nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

func newPostgresDB(cfg *config.Config, dsn string) (*sql.DB, func(), error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("open postgres db: %w", err)
	}
	if cfg.Database.MaxConns > 0 {
		db.SetMaxOpenConns(cfg.Database.MaxConns)
	}
	if cfg.Database.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	}
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("ping postgres db: %w", err)
	}

	return db, func() { _ = db.Close() }, nil
}

func newSQLiteDB(dsn string) (*sql.DB, func(), error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// A single connection serializes writers; WAL plus the busy timeout in
	// the DSN covers readers from other processes.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON;"); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("enable sqlite foreign keys: %w", err)
	}

	return db, func() { _ = db.Close() }, nil
}

// NewPgxPool creates the pgx connection pool used by the bulk ingest path.
// Only valid when the configured database is postgres.
func NewPgxPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, func(), error) {
	driver, err := cfg.DatabaseDriver()
	if err != nil {
		return nil, nil, err
	}
	if driver != "postgres" {
		return nil, nil, fmt.Errorf("pgx pool requires a postgres database, current driver: %s", driver)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse pool config: %w", err)
	}
	if cfg.Database.MaxConns > 0 {
		poolCfg.MaxConns = int32(cfg.Database.MaxConns)
	}

	if cfg.Database.LogSQL {
		logger := log.New(log.Writer(), "pgx ", log.LstdFlags|log.Lmicroseconds)
		poolCfg.ConnConfig.Tracer = &tracelog.TraceLog{
			Logger: tracelog.LoggerFunc(func(_ context.Context, lvl tracelog.LogLevel, msg string, data map[string]any) {
				logger.Printf("level=%s msg=%s data=%v", lvl, msg, data)
			}),
			LogLevel: tracelog.LogLevelTrace,
		}
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("ping db: %w", err)
	}

	return pool, pool.Close, nil
}
