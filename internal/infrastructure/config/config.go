package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for our application
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Session  SessionConfig  `mapstructure:"session"`
	Ingest   IngestConfig   `mapstructure:"ingest"`
	Log      LogConfig      `mapstructure:"log"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	HTTPPort       int           `mapstructure:"http_port"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// DatabaseConfig holds database configuration. URL is either a sqlite path
// ("lexloop.db", ":memory:", "sqlite://path") or a postgres URL.
type DatabaseConfig struct {
	URL            string        `mapstructure:"url"`
	MaxConns       int           `mapstructure:"max_conns"`
	MaxIdleConns   int           `mapstructure:"max_idle_conns"`
	AcquireTimeout time.Duration `mapstructure:"acquire_timeout"`
	BusyTimeout    time.Duration `mapstructure:"busy_timeout"`
	SlowQuery      time.Duration `mapstructure:"slow_query"`
	LogSQL         bool          `mapstructure:"log_sql"`
}

// SessionConfig holds daily-plan composition settings.
type SessionConfig struct {
	DefaultDailyMinutes int32   `mapstructure:"default_daily_minutes"`
	ReviewRatio         float64 `mapstructure:"review_ratio"`
	EnglishShare        float64 `mapstructure:"english_share"`
}

// IngestConfig holds crawler defaults; per-source settings in the sources
// file override them.
type IngestConfig struct {
	SourcesFile    string        `mapstructure:"sources_file"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	MaxAttempts    int           `mapstructure:"max_attempts"`
	RetryDelay     time.Duration `mapstructure:"retry_delay"`
	RetryFactor    float64       `mapstructure:"retry_factor"`
	MinDelay       time.Duration `mapstructure:"min_delay"`
	MaxDelay       time.Duration `mapstructure:"max_delay"`
	BatchSize      int           `mapstructure:"batch_size"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables
func Load() (*Config, error) {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Set default values
	setDefaults()

	// Enable reading from environment variables
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read configuration file
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "localhost")
	viper.SetDefault("server.http_port", 8080)
	viper.SetDefault("server.request_timeout", "10s")

	// Database defaults
	viper.SetDefault("database.url", "lexloop.db")
	viper.SetDefault("database.max_conns", 10)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.acquire_timeout", "3s")
	viper.SetDefault("database.busy_timeout", "5s")
	viper.SetDefault("database.slow_query", "100ms")
	viper.SetDefault("database.log_sql", false)

	// Session defaults
	viper.SetDefault("session.default_daily_minutes", 30)
	viper.SetDefault("session.review_ratio", 0.2)
	viper.SetDefault("session.english_share", 0.5)

	// Ingest defaults
	viper.SetDefault("ingest.sources_file", "sources.json")
	viper.SetDefault("ingest.request_timeout", "15s")
	viper.SetDefault("ingest.max_attempts", 3)
	viper.SetDefault("ingest.retry_delay", "1s")
	viper.SetDefault("ingest.retry_factor", 2.0)
	viper.SetDefault("ingest.min_delay", "500ms")
	viper.SetDefault("ingest.max_delay", "2s")
	viper.SetDefault("ingest.batch_size", 100)

	// Log defaults
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "json")
}

// DatabaseDriver derives the sql driver name from the configured URL.
func (c *Config) DatabaseDriver() (string, error) {
	url := strings.TrimSpace(c.Database.URL)
	switch {
	case url == "":
		return "", fmt.Errorf("database url is empty")
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return "postgres", nil
	default:
		return "sqlite3", nil
	}
}

// DatabaseURL returns the DSN handed to sql.Open. For sqlite the DSN carries
// the pragmas every pooled connection must share: WAL journaling, normal
// synchronous mode, foreign keys, and a shared cache.
func (c *Config) DatabaseURL() (string, error) {
	driver, err := c.DatabaseDriver()
	if err != nil {
		return "", err
	}
	if driver == "postgres" {
		return c.Database.URL, nil
	}

	path := strings.TrimPrefix(strings.TrimSpace(c.Database.URL), "sqlite://")
	busyMillis := c.Database.BusyTimeout.Milliseconds()
	if busyMillis <= 0 {
		busyMillis = 5000
	}
	if path == ":memory:" {
		// WAL is not supported for in-memory databases; the shared cache is
		// what lets pooled connections see one database.
		return fmt.Sprintf("file::memory:?cache=shared&_foreign_keys=on&_busy_timeout=%d", busyMillis), nil
	}
	return fmt.Sprintf("file:%s?_journal_mode=WAL&_synchronous=NORMAL&_foreign_keys=on&cache=shared&_busy_timeout=%d",
		path, busyMillis), nil
}
