// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jason-s-yu/pongarena/internal/database"
	"github.com/sirupsen/logrus"
)

// Store drivers.
const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
)

// Config is the process configuration, read from the environment.
type Config struct {
	Port     string
	LogLevel logrus.Level

	StoreDriver string
	DatabaseURL string
	SQLitePath  string

	// RedisAddr empty disables match publishing.
	RedisAddr  string
	RedisDB    int
	QueueName  string
	BatchSize  int
	FlushDelay time.Duration

	TickRate         int
	ScoreLimit       int
	ReadyTimeout     time.Duration
	SelectionTimeout time.Duration

	TokenTTL        time.Duration
	PrivateKeyPath  string
	PublicKeyPath   string
	AllowedOrigins  []string
	ShutdownTimeout time.Duration
}

// DefaultQueueName is the Redis list match records are pushed to.
const DefaultQueueName = "pongarena_matches"

// Load reads the environment. Malformed values are errors rather than silent defaults.
func Load() (*Config, error) {
	var errs []error
	intVar := func(key string, def int) int {
		v, err := getEnvInt(key, def)
		if err != nil {
			errs = append(errs, err)
		}
		return v
	}
	durVar := func(key string, def time.Duration) time.Duration {
		v, err := getEnvDuration(key, def)
		if err != nil {
			errs = append(errs, err)
		}
		return v
	}

	cfg := &Config{
		Port:             getEnv("PORT", "8080"),
		StoreDriver:      getEnv("STORE_DRIVER", StoreMemory),
		SQLitePath:       getEnv("SQLITE_PATH", "pongarena.db"),
		RedisAddr:        os.Getenv("REDIS_ADDR"),
		RedisDB:          intVar("REDIS_DB", 0),
		QueueName:        getEnv("HISTORIAN_QUEUE_NAME", DefaultQueueName),
		BatchSize:        intVar("HISTORIAN_BATCH_SIZE", 20),
		FlushDelay:       time.Duration(intVar("HISTORIAN_FLUSH_MS", 500)) * time.Millisecond,
		TickRate:         intVar("TICK_RATE", 60),
		ScoreLimit:       intVar("SCORE_LIMIT", 5),
		ReadyTimeout:     durVar("READY_TIMEOUT", 10*time.Second),
		SelectionTimeout: durVar("SELECTION_TIMEOUT", 30*time.Second),
		PrivateKeyPath:   os.Getenv("JWT_PRIVATE_KEY_PATH"),
		PublicKeyPath:    os.Getenv("JWT_PUBLIC_KEY_PATH"),
		AllowedOrigins:   splitList(getEnv("ALLOWED_ORIGINS", "*")),
		ShutdownTimeout:  durVar("SHUTDOWN_TIMEOUT", 10*time.Second),
	}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = database.PostgresURL(
			getEnv("POSTGRES_USER", "postgres"),
			os.Getenv("POSTGRES_PASSWORD"),
			getEnv("PG_HOST", "localhost"),
			getEnv("PG_PORT", "5432"),
			getEnv("PG_DATABASE", "pongarena"),
		)
	}

	level, err := logrus.ParseLevel(getEnv("LOG_LEVEL", "debug"))
	if err != nil {
		errs = append(errs, fmt.Errorf("LOG_LEVEL: %w", err))
	}
	cfg.LogLevel = level

	if raw := os.Getenv("TOKEN_EXPIRE_TIME"); raw != "" && raw != "never" && raw != "0" {
		ttl, err := time.ParseDuration(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("TOKEN_EXPIRE_TIME: %w", err))
		}
		cfg.TokenTTL = ttl
	}

	switch cfg.StoreDriver {
	case StoreMemory, StoreSQLite, StorePostgres:
	default:
		errs = append(errs, fmt.Errorf("STORE_DRIVER: unknown driver %q", cfg.StoreDriver))
	}
	if cfg.TickRate <= 0 {
		errs = append(errs, fmt.Errorf("TICK_RATE must be positive"))
	}
	if cfg.ScoreLimit <= 0 {
		errs = append(errs, fmt.Errorf("SCORE_LIMIT must be positive"))
	}
	if cfg.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("HISTORIAN_BATCH_SIZE must be positive"))
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return cfg, nil
}

// Addr is the listen address.
func (c *Config) Addr() string {
	return ":" + c.Port
}
