package db

import (
	"context"
	"database/sql"
	"log"
	"log/slog"
	"os"
	"strconv"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"notify-dispatch/internal/resilience/retry"
)

// ConnectionConfig holds database connection pool configuration.
type ConnectionConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// DefaultConnectionConfig returns the default connection pool configuration.
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		MaxOpenConns:    25,
		MaxIdleConns:    10,
		ConnMaxLifetime: 1 * time.Hour,
		ConnMaxIdleTime: 30 * time.Minute,
	}
}

// Open creates and configures a new database connection pool.
// It reads DATABASE_URL from environment, applies pool settings, and
// verifies the connection before returning. Exits the process on failure.
func Open() *sql.DB {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL not set")
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		log.Fatal(err)
	}

	cfg := getConnectionConfigFromEnv()
	cfg.apply(db)

	slog.Info("database connection pool configured",
		slog.Int("max_open_conns", cfg.MaxOpenConns),
		slog.Int("max_idle_conns", cfg.MaxIdleConns),
		slog.Duration("conn_max_lifetime", cfg.ConnMaxLifetime),
		slog.Duration("conn_max_idle_time", cfg.ConnMaxIdleTime))

	// The ping retries with backoff so a database that is still coming up
	// (connection refused) does not kill the process.
	err = retry.WithBackoff(context.Background(), retry.DBConfig(), func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return db.PingContext(ctx)
	})
	if err != nil {
		log.Fatalf("failed to ping database: %v", err)
	}

	slog.Info("database connection established successfully")
	return db
}

func (c ConnectionConfig) apply(db *sql.DB) {
	db.SetMaxOpenConns(c.MaxOpenConns)
	db.SetMaxIdleConns(c.MaxIdleConns)
	db.SetConnMaxLifetime(c.ConnMaxLifetime)
	db.SetConnMaxIdleTime(c.ConnMaxIdleTime)
}

// getConnectionConfigFromEnv reads pool settings from DB_* environment
// variables, keeping defaults for unset, malformed, or non-positive values.
func getConnectionConfigFromEnv() ConnectionConfig {
	cfg := DefaultConnectionConfig()

	envPositiveInt("DB_MAX_OPEN_CONNS", &cfg.MaxOpenConns)
	envPositiveInt("DB_MAX_IDLE_CONNS", &cfg.MaxIdleConns)
	envPositiveDuration("DB_CONN_MAX_LIFETIME", &cfg.ConnMaxLifetime)
	envPositiveDuration("DB_CONN_MAX_IDLE_TIME", &cfg.ConnMaxIdleTime)

	return cfg
}

func envPositiveInt(key string, dst *int) {
	raw := os.Getenv(key)
	if raw == "" {
		return
	}
	if val, err := strconv.Atoi(raw); err == nil && val > 0 {
		*dst = val
	}
}

func envPositiveDuration(key string, dst *time.Duration) {
	raw := os.Getenv(key)
	if raw == "" {
		return
	}
	if val, err := time.ParseDuration(raw); err == nil && val > 0 {
		*dst = val
	}
}
