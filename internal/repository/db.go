package repository

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres" // postgres:// migration driver
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq" // PostgreSQL driver
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DBConfig holds database connection configuration
type DBConfig struct {
	DSN string // lib/pq key=value connection string
	URL string // postgres:// URL used by the migrator
}

// NewDBConnection creates a new database connection pool
func NewDBConnection(ctx context.Context, cfg DBConfig, logger *zap.SugaredLogger) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("Connected to database")

	return db, nil
}

// Migrate applies all pending up-migrations embedded in the binary.
// The migrator opens its own connection from the URL and closes it when done.
func Migrate(databaseURL string, logger *zap.SugaredLogger) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to open migration source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, databaseURL)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("failed to read migration version: %w", err)
	}
	logger.Infow("Database migrations applied", "version", version, "dirty", dirty)

	return nil
}

// CloseDB gracefully closes the database connection
func CloseDB(db *sql.DB, logger *zap.SugaredLogger) {
	if db != nil {
		if err := db.Close(); err != nil {
			logger.Errorw("Error closing database connection", "error", err)
		} else {
			logger.Info("Database connection closed")
		}
	}
}
