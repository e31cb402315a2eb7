package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// Database holds the PostgreSQL connection pool
type Database struct {
	pool *pgxpool.Pool
}

// New creates a new database connection
func New(ctx context.Context, databaseURL string) (*Database, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	// Configure connection pool
	config.MaxConns = 25
	config.MinConns = 5
	config.MaxConnLifetime = 5 * time.Minute
	config.MaxConnIdleTime = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	db := &Database{pool: pool}

	// Initialize schema
	if err := db.initializeSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool
func (db *Database) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}

// GetPool returns the connection pool
func (db *Database) GetPool() *pgxpool.Pool {
	return db.pool
}

// initializeSchema reads and executes schema.sql
func (db *Database) initializeSchema(ctx context.Context) error {
	schemaPath := "schema.sql"

	content, err := os.ReadFile(schemaPath)
	if err != nil {
		// Try from current working directory, then root
		content, err = os.ReadFile(filepath.Join(".", schemaPath))
		if err != nil {
			content, err = os.ReadFile(filepath.Join("/", schemaPath))
			if err != nil {
				return fmt.Errorf("failed to read schema.sql: %w", err)
			}
		}
	}

	_, err = db.pool.Exec(ctx, string(content))
	if err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	if err := db.runMigrations(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	log.Info().Msg("Database schema initialized successfully")
	return nil
}

// runMigrations runs database migrations
func (db *Database) runMigrations(ctx context.Context) error {
	// Migration 1: request_count was added after the initial release
	_, err := db.pool.Exec(ctx, `
		ALTER TABLE api_keys
		ADD COLUMN IF NOT EXISTS request_count BIGINT NOT NULL DEFAULT 0;
	`)
	if err != nil {
		return fmt.Errorf("failed to add request_count column: %w", err)
	}

	// Migration 2: backfill active flag on records created before the flag
	result, err := db.pool.Exec(ctx, `
		UPDATE api_keys SET active = true WHERE active IS NULL
	`)
	if err != nil {
		log.Warn().Err(err).Msg("migration: failed to backfill api_keys.active")
	} else if result.RowsAffected() > 0 {
		log.Info().Int64("rows", result.RowsAffected()).Msg("Migration: backfilled api_keys.active")
	}

	log.Info().Msg("Migrations completed successfully")
	return nil
}

// Health checks if the database is healthy
func (db *Database) Health(ctx context.Context) error {
	if db == nil || db.pool == nil {
		return fmt.Errorf("database connection not initialized")
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return db.pool.Ping(ctx)
}

// QueryRow executes a query and returns a single row
func (db *Database) QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row {
	return db.pool.QueryRow(ctx, sql, args...)
}

// Query executes a query and returns rows
func (db *Database) Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	return db.pool.Query(ctx, sql, args...)
}

// Exec executes a query without returning rows
func (db *Database) Exec(ctx context.Context, sql string, args ...interface{}) error {
	_, err := db.pool.Exec(ctx, sql, args...)
	return err
}
