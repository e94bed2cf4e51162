// Package store provides storage backends for finalized journal entries.
//
// This file implements the PostgreSQL-backed entry store.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/journalpipe/journalpipe/internal/models"
	_ "github.com/lib/pq"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	// Apply options
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewPostgresStore invoked", "DSN_set", cfg.DSN != "")

	// Determine DSN (required)
	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	slog.Debug("Opening Postgres database connection")
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	// Configure connection pool for better performance
	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}
	slog.Debug("Postgres ping successful")

	slog.Debug("Running Postgres migrations")
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")

	return &PostgresStore{db: db}, nil
}

// SaveEntry upserts the entry keyed by (owner_id, entry_date).
func (s *PostgresStore) SaveEntry(ctx context.Context, entry models.JournalEntry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		slog.Error("PostgresStore SaveEntry marshal failed", "error", err, "owner", entry.OwnerID)
		return fmt.Errorf("failed to marshal entry for %s: %w", entry.OwnerID, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO journal_entries (owner_id, entry_date, payload, incomplete)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (owner_id, entry_date)
		DO UPDATE SET payload = EXCLUDED.payload, incomplete = EXCLUDED.incomplete`,
		entry.OwnerID, entry.Date, string(payload), entry.Incomplete)
	if err != nil {
		slog.Error("PostgresStore SaveEntry failed", "error", err, "owner", entry.OwnerID, "date", entry.Date)
		return fmt.Errorf("failed to upsert entry for %s on %s: %w", entry.OwnerID, entry.Date, err)
	}
	slog.Debug("PostgresStore SaveEntry succeeded", "owner", entry.OwnerID, "date", entry.Date)
	return nil
}

// GetEntry retrieves an entry by owner id and calendar day.
func (s *PostgresStore) GetEntry(ctx context.Context, ownerID, date string) (*models.JournalEntry, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM journal_entries WHERE owner_id = $1 AND entry_date = $2`,
		ownerID, date).Scan(&payload)
	if err == sql.ErrNoRows {
		slog.Debug("PostgresStore GetEntry not found", "owner", ownerID, "date", date)
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetEntry failed", "error", err, "owner", ownerID, "date", date)
		return nil, fmt.Errorf("failed to query entry for %s on %s: %w", ownerID, date, err)
	}

	var entry models.JournalEntry
	if err := json.Unmarshal([]byte(payload), &entry); err != nil {
		slog.Error("PostgresStore GetEntry unmarshal failed", "error", err, "owner", ownerID)
		return nil, fmt.Errorf("failed to unmarshal entry for %s: %w", ownerID, err)
	}
	return &entry, nil
}

// Close closes the Postgres database connection.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing Postgres database connection")
	return s.db.Close()
}
