// Package store provides storage backends for finalized journal entries.
//
// This file implements the SQLite-backed entry store.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "embed"

	"github.com/journalpipe/journalpipe/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations_sqlite.sql
var sqliteMigrations string

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	// Apply options
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	// Determine DSN (required)
	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	// Ensure the directory exists
	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	slog.Debug("SQLite database directory verified/created", "dir", dir)

	slog.Debug("Opening SQLite database connection")
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}

	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}
	slog.Debug("SQLite ping successful")

	// Run migrations to ensure tables exist
	slog.Debug("Running SQLite migrations")
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

// SaveEntry upserts the entry keyed by (owner_id, entry_date), so a same-day
// re-run overwrites the earlier record.
func (s *SQLiteStore) SaveEntry(ctx context.Context, entry models.JournalEntry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		slog.Error("SQLiteStore SaveEntry marshal failed", "error", err, "owner", entry.OwnerID)
		return fmt.Errorf("failed to marshal entry for %s: %w", entry.OwnerID, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO journal_entries (owner_id, entry_date, payload, incomplete)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (owner_id, entry_date)
		DO UPDATE SET payload = excluded.payload, incomplete = excluded.incomplete`,
		entry.OwnerID, entry.Date, string(payload), entry.Incomplete)
	if err != nil {
		slog.Error("SQLiteStore SaveEntry failed", "error", err, "owner", entry.OwnerID, "date", entry.Date)
		return fmt.Errorf("failed to upsert entry for %s on %s: %w", entry.OwnerID, entry.Date, err)
	}
	slog.Debug("SQLiteStore SaveEntry succeeded", "owner", entry.OwnerID, "date", entry.Date, "incomplete", entry.Incomplete)
	return nil
}

// GetEntry retrieves an entry by owner id and calendar day.
func (s *SQLiteStore) GetEntry(ctx context.Context, ownerID, date string) (*models.JournalEntry, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM journal_entries WHERE owner_id = ? AND entry_date = ?`,
		ownerID, date).Scan(&payload)
	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore GetEntry not found", "owner", ownerID, "date", date)
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetEntry failed", "error", err, "owner", ownerID, "date", date)
		return nil, fmt.Errorf("failed to query entry for %s on %s: %w", ownerID, date, err)
	}

	var entry models.JournalEntry
	if err := json.Unmarshal([]byte(payload), &entry); err != nil {
		slog.Error("SQLiteStore GetEntry unmarshal failed", "error", err, "owner", ownerID)
		return nil, fmt.Errorf("failed to unmarshal entry for %s: %w", ownerID, err)
	}
	return &entry, nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close SQLite database", "error", err)
	}
	return err
}
