// Package store provides storage backends for finalized journal entries.
//
// Three backends are available: a JSON file store (one document per member
// per day), SQLite, and PostgreSQL. All share the overwrite semantics the
// orchestrator relies on: saving an entry for the same (member, day) pair
// replaces any earlier record.
package store

import (
	"context"
	"strings"

	"github.com/journalpipe/journalpipe/internal/models"
)

// Store persists finalized daily journal entries.
type Store interface {
	// SaveEntry writes an entry, overwriting any prior entry for the same
	// owner and day.
	SaveEntry(ctx context.Context, entry models.JournalEntry) error

	// GetEntry retrieves an entry by owner id and calendar day. It returns
	// (nil, nil) when no entry exists.
	GetEntry(ctx context.Context, ownerID, date string) (*models.JournalEntry, error)

	// Close releases backend resources.
	Close() error
}

// Opts holds configuration options for database-backed stores.
type Opts struct {
	DSN string
}

// Option defines a configuration option for database-backed stores.
type Option func(*Opts)

// WithDSN sets the database connection string.
func WithDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// DetectDSNType classifies a connection string as "postgres", "sqlite", or
// "file" (a bare directory path for the JSON file store).
func DetectDSNType(dsn string) string {
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return "postgres"
	case strings.Contains(dsn, "host=") && strings.Contains(dsn, "dbname="):
		return "postgres"
	case strings.HasSuffix(dsn, ".db"), strings.HasSuffix(dsn, ".sqlite"),
		strings.HasSuffix(dsn, ".sqlite3"), strings.HasPrefix(dsn, "file:"):
		return "sqlite"
	default:
		return "file"
	}
}
