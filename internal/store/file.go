// Package store provides storage backends for finalized journal entries.
//
// This file implements the JSON file store: one document per (member, day),
// named deterministically so a same-day re-run overwrites the earlier file.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/journalpipe/journalpipe/internal/models"
)

// Constants for file store configuration
const (
	// DefaultDirPermissions defines the default permissions for entry directories
	DefaultDirPermissions = 0o755
	// DefaultFilePermissions defines the default permissions for entry files
	DefaultFilePermissions = 0o644
)

// FileStore writes each journal entry as an indented JSON document under a
// single directory.
type FileStore struct {
	dir string
}

// NewFileStore creates a file store rooted at dir, creating it if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		slog.Error("FileStore directory not set")
		return nil, fmt.Errorf("entry directory not set")
	}
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create entry directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create entry directory: %w", err)
	}
	slog.Debug("FileStore entry directory verified/created", "dir", dir)
	return &FileStore{dir: dir}, nil
}

// EntryPath returns the deterministic path for an owner and day.
func (s *FileStore) EntryPath(ownerID, date string) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s_%s.json", ownerID, date))
}

// SaveEntry writes the entry document, replacing any file already present
// for the same owner and day.
func (s *FileStore) SaveEntry(ctx context.Context, entry models.JournalEntry) error {
	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		slog.Error("FileStore SaveEntry marshal failed", "error", err, "owner", entry.OwnerID)
		return fmt.Errorf("failed to marshal entry for %s: %w", entry.OwnerID, err)
	}

	path := s.EntryPath(entry.OwnerID, entry.Date)
	if err := os.WriteFile(path, data, DefaultFilePermissions); err != nil {
		slog.Error("FileStore SaveEntry write failed", "error", err, "path", path)
		return fmt.Errorf("failed to write entry %s: %w", path, err)
	}
	slog.Debug("FileStore SaveEntry succeeded", "path", path, "owner", entry.OwnerID, "date", entry.Date)
	return nil
}

// GetEntry reads an entry document back. It returns (nil, nil) when the file
// does not exist.
func (s *FileStore) GetEntry(ctx context.Context, ownerID, date string) (*models.JournalEntry, error) {
	path := s.EntryPath(ownerID, date)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Debug("FileStore GetEntry not found", "path", path)
			return nil, nil
		}
		slog.Error("FileStore GetEntry read failed", "error", err, "path", path)
		return nil, fmt.Errorf("failed to read entry %s: %w", path, err)
	}

	var entry models.JournalEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		slog.Error("FileStore GetEntry unmarshal failed", "error", err, "path", path)
		return nil, fmt.Errorf("failed to unmarshal entry %s: %w", path, err)
	}
	return &entry, nil
}

// Close is a no-op for the file store.
func (s *FileStore) Close() error {
	return nil
}
