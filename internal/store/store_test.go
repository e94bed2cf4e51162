package store

import (
	"context"
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"github.com/journalpipe/journalpipe/internal/models"
)

func strptr(s string) *string { return &s }

func sampleEntry(owner, date, mood string) models.JournalEntry {
	return models.JournalEntry{
		OwnerID: owner,
		Date:    date,
		Entries: []models.Answer{
			{QuestionID: "mood", QuestionText: "How are you feeling?", Text: strptr(mood)},
		},
		Incomplete: "no",
	}
}

func TestDetectDSNType(t *testing.T) {
	cases := map[string]string{
		"postgres://user:pw@localhost/journal":   "postgres",
		"postgresql://user:pw@localhost/journal": "postgres",
		"host=localhost dbname=journal":          "postgres",
		"/var/lib/journalpipe/journal.db":        "sqlite",
		"file:journal.db?_foreign_keys=on":       "sqlite",
		"entries.sqlite3":                        "sqlite",
		"/var/lib/journalpipe/entries":           "file",
	}
	for dsn, want := range cases {
		if got := DetectDSNType(dsn); got != want {
			t.Errorf("DetectDSNType(%q) = %q, want %q", dsn, got, want)
		}
	}
}

func TestFileStoreSaveAndGet(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx := context.Background()

	entry := sampleEntry("alice", "2026-08-30", "calm")
	if err := s.SaveEntry(ctx, entry); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Deterministic filename derived from owner and date.
	wantPath := filepath.Join(dir, "alice_2026-08-30.json")
	if _, err := os.Stat(wantPath); err != nil {
		t.Fatalf("expected entry file at %s: %v", wantPath, err)
	}

	got, err := s.GetEntry(ctx, "alice", "2026-08-30")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || got.OwnerID != "alice" || len(got.Entries) != 1 {
		t.Fatalf("round-trip lost entry: %+v", got)
	}
	if got.Entries[0].Text == nil || *got.Entries[0].Text != "calm" {
		t.Errorf("round-trip lost answer text: %+v", got.Entries[0])
	}
}

func TestFileStoreOverwritesSameDay(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx := context.Background()

	if err := s.SaveEntry(ctx, sampleEntry("alice", "2026-08-30", "rough morning")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.SaveEntry(ctx, sampleEntry("alice", "2026-08-30", "better by evening")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := s.GetEntry(ctx, "alice", "2026-08-30")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *got.Entries[0].Text != "better by evening" {
		t.Errorf("same-day re-run must overwrite, got %q", *got.Entries[0].Text)
	}
}

func TestFileStoreGetMissing(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := s.GetEntry(context.Background(), "nobody", "2026-08-30")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for missing entry, got %+v", got)
	}
}

func TestSQLiteStoreUpsert(t *testing.T) {
	s, err := NewSQLiteStore(WithDSN(filepath.Join(t.TempDir(), "journal.db")))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer s.Close()
	ctx := context.Background()

	if err := s.SaveEntry(ctx, sampleEntry("alice", "2026-08-30", "rough morning")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.SaveEntry(ctx, sampleEntry("alice", "2026-08-30", "better by evening")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.SaveEntry(ctx, sampleEntry("bob", "2026-08-30", "fine")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := s.GetEntry(ctx, "alice", "2026-08-30")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || *got.Entries[0].Text != "better by evening" {
		t.Errorf("upsert must overwrite the same (owner, day), got %+v", got)
	}

	missing, err := s.GetEntry(ctx, "alice", "2026-08-29")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil for missing day, got %+v", missing)
	}
}

func TestPostgresStore(t *testing.T) {
	// This test requires a running PostgreSQL instance.
	// Set the DATABASE_URL environment variable for connection string.
	connStr := getenvOrSkip(t, "DATABASE_URL")
	pgStore, err := NewPostgresStore(WithDSN(connStr))
	if err != nil {
		t.Skipf("Postgres not available: %v", err)
	}
	defer pgStore.Close()
	ctx := context.Background()

	pgStore.db.Exec("DELETE FROM journal_entries")
	if err := pgStore.SaveEntry(ctx, sampleEntry("alice", "2026-08-30", "calm")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := pgStore.GetEntry(ctx, "alice", "2026-08-30")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || got.OwnerID != "alice" {
		t.Error("entry not stored or retrieved correctly in Postgres")
	}
}

func getenvOrSkip(t *testing.T, key string) string {
	v := ""
	if val, ok := syscall.Getenv(key); ok {
		v = val
	}
	if v == "" {
		t.Skipf("env %s not set", key)
	}
	return v
}
