// Package journal assembles per-question answers into one daily entry per
// member and computes its completeness.
package journal

import (
	"log/slog"
	"time"

	"github.com/journalpipe/journalpipe/internal/models"
)

// Completeness markers. The field reads as "partial/incomplete?", so "yes"
// flags an entry with at least one absent value and "no" a fully answered one.
const (
	EntryIncomplete = "yes"
	EntryComplete   = "no"
)

// NewEntry starts an empty entry for one member on one calendar day.
func NewEntry(ownerID string, day time.Time) *models.JournalEntry {
	return &models.JournalEntry{
		OwnerID:    ownerID,
		Date:       models.EntryDate(day),
		Entries:    []models.Answer{},
		Incomplete: EntryComplete,
	}
}

// Append records an answer, preserving arrival order. Arrival order equals
// catalog order because the orchestrator processes questions strictly in
// sequence.
func Append(entry *models.JournalEntry, answer models.Answer) {
	entry.Entries = append(entry.Entries, answer)
}

// Finalize computes the completeness flag from the collected answers and
// returns the entry. An entry is incomplete when any answer's response is
// absent, or when any habit value inside a response mapping is absent.
func Finalize(entry *models.JournalEntry) *models.JournalEntry {
	entry.Incomplete = EntryComplete
	for _, a := range entry.Entries {
		if !a.Complete() {
			entry.Incomplete = EntryIncomplete
			break
		}
	}
	slog.Debug("Journal entry finalized", "owner", entry.OwnerID, "date", entry.Date, "answers", len(entry.Entries), "incomplete", entry.Incomplete)
	return entry
}
