// Package catalog loads the question catalog for JournalPipe.
//
// The catalog is a static JSON or YAML document listing the questions the
// bot may ask. Individually malformed entries are dropped with a warning so
// one bad question cannot take down the whole load.
package catalog

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/journalpipe/journalpipe/internal/models"
	"gopkg.in/yaml.v3"
)

// document is the on-disk catalog schema.
type document struct {
	Questions []models.Question `json:"questions" yaml:"questions"`
}

// Load reads and validates the question catalog at path. The format is
// chosen by file extension: .yaml/.yml parse as YAML, everything else as
// JSON. A missing file or an undecodable document is fatal; a question
// missing a required field is logged and skipped.
func Load(path string) ([]models.Question, error) {
	slog.Debug("Catalog Load invoked", "path", path)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Error("Catalog file not found", "path", path)
			return nil, fmt.Errorf("%w: %s", models.ErrCatalogNotFound, path)
		}
		slog.Error("Catalog file read failed", "error", err, "path", path)
		return nil, fmt.Errorf("failed to read question catalog %s: %w", path, err)
	}

	var doc document
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &doc); err != nil {
			slog.Error("Catalog YAML decode failed", "error", err, "path", path)
			return nil, fmt.Errorf("%w: %v", models.ErrCatalogMalformed, err)
		}
	default:
		if err := json.Unmarshal(data, &doc); err != nil {
			slog.Error("Catalog JSON decode failed", "error", err, "path", path)
			return nil, fmt.Errorf("%w: %v", models.ErrCatalogMalformed, err)
		}
	}

	questions := make([]models.Question, 0, len(doc.Questions))
	for i, q := range doc.Questions {
		if q.Frequency == "" {
			q.Frequency = models.FrequencyDaily
		}
		if err := q.Validate(); err != nil {
			slog.Warn("Dropping invalid catalog question", "error", err, "index", i, "id", q.ID)
			continue
		}
		questions = append(questions, q)
	}

	slog.Info("Question catalog loaded", "path", path, "loaded", len(questions), "dropped", len(doc.Questions)-len(questions))
	return questions, nil
}
