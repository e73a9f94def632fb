// Package dataset loads the per-category audit record files.
package dataset

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/poiesic/auditel/config"
	"github.com/poiesic/auditel/core"
)

var (
	// ErrNotAList is returned when a record file does not hold a JSON array.
	ErrNotAList = errors.New("record file must contain a JSON array")
)

// Stats describes the outcome of loading one category.
type Stats struct {
	Category        string   `json:"category"`
	File            string   `json:"file"`
	Description     string   `json:"description"`
	NormativaFields []string `json:"normativa_fields"`
	Records         int      `json:"records"`
	Error           string   `json:"error,omitempty"`
}

// Corpus is the set of records loaded at startup. It is read-only afterwards.
type Corpus struct {
	// Categories holds only the categories that loaded at least one record,
	// in configuration order.
	Categories []core.CategoryRecords
	// Stats holds one entry per configured category, in configuration order.
	Stats []Stats
}

// Load reads one JSON array of records per category from dir. A missing file
// or malformed JSON leaves that category empty; the failure is logged and
// recorded in its Stats.
func Load(dir string, categories []config.Category, logger *slog.Logger) *Corpus {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "dataset")

	corpus := &Corpus{
		Categories: make([]core.CategoryRecords, 0, len(categories)),
		Stats:      make([]Stats, 0, len(categories)),
	}
	for _, cat := range categories {
		stats := Stats{
			Category:        cat.Name,
			File:            cat.File,
			Description:     cat.Description,
			NormativaFields: cat.NormativaFields,
		}

		path := filepath.Join(dir, cat.File)
		records, err := loadFile(path)
		if err != nil {
			logger.Error("error loading category records", "category", cat.Name, "path", path, "err", err)
			stats.Error = err.Error()
			corpus.Stats = append(corpus.Stats, stats)
			continue
		}

		for _, record := range records {
			if record.Category == "" {
				record.Category = cat.Name
			}
		}
		stats.Records = len(records)
		corpus.Stats = append(corpus.Stats, stats)
		if len(records) == 0 {
			logger.Warn("category has no records", "category", cat.Name, "path", path)
			continue
		}
		corpus.Categories = append(corpus.Categories, core.CategoryRecords{Category: cat.Name, Records: records})
		logger.Info("loaded category records", "category", cat.Name, "records", len(records))
	}
	return corpus
}

func loadFile(path string) ([]*core.AuditRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil, ErrNotAList
		}
		return nil, fmt.Errorf("decoding %s: %w", filepath.Base(path), err)
	}

	records := make([]*core.AuditRecord, 0, len(raw))
	for i, item := range raw {
		record := &core.AuditRecord{}
		if err := json.Unmarshal(item, record); err != nil {
			return nil, fmt.Errorf("decoding record %d of %s: %w", i, filepath.Base(path), err)
		}
		records = append(records, record)
	}
	return records, nil
}

// Total returns the number of loaded records across all categories.
func (c *Corpus) Total() int {
	total := 0
	for _, cat := range c.Categories {
		total += len(cat.Records)
	}
	return total
}

// Loaded returns the names of categories that have records.
func (c *Corpus) Loaded() []string {
	names := make([]string, 0, len(c.Categories))
	for _, cat := range c.Categories {
		names = append(names, cat.Category)
	}
	return names
}

// Records returns the records of a category, or nil when it has none.
func (c *Corpus) Records(category string) []*core.AuditRecord {
	for _, cat := range c.Categories {
		if cat.Category == category {
			return cat.Records
		}
	}
	return nil
}
