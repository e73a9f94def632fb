package search

import (
	"log/slog"
	"slices"
	"strings"
	"sync/atomic"

	"github.com/poiesic/auditel/core"
)

// DefaultThreshold is the exclusive lower similarity bound for hits.
const DefaultThreshold = 0.1

// index is an immutable snapshot of a fitted corpus.
type index struct {
	vectorizer *vectorizer
	vectors    []sparseVector
	records    []*core.AuditRecord
	categories []string
}

// Engine ranks local audit records against free-text questions.
type Engine struct {
	index     atomic.Pointer[index]
	threshold float64
	config    VectorizerConfig
	logger    *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) error {
		if logger == nil {
			logger = slog.Default()
		}
		e.logger = logger
		return nil
	}
}

// WithThreshold sets the exclusive similarity threshold.
// Default is 0.1.
func WithThreshold(threshold float64) Option {
	return func(e *Engine) error {
		e.threshold = threshold
		return nil
	}
}

// WithMaxFeatures caps the vocabulary size.
// Default is 5000.
func WithMaxFeatures(n int) Option {
	return func(e *Engine) error {
		e.config.MaxFeatures = n
		return nil
	}
}

// WithVectorizerConfig replaces the whole vectorizer configuration.
func WithVectorizerConfig(cfg VectorizerConfig) Option {
	return func(e *Engine) error {
		if cfg.MaxDFRatio <= 0 || cfg.MaxDFRatio > 1 {
			return ErrInvalidMaxDF
		}
		e.config = cfg
		return nil
	}
}

// NewEngine creates an engine that is not yet initialized. Call Build
// before searching.
func NewEngine(opts ...Option) (*Engine, error) {
	e := &Engine{
		threshold: DefaultThreshold,
		config:    DefaultVectorizerConfig(),
		logger:    slog.Default(),
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	e.logger = e.logger.With("component", "search")

	return e, nil
}

// Document builds the searchable text of a record: type, description,
// category, subcategory and every non-empty citation field.
func Document(record *core.AuditRecord) string {
	fields := []string{record.Type, record.Description, record.Category, record.Subcategory}
	for _, name := range record.NormativaFields() {
		fields = append(fields, record.Normativas[name])
	}
	fields = slices.DeleteFunc(fields, func(s string) bool { return strings.TrimSpace(s) == "" })
	return strings.Join(fields, " ")
}

// Build fits the engine over every record of every category, in the given
// order. On failure the engine is left uninitialized and searches return no hits.
func (e *Engine) Build(corpus []core.CategoryRecords) error {
	var (
		docs       []string
		records    []*core.AuditRecord
		categories []string
	)
	for _, group := range corpus {
		for _, record := range group.Records {
			if record == nil {
				continue
			}
			docs = append(docs, Document(record))
			records = append(records, record)
			categories = append(categories, group.Category)
		}
	}

	vec, vectors, err := fitVectorizer(docs, e.config)
	if err != nil {
		e.index.Store(nil)
		e.logger.Error("error building search index", "documents", len(docs), "err", err)
		return err
	}

	e.index.Store(&index{
		vectorizer: vec,
		vectors:    vectors,
		records:    records,
		categories: categories,
	})
	e.logger.Info("search index ready", "documents", len(docs), "vocabulary", vec.vocabularySize())
	return nil
}

// Initialized reports whether Build has succeeded.
func (e *Engine) Initialized() bool {
	return e.index.Load() != nil
}

// DocumentCount returns the number of indexed records.
func (e *Engine) DocumentCount() int {
	idx := e.index.Load()
	if idx == nil {
		return 0
	}
	return len(idx.records)
}

// VocabularySize returns the number of terms in the fitted vocabulary.
func (e *Engine) VocabularySize() int {
	idx := e.index.Load()
	if idx == nil {
		return 0
	}
	return idx.vectorizer.vocabularySize()
}

// Search returns up to topN records of category whose similarity to query
// exceeds the threshold, most similar first. Ties keep corpus order.
// It returns an empty slice when the engine is uninitialized, the query is
// empty or nothing qualifies.
func (e *Engine) Search(query, category string, topN int) []core.SearchHit {
	idx := e.index.Load()
	if idx == nil || topN <= 0 || strings.TrimSpace(query) == "" {
		return []core.SearchHit{}
	}

	qv := idx.vectorizer.transform(query)
	if qv.empty() {
		return []core.SearchHit{}
	}

	hits := []core.SearchHit{}
	for i, dv := range idx.vectors {
		if idx.categories[i] != category {
			continue
		}
		similarity := dot(qv, dv)
		if similarity > e.threshold {
			hits = append(hits, core.SearchHit{
				Record:     idx.records[i],
				Similarity: similarity,
				Category:   idx.categories[i],
				Index:      i,
			})
		}
	}

	// Sort by similarity descending
	slices.SortStableFunc(hits, func(a, b core.SearchHit) int {
		switch {
		case a.Similarity > b.Similarity:
			return -1
		case a.Similarity < b.Similarity:
			return 1
		}
		return 0
	})
	if len(hits) > topN {
		hits = hits[:topN]
	}
	return hits
}

// Score returns the cosine similarity of text to query in the fitted space,
// or 0 when the engine is uninitialized.
func (e *Engine) Score(query, text string) float64 {
	idx := e.index.Load()
	if idx == nil {
		return 0
	}
	return dot(idx.vectorizer.transform(query), idx.vectorizer.transform(text))
}
