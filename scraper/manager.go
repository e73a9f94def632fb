package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/poiesic/auditel/core"
	"github.com/poiesic/auditel/search"
	"github.com/poiesic/auditel/storage"
)

// Manager defaults.
const (
	DefaultMaxPerSource = 5
	DefaultTaskTimeout  = 30 * time.Second
)

// Scorer assigns a relevance score to a scraped normativa for query.
type Scorer func(query string, n *core.Normativa) float64

// CoverageScorer scores a normativa by the share of query terms found in
// its title and content.
func CoverageScorer(query string, n *core.Normativa) float64 {
	return search.QueryCoverage(n.Title+" "+n.Content, query)
}

// Manager runs registered scrapers concurrently and merges their results.
type Manager struct {
	scrapers    map[string]Scraper
	order       []string
	cache       storage.Cache
	scorer      Scorer
	taskTimeout time.Duration
	logger      *slog.Logger
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager) error

// WithCache sets the cache used by cached searches.
func WithCache(cache storage.Cache) ManagerOption {
	return func(m *Manager) error {
		m.cache = cache
		return nil
	}
}

// WithScorer sets the relevance scorer.
// Default is CoverageScorer.
func WithScorer(scorer Scorer) ManagerOption {
	return func(m *Manager) error {
		if scorer == nil {
			return errors.New("scorer cannot be nil")
		}
		m.scorer = scorer
		return nil
	}
}

// WithTaskTimeout bounds each source search and the whole fan-out.
// Default is 30 seconds.
func WithTaskTimeout(d time.Duration) ManagerOption {
	return func(m *Manager) error {
		if d <= 0 {
			return fmt.Errorf("task timeout must be positive, got %s", d)
		}
		m.taskTimeout = d
		return nil
	}
}

// WithManagerLogger sets a custom logger.
// Default is slog.Default().
func WithManagerLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) error {
		if logger == nil {
			logger = slog.Default()
		}
		m.logger = logger
		return nil
	}
}

// NewManager creates a manager over scrapers. Names must be unique.
func NewManager(scrapers []Scraper, opts ...ManagerOption) (*Manager, error) {
	if len(scrapers) == 0 {
		return nil, ErrNoScrapers
	}
	m := &Manager{
		scrapers:    make(map[string]Scraper, len(scrapers)),
		scorer:      CoverageScorer,
		taskTimeout: DefaultTaskTimeout,
		logger:      slog.Default(),
	}
	for _, s := range scrapers {
		if s == nil {
			return nil, errors.New("scraper cannot be nil")
		}
		if _, dup := m.scrapers[s.Name()]; dup {
			return nil, fmt.Errorf("duplicate scraper %q", s.Name())
		}
		m.scrapers[s.Name()] = s
		m.order = append(m.order, s.Name())
	}
	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, err
		}
	}
	m.logger = m.logger.With("component", "scraper-manager")
	m.logger.Info("scraper manager ready", "sources", m.order)
	return m, nil
}

// SearchAllOptions tunes a fan-out search.
type SearchAllOptions struct {
	// MaxPerSource caps each source's results. Default is 5.
	MaxPerSource int
	// MaxTotal caps the merged results after scoring. Zero means no cap.
	MaxTotal int
	UseCache bool
	// Sources restricts the search to these names. Empty means all.
	Sources []string
}

type outcome struct {
	source    string
	results   []*core.Normativa
	fromCache bool
	err       error
}

// SearchAll queries the selected sources in parallel on a pool sized to the
// number of sources. Each task is bounded by the task timeout and the
// collector stops waiting at the same deadline; late, failed and empty
// sources are left out of SourcesConsulted. Results are scored and sorted by
// relevance, highest first, keeping source order for ties.
func (m *Manager) SearchAll(ctx context.Context, query string, opts SearchAllOptions) *core.ResultBundle {
	start := time.Now()
	if opts.MaxPerSource <= 0 {
		opts.MaxPerSource = DefaultMaxPerSource
	}

	bundle := &core.ResultBundle{
		Query:            query,
		Normativas:       []*core.Normativa{},
		SourcesConsulted: []string{},
		Timestamp:        start,
	}
	defer func() {
		bundle.Elapsed = time.Since(start)
	}()

	active := m.activeSources(opts.Sources)
	if len(active) == 0 {
		return bundle
	}
	m.logger.Info("searching sources", "query", query, "sources", active)

	pool, err := ants.NewPool(len(active))
	if err != nil {
		m.logger.Error("error creating worker pool", "err", err)
		return bundle
	}
	defer pool.Release()

	groupCtx, cancel := context.WithTimeout(ctx, m.taskTimeout)
	defer cancel()

	outcomes := make(chan outcome, len(active))
	for _, name := range active {
		s := m.scrapers[name]
		task := func() {
			outcomes <- m.runTask(groupCtx, s, query, opts)
		}
		if err := pool.Submit(task); err != nil {
			outcomes <- outcome{source: name, err: err}
		}
	}

	bySource := make(map[string]outcome, len(active))
collect:
	for range active {
		select {
		case o := <-outcomes:
			bySource[o.source] = o
		case <-groupCtx.Done():
			m.logger.Warn("search deadline reached, discarding late sources",
				"received", len(bySource), "expected", len(active))
			break collect
		}
	}

	allCached := true
	for _, name := range active {
		o, ok := bySource[name]
		switch {
		case !ok:
			continue
		case o.err != nil:
			m.logger.Error("source failed", "source", name, "err", o.err)
			continue
		case len(o.results) == 0:
			m.logger.Warn("source returned no results", "source", name)
			continue
		}
		m.logger.Info("source results", "source", name, "count", len(o.results), "cached", o.fromCache)
		bundle.Normativas = append(bundle.Normativas, o.results...)
		bundle.SourcesConsulted = append(bundle.SourcesConsulted, name)
		allCached = allCached && o.fromCache
	}

	m.score(query, bundle.Normativas)
	bundle.Total = len(bundle.Normativas)
	if opts.MaxTotal > 0 {
		bundle.Limit(opts.MaxTotal)
	}
	bundle.SourceCount = len(bundle.SourcesConsulted)
	bundle.FromCache = opts.UseCache && bundle.SourceCount > 0 && allCached

	m.logger.Info("search complete", "query", query, "results", bundle.Total,
		"sources", bundle.SourceCount, "elapsed", time.Since(start))
	return bundle
}

// runTask searches one source, converting panics into errors.
func (m *Manager) runTask(ctx context.Context, s Scraper, query string, opts SearchAllOptions) (o outcome) {
	o.source = s.Name()
	defer func() {
		if r := recover(); r != nil {
			o.results = nil
			o.err = fmt.Errorf("panic in scraper %s: %v", s.Name(), r)
		}
	}()

	taskCtx, cancel := context.WithTimeout(ctx, m.taskTimeout)
	defer cancel()

	searchOpts := SearchOptions{MaxResults: opts.MaxPerSource}
	if opts.UseCache {
		o.results, o.fromCache, o.err = SearchWithCache(taskCtx, s, m.cache, query, searchOpts, m.logger)
	} else {
		o.results, o.err = s.Search(taskCtx, query, searchOpts)
	}
	return o
}

func (m *Manager) activeSources(requested []string) []string {
	if len(requested) == 0 {
		return slices.Clone(m.order)
	}
	active := make([]string, 0, len(requested))
	for _, name := range requested {
		if _, ok := m.scrapers[name]; !ok {
			m.logger.Warn("unknown source ignored", "source", name)
			continue
		}
		if !slices.Contains(active, name) {
			active = append(active, name)
		}
	}
	return active
}

func (m *Manager) score(query string, results []*core.Normativa) {
	for _, n := range results {
		n.Relevance = m.scorer(query, n)
	}
	slices.SortStableFunc(results, func(a, b *core.Normativa) int {
		switch {
		case a.Relevance > b.Relevance:
			return -1
		case a.Relevance < b.Relevance:
			return 1
		}
		return 0
	})
}

// SearchOne queries a single source. Unknown sources and failures yield an
// empty result.
func (m *Manager) SearchOne(ctx context.Context, source, query string, maxResults int, useCache bool) []*core.Normativa {
	s, ok := m.scrapers[source]
	if !ok {
		m.logger.Error("source not found", "source", source)
		return []*core.Normativa{}
	}
	o := m.runTask(ctx, s, query, SearchAllOptions{MaxPerSource: maxResults, UseCache: useCache})
	if o.err != nil {
		m.logger.Error("error searching source", "source", source, "err", o.err)
		return []*core.Normativa{}
	}
	if o.results == nil {
		return []*core.Normativa{}
	}
	m.score(query, o.results)
	return o.results
}

// FetchDetail downloads a document through the named source.
func (m *Manager) FetchDetail(ctx context.Context, source, url string) (*core.Normativa, error) {
	s, ok := m.scrapers[source]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSource, source)
	}
	ctx, cancel := context.WithTimeout(ctx, m.taskTimeout)
	defer cancel()
	n, err := s.FetchDetail(ctx, url)
	if err != nil {
		m.logger.Error("error fetching detail", "source", source, "url", url, "err", err)
		return nil, err
	}
	return n, nil
}

// Sources returns the registered source names in registration order.
func (m *Manager) Sources() []string {
	return slices.Clone(m.order)
}

// Scraper returns the scraper registered under name.
func (m *Manager) Scraper(name string) (Scraper, bool) {
	s, ok := m.scrapers[name]
	return s, ok
}

// ClearCache removes every cached search.
func (m *Manager) ClearCache() error {
	if m.cache == nil {
		return nil
	}
	if err := m.cache.Clear(); err != nil {
		return err
	}
	m.logger.Info("cache cleared")
	return nil
}

// CacheStats reports the cache contents. Without a cache the stats are empty.
func (m *Manager) CacheStats() storage.Stats {
	if m.cache == nil {
		return storage.Stats{Backend: "none"}
	}
	return m.cache.Stats()
}

// Close releases every scraper's resources. The cache is owned by the caller.
func (m *Manager) Close() error {
	var errs []error
	for _, name := range m.order {
		if err := m.scrapers[name].Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing %s: %w", name, err))
			continue
		}
		m.logger.Debug("scraper closed", "source", name)
	}
	return errors.Join(errs...)
}
