// Package auditel answers audit compliance questions by combining a local
// search over audit irregularity records with live searches of official
// gazettes.
//
// A Service owns every component and their lifecycle:
//
//	svc, err := auditel.NewService(auditel.WithConfig(cfg))
//	if err != nil {
//		return err
//	}
//	defer svc.Close()
//	answer, err := svc.HybridSearch(ctx, auditel.Question{Text: "...", Category: "Obra Pública"})
package auditel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/poiesic/auditel/answer"
	"github.com/poiesic/auditel/config"
	"github.com/poiesic/auditel/core"
	"github.com/poiesic/auditel/dataset"
	"github.com/poiesic/auditel/hybrid"
	"github.com/poiesic/auditel/scraper"
	"github.com/poiesic/auditel/search"
	"github.com/poiesic/auditel/session"
	"github.com/poiesic/auditel/storage"
	"github.com/poiesic/auditel/storage/badger"
	"github.com/poiesic/auditel/storage/file"
	"github.com/poiesic/auditel/storage/redis"
	"github.com/poiesic/auditel/textproc"
)

// Version is reported by health checks.
const Version = "3.0.0"

// DefaultScrapeQuery is used by Scrape when neither a query nor a category is given.
const DefaultScrapeQuery = "obras públicas"

// Service answers audit questions from the local record corpus and the
// official gazettes. It owns the search index, the scraper cache and the
// session histories. Service is safe for concurrent use.
type Service struct {
	config       *config.Config
	corpus       *dataset.Corpus
	engine       *search.Engine
	cache        storage.Cache
	manager      *scraper.Manager
	orchestrator *hybrid.Orchestrator
	sessions     session.Store
	now          func() time.Time
	logger       *slog.Logger
	closed       atomic.Bool
}

// ServiceOption configures a Service.
type ServiceOption func(*serviceOptions)

type serviceOptions struct {
	config   *config.Config
	scrapers []scraper.Scraper
	cache    storage.Cache
	sessions session.Store
	now      func() time.Time
	logger   *slog.Logger
}

// WithConfig sets the configuration.
// Default is config.DefaultConfig().
func WithConfig(cfg *config.Config) ServiceOption {
	return func(o *serviceOptions) {
		o.config = cfg
	}
}

// WithScrapers replaces the gazette scrapers built from the configuration.
// The Service takes ownership and closes them.
func WithScrapers(scrapers ...scraper.Scraper) ServiceOption {
	return func(o *serviceOptions) {
		o.scrapers = scrapers
	}
}

// WithCache replaces the cache backend selected by the configuration.
// The Service takes ownership and closes it.
func WithCache(cache storage.Cache) ServiceOption {
	return func(o *serviceOptions) {
		o.cache = cache
	}
}

// WithSessionStore replaces the in-memory session store.
func WithSessionStore(store session.Store) ServiceOption {
	return func(o *serviceOptions) {
		o.sessions = store
	}
}

// WithClock replaces time.Now for timestamps.
func WithClock(now func() time.Time) ServiceOption {
	return func(o *serviceOptions) {
		if now != nil {
			o.now = now
		}
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(o *serviceOptions) {
		if logger == nil {
			logger = slog.Default()
		}
		o.logger = logger
	}
}

// NewService loads the record corpus, builds the search index and wires the
// cache, scrapers, orchestrator and session store. A corpus that fails to
// index leaves local search empty; only infrastructure failures are returned.
func NewService(opts ...ServiceOption) (*Service, error) {
	options := &serviceOptions{
		config: config.DefaultConfig(),
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}
	cfg := options.config
	if cfg == nil {
		return nil, ErrConfigRequired
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := options.logger

	corpus := dataset.Load(cfg.DataDir, cfg.Categories, logger)

	engine, err := search.NewEngine(
		search.WithThreshold(cfg.SimilarityThreshold),
		search.WithMaxFeatures(cfg.MaxFeatures),
		search.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}
	if err := engine.Build(corpus.Categories); err != nil {
		logger.Warn("local search disabled", "err", err)
	}

	cache := options.cache
	if cache == nil {
		cache, err = OpenCache(cfg, logger)
		if err != nil {
			return nil, err
		}
	}

	scrapers := options.scrapers
	if scrapers == nil {
		scrapers, err = NewScrapers(cfg, logger)
		if err != nil {
			cache.Close()
			return nil, err
		}
	}

	managerOpts := []scraper.ManagerOption{
		scraper.WithCache(cache),
		scraper.WithTaskTimeout(cfg.TaskTimeout),
		scraper.WithManagerLogger(logger),
	}
	if cfg.WebScorer == config.WebScorerTFIDF {
		managerOpts = append(managerOpts, scraper.WithScorer(IndexScorer(engine)))
	}
	manager, err := scraper.NewManager(scrapers, managerOpts...)
	if err != nil {
		closeScrapers(scrapers)
		cache.Close()
		return nil, err
	}

	orchestrator, err := hybrid.NewOrchestrator(engine, manager,
		hybrid.WithTopN(cfg.TopN),
		hybrid.WithWebResultsPerSource(cfg.WebResultsPerSource),
		hybrid.WithClock(options.now),
		hybrid.WithLogger(logger),
	)
	if err != nil {
		manager.Close()
		cache.Close()
		return nil, err
	}

	sessions := options.sessions
	if sessions == nil {
		sessions = session.NewMemoryStore(
			session.WithLimit(cfg.HistoryLimit),
			session.WithLogger(logger),
		)
	}

	logger.Info("service ready",
		"categories", corpus.Loaded(),
		"records", corpus.Total(),
		"sources", manager.Sources(),
		"cache", cfg.CacheBackend)

	return &Service{
		config:       cfg,
		corpus:       corpus,
		engine:       engine,
		cache:        cache,
		manager:      manager,
		orchestrator: orchestrator,
		sessions:     sessions,
		now:          options.now,
		logger:       logger.With("component", "service"),
	}, nil
}

// IndexScorer ranks scraped normativas by the cosine similarity of their
// title and content to the query in the engine's TF-IDF space.
func IndexScorer(engine *search.Engine) scraper.Scorer {
	return func(query string, n *core.Normativa) float64 {
		return engine.Score(query, n.Title+" "+n.Content)
	}
}

// OpenCache opens the cache backend selected by cfg.CacheBackend.
func OpenCache(cfg *config.Config, logger *slog.Logger) (storage.Cache, error) {
	opts := []storage.Option{
		storage.WithExpiration(cfg.CacheExpiration),
		storage.WithLogger(logger),
	}
	var (
		cache storage.Cache
		err   error
	)
	switch cfg.CacheBackend {
	case config.CacheBackendFile:
		cache, err = file.New(cfg.CacheDir, opts...)
	case config.CacheBackendBadger:
		cache, err = badger.NewCache(cfg.CacheDir, opts...)
	case config.CacheBackendRedis:
		cache, err = redis.New(redis.Config{Addr: cfg.RedisAddr, Prefix: cfg.RedisPrefix}, opts...)
	default:
		return nil, fmt.Errorf("%w: unknown cache backend %q", config.ErrInvalidConfig, cfg.CacheBackend)
	}
	if err != nil {
		return nil, fmt.Errorf("opening %s cache: %w", cfg.CacheBackend, err)
	}
	return cache, nil
}

// NewScrapers builds one gazette scraper per known site, each with its own
// fetcher configured from cfg.
func NewScrapers(cfg *config.Config, logger *slog.Logger) ([]scraper.Scraper, error) {
	sites := scraper.Sites()
	scrapers := make([]scraper.Scraper, 0, len(sites))
	for _, site := range sites {
		fetcher := scraper.NewFetcher(
			scraper.WithUserAgent(cfg.UserAgent),
			scraper.WithRetry(cfg.RetryAttempts, cfg.RetryBaseDelay),
			scraper.WithRequestTimeout(cfg.RequestTimeout),
			scraper.WithRequestDelay(cfg.RequestDelay),
			scraper.WithFetcherLogger(logger),
		)
		s, err := scraper.NewGazetteScraper(site,
			scraper.WithFetcher(fetcher),
			scraper.WithLogger(logger),
		)
		if err != nil {
			fetcher.Close()
			closeScrapers(scrapers)
			return nil, fmt.Errorf("creating %s scraper: %w", site.Name, err)
		}
		scrapers = append(scrapers, s)
	}
	return scrapers, nil
}

func closeScrapers(scrapers []scraper.Scraper) {
	for _, s := range scrapers {
		if s != nil {
			s.Close()
		}
	}
}

// Question is one user question.
type Question struct {
	// SessionID groups questions into a history. Empty means no history is kept.
	SessionID string
	Text      string
	Category  string
	// Entity is the audited entity type, free text.
	Entity string
	// UseWeb overrides the configured default when set.
	UseWeb *bool
}

// Answer is the outcome of a hybrid search.
type Answer struct {
	Text    string             `json:"answer"`
	Result  *core.HybridResult `json:"result"`
	Elapsed time.Duration      `json:"elapsed"`
	History []session.Turn     `json:"history,omitempty"`
}

// HybridSearch validates q, searches the local corpus and, when enabled,
// the gazettes, and renders the markdown answer. With a session id the turn
// is appended to that session's history.
func (s *Service) HybridSearch(ctx context.Context, q Question) (*Answer, error) {
	if s.closed.Load() {
		return nil, ErrServiceClosed
	}
	start := s.now()

	text := textproc.CleanText(q.Text)
	if err := core.ValidateQuestion(text, s.config.MinQuestionLength, s.config.MaxQuestionLength); err != nil {
		return nil, err
	}
	if err := core.ValidateCategory(q.Category, s.config.CategoryNames()); err != nil {
		return nil, err
	}
	useWeb := s.config.UseWeb
	if q.UseWeb != nil {
		useWeb = *q.UseWeb
	}

	result := s.orchestrator.Search(ctx, text, q.Category, useWeb)

	var fields []string
	if cat, ok := s.config.Category(q.Category); ok {
		fields = cat.NormativaFields
	}
	entity := textproc.CleanText(q.Entity)
	out := &Answer{
		Text: answer.Format(answer.Request{
			Question:        text,
			Category:        q.Category,
			Entity:          entity,
			NormativaFields: fields,
		}, result),
		Result:  result,
		Elapsed: s.now().Sub(start),
	}

	if q.SessionID != "" {
		out.History = s.sessions.Append(q.SessionID, session.Turn{
			Question:     text,
			Answer:       out.Text,
			Category:     q.Category,
			Entity:       entity,
			Timestamp:    result.Timestamp,
			TotalResults: result.Total,
			WebResults:   len(result.Web),
		})
	}

	s.logger.Info("question answered",
		"category", q.Category,
		"local", len(result.Local),
		"web", len(result.Web),
		"elapsed", out.Elapsed)
	return out, nil
}

// History returns the stored turns of a session.
func (s *Service) History(sessionID string) []session.Turn {
	return s.sessions.Get(sessionID)
}

// ClearSession forgets a session's history.
func (s *Service) ClearSession(sessionID string) {
	s.sessions.Clear(sessionID)
}

// IndexStatus describes the local search index.
type IndexStatus struct {
	Initialized bool `json:"initialized"`
	Documents   int  `json:"documents"`
	Vocabulary  int  `json:"vocabulary"`
}

// SourceInfo names a registered scraper.
type SourceInfo struct {
	Name  string `json:"name"`
	Label string `json:"label"`
}

// HealthReport summarises the state of the service.
type HealthReport struct {
	Status     string          `json:"status"`
	Version    string          `json:"version"`
	Categories []dataset.Stats `json:"databases_loaded"`
	Index      IndexStatus     `json:"index"`
	Sources    []SourceInfo    `json:"scrapers_disponibles"`
	Cache      storage.Stats   `json:"cache_stats"`
	Timestamp  time.Time       `json:"timestamp"`
}

// Health reports loaded categories, index state, sources and cache stats.
// The status is degraded when no category loaded or the index is empty.
func (s *Service) Health() HealthReport {
	status := "healthy"
	switch {
	case s.closed.Load():
		status = "closed"
	case len(s.corpus.Categories) == 0 || !s.engine.Initialized():
		status = "degraded"
	}
	sources := make([]SourceInfo, 0, len(s.manager.Sources()))
	for _, name := range s.manager.Sources() {
		if sc, ok := s.manager.Scraper(name); ok {
			sources = append(sources, SourceInfo{Name: name, Label: sc.Label()})
		}
	}
	return HealthReport{
		Status:     status,
		Version:    Version,
		Categories: s.corpus.Stats,
		Index: IndexStatus{
			Initialized: s.engine.Initialized(),
			Documents:   s.engine.DocumentCount(),
			Vocabulary:  s.engine.VocabularySize(),
		},
		Sources:   sources,
		Cache:     s.manager.CacheStats(),
		Timestamp: s.now(),
	}
}

// CacheStats reports the scraper cache contents.
func (s *Service) CacheStats() storage.Stats {
	return s.manager.CacheStats()
}

// ClearCache removes every cached search.
func (s *Service) ClearCache() error {
	if s.closed.Load() {
		return ErrServiceClosed
	}
	return s.manager.ClearCache()
}

// PurgeCache removes expired cache entries and returns how many were removed.
func (s *Service) PurgeCache() (int, error) {
	if s.closed.Load() {
		return 0, ErrServiceClosed
	}
	n, err := s.cache.PurgeExpired()
	if err != nil {
		return n, err
	}
	s.logger.Info("cache purged", "removed", n)
	return n, nil
}

// ScrapeQuery resolves the query for a direct scrape. An empty query falls
// back to the category's first scraping keyword, then to DefaultScrapeQuery.
func (s *Service) ScrapeQuery(query, category string) string {
	if query = strings.TrimSpace(query); query != "" {
		return query
	}
	if cat, ok := s.config.Category(category); ok && len(cat.Keywords) > 0 {
		return cat.Keywords[0]
	}
	return DefaultScrapeQuery
}

// Scrape searches every source in parallel with the cache enabled.
// A non-positive maxPerSource uses the configured cap. The merged results
// are capped at MaxScrapeResults.
func (s *Service) Scrape(ctx context.Context, query, category string, maxPerSource int) (*core.ResultBundle, error) {
	if s.closed.Load() {
		return nil, ErrServiceClosed
	}
	if maxPerSource <= 0 {
		maxPerSource = s.config.MaxResultsPerSource
	}
	return s.manager.SearchAll(ctx, s.ScrapeQuery(query, category), scraper.SearchAllOptions{
		MaxPerSource: maxPerSource,
		MaxTotal:     s.config.MaxScrapeResults,
		UseCache:     true,
	}), nil
}

// ScrapeSource searches a single source with the cache enabled.
func (s *Service) ScrapeSource(ctx context.Context, source, query string, maxResults int) ([]*core.Normativa, error) {
	if s.closed.Load() {
		return nil, ErrServiceClosed
	}
	if _, ok := s.manager.Scraper(source); !ok {
		return nil, fmt.Errorf("%w: %s", scraper.ErrUnknownSource, source)
	}
	if maxResults <= 0 {
		maxResults = s.config.MaxResultsPerSource
	}
	return s.manager.SearchOne(ctx, source, s.ScrapeQuery(query, ""), maxResults, true), nil
}

// FetchDetail downloads the full document at url through source.
func (s *Service) FetchDetail(ctx context.Context, source, url string) (*core.Normativa, error) {
	if s.closed.Load() {
		return nil, ErrServiceClosed
	}
	return s.manager.FetchDetail(ctx, source, url)
}

// Sources returns the registered source names.
func (s *Service) Sources() []string {
	return s.manager.Sources()
}

// Categories returns the configured category names.
func (s *Service) Categories() []string {
	return s.config.CategoryNames()
}

// Config returns the service configuration.
func (s *Service) Config() *config.Config {
	return s.config
}

// Close releases the scrapers and the cache. Closing twice is a no-op.
func (s *Service) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	var errs []error
	if err := s.manager.Close(); err != nil {
		s.logger.Error("error closing scrapers", "err", err)
		errs = append(errs, err)
	}
	if err := s.cache.Close(); err != nil {
		s.logger.Error("error closing cache", "err", err)
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
