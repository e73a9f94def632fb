package hybrid

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/poiesic/auditel/core"
	"github.com/poiesic/auditel/scraper"
)

// Defaults for a hybrid search.
const (
	DefaultTopN                = 6
	DefaultWebResultsPerSource = 3
)

// LocalSearcher ranks local audit records for a query within a category.
type LocalSearcher interface {
	Search(query, category string, topN int) []core.SearchHit
}

// WebSearcher fans a query out to the gazette scrapers.
type WebSearcher interface {
	SearchAll(ctx context.Context, query string, opts scraper.SearchAllOptions) *core.ResultBundle
}

// Orchestrator merges local and web results for one question.
type Orchestrator struct {
	local        LocalSearcher
	web          WebSearcher
	topN         int
	webPerSource int
	now          func() time.Time
	logger       *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator) error

// WithTopN sets how many local hits are returned.
// Default is 6.
func WithTopN(n int) Option {
	return func(o *Orchestrator) error {
		if n <= 0 {
			return fmt.Errorf("topN must be positive, got %d", n)
		}
		o.topN = n
		return nil
	}
}

// WithWebResultsPerSource caps each source's web results.
// Default is 3.
func WithWebResultsPerSource(n int) Option {
	return func(o *Orchestrator) error {
		if n <= 0 {
			return fmt.Errorf("web results per source must be positive, got %d", n)
		}
		o.webPerSource = n
		return nil
	}
}

// WithClock replaces time.Now for result timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) error {
		if now == nil {
			return errors.New("clock cannot be nil")
		}
		o.now = now
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) error {
		if logger == nil {
			logger = slog.Default()
		}
		o.logger = logger
		return nil
	}
}

// NewOrchestrator creates an orchestrator. web may be nil, in which case
// every search is local only.
func NewOrchestrator(local LocalSearcher, web WebSearcher, opts ...Option) (*Orchestrator, error) {
	if local == nil {
		return nil, ErrLocalSearcherRequired
	}
	o := &Orchestrator{
		local:        local,
		web:          web,
		topN:         DefaultTopN,
		webPerSource: DefaultWebResultsPerSource,
		now:          time.Now,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	o.logger = o.logger.With("component", "hybrid")
	return o, nil
}

// Search runs the local search and, when useWeb is set, the web search
// concurrently, and merges both. It never fails.
func (o *Orchestrator) Search(ctx context.Context, query, category string, useWeb bool) *core.HybridResult {
	return o.SearchWithMonitor(ctx, query, category, useWeb, nil)
}

// SearchWithMonitor is Search with stage callbacks delivered to monitor.
func (o *Orchestrator) SearchWithMonitor(ctx context.Context, query, category string, useWeb bool, monitor Monitor) *core.HybridResult {
	if monitor == nil {
		monitor = &noopMonitor{}
	}
	monitor.Start(query, category, useWeb)
	o.logger.Info("hybrid search", "query", query, "category", category, "web", useWeb)

	result := &core.HybridResult{
		Query:      query,
		Category:   category,
		Local:      []core.SearchHit{},
		Web:        []*core.Normativa{},
		WebSources: []string{},
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hits := o.local.Search(query, category, o.topN)
		if hits != nil {
			result.Local = hits
		}
		monitor.AfterLocalSearch(result.Local)
		return nil
	})

	if useWeb && o.web != nil {
		g.Go(func() error {
			bundle, err := o.searchWeb(gctx, query)
			if err != nil {
				o.logger.Error("web search failed", "query", query, "err", err)
				monitor.WebSearchFailed(err)
				return nil
			}
			result.Web = bundle.Normativas
			result.WebSources = bundle.SourcesConsulted
			result.WebElapsed = bundle.Elapsed
			monitor.AfterWebSearch(bundle)
			return nil
		})
	}

	_ = g.Wait()

	result.Total = len(result.Local) + len(result.Web)
	result.Timestamp = o.now()
	o.logger.Info("hybrid search complete", "local", len(result.Local), "web", len(result.Web),
		"sources", result.WebSources)
	monitor.Finish(result)
	return result
}

func (o *Orchestrator) searchWeb(ctx context.Context, query string) (bundle *core.ResultBundle, err error) {
	defer func() {
		if r := recover(); r != nil {
			bundle, err = nil, fmt.Errorf("web search panic: %v", r)
		}
	}()
	bundle = o.web.SearchAll(ctx, query, scraper.SearchAllOptions{
		MaxPerSource: o.webPerSource,
		UseCache:     true,
	})
	if bundle == nil {
		return nil, errors.New("web search returned no bundle")
	}
	if bundle.Normativas == nil {
		bundle.Normativas = []*core.Normativa{}
	}
	if bundle.SourcesConsulted == nil {
		bundle.SourcesConsulted = []string{}
	}
	return bundle, nil
}
