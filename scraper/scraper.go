package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"

	"github.com/poiesic/auditel/core"
	"github.com/poiesic/auditel/storage"
)

// Scraper searches one gazette site.
type Scraper interface {
	// Name is the short source identifier, for example "dof".
	Name() string

	// Label is the human readable source name.
	Label() string

	// Search returns at most opts.MaxResults normativas for query.
	// Network and parse failures yield an empty result, not an error.
	Search(ctx context.Context, query string, opts SearchOptions) ([]*core.Normativa, error)

	// FetchDetail downloads the full document at url.
	FetchDetail(ctx context.Context, url string) (*core.Normativa, error)

	// Close releases the scraper's HTTP resources.
	Close() error
}

// DefaultMaxResults is used when SearchOptions.MaxResults is not positive.
const DefaultMaxResults = 10

// SearchOptions tunes a single search.
type SearchOptions struct {
	MaxResults int
	// Filters are site specific query parameters, e.g. fecha_inicio.
	Filters map[string]string
}

func (o SearchOptions) maxResults() int {
	if o.MaxResults <= 0 {
		return DefaultMaxResults
	}
	return o.MaxResults
}

// CacheKey builds the cache key for a search: name, query and the sorted
// options joined by underscores.
func CacheKey(name, query string, opts SearchOptions) string {
	params := map[string]string{"max_results": fmt.Sprint(opts.maxResults())}
	maps.Copy(params, opts.Filters)

	parts := make([]string, 0, len(params))
	for _, k := range slices.Sorted(maps.Keys(params)) {
		parts = append(parts, k+"="+params[k])
	}
	return name + "_" + query + "_" + strings.Join(parts, "_")
}

// SearchWithCache serves the search from cache when a valid entry exists,
// otherwise runs it and stores non-empty results. The flag reports a cache hit.
// Cache failures are logged and never fail the search.
func SearchWithCache(ctx context.Context, s Scraper, cache storage.Cache, query string, opts SearchOptions, logger *slog.Logger) ([]*core.Normativa, bool, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cache == nil {
		results, err := s.Search(ctx, query, opts)
		return results, false, err
	}

	key := CacheKey(s.Name(), query, opts)
	var cached []*core.Normativa
	if storage.Load(cache, key, &cached) && len(cached) > 0 {
		logger.Info("results served from cache", "source", s.Name(), "query", query, "count", len(cached))
		return cached, true, nil
	}

	results, err := s.Search(ctx, query, opts)
	if err != nil {
		return nil, false, err
	}
	if len(results) > 0 {
		meta := map[string]any{"source": s.Name(), "count": len(results)}
		if err := cache.Save(key, results, meta); err != nil {
			logger.Warn("error caching results", "source", s.Name(), "err", err)
		}
	}
	return results, false, nil
}
