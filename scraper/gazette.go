package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/poiesic/auditel/core"
	"github.com/poiesic/auditel/textproc"
)

// GazetteScraper searches a site described by a Site.
type GazetteScraper struct {
	site    Site
	fetcher *Fetcher
	now     func() time.Time
	logger  *slog.Logger
}

var _ Scraper = (*GazetteScraper)(nil)

// Option configures a GazetteScraper.
type Option func(*GazetteScraper) error

// WithFetcher sets the fetcher used for requests.
// Default is NewFetcher() with default settings.
func WithFetcher(f *Fetcher) Option {
	return func(s *GazetteScraper) error {
		if f == nil {
			return errors.New("fetcher cannot be nil")
		}
		s.fetcher = f
		return nil
	}
}

// WithClock replaces time.Now for ScrapedAt stamps.
func WithClock(now func() time.Time) Option {
	return func(s *GazetteScraper) error {
		if now == nil {
			return errors.New("clock cannot be nil")
		}
		s.now = now
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *GazetteScraper) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// NewGazetteScraper creates a scraper for site.
func NewGazetteScraper(site Site, opts ...Option) (*GazetteScraper, error) {
	if site.Name == "" || site.SearchURL == "" || site.Params == nil {
		return nil, fmt.Errorf("site requires a name, a search url and params")
	}
	s := &GazetteScraper{
		site:   site,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	if s.fetcher == nil {
		s.fetcher = NewFetcher(WithFetcherLogger(s.logger))
	}
	s.logger = s.logger.With("component", "scraper", "source", site.Name)
	return s, nil
}

// Name returns the source identifier.
func (s *GazetteScraper) Name() string { return s.site.Name }

// Label returns the source's display name.
func (s *GazetteScraper) Label() string { return s.site.Label }

// Site returns the site description.
func (s *GazetteScraper) Site() Site { return s.site }

// Search fetches the site's result page for query and parses at most
// opts.MaxResults containers. A failed fetch yields no results; only
// cancellation of ctx is reported as an error.
func (s *GazetteScraper) Search(ctx context.Context, query string, opts SearchOptions) ([]*core.Normativa, error) {
	limit := opts.maxResults()
	s.logger.Info("searching", "query", query, "max", limit)

	doc, err := s.fetcher.Fetch(ctx, s.site.SearchURL, s.site.Params(query, opts))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		s.logger.Warn("no response from source", "query", query, "err", err)
		return []*core.Normativa{}, nil
	}

	containers := s.site.containers(doc)
	if len(containers) > limit {
		containers = containers[:limit]
	}

	results := make([]*core.Normativa, 0, len(containers))
	for _, container := range containers {
		if n := s.parseContainer(container); n != nil {
			results = append(results, n)
		}
	}
	s.logger.Info("search complete", "query", query, "results", len(results))
	return results, nil
}

// parseContainer builds a normativa from one result container. Containers
// without a title, or that fail during extraction, yield nil.
func (s *GazetteScraper) parseContainer(sel *goquery.Selection) (n *core.Normativa) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("error parsing result", "panic", r)
			n = nil
		}
	}()

	title := s.site.Title.title(sel)
	if title == "" {
		return nil
	}
	content := s.site.content(sel)
	full := title + " " + content

	metadata := map[string]any{
		core.MetaLegalReferences: textproc.ExtractLegalReferences(full),
		core.MetaSourceURL:       s.site.BaseURL,
	}
	if s.site.Metadata != nil {
		maps.Copy(metadata, s.site.Metadata(sel))
	}

	n = &core.Normativa{
		Title:     title,
		Content:   content,
		URL:       s.site.link(sel),
		Kind:      s.site.Kind,
		Source:    s.site.Source,
		Keywords:  textproc.ExtractKeywords(full, SearchKeywords),
		Metadata:  metadata,
		ScrapedAt: s.now(),
	}
	if t, ok := s.site.date(sel); ok {
		n.PublishedAt = &t
	}
	return n
}

// FetchDetail downloads and parses the document page at url.
func (s *GazetteScraper) FetchDetail(ctx context.Context, url string) (*core.Normativa, error) {
	if url == "" {
		return nil, ErrEmptyURL
	}
	s.logger.Info("fetching detail", "url", url)

	doc, err := s.fetcher.Fetch(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return s.parseDetail(doc, url), nil
}

func (s *GazetteScraper) parseDetail(doc *goquery.Document, url string) *core.Normativa {
	rule := s.site.Detail

	title := "Sin título"
	if match := s.site.findFirst(doc.Selection, rule.Title); match != nil {
		if text := textproc.CleanText(match.Text()); text != "" {
			title = text
		}
	}

	root := doc.Selection
	if match := s.site.findFirst(doc.Selection, rule.Content); match != nil {
		root = match
	}
	full := plainText(root)
	content, truncated := textproc.Truncate(full, DetailContentMaxChars, "")

	metadata := map[string]any{
		core.MetaLegalReferences: textproc.ExtractLegalReferences(full),
		core.MetaSourceURL:       s.site.BaseURL,
		core.MetaTruncated:       truncated,
	}
	if s.site.Metadata != nil {
		maps.Copy(metadata, s.site.Metadata(doc.Selection))
	}

	n := &core.Normativa{
		Title:     title,
		Content:   content,
		URL:       url,
		Kind:      s.site.DetailKind,
		Source:    s.site.Source,
		Keywords:  textproc.ExtractKeywords(full, DetailKeywords),
		Metadata:  metadata,
		ScrapedAt: s.now(),
	}
	if match := s.site.findFirst(doc.Selection, rule.Date); match != nil {
		if t, ok := parseDateText(match.Text()); ok {
			n.PublishedAt = &t
		}
	}
	return n
}

// Close releases idle connections.
func (s *GazetteScraper) Close() error {
	return s.fetcher.Close()
}
