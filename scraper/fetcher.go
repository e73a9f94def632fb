package scraper

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"
	"golang.org/x/time/rate"
)

// Fetcher defaults.
const (
	DefaultUserAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
	DefaultAttempts       = 3
	DefaultBaseDelay      = time.Second
	DefaultRequestTimeout = 30 * time.Second
	DefaultRequestDelay   = time.Second
	DefaultMaxBodyBytes   = 10 << 20
)

// Fetcher performs GET requests with browser-like headers, a per-attempt
// timeout, bounded retries and request spacing. It is safe for concurrent use.
type Fetcher struct {
	client    *http.Client
	limiter   *rate.Limiter
	headers   http.Header
	attempts  int
	baseDelay time.Duration
	timeout   time.Duration
	maxBody   int64
	logger    *slog.Logger
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(client *http.Client) FetcherOption {
	return func(f *Fetcher) {
		if client != nil {
			f.client = client
		}
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) FetcherOption {
	return func(f *Fetcher) {
		if ua != "" {
			f.headers.Set("User-Agent", ua)
		}
	}
}

// WithRetry sets the number of attempts and the base backoff delay.
func WithRetry(attempts int, baseDelay time.Duration) FetcherOption {
	return func(f *Fetcher) {
		if attempts > 0 {
			f.attempts = attempts
		}
		if baseDelay >= 0 {
			f.baseDelay = baseDelay
		}
	}
}

// WithRequestTimeout bounds each individual attempt.
func WithRequestTimeout(d time.Duration) FetcherOption {
	return func(f *Fetcher) {
		if d > 0 {
			f.timeout = d
		}
	}
}

// WithRequestDelay sets the minimum spacing between requests.
// Zero disables spacing.
func WithRequestDelay(d time.Duration) FetcherOption {
	return func(f *Fetcher) {
		if d <= 0 {
			f.limiter = nil
			return
		}
		f.limiter = rate.NewLimiter(rate.Every(d), 1)
	}
}

// WithMaxBodyBytes caps how much of a response body is read.
func WithMaxBodyBytes(n int64) FetcherOption {
	return func(f *Fetcher) {
		if n > 0 {
			f.maxBody = n
		}
	}
}

// WithFetcherLogger sets a custom logger.
// Default is slog.Default().
func WithFetcherLogger(logger *slog.Logger) FetcherOption {
	return func(f *Fetcher) {
		if logger == nil {
			logger = slog.Default()
		}
		f.logger = logger
	}
}

// NewFetcher creates a fetcher with the default header set and retry policy.
func NewFetcher(opts ...FetcherOption) *Fetcher {
	headers := http.Header{}
	headers.Set("User-Agent", DefaultUserAgent)
	headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	headers.Set("Accept-Language", "es-MX,es;q=0.9,en;q=0.8")
	headers.Set("Connection", "keep-alive")
	headers.Set("Upgrade-Insecure-Requests", "1")

	f := &Fetcher{
		client:    &http.Client{Transport: http.DefaultTransport.(*http.Transport).Clone()},
		limiter:   rate.NewLimiter(rate.Every(DefaultRequestDelay), 1),
		headers:   headers,
		attempts:  DefaultAttempts,
		baseDelay: DefaultBaseDelay,
		timeout:   DefaultRequestTimeout,
		maxBody:   DefaultMaxBodyBytes,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch downloads rawURL with params appended to its query string and parses
// the response as HTML. All waits honour ctx. When every attempt fails the
// error wraps ErrFetchFailed.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, params url.Values) (*goquery.Document, error) {
	target, err := withParams(rawURL, params)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}

	var doc *goquery.Document
	attempt := 0
	err = RetryWithBackoff(ctx, func() error {
		attempt++
		f.logger.Debug("fetching page", "url", target, "attempt", attempt, "maxAttempts", f.attempts)
		d, err := f.fetchOnce(ctx, target)
		if err != nil {
			f.logger.Warn("fetch attempt failed", "url", target, "attempt", attempt, "err", err)
			return err
		}
		doc = d
		return nil
	}, f.attempts, f.baseDelay)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrFetchFailed, target, err)
	}
	return doc, nil
}

func (f *Fetcher) fetchOnce(ctx context.Context, target string) (*goquery.Document, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	reqCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header = f.headers.Clone()

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := charset.NewReader(io.LimitReader(resp.Body, f.maxBody), resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, err
	}
	doc.Url = resp.Request.URL
	return doc, nil
}

// Close releases idle connections held by the fetcher's client.
func (f *Fetcher) Close() error {
	f.client.CloseIdleConnections()
	return nil
}

func withParams(rawURL string, params url.Values) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("invalid url %q", rawURL)
	}
	if len(params) > 0 {
		query := u.Query()
		for k, values := range params {
			for _, v := range values {
				query.Add(k, v)
			}
		}
		u.RawQuery = query.Encode()
	}
	return u.String(), nil
}
