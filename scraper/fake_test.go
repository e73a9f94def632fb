package scraper

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/poiesic/auditel/core"
)

// fakeScraper is an in-memory Scraper with programmable behaviour.
type fakeScraper struct {
	name    string
	results []*core.Normativa
	err     error
	delay   time.Duration
	panics  bool
	calls   atomic.Int32
	closed  atomic.Bool
}

func (f *fakeScraper) Name() string  { return f.name }
func (f *fakeScraper) Label() string { return "Fake " + f.name }

func (f *fakeScraper) Search(ctx context.Context, query string, opts SearchOptions) ([]*core.Normativa, error) {
	f.calls.Add(1)
	if f.panics {
		panic("selector exploded")
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	out := make([]*core.Normativa, 0, len(f.results))
	for _, n := range f.results {
		if len(out) == opts.maxResults() {
			break
		}
		clone := *n
		out = append(out, &clone)
	}
	return out, nil
}

func (f *fakeScraper) FetchDetail(ctx context.Context, url string) (*core.Normativa, error) {
	if url == "" {
		return nil, ErrEmptyURL
	}
	return &core.Normativa{Title: "detalle", URL: url, Kind: f.name + "_detalle"}, nil
}

func (f *fakeScraper) Close() error {
	f.closed.Store(true)
	return nil
}

func normativa(title, content string) *core.Normativa {
	return &core.Normativa{Title: title, Content: content, Kind: "test", Source: "test"}
}
