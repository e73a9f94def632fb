package scraper

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/auditel/core"
	"github.com/poiesic/auditel/storage"
	"github.com/poiesic/auditel/storage/file"
	"github.com/poiesic/auditel/storage/storagetest"
)

func TestCacheKey(t *testing.T) {
	assert.Equal(t, "dof_presupuesto_max_results=3",
		CacheKey("dof", "presupuesto", SearchOptions{MaxResults: 3}))
	assert.Equal(t, "dof_ley_fecha_fin=2024_fecha_inicio=2023_max_results=10",
		CacheKey("dof", "ley", SearchOptions{Filters: map[string]string{"fecha_inicio": "2023", "fecha_fin": "2024"}}))
}

func newFileCache(t *testing.T, opts ...storage.Option) storage.Cache {
	t.Helper()
	cache, err := file.New(t.TempDir(), opts...)
	require.NoError(t, err)
	return cache
}

func TestSearchWithCache(t *testing.T) {
	published := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	n := normativa("Ley de Disciplina Financiera", "presupuesto municipal")
	n.PublishedAt = &published
	n.Metadata = map[string]any{core.MetaLegalReferences: []string{"Ley de Disciplina Financiera"}}
	s := &fakeScraper{name: "dof", results: []*core.Normativa{n}}
	cache := newFileCache(t)
	opts := SearchOptions{MaxResults: 3}

	first, hit, err := SearchWithCache(context.Background(), s, cache, "presupuesto", opts, nil)
	require.NoError(t, err)
	assert.False(t, hit)
	require.Len(t, first, 1)
	assert.True(t, cache.Exists(CacheKey("dof", "presupuesto", opts), true))

	second, hit, err := SearchWithCache(context.Background(), s, cache, "presupuesto", opts, nil)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, int32(1), s.calls.Load(), "cache hit must not search")
	require.Len(t, second, 1)
	assert.Equal(t, n.Title, second[0].Title)
	require.NotNil(t, second[0].PublishedAt)
	assert.True(t, published.Equal(*second[0].PublishedAt))
	assert.Equal(t, []string{"Ley de Disciplina Financiera"}, second[0].LegalReferences())
}

func TestSearchWithCache_EmptyResultsNotStored(t *testing.T) {
	s := &fakeScraper{name: "dof"}
	cache := newFileCache(t)

	results, hit, err := SearchWithCache(context.Background(), s, cache, "nada", SearchOptions{}, nil)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Empty(t, results)
	assert.Equal(t, 0, cache.Stats().Total)
}

func TestSearchWithCache_ExpiredEntryRefetched(t *testing.T) {
	clock := storagetest.NewClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	cache := newFileCache(t, storage.WithClock(clock.Now), storage.WithExpiration(time.Hour))
	s := &fakeScraper{name: "tlaxcala", results: []*core.Normativa{normativa("Decreto de presupuesto", "")}}

	_, _, err := SearchWithCache(context.Background(), s, cache, "decreto", SearchOptions{}, nil)
	require.NoError(t, err)
	clock.Advance(2 * time.Hour)

	_, hit, err := SearchWithCache(context.Background(), s, cache, "decreto", SearchOptions{}, nil)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, int32(2), s.calls.Load())
}

func TestSearchWithCache_NilCache(t *testing.T) {
	s := &fakeScraper{name: "dof", results: []*core.Normativa{normativa("Ley", "")}}
	results, hit, err := SearchWithCache(context.Background(), s, nil, "ley", SearchOptions{}, nil)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Len(t, results, 1)
}
