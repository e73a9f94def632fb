// Package storagetest provides a shared conformance suite for storage.Cache
// implementations.
package storagetest

import (
	"sync"
	"testing"
	"time"

	"github.com/poiesic/auditel/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Clock is a manually advanced clock for expiration tests.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock returns a clock stopped at start.
func NewClock(start time.Time) *Clock {
	return &Clock{now: start}
}

// Now returns the current simulated time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Factory opens a fresh, empty cache that uses the given options.
type Factory func(t *testing.T, opts ...storage.Option) storage.Cache

type payload struct {
	Title string   `json:"title"`
	Tags  []string `json:"tags"`
}

// Run exercises the storage.Cache contract against caches built by factory.
func Run(t *testing.T, factory Factory) {
	start := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

	t.Run("round trip", func(t *testing.T) {
		cache := factory(t)
		defer cache.Close()

		value := []payload{{Title: "Decreto", Tags: []string{"dof"}}}
		require.NoError(t, cache.Save("DOF_presupuesto", value, map[string]any{"count": 1}))

		var got []payload
		require.True(t, storage.Load(cache, "DOF_presupuesto", &got))
		assert.Equal(t, value, got)
		assert.True(t, cache.Exists("DOF_presupuesto", true))
	})

	t.Run("miss", func(t *testing.T) {
		cache := factory(t)
		defer cache.Close()

		_, ok := cache.Get("missing")
		assert.False(t, ok)
		assert.False(t, cache.Exists("missing", false))
	})

	t.Run("overwrite is last writer wins", func(t *testing.T) {
		cache := factory(t)
		defer cache.Close()

		require.NoError(t, cache.Save("k", "first", nil))
		require.NoError(t, cache.Save("k", "second", nil))

		var got string
		require.True(t, storage.Load(cache, "k", &got))
		assert.Equal(t, "second", got)
		assert.Equal(t, 1, cache.Stats().Total)
	})

	t.Run("empty key rejected", func(t *testing.T) {
		cache := factory(t)
		defer cache.Close()

		assert.ErrorIs(t, cache.Save("", "x", nil), storage.ErrEmptyKey)
	})

	t.Run("unserialisable value rejected", func(t *testing.T) {
		cache := factory(t)
		defer cache.Close()

		assert.ErrorIs(t, cache.Save("k", func() {}, nil), storage.ErrSerializationFailed)
		_, ok := cache.Get("k")
		assert.False(t, ok)
	})

	t.Run("expiration", func(t *testing.T) {
		clock := NewClock(start)
		cache := factory(t, storage.WithClock(clock.Now), storage.WithExpiration(time.Hour))
		defer cache.Close()

		require.NoError(t, cache.Save("k", 42, nil))

		clock.Advance(59 * time.Minute)
		_, ok := cache.Get("k")
		assert.True(t, ok)

		clock.Advance(2 * time.Minute)
		assert.True(t, cache.Exists("k", false), "expired entry still stored before read")
		assert.False(t, cache.Exists("k", true))

		_, ok = cache.Get("k")
		assert.False(t, ok)
		assert.False(t, cache.Exists("k", false), "expired entry removed on read")
	})

	t.Run("delete", func(t *testing.T) {
		cache := factory(t)
		defer cache.Close()

		require.NoError(t, cache.Save("k", 1, nil))
		require.NoError(t, cache.Delete("k"))
		assert.False(t, cache.Exists("k", false))
		assert.NoError(t, cache.Delete("k"))
	})

	t.Run("purge expired and stats", func(t *testing.T) {
		clock := NewClock(start)
		cache := factory(t, storage.WithClock(clock.Now), storage.WithExpiration(time.Hour))
		defer cache.Close()

		require.NoError(t, cache.Save("old-1", 1, nil))
		require.NoError(t, cache.Save("old-2", 2, nil))
		clock.Advance(2 * time.Hour)
		require.NoError(t, cache.Save("fresh", 3, nil))

		stats := cache.Stats()
		assert.Equal(t, 3, stats.Total)
		assert.Equal(t, 2, stats.Expired)
		assert.Equal(t, 1, stats.Valid)
		assert.Positive(t, stats.SizeBytes)
		assert.NotEmpty(t, stats.Backend)

		removed, err := cache.PurgeExpired()
		require.NoError(t, err)
		assert.Equal(t, 2, removed)

		stats = cache.Stats()
		assert.Equal(t, 1, stats.Total)
		assert.Equal(t, 1, stats.Valid)
	})

	t.Run("clear", func(t *testing.T) {
		cache := factory(t)
		defer cache.Close()

		require.NoError(t, cache.Save("a", 1, nil))
		require.NoError(t, cache.Save("b", 2, nil))
		require.NoError(t, cache.Clear())

		assert.Equal(t, 0, cache.Stats().Total)
		_, ok := cache.Get("a")
		assert.False(t, ok)
	})

	t.Run("concurrent writers", func(t *testing.T) {
		cache := factory(t)
		defer cache.Close()

		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				assert.NoError(t, cache.Save("shared", i, nil))
			}(i)
		}
		wg.Wait()

		var got int
		require.True(t, storage.Load(cache, "shared", &got))
		assert.GreaterOrEqual(t, got, 0)
		assert.Less(t, got, 8)
	})
}
