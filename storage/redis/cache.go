// Package redis implements storage.Cache on a Redis server so several
// processes can share one cache.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/poiesic/auditel/storage"
)

const (
	// DefaultPrefix namespaces every key written by the cache.
	DefaultPrefix = "auditel:cache:"

	opTimeout = 5 * time.Second
	scanCount = 500
)

// Config describes the Redis connection.
type Config struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// Cache stores entries as <prefix><hash(key)> string values.
type Cache struct {
	rdb      *goredis.Client
	prefix   string
	addr     string
	settings storage.Settings
	logger   *slog.Logger
	closed   atomic.Bool
}

var _ storage.Cache = (*Cache)(nil)

// New connects to Redis and verifies the connection with a ping.
func New(cfg Config, opts ...storage.Option) (*Cache, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("missing redis address")
	}
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultPrefix
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	settings := storage.NewSettings(opts...)
	return &Cache{
		rdb:      rdb,
		prefix:   cfg.Prefix,
		addr:     cfg.Addr,
		settings: settings,
		logger:   settings.Logger.With("component", "cache", "backend", "redis"),
	}, nil
}

func (c *Cache) key(key string) string {
	return c.prefix + storage.HashKey(key)
}

func (c *Cache) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), opTimeout)
}

// Save stores the entry for key.
func (c *Cache) Save(key string, value any, metadata map[string]any) error {
	if c.closed.Load() {
		return storage.ErrStorageClosed
	}
	entry, err := storage.NewEntry(key, value, metadata, c.settings.Now())
	if err != nil {
		return err
	}
	data, err := storage.MarshalEntry(entry)
	if err != nil {
		return err
	}
	ctx, cancel := c.ctx()
	defer cancel()
	return c.rdb.Set(ctx, c.key(key), data, 0).Err()
}

func (c *Cache) lookup(key string) (*storage.Entry, error) {
	if c.closed.Load() {
		return nil, storage.ErrStorageClosed
	}
	ctx, cancel := c.ctx()
	defer cancel()
	data, err := c.rdb.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return storage.UnmarshalEntry(data)
}

// Get returns the value for key. Expired entries are deleted.
func (c *Cache) Get(key string) (json.RawMessage, bool) {
	entry, err := c.lookup(key)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			c.logger.Warn("unreadable cache entry", "key", key, "err", err)
		}
		return nil, false
	}
	if entry.Expired(c.settings.Now(), c.settings.Expiration) {
		c.logger.Debug("cache entry expired", "key", key)
		if err := c.Delete(key); err != nil {
			c.logger.Warn("error removing expired cache entry", "key", key, "err", err)
		}
		return nil, false
	}
	return entry.Value, true
}

// Delete removes the entry for key.
func (c *Cache) Delete(key string) error {
	if c.closed.Load() {
		return storage.ErrStorageClosed
	}
	ctx, cancel := c.ctx()
	defer cancel()
	return c.rdb.Del(ctx, c.key(key)).Err()
}

// Exists reports whether an entry is stored for key.
func (c *Cache) Exists(key string, checkExpiration bool) bool {
	entry, err := c.lookup(key)
	if err != nil {
		return false
	}
	return !checkExpiration || !entry.Expired(c.settings.Now(), c.settings.Expiration)
}

// scan visits every key under the prefix. entry is nil when the value is unreadable.
func (c *Cache) scan(ctx context.Context, visit func(key string, size int64, entry *storage.Entry)) error {
	if c.closed.Load() {
		return storage.ErrStorageClosed
	}
	iter := c.rdb.Scan(ctx, 0, c.prefix+"*", scanCount).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		data, err := c.rdb.Get(ctx, key).Bytes()
		if errors.Is(err, goredis.Nil) {
			continue
		}
		if err != nil {
			return err
		}
		entry, err := storage.UnmarshalEntry(data)
		if err != nil {
			entry = nil
		}
		visit(key, int64(len(data)), entry)
	}
	return iter.Err()
}

// PurgeExpired removes expired and unreadable entries.
func (c *Cache) PurgeExpired() (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	now := c.settings.Now()
	var stale []string
	err := c.scan(ctx, func(key string, _ int64, entry *storage.Entry) {
		if entry == nil || entry.Expired(now, c.settings.Expiration) {
			stale = append(stale, key)
		}
	})
	if err != nil {
		return 0, err
	}
	if len(stale) == 0 {
		return 0, nil
	}
	if err := c.rdb.Del(ctx, stale...).Err(); err != nil {
		return 0, err
	}
	c.logger.Info("purged expired cache entries", "removed", len(stale))
	return len(stale), nil
}

// Clear removes every key under the prefix.
func (c *Cache) Clear() error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	var keys []string
	err := c.scan(ctx, func(key string, _ int64, _ *storage.Entry) {
		keys = append(keys, key)
	})
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		return err
	}
	c.logger.Info("cache cleared", "keys", len(keys))
	return nil
}

// Stats counts entries by validity.
func (c *Cache) Stats() storage.Stats {
	stats := storage.Stats{Backend: "redis", Location: c.addr + "/" + c.prefix}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	now := c.settings.Now()
	var size int64
	err := c.scan(ctx, func(_ string, valueSize int64, entry *storage.Entry) {
		stats.Total++
		size += valueSize
		if entry == nil || entry.Expired(now, c.settings.Expiration) {
			stats.Expired++
		} else {
			stats.Valid++
		}
	})
	if err != nil {
		c.logger.Warn("error scanning cache", "err", err)
	}
	stats.SetSize(size)
	return stats
}

// Close closes the client. Closing twice is a no-op.
func (c *Cache) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	return c.rdb.Close()
}
