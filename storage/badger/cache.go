package badger

import (
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/auditel/storage"
)

// deleteBatchSize bounds the number of deletes per transaction.
const deleteBatchSize = 1000

// Cache implements storage.Cache on a BadgerDB backend.
type Cache struct {
	backend  *Backend
	location string
	settings storage.Settings
	logger   *slog.Logger
}

var _ storage.Cache = (*Cache)(nil)

// NewCache opens a BadgerDB database at dir and returns a cache that owns it.
func NewCache(dir string, opts ...storage.Option) (*Cache, error) {
	settings := storage.NewSettings(opts...)
	backend, err := OpenBackend(dir, false, settings.Logger)
	if err != nil {
		return nil, err
	}
	return newCache(backend, dir, settings), nil
}

func newCache(backend *Backend, location string, settings storage.Settings) *Cache {
	return &Cache{
		backend:  backend,
		location: location,
		settings: settings,
		logger:   settings.Logger.With("component", "cache", "backend", "badger"),
	}
}

// Save stores the entry for key.
func (c *Cache) Save(key string, value any, metadata map[string]any) error {
	if c.backend.IsClosed() {
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
	return c.backend.WithTx(func(tx *badger.Txn) error {
		return tx.Set(makeCacheKey(key), data)
	}, true)
}

// lookup reads the entry for key, or returns storage.ErrNotFound.
func (c *Cache) lookup(key string) (*storage.Entry, error) {
	if c.backend.IsClosed() {
		return nil, storage.ErrStorageClosed
	}
	var entry *storage.Entry
	err := c.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeCacheKey(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return storage.ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			var err error
			entry, err = storage.UnmarshalEntry(val)
			return err
		})
	}, false)
	return entry, err
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
	if c.backend.IsClosed() {
		return storage.ErrStorageClosed
	}
	return c.backend.WithTx(func(tx *badger.Txn) error {
		return tx.Delete(makeCacheKey(key))
	}, true)
}

// Exists reports whether an entry is stored for key.
func (c *Cache) Exists(key string, checkExpiration bool) bool {
	entry, err := c.lookup(key)
	if err != nil {
		return false
	}
	return !checkExpiration || !entry.Expired(c.settings.Now(), c.settings.Expiration)
}

// scan visits every stored entry. entry is nil when the value is unreadable.
func (c *Cache) scan(visit func(key []byte, size int64, entry *storage.Entry)) error {
	if c.backend.IsClosed() {
		return storage.ErrStorageClosed
	}
	return c.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(cacheEntryPrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			item := iter.Item()
			var entry *storage.Entry
			_ = item.Value(func(val []byte) error {
				var err error
				entry, err = storage.UnmarshalEntry(val)
				return err
			})
			visit(item.KeyCopy(nil), item.ValueSize(), entry)
		}
		return nil
	}, false)
}

// PurgeExpired removes expired and unreadable entries.
func (c *Cache) PurgeExpired() (int, error) {
	now := c.settings.Now()
	var stale [][]byte
	err := c.scan(func(key []byte, _ int64, entry *storage.Entry) {
		if entry == nil || entry.Expired(now, c.settings.Expiration) {
			stale = append(stale, key)
		}
	})
	if err != nil {
		return 0, err
	}
	if err := c.deleteKeys(stale); err != nil {
		return 0, err
	}
	if len(stale) > 0 {
		c.logger.Info("purged expired cache entries", "removed", len(stale))
	}
	return len(stale), nil
}

// Clear removes every cache entry.
func (c *Cache) Clear() error {
	var keys [][]byte
	err := c.scan(func(key []byte, _ int64, _ *storage.Entry) {
		keys = append(keys, key)
	})
	if err != nil {
		return err
	}
	return c.deleteKeys(keys)
}

// deleteKeys removes keys in bounded transactions.
func (c *Cache) deleteKeys(keys [][]byte) error {
	for start := 0; start < len(keys); start += deleteBatchSize {
		end := min(start+deleteBatchSize, len(keys))
		err := c.backend.WithTx(func(tx *badger.Txn) error {
			for _, key := range keys[start:end] {
				if err := tx.Delete(key); err != nil {
					return err
				}
			}
			return nil
		}, true)
		if err != nil {
			return err
		}
	}
	return nil
}

// Stats counts entries by validity. Sizes are the stored value sizes.
func (c *Cache) Stats() storage.Stats {
	stats := storage.Stats{Backend: "badger", Location: c.location}
	now := c.settings.Now()
	var size int64
	err := c.scan(func(_ []byte, valueSize int64, entry *storage.Entry) {
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

// Close closes the backend.
func (c *Cache) Close() error {
	if c.backend.IsClosed() {
		return nil
	}
	return c.backend.Close()
}
