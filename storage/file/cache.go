// Package file implements storage.Cache with one JSON file per entry.
package file

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/poiesic/auditel/storage"
)

const fileExt = ".json"

// Cache stores each entry as <dir>/<hash(key)>.json.
type Cache struct {
	dir      string
	settings storage.Settings
	logger   *slog.Logger
}

var _ storage.Cache = (*Cache)(nil)

// New opens a file cache rooted at dir, creating the directory if needed.
func New(dir string, opts ...storage.Option) (*Cache, error) {
	if dir == "" {
		return nil, fmt.Errorf("cache directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", dir)
	}

	settings := storage.NewSettings(opts...)
	return &Cache{
		dir:      dir,
		settings: settings,
		logger:   settings.Logger.With("component", "cache", "backend", "file"),
	}, nil
}

func (c *Cache) path(key string) string {
	return filepath.Join(c.dir, storage.HashKey(key)+fileExt)
}

// Save writes the entry to a temporary file and renames it into place so
// readers never observe a partial write.
func (c *Cache) Save(key string, value any, metadata map[string]any) error {
	entry, err := storage.NewEntry(key, value, metadata, c.settings.Now())
	if err != nil {
		return err
	}
	data, err := storage.MarshalEntry(entry)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(c.dir, ".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), c.path(key)); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	c.logger.Debug("cache saved", "key", key)
	return nil
}

func (c *Cache) read(path string) (*storage.Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return storage.UnmarshalEntry(data)
}

// Get returns the value for key. Expired entries are deleted.
func (c *Cache) Get(key string) (json.RawMessage, bool) {
	path := c.path(key)
	entry, err := c.read(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			c.logger.Warn("unreadable cache entry", "key", key, "err", err)
		}
		return nil, false
	}
	if entry.Expired(c.settings.Now(), c.settings.Expiration) {
		c.logger.Debug("cache entry expired", "key", key)
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			c.logger.Warn("error removing expired cache entry", "key", key, "err", err)
		}
		return nil, false
	}
	c.logger.Debug("cache hit", "key", key)
	return entry.Value, true
}

// Delete removes the entry for key.
func (c *Cache) Delete(key string) error {
	if err := os.Remove(c.path(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Exists reports whether an entry is stored for key.
func (c *Cache) Exists(key string, checkExpiration bool) bool {
	entry, err := c.read(c.path(key))
	if err != nil {
		return false
	}
	return !checkExpiration || !entry.Expired(c.settings.Now(), c.settings.Expiration)
}

// entryFiles lists the entry files in the cache directory.
func (c *Cache) entryFiles() ([]string, error) {
	dirEntries, err := os.ReadDir(c.dir)
	if err != nil {
		return nil, err
	}
	files := make([]string, 0, len(dirEntries))
	for _, de := range dirEntries {
		if de.IsDir() || !strings.HasSuffix(de.Name(), fileExt) {
			continue
		}
		files = append(files, filepath.Join(c.dir, de.Name()))
	}
	return files, nil
}

// PurgeExpired removes expired and unreadable entries.
func (c *Cache) PurgeExpired() (int, error) {
	files, err := c.entryFiles()
	if err != nil {
		return 0, err
	}
	now := c.settings.Now()
	removed := 0
	for _, path := range files {
		entry, err := c.read(path)
		if err == nil && !entry.Expired(now, c.settings.Expiration) {
			continue
		}
		if err := os.Remove(path); err != nil {
			c.logger.Warn("error removing cache file", "path", path, "err", err)
			continue
		}
		removed++
	}
	if removed > 0 {
		c.logger.Info("purged expired cache entries", "removed", removed)
	}
	return removed, nil
}

// Clear removes every entry file.
func (c *Cache) Clear() error {
	files, err := c.entryFiles()
	if err != nil {
		return err
	}
	var errs []error
	for _, path := range files {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	c.logger.Info("cache cleared", "files", len(files))
	return errors.Join(errs...)
}

// Stats counts entries by validity. Unreadable files count as expired.
func (c *Cache) Stats() storage.Stats {
	stats := storage.Stats{Backend: "file", Location: c.dir}
	files, err := c.entryFiles()
	if err != nil {
		c.logger.Warn("error listing cache directory", "err", err)
		return stats
	}

	now := c.settings.Now()
	var size int64
	for _, path := range files {
		if info, err := os.Stat(path); err == nil {
			size += info.Size()
		}
		stats.Total++
		entry, err := c.read(path)
		if err != nil || entry.Expired(now, c.settings.Expiration) {
			stats.Expired++
		} else {
			stats.Valid++
		}
	}
	stats.SetSize(size)
	return stats
}

// Close is a no-op for the file backend.
func (c *Cache) Close() error {
	return nil
}
