package storage

import (
	"encoding/json"
	"log/slog"
	"time"
)

// DefaultExpiration is how long entries stay valid unless configured otherwise.
const DefaultExpiration = 24 * time.Hour

// Cache stores JSON-serialisable values under string keys with lazy expiration.
// Implementations must be thread-safe and support concurrent access.
type Cache interface {
	// Save serialises value and stores it under key with optional metadata,
	// replacing any previous entry.
	Save(key string, value any, metadata map[string]any) error

	// Get returns the stored value for key. Missing, corrupt and expired
	// entries report false; expired entries are removed.
	Get(key string) (json.RawMessage, bool)

	// Delete removes the entry for key. Deleting a missing key is not an error.
	Delete(key string) error

	// Exists reports whether key has an entry. With checkExpiration an expired
	// entry does not count.
	Exists(key string, checkExpiration bool) bool

	// PurgeExpired removes every expired or unreadable entry and returns how
	// many were removed.
	PurgeExpired() (int, error)

	// Clear removes every entry.
	Clear() error

	// Stats summarises the entries currently stored.
	Stats() Stats

	// Close releases the backend.
	Close() error
}

// Stats describes the contents of a cache.
type Stats struct {
	Backend   string  `json:"backend"`
	Total     int     `json:"total"`
	Expired   int     `json:"expired"`
	Valid     int     `json:"valid"`
	SizeBytes int64   `json:"size_bytes"`
	SizeMB    float64 `json:"size_mb"`
	Location  string  `json:"location"`
}

// SetSize fills both size fields, rounding megabytes to two decimals.
func (s *Stats) SetSize(bytes int64) {
	s.SizeBytes = bytes
	s.SizeMB = float64(int64(float64(bytes)/(1024*1024)*100+0.5)) / 100
}

// Settings are the options shared by every backend.
type Settings struct {
	Expiration time.Duration
	Now        func() time.Time
	Logger     *slog.Logger
}

// Option configures a backend.
type Option func(*Settings)

// WithExpiration sets how long entries stay valid.
// Default is 24 hours.
func WithExpiration(d time.Duration) Option {
	return func(s *Settings) {
		if d > 0 {
			s.Expiration = d
		}
	}
}

// WithClock replaces time.Now for expiration checks.
func WithClock(now func() time.Time) Option {
	return func(s *Settings) {
		if now != nil {
			s.Now = now
		}
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Settings) {
		if logger == nil {
			logger = slog.Default()
		}
		s.Logger = logger
	}
}

// NewSettings applies opts over the defaults.
func NewSettings(opts ...Option) Settings {
	s := Settings{
		Expiration: DefaultExpiration,
		Now:        time.Now,
		Logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// Load decodes the cached value for key into dst. Decoding failures count as a miss.
func Load[T any](c Cache, key string, dst *T) bool {
	raw, ok := c.Get(key)
	if !ok {
		return false
	}
	return json.Unmarshal(raw, dst) == nil
}
