package badger

import "github.com/poiesic/auditel/storage"

const (
	cacheEntryPrefix = "cache:"
)

// makeCacheKey generates the storage key for a cache key.
// Format: prefix + hash(key)
func makeCacheKey(key string) []byte {
	return []byte(cacheEntryPrefix + storage.HashKey(key))
}
