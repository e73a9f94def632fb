package file

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/poiesic/auditel/storage"
	"github.com/poiesic/auditel/storage/storagetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheContract(t *testing.T) {
	storagetest.Run(t, func(t *testing.T, opts ...storage.Option) storage.Cache {
		cache, err := New(t.TempDir(), opts...)
		require.NoError(t, err)
		return cache
	})
}

func TestNew_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "cache")
	cache, err := New(dir)
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, dir, cache.Stats().Location)
}

func TestNew_RejectsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	_, err := New(path)
	assert.Error(t, err)

	_, err = New("")
	assert.Error(t, err)
}

func TestCache_FileNamedByKeyHash(t *testing.T) {
	dir := t.TempDir()
	cache, err := New(dir)
	require.NoError(t, err)

	require.NoError(t, cache.Save("DOFScraper_presupuesto_max_results=3", []int{1}, nil))

	_, err = os.Stat(filepath.Join(dir, storage.HashKey("DOFScraper_presupuesto_max_results=3")+".json"))
	assert.NoError(t, err)
}

func TestCache_CorruptFileIsMiss(t *testing.T) {
	dir := t.TempDir()
	cache, err := New(dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, storage.HashKey("k")+".json"), []byte("{not json"), 0o644))

	_, ok := cache.Get("k")
	assert.False(t, ok)
	assert.False(t, cache.Exists("k", false))

	stats := cache.Stats()
	assert.Equal(t, 1, stats.Total)
	assert.Equal(t, 1, stats.Expired)

	removed, err := cache.PurgeExpired()
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
}

func TestCache_IgnoresForeignFiles(t *testing.T) {
	dir := t.TempDir()
	cache, err := New(dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.txt"), []byte("hola"), 0o644))
	require.NoError(t, cache.Save("k", 1, nil))
	require.NoError(t, cache.Clear())

	_, err = os.Stat(filepath.Join(dir, "README.txt"))
	assert.NoError(t, err)
	assert.Equal(t, 0, cache.Stats().Total)
}
