// SPDX-License-Identifier: MIT

package fetch

import (
	"crypto/md5" // #nosec G501 -- cache key, not security
	"encoding/hex"
	"os"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/renameio/v2"

	"github.com/dschwenke/clippy/internal/errkind"
	"github.com/dschwenke/clippy/internal/log"
	"github.com/dschwenke/clippy/internal/metrics"
)

// URLHash derives the short cache key for a source URL.
func URLHash(url string) string {
	sum := md5.Sum([]byte(url)) // #nosec G401
	return hex.EncodeToString(sum[:])[:12]
}

type cacheEntry struct {
	FilePath string    `json:"file_path"`
	Title    string    `json:"title"`
	SourceID string    `json:"source_id"`
	CachedAt time.Time `json:"cached_at"`
}

// Cache is the URL→file index persisted as a JSON document. Writes go
// through replace-on-rename so a crash never leaves a torn index.
type Cache struct {
	path string

	mu      sync.Mutex
	entries map[string]cacheEntry
}

// OpenCache loads the index at path, starting empty when the file is
// missing or unreadable.
func OpenCache(path string) *Cache {
	c := &Cache{path: path, entries: make(map[string]cacheEntry)}
	data, err := os.ReadFile(path) // #nosec G304
	if err != nil {
		return c
	}
	if err := json.Unmarshal(data, &c.entries); err != nil {
		log.WithComponent("fetch").Warn().Err(err).Str("path", path).Msg("discarding unreadable download cache")
		c.entries = make(map[string]cacheEntry)
	}
	return c
}

// Lookup returns the cached result for a URL. Entries whose file no
// longer exists are evicted.
func (c *Cache) Lookup(url string) (Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := URLHash(url)
	entry, ok := c.entries[key]
	if !ok {
		metrics.FetchCacheTotal.WithLabelValues("miss").Inc()
		return Result{}, false
	}
	if _, err := os.Stat(entry.FilePath); err != nil {
		delete(c.entries, key)
		_ = c.persistLocked()
		metrics.FetchCacheTotal.WithLabelValues("stale").Inc()
		return Result{}, false
	}
	metrics.FetchCacheTotal.WithLabelValues("hit").Inc()
	return Result{LocalPath: entry.FilePath, Title: entry.Title, SourceID: entry.SourceID}, true
}

// Put records a completed download.
func (c *Cache) Put(url string, res Result) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[URLHash(url)] = cacheEntry{
		FilePath: res.LocalPath,
		Title:    res.Title,
		SourceID: res.SourceID,
		CachedAt: time.Now().UTC(),
	}
	return c.persistLocked()
}

func (c *Cache) persistLocked() error {
	data, err := json.MarshalIndent(c.entries, "", "  ")
	if err != nil {
		return errkind.Wrap(errkind.KindInternal, err, "encode download cache")
	}
	if err := renameio.WriteFile(c.path, data, 0o644); err != nil {
		return errkind.Wrap(errkind.KindIO, err, "write download cache")
	}
	return nil
}
