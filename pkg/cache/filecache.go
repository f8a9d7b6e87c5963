package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/hashtag-scraper/pkg/models"
	"github.com/Sriram-PR/hashtag-scraper/pkg/utils"
)

// DefaultTTL is the freshness window of the bulk listings
const DefaultTTL = 24 * time.Hour

// legacyTimeLayout is the naive local timestamp older cache files were written with
const legacyTimeLayout = "2006-01-02T15:04:05.999999999"

// document is the on-disk shape of the cache file
type document struct {
	NewTags    []models.TagRecord `json:"new_tags"`
	BestTags   []models.TagRecord `json:"best_tags"`
	LastUpdate string             `json:"last_update"` // RFC 3339, or "" when never refreshed
}

// FileCache persists the bulk listings as one JSON document.
// Every write replaces the whole file.
type FileCache struct {
	path string
	ttl  time.Duration
	now  func() time.Time
	log  *logrus.Entry
	mu   sync.Mutex
}

// Option customizes a FileCache
type Option func(*FileCache)

// WithClock replaces time.Now, for tests
func WithClock(now func() time.Time) Option {
	return func(c *FileCache) { c.now = now }
}

// NewFileCache creates a cache backed by the file at path
func NewFileCache(path string, ttl time.Duration, log *logrus.Entry, opts ...Option) *FileCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &FileCache{path: path, ttl: ttl, now: time.Now, log: log}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Path returns the cache file location
func (c *FileCache) Path() string { return c.path }

// TTL returns the freshness window
func (c *FileCache) TTL() time.Duration { return c.ttl }

// Read loads the cache file. A missing file yields the empty default and no error.
// An unreadable or corrupt file yields the empty default plus an ErrCacheFile wrap.
func (c *FileCache) Read() (*models.BulkCacheEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.read()
}

func (c *FileCache) read() (*models.BulkCacheEntry, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return models.NewBulkCacheEntry(), nil
		}
		return models.NewBulkCacheEntry(), fmt.Errorf("%w: read %s: %w", utils.ErrCacheFile, c.path, err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return models.NewBulkCacheEntry(), fmt.Errorf("%w: decode %s: %w", utils.ErrCacheFile, c.path, err)
	}
	lastUpdate, err := parseTimestamp(doc.LastUpdate)
	if err != nil {
		return models.NewBulkCacheEntry(), fmt.Errorf("%w: last_update in %s: %w", utils.ErrCacheFile, c.path, err)
	}

	entry := &models.BulkCacheEntry{NewTags: doc.NewTags, BestTags: doc.BestTags, LastUpdate: lastUpdate}
	if entry.NewTags == nil {
		entry.NewTags = []models.TagRecord{}
	}
	if entry.BestTags == nil {
		entry.BestTags = []models.TagRecord{}
	}
	return entry, nil
}

// Write replaces the cache file with entry.
// A LastUpdate older than the one on disk is raised to it, so the stored timestamp never moves backwards.
func (c *FileCache) Write(entry *models.BulkCacheEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	lastUpdate := entry.LastUpdate
	if prev, err := c.read(); err == nil && prev.LastUpdate.After(lastUpdate) {
		c.log.Warnf("Cache timestamp %s older than stored %s, keeping stored", lastUpdate.Format(time.RFC3339), prev.LastUpdate.Format(time.RFC3339))
		lastUpdate = prev.LastUpdate
	}

	doc := document{NewTags: entry.NewTags, BestTags: entry.BestTags}
	if doc.NewTags == nil {
		doc.NewTags = []models.TagRecord{}
	}
	if doc.BestTags == nil {
		doc.BestTags = []models.TagRecord{}
	}
	if !lastUpdate.IsZero() {
		doc.LastUpdate = lastUpdate.Format(time.RFC3339Nano)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode cache: %w", utils.ErrCacheFile, err)
	}
	if err := writeFileAtomic(c.path, data); err != nil {
		return fmt.Errorf("%w: %w", utils.ErrFilesystem, err)
	}
	entry.LastUpdate = lastUpdate
	c.log.Debugf("Wrote bulk cache (%d new, %d best) to %s", len(doc.NewTags), len(doc.BestTags), c.path)
	return nil
}

// IsStale reports whether entry is at least one TTL old. A zero LastUpdate is always stale.
func (c *FileCache) IsStale(entry *models.BulkCacheEntry) bool {
	if entry == nil || entry.LastUpdate.IsZero() {
		return true
	}
	return c.now().Sub(entry.LastUpdate) >= c.ttl
}

// Age returns how long ago entry was refreshed, or -1 if never
func (c *FileCache) Age(entry *models.BulkCacheEntry) time.Duration {
	if entry == nil || entry.LastUpdate.IsZero() {
		return -1
	}
	return c.now().Sub(entry.LastUpdate)
}

// parseTimestamp accepts RFC 3339 and the legacy naive layout, read as local time
func parseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	return time.ParseInLocation(legacyTimeLayout, s, time.Local)
}

// writeFileAtomic writes to a temp file in the same directory and renames it into place
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create cache directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // No-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}
