package portal

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DiskCache stores fetched pages as JSON files keyed by the SHA-256 of the
// absolute URL. Re-running a search against saved pages then costs no
// requests to the portal.
type DiskCache struct {
	dir string
	ttl time.Duration
	now func() time.Time
}

type cacheEntry struct {
	URL       string    `json:"url"`
	HTML      string    `json:"html"`
	FetchedAt time.Time `json:"fetched_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// NewDiskCache creates dir if needed. A ttl <= 0 means entries never expire.
func NewDiskCache(dir string, ttl time.Duration) (*DiskCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir %s: %w", dir, err)
	}
	return &DiskCache{dir: dir, ttl: ttl, now: time.Now}, nil
}

// Get returns the cached page for url. Expired entries are removed.
func (c *DiskCache) Get(url string) (string, bool) {
	path := c.pathFor(url)
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	var e cacheEntry
	if err := json.Unmarshal(data, &e); err != nil || e.URL != url {
		return "", false
	}
	if !e.ExpiresAt.IsZero() && c.now().After(e.ExpiresAt) {
		_ = os.Remove(path)
		return "", false
	}
	return e.HTML, true
}

// Set stores html for url.
func (c *DiskCache) Set(url, html string) error {
	now := c.now()
	e := cacheEntry{URL: url, HTML: html, FetchedAt: now}
	if c.ttl > 0 {
		e.ExpiresAt = now.Add(c.ttl)
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal cache entry: %w", err)
	}
	path := c.pathFor(url)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write cache file %s: %w", path, err)
	}
	return nil
}

func (c *DiskCache) pathFor(url string) string {
	sum := sha256.Sum256([]byte(url))
	return filepath.Join(c.dir, hex.EncodeToString(sum[:])+".json")
}
