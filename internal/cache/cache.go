// Package cache persists computed embeddings on disk so name indexes can be
// rebuilt without asking the embedding provider again.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// ErrMiss is returned by Get when the key is absent or expired
var ErrMiss = errors.New("cache miss")

// Cache defines the interface for local file caching operations
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
	Cleanup(ctx context.Context) (int, error)
	GetStats(ctx context.Context) (*Stats, error)
}

// Entry is the on-disk record for one key
type Entry struct {
	Key       string    `json:"key"`
	Data      []byte    `json:"data"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Stats represents cache statistics
type Stats struct {
	TotalEntries int64   `json:"total_entries"`
	TotalSize    int64   `json:"total_size"`
	HitRate      float64 `json:"hit_rate"`
	Hits         int64   `json:"hits"`
	Misses       int64   `json:"misses"`
}

const entrySuffix = ".entry"

// FileCache implements Cache with one JSON file per key
type FileCache struct {
	directory  string
	defaultTTL time.Duration
	now        func() time.Time
	mu         sync.Mutex
	hits       int64
	misses     int64
}

// NewFileCache creates the cache directory if needed
func NewFileCache(directory string, defaultTTL time.Duration) (*FileCache, error) {
	if strings.HasPrefix(directory, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}

		directory = filepath.Join(home, directory[2:])
	}

	if err := os.MkdirAll(directory, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	if defaultTTL <= 0 {
		defaultTTL = 24 * time.Hour
	}

	return &FileCache{
		directory:  directory,
		defaultTTL: defaultTTL,
		now:        time.Now,
	}, nil
}

// Directory returns the resolved cache directory
func (c *FileCache) Directory() string {
	return c.directory
}

// Get retrieves data from cache
func (c *FileCache) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	path := c.entryPath(key)

	raw, err := os.ReadFile(path)
	if err != nil {
		c.misses++

		if os.IsNotExist(err) {
			return nil, ErrMiss
		}

		return nil, fmt.Errorf("failed to read cache entry: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		c.misses++
		os.Remove(path)

		return nil, fmt.Errorf("%w: corrupt entry removed", ErrMiss)
	}

	// hash prefixes can collide; the stored key is authoritative
	if entry.Key != key {
		c.misses++
		return nil, ErrMiss
	}

	if c.now().After(entry.ExpiresAt) {
		c.misses++
		os.Remove(path)

		return nil, fmt.Errorf("%w: entry expired", ErrMiss)
	}

	c.hits++

	return entry.Data, nil
}

// Set stores data in cache with TTL; zero ttl uses the default
func (c *FileCache) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	now := c.now()

	raw, err := json.Marshal(Entry{
		Key:       key,
		Data:      data,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	path := c.entryPath(key)
	tmp := path + ".tmp"

	if err := os.WriteFile(tmp, raw, 0600); err != nil {
		return fmt.Errorf("failed to write cache entry: %w", err)
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to commit cache entry: %w", err)
	}

	return nil
}

// Delete removes an entry from cache; missing keys are not an error
func (c *FileCache) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.Remove(c.entryPath(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}

	return nil
}

// Clear removes all entries and resets the counters
func (c *FileCache) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	names, err := c.entryFiles()
	if err != nil {
		return err
	}

	for _, name := range names {
		os.Remove(filepath.Join(c.directory, name))
	}

	c.hits, c.misses = 0, 0

	return nil
}

// Cleanup removes expired or unreadable entries and reports how many went
func (c *FileCache) Cleanup(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	names, err := c.entryFiles()
	if err != nil {
		return 0, err
	}

	now := c.now()
	removed := 0

	for _, name := range names {
		path := filepath.Join(c.directory, name)

		raw, err := os.ReadFile(path)
		if err != nil {
			continue
		}

		var entry Entry
		if err := json.Unmarshal(raw, &entry); err != nil || now.After(entry.ExpiresAt) {
			if os.Remove(path) == nil {
				removed++
			}
		}
	}

	return removed, nil
}

// GetStats returns cache statistics
func (c *FileCache) GetStats(ctx context.Context) (*Stats, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	names, err := c.entryFiles()
	if err != nil {
		return nil, err
	}

	stats := &Stats{
		TotalEntries: int64(len(names)),
		Hits:         c.hits,
		Misses:       c.misses,
	}

	for _, name := range names {
		if info, err := os.Stat(filepath.Join(c.directory, name)); err == nil {
			stats.TotalSize += info.Size()
		}
	}

	if total := stats.Hits + stats.Misses; total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total)
	}

	return stats, nil
}

func (c *FileCache) entryFiles() ([]string, error) {
	entries, err := os.ReadDir(c.directory)
	if err != nil {
		return nil, fmt.Errorf("failed to read cache directory: %w", err)
	}

	var names []string

	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), entrySuffix) {
			names = append(names, entry.Name())
		}
	}

	return names, nil
}

// entryPath returns a safe filename for a cache key
func (c *FileCache) entryPath(key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(c.directory, hex.EncodeToString(sum[:])[:24]+entrySuffix)
}
