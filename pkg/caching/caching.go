// Package caching is a small file cache with a TTL, used for app detail
// pages and other slow-changing HTTP responses.
package caching

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dtnitsch/review-miner/internal/common"
	"github.com/dtnitsch/review-miner/internal/logger"
)

// Cache provides a simple file-based cache with a TTL.
type Cache struct {
	path string
	ttl  time.Duration
	log  logger.Logger
}

// Option configures a Cache.
type Option func(*Cache)

// WithLogger reports cache write failures to log.
func WithLogger(log logger.Logger) Option {
	return func(c *Cache) { c.log = log.Named("cache") }
}

// NewCache creates a new Cache instance.
// The cache path will be created if it doesn't exist.
func NewCache(path string, ttl time.Duration, opts ...Option) (*Cache, error) {
	if err := os.MkdirAll(path, 0750); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	c := &Cache{
		path: path,
		ttl:  ttl,
		log:  logger.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Cache) file(key string) string {
	return filepath.Join(c.path, common.ContentHash([]byte(key)))
}

// Get retrieves an item from the cache.
// It returns the data and true if the item is found and not expired.
func (c *Cache) Get(key string) ([]byte, bool) {
	filePath := c.file(key)

	info, err := os.Stat(filePath)
	if err != nil {
		return nil, false
	}
	if time.Since(info.ModTime()) > c.ttl {
		return nil, false
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, false
	}
	return data, true
}

// Set adds an item to the cache.
func (c *Cache) Set(key string, data []byte) error {
	if err := os.WriteFile(c.file(key), data, 0600); err != nil {
		return fmt.Errorf("failed to write to cache: %w", err)
	}
	return nil
}

// Fetch returns the cached value for key, calling fetch and storing its
// result on a miss. A failed store is logged and the fetched data is still
// returned. A nil Cache always calls fetch.
func (c *Cache) Fetch(key string, fetch func() ([]byte, error)) ([]byte, error) {
	if c != nil {
		if data, ok := c.Get(key); ok {
			return data, nil
		}
	}

	data, err := fetch()
	if err != nil {
		return nil, err
	}

	if c != nil {
		if err := c.Set(key, data); err != nil {
			c.log.Warn("Failed to cache response", "key", key, "error", err)
		}
	}
	return data, nil
}
