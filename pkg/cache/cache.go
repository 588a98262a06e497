// Package cache provides a Badger-based byte cache for fetched media,
// keyed by resource link. Hits let the pipeline skip the network entirely.
package cache

import (
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// Config holds configuration for the media cache.
type Config struct {
	Path       string
	InMemory   bool
	SyncWrites bool

	// TTL bounds how long a cached body stays valid. Zero means no expiry.
	TTL time.Duration

	// MaxEntryBytes caps the size of a single cached body. Bodies larger
	// than this are served but never stored. Zero means no cap.
	MaxEntryBytes int64
}

// DefaultConfig returns default cache configuration.
func DefaultConfig() Config {
	return Config{
		Path:          "./data/cache",
		TTL:           24 * time.Hour,
		MaxEntryBytes: 64 << 20,
	}
}

// Cache is a persistent body cache backed by Badger.
type Cache struct {
	db     *badger.DB
	config Config
}

// Open opens or creates the cache at the configured path.
func Open(cfg Config) (*Cache, error) {
	opts := badger.DefaultOptions(cfg.Path)
	opts.SyncWrites = cfg.SyncWrites
	opts.Logger = nil
	if cfg.InMemory {
		opts = opts.WithInMemory(true)
		opts.Dir = ""
		opts.ValueDir = ""
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("cache: open %s: %w", cfg.Path, err)
	}

	return &Cache{db: db, config: cfg}, nil
}

func mediaKey(link string) []byte {
	return []byte("media:" + link)
}

// Get returns the cached body for a link. The second return reports
// whether the link was present.
func (c *Cache) Get(link string) ([]byte, bool, error) {
	var body []byte

	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(mediaKey(link))
		if err != nil {
			return err
		}
		body, err = item.ValueCopy(nil)
		return err
	})

	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache: get: %w", err)
	}
	return body, true, nil
}

// Put stores a body under a link. Bodies over the configured entry cap
// are silently skipped.
func (c *Cache) Put(link string, body []byte) error {
	if c.config.MaxEntryBytes > 0 && int64(len(body)) > c.config.MaxEntryBytes {
		return nil
	}

	err := c.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(mediaKey(link), body)
		if c.config.TTL > 0 {
			entry = entry.WithTTL(c.config.TTL)
		}
		return txn.SetEntry(entry)
	})
	if err != nil {
		return fmt.Errorf("cache: put: %w", err)
	}
	return nil
}

// Delete removes a cached body. Deleting an absent link is not an error.
func (c *Cache) Delete(link string) error {
	err := c.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(mediaKey(link))
	})
	if err != nil {
		return fmt.Errorf("cache: delete: %w", err)
	}
	return nil
}

// Close releases the underlying database.
func (c *Cache) Close() error {
	return c.db.Close()
}
