// Package cache persists file checksums across runs, keyed by file identity
// and validated against the size and modification time recorded when the
// checksum was computed.
package cache

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/jamesainslie/dupfinder/pkg/dupfinder/logging"
	"github.com/jamesainslie/dupfinder/pkg/dupfinder/types"
)

var logger = logging.Get("cache")

// Options configures Open.
type Options struct {
	// Backend is one of BackendBadger (default), BackendSQLite or BackendMemory.
	Backend string

	// Path is the badger directory or sqlite file. Ignored for memory.
	Path string

	// Algorithm, when set, rejects cached checksums made by another algorithm.
	Algorithm string

	// Reset wipes the store right after opening.
	Reset bool
}

// Stats counts cache activity since the cache was opened.
type Stats struct {
	Backend     string `json:"backend"`
	Entries     int    `json:"entries"`
	Hits        int64  `json:"hits"`
	Misses      int64  `json:"misses"`
	Stale       int64  `json:"stale"`
	Corrupt     int64  `json:"corrupt"`
	Stores      int64  `json:"stores"`
	StoreErrors int64  `json:"store_errors"`
}

// Cache is a checksum cache over a Backend. It is safe for concurrent use.
// Callers must Close it when done.
type Cache struct {
	backend   Backend
	algorithm string
	inflight  singleflight.Group

	hits, misses, stale, corrupt, stores, storeErrors atomic.Int64
}

// Open opens the configured backend.
func Open(opts Options) (*Cache, error) {
	backend, err := openBackend(opts.Backend, opts.Path)
	if err != nil {
		return nil, err
	}

	c := New(backend, opts.Algorithm)
	if opts.Reset {
		if err := c.Reset(); err != nil {
			_ = backend.Close()
			return nil, err
		}
	}
	logger.Debug("cache opened", "backend", backend.Name(), "path", opts.Path, "reset", opts.Reset)
	return c, nil
}

// New wraps an already opened backend.
func New(backend Backend, algorithm string) *Cache {
	return &Cache{backend: backend, algorithm: algorithm}
}

// Close closes the backend.
func (c *Cache) Close() error {
	return c.backend.Close()
}

// Lookup returns the cached entry for f if one exists and still matches f's
// size and modification time. A stale entry is reported as absent. A record
// that cannot be decoded is removed and reported as absent together with a
// *types.CacheCorruptionError.
func (c *Cache) Lookup(_ context.Context, f types.FileEntry) (*Entry, bool, error) {
	key := Key(f)

	data, err := c.backend.Get(key)
	if errors.Is(err, ErrNotFound) {
		c.misses.Add(1)
		return nil, false, nil
	}
	if err != nil {
		c.misses.Add(1)
		return nil, false, fmt.Errorf("reading cache entry: %w", err)
	}

	var entry Entry
	if err := entry.Decode(data); err != nil {
		c.misses.Add(1)
		c.corrupt.Add(1)
		logger.Warn("corrupt cache entry", "path", f.Path, "error", err)
		if delErr := c.backend.Delete(key); delErr != nil && !errors.Is(delErr, ErrNotFound) {
			logger.Warn("failed to remove corrupt cache entry", "path", f.Path, "error", delErr)
		}
		return nil, false, &types.CacheCorruptionError{Key: key, Err: err}
	}

	if !entry.Matches(f) || (c.algorithm != "" && entry.Sum().Algorithm() != c.algorithm) {
		c.misses.Add(1)
		c.stale.Add(1)
		return nil, false, nil
	}

	c.hits.Add(1)
	return &entry, true, nil
}

// Store records sum as the checksum of f. It returns once the backend has
// durably committed the entry.
func (c *Cache) Store(_ context.Context, f types.FileEntry, sum types.Checksum) error {
	data, err := NewEntry(f, sum).Encode()
	if err != nil {
		return fmt.Errorf("encoding cache entry: %w", err)
	}
	if err := c.backend.Put(Key(f), data); err != nil {
		c.storeErrors.Add(1)
		return fmt.Errorf("writing cache entry: %w", err)
	}
	c.stores.Add(1)
	return nil
}

// Reset drops every persisted entry.
func (c *Cache) Reset() error {
	if err := c.backend.Reset(); err != nil {
		return fmt.Errorf("resetting cache: %w", err)
	}
	logger.Info("cache reset", "backend", c.backend.Name())
	return nil
}

// Result is the outcome of Checksum.
type Result struct {
	Sum types.Checksum
	Hit bool
	// StoreErr is set when the checksum was computed but could not be cached.
	StoreErr error
	// LookupErr is set when the cached record was unreadable.
	LookupErr error
}

// Checksum returns the cached checksum for f or computes and stores it.
// Concurrent calls for the same identity share one computation.
func (c *Cache) Checksum(ctx context.Context, f types.FileEntry, compute func(context.Context, types.FileEntry) (types.Checksum, error)) (Result, error) {
	v, err, _ := c.inflight.Do(Key(f), func() (any, error) {
		entry, ok, lookupErr := c.Lookup(ctx, f)
		if ok {
			return Result{Sum: entry.Sum(), Hit: true}, nil
		}

		sum, err := compute(ctx, f)
		if err != nil {
			return nil, err
		}
		res := Result{Sum: sum, LookupErr: lookupErr}
		if err := c.Store(ctx, f, sum); err != nil {
			logger.Warn("cache store failed", "path", f.Path, "error", err)
			res.StoreErr = err
		}
		return res, nil
	})
	if err != nil {
		return Result{}, err
	}
	return v.(Result), nil
}

// Stats returns activity counters and the number of persisted entries.
func (c *Cache) Stats() (Stats, error) {
	n, err := c.backend.Len()
	return Stats{
		Backend:     c.backend.Name(),
		Entries:     n,
		Hits:        c.hits.Load(),
		Misses:      c.misses.Load(),
		Stale:       c.stale.Load(),
		Corrupt:     c.corrupt.Load(),
		Stores:      c.stores.Load(),
		StoreErrors: c.storeErrors.Load(),
	}, err
}
