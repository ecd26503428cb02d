package engine

import (
	"context"
	"time"

	"github.com/jamesainslie/dupfinder/pkg/dupfinder/cache"
	"github.com/jamesainslie/dupfinder/pkg/dupfinder/limit"
	"github.com/jamesainslie/dupfinder/pkg/dupfinder/types"
)

// DefaultWorkers bounds concurrent hashing when no worker count is set.
// It is deliberately small so remote-backed storage is not flooded with
// fetches.
const DefaultWorkers = 4

// DefaultProgressInterval is the minimum delay between progress callbacks.
const DefaultProgressInterval = 50 * time.Millisecond

// Hasher computes the full-content checksum of a file.
type Hasher interface {
	Hash(ctx context.Context, f types.FileEntry) (types.Checksum, error)
}

// HasherFunc adapts a function to Hasher.
type HasherFunc func(ctx context.Context, f types.FileEntry) (types.Checksum, error)

// Hash calls fn.
func (fn HasherFunc) Hash(ctx context.Context, f types.FileEntry) (types.Checksum, error) {
	return fn(ctx, f)
}

// Options configures an Engine.
type Options struct {
	// Limit is the stop policy. The zero value is unlimited.
	Limit limit.Limit

	// Hasher computes checksums. Required.
	Hasher Hasher

	// Cache is consulted before hashing and updated after. Nil disables it.
	Cache *cache.Cache

	// Workers is the maximum number of files hashed concurrently.
	Workers int

	// OnProgress is called periodically from the dispatching goroutine and
	// from hashing workers. It must be safe for concurrent use.
	OnProgress func(types.Progress)

	// ProgressInterval throttles OnProgress. Zero uses DefaultProgressInterval.
	ProgressInterval time.Duration
}

// Validate checks the options and applies defaults.
func (o *Options) Validate() error {
	if o.Hasher == nil {
		return &types.ConfigurationError{Field: "hasher", Reason: "required"}
	}
	if err := o.Limit.Validate(); err != nil {
		return err
	}
	if o.Workers < 1 {
		o.Workers = DefaultWorkers
	}
	if o.ProgressInterval <= 0 {
		o.ProgressInterval = DefaultProgressInterval
	}
	return nil
}
