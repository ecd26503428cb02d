// Package hasher computes streaming content checksums. Files are read in
// fixed-size chunks from pooled buffers so memory use does not depend on
// file size.
package hasher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"golang.org/x/time/rate"

	"github.com/jamesainslie/dupfinder/pkg/dupfinder/logging"
	"github.com/jamesainslie/dupfinder/pkg/dupfinder/types"
)

var logger = logging.Get("hasher")

// DefaultBufferSize is the chunk size used when none is configured.
const DefaultBufferSize = 32 * 1024

// Options configures a Hasher.
type Options struct {
	// Algorithm is the registered digest name. Defaults to DefaultAlgorithm.
	Algorithm string

	// BufferSize is the read chunk size in bytes. Defaults to DefaultBufferSize.
	BufferSize int

	// RateLimit bounds how many files per second may be opened for hashing.
	// Zero disables the limit.
	RateLimit float64
}

// Hasher computes checksums with a single configured algorithm.
// It is safe for concurrent use.
type Hasher struct {
	algorithm Algorithm
	pool      sync.Pool
	limiter   *rate.Limiter

	files atomic.Int64
	bytes atomic.Int64
}

// New returns a Hasher for opts.
func New(opts Options) (*Hasher, error) {
	name := opts.Algorithm
	if name == "" {
		name = DefaultAlgorithm
	}
	alg, ok := Lookup(name)
	if !ok {
		return nil, fmt.Errorf("unknown hash algorithm %q (available: %v)", name, Available())
	}

	size := opts.BufferSize
	if size <= 0 {
		size = DefaultBufferSize
	}

	h := &Hasher{algorithm: alg}
	h.pool.New = func() any {
		b := make([]byte, size)
		return &b
	}
	if opts.RateLimit > 0 {
		burst := int(opts.RateLimit)
		if burst < 1 {
			burst = 1
		}
		h.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}
	return h, nil
}

// Algorithm returns the name of the digest in use.
func (h *Hasher) Algorithm() string { return h.algorithm.Name }

// Hash reads the whole content of f and returns its checksum.
// Open and read failures are returned as *types.ReadError. The context is
// checked between chunks.
func (h *Hasher) Hash(ctx context.Context, f types.FileEntry) (types.Checksum, error) {
	if h.limiter != nil {
		if err := h.limiter.Wait(ctx); err != nil {
			return "", err
		}
	}

	file, err := os.Open(f.Path)
	if err != nil {
		return "", &types.ReadError{Path: f.Path, Err: err}
	}
	defer file.Close()

	d := h.algorithm.New()

	bufPtr := h.pool.Get().(*[]byte)
	defer h.pool.Put(bufPtr)
	buf := *bufPtr

	var read int64
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		n, err := file.Read(buf)
		if n > 0 {
			_, _ = d.Write(buf[:n])
			read += int64(n)
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			h.bytes.Add(read)
			return "", &types.ReadError{Path: f.Path, Err: err}
		}
	}

	h.files.Add(1)
	h.bytes.Add(read)
	logger.Debug("hashed", "path", f.Path, "bytes", read)

	return types.NewChecksum(h.algorithm.Name, d.Sum(nil)), nil
}

// Stats returns the number of files hashed and bytes read so far.
func (h *Hasher) Stats() (files, bytes int64) {
	return h.files.Load(), h.bytes.Load()
}
