package cache

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/dupfinder/pkg/dupfinder/types"
)

var mtime = time.Date(2026, 5, 1, 10, 0, 0, 123, time.UTC)

func entry(path string, size int64) types.FileEntry {
	return types.FileEntry{
		Path:     path,
		Size:     size,
		ModTime:  mtime,
		Identity: types.Identity{Device: 1, Inode: uint64(len(path)) + 100, Path: path},
	}
}

func backends(t *testing.T) map[string]func() Backend {
	t.Helper()
	dir := t.TempDir()
	return map[string]func() Backend{
		BackendMemory: func() Backend { return NewMemory() },
		BackendBadger: func() Backend {
			b, err := OpenBadger(filepath.Join(dir, "badger"))
			require.NoError(t, err)
			return b
		},
		BackendSQLite: func() Backend {
			s, err := OpenSQLite(filepath.Join(dir, "cache.sqlite"))
			require.NoError(t, err)
			return s
		},
	}
}

func TestCache_RoundTrip(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			c := New(open(), "")
			defer c.Close()
			ctx := context.Background()
			f := entry("/data/a.bin", 500)

			_, ok, err := c.Lookup(ctx, f)
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, c.Store(ctx, f, "md5:aaaa"))

			got, ok, err := c.Lookup(ctx, f)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, types.Checksum("md5:aaaa"), got.Sum())

			stats, err := c.Stats()
			require.NoError(t, err)
			assert.Equal(t, 1, stats.Entries)
			assert.Equal(t, int64(1), stats.Hits)
			assert.Equal(t, int64(1), stats.Misses)
			assert.Equal(t, name, stats.Backend)
		})
	}
}

func TestCache_StaleMetadataIsAMiss(t *testing.T) {
	c := New(NewMemory(), "")
	ctx := context.Background()
	f := entry("/data/a.bin", 500)
	require.NoError(t, c.Store(ctx, f, "md5:aaaa"))

	touched := f
	touched.ModTime = f.ModTime.Add(time.Nanosecond)
	_, ok, err := c.Lookup(ctx, touched)
	require.NoError(t, err)
	assert.False(t, ok)

	grown := f
	grown.Size = 501
	_, ok, err = c.Lookup(ctx, grown)
	require.NoError(t, err)
	assert.False(t, ok)

	stats, err := c.Stats()
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Stale)

	// Storing again overwrites the stale snapshot.
	require.NoError(t, c.Store(ctx, touched, "md5:bbbb"))
	got, ok, err := c.Lookup(ctx, touched)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, types.Checksum("md5:bbbb"), got.Sum())
}

func TestCache_AlgorithmMismatchIsAMiss(t *testing.T) {
	backend := NewMemory()
	ctx := context.Background()
	f := entry("/data/a.bin", 10)

	require.NoError(t, New(backend, "md5").Store(ctx, f, "md5:aaaa"))

	_, ok, err := New(backend, "xxh3").Lookup(ctx, f)
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = New(backend, "md5").Lookup(ctx, f)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCache_Corruption(t *testing.T) {
	backend := NewMemory()
	c := New(backend, "")
	f := entry("/data/a.bin", 10)
	require.NoError(t, backend.Put(Key(f), []byte("not gob")))

	_, ok, err := c.Lookup(context.Background(), f)
	assert.False(t, ok)
	var corrupt *types.CacheCorruptionError
	require.ErrorAs(t, err, &corrupt)
	assert.Equal(t, Key(f), corrupt.Key)

	_, err = backend.Get(Key(f))
	assert.ErrorIs(t, err, ErrNotFound, "corrupt record is removed")

	// Checksum recomputes and stores a fresh record.
	res, err := c.Checksum(context.Background(), f, func(context.Context, types.FileEntry) (types.Checksum, error) {
		return "md5:cccc", nil
	})
	require.NoError(t, err)
	assert.False(t, res.Hit)
	assert.NoError(t, res.LookupErr)

	got, ok, err := c.Lookup(context.Background(), f)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, types.Checksum("md5:cccc"), got.Sum())
}

func TestCache_Reset(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			c := New(open(), "")
			defer c.Close()
			ctx := context.Background()

			files := []types.FileEntry{entry("/a", 1), entry("/bb", 2), entry("/ccc", 3)}
			for _, f := range files {
				require.NoError(t, c.Store(ctx, f, "md5:00"))
			}

			require.NoError(t, c.Reset())

			for _, f := range files {
				_, ok, err := c.Lookup(ctx, f)
				require.NoError(t, err)
				assert.False(t, ok)
			}
			stats, err := c.Stats()
			require.NoError(t, err)
			assert.Equal(t, 0, stats.Entries)
			assert.Equal(t, int64(0), stats.Hits)
		})
	}
}

func TestCache_PersistsAcrossReopen(t *testing.T) {
	tests := []struct {
		backend string
		path    string
	}{
		{BackendBadger, "badger"},
		{BackendSQLite, "cache.sqlite"},
	}

	for _, tt := range tests {
		t.Run(tt.backend, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), tt.path)
			f := entry("/data/movie.mkv", 4096)
			ctx := context.Background()

			c, err := Open(Options{Backend: tt.backend, Path: path})
			require.NoError(t, err)
			require.NoError(t, c.Store(ctx, f, "xxh3:1234"))
			require.NoError(t, c.Close())

			c, err = Open(Options{Backend: tt.backend, Path: path})
			require.NoError(t, err)
			got, ok, err := c.Lookup(ctx, f)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, types.Checksum("xxh3:1234"), got.Sum())
			require.NoError(t, c.Close())

			c, err = Open(Options{Backend: tt.backend, Path: path, Reset: true})
			require.NoError(t, err)
			defer c.Close()
			_, ok, err = c.Lookup(ctx, f)
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestCache_ChecksumComputesOncePerIdentity(t *testing.T) {
	c := New(NewMemory(), "")
	f := entry("/data/shared.bin", 100)

	var calls atomic.Int32
	compute := func(context.Context, types.FileEntry) (types.Checksum, error) {
		calls.Add(1)
		time.Sleep(10 * time.Millisecond)
		return "md5:ffff", nil
	}

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := c.Checksum(context.Background(), f, compute)
			assert.NoError(t, err)
			assert.Equal(t, types.Checksum("md5:ffff"), res.Sum)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
}

func TestCache_ChecksumPropagatesComputeError(t *testing.T) {
	c := New(NewMemory(), "")
	f := entry("/data/gone.bin", 100)
	readErr := &types.ReadError{Path: f.Path, Err: errors.New("vanished")}

	_, err := c.Checksum(context.Background(), f, func(context.Context, types.FileEntry) (types.Checksum, error) {
		return "", readErr
	})
	var re *types.ReadError
	require.ErrorAs(t, err, &re)

	_, ok, err := c.Lookup(context.Background(), f)
	require.NoError(t, err)
	assert.False(t, ok, "failed computations are not cached")
}

func TestOpen_UnknownBackend(t *testing.T) {
	_, err := Open(Options{Backend: "redis"})
	assert.Error(t, err)
	assert.Equal(t, []string{"badger", "memory", "sqlite"}, Backends())
}

func TestKey(t *testing.T) {
	withInode := entry("/x", 1)
	assert.Equal(t, "c:i:1:102", Key(withInode))

	bare := types.FileEntry{Path: "/no/identity"}
	assert.Equal(t, "c:p:/no/identity", Key(bare))
}

func TestEntry_DecodeRejectsEmptyChecksum(t *testing.T) {
	data, err := (&Entry{Size: 1}).Encode()
	require.NoError(t, err)

	var e Entry
	assert.Error(t, e.Decode(data))
}
