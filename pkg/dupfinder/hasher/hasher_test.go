package hasher

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/dupfinder/pkg/dupfinder/types"
)

func writeFile(t testing.TB, dir, name string, content []byte) types.FileEntry {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, content, 0o644))
	return types.FileEntry{Path: path, Size: int64(len(content))}
}

func TestHash_KnownDigests(t *testing.T) {
	dir := t.TempDir()
	f := writeFile(t, dir, "hello.txt", []byte("hello"))

	tests := []struct {
		algorithm string
		want      types.Checksum
	}{
		{"md5", "md5:5d41402abc4b2a76b9719d911017c592"},
		{"sha256", "sha256:2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"},
	}

	for _, tt := range tests {
		t.Run(tt.algorithm, func(t *testing.T) {
			h, err := New(Options{Algorithm: tt.algorithm})
			require.NoError(t, err)

			got, err := h.Hash(context.Background(), f)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHash_Deterministic(t *testing.T) {
	dir := t.TempDir()
	content := bytes.Repeat([]byte("0123456789abcdef"), 10_000)
	a := writeFile(t, dir, "a", content)
	b := writeFile(t, dir, "b", content)
	c := writeFile(t, dir, "c", append(bytes.Clone(content), 'x'))

	for _, name := range Available() {
		t.Run(name, func(t *testing.T) {
			h, err := New(Options{Algorithm: name})
			require.NoError(t, err)

			sumA, err := h.Hash(context.Background(), a)
			require.NoError(t, err)
			sumB, err := h.Hash(context.Background(), b)
			require.NoError(t, err)
			sumC, err := h.Hash(context.Background(), c)
			require.NoError(t, err)

			assert.Equal(t, sumA, sumB)
			assert.NotEqual(t, sumA, sumC)
			assert.Equal(t, name, sumA.Algorithm())
		})
	}
}

func TestHash_ChunkSizeDoesNotChangeChecksum(t *testing.T) {
	dir := t.TempDir()
	f := writeFile(t, dir, "data", bytes.Repeat([]byte{1, 2, 3, 4, 5}, 1000))

	small, err := New(Options{BufferSize: 3})
	require.NoError(t, err)
	large, err := New(Options{BufferSize: 1 << 20})
	require.NoError(t, err)

	s1, err := small.Hash(context.Background(), f)
	require.NoError(t, err)
	s2, err := large.Hash(context.Background(), f)
	require.NoError(t, err)
	assert.Equal(t, s1, s2)

	_, read := small.Stats()
	assert.Equal(t, int64(5000), read)
}

func TestHash_MatchesDirectDigest(t *testing.T) {
	dir := t.TempDir()
	content := []byte("same bytes either way")
	f := writeFile(t, dir, "r", content)

	h, err := New(Options{Algorithm: "xxhash", BufferSize: 4})
	require.NoError(t, err)

	fromFile, err := h.Hash(context.Background(), f)
	require.NoError(t, err)

	alg, ok := Lookup("xxhash")
	require.True(t, ok)
	d := alg.New()
	_, _ = d.Write(content)
	assert.Equal(t, types.NewChecksum("xxhash", d.Sum(nil)), fromFile)
}

func TestHash_ReadErrors(t *testing.T) {
	h, err := New(Options{})
	require.NoError(t, err)

	t.Run("missing file", func(t *testing.T) {
		_, err := h.Hash(context.Background(), types.FileEntry{Path: filepath.Join(t.TempDir(), "gone")})
		var readErr *types.ReadError
		require.ErrorAs(t, err, &readErr)
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("directory", func(t *testing.T) {
		_, err := h.Hash(context.Background(), types.FileEntry{Path: t.TempDir()})
		var readErr *types.ReadError
		require.ErrorAs(t, err, &readErr)
	})
}

func TestHash_CanceledContext(t *testing.T) {
	dir := t.TempDir()
	f := writeFile(t, dir, "x", []byte("content"))

	h, err := New(Options{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = h.Hash(ctx, f)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNew_UnknownAlgorithm(t *testing.T) {
	_, err := New(Options{Algorithm: "crc7"})
	assert.Error(t, err)
}

func TestRegistry(t *testing.T) {
	assert.Equal(t, []string{"md5", "sha256", "xxh3", "xxhash"}, Available())

	h, err := New(Options{})
	require.NoError(t, err)
	assert.Equal(t, DefaultAlgorithm, h.Algorithm())

	sum, err := h.Hash(context.Background(), writeFile(t, t.TempDir(), "empty", nil))
	require.NoError(t, err)
	// 128-bit digest, 32 hex characters.
	assert.Len(t, string(sum), len("xxh3:")+32)
}

func BenchmarkHash(b *testing.B) {
	f := writeFile(b, b.TempDir(), "blob", bytes.Repeat([]byte("dupfinder"), 1<<17))

	for _, name := range Available() {
		b.Run(name, func(b *testing.B) {
			h, err := New(Options{Algorithm: name})
			require.NoError(b, err)
			ctx := context.Background()

			b.SetBytes(f.Size)
			for b.Loop() {
				if _, err := h.Hash(ctx, f); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
