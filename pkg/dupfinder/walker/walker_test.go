package walker

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/dupfinder/pkg/dupfinder/types"
)

func mkfile(t *testing.T, root, rel string, size int) string {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0o644))
	return path
}

func collect(t *testing.T, w *Walker) ([]types.FileEntry, []error) {
	t.Helper()
	var entries []types.FileEntry
	var errs []error
	for e, err := range w.Entries(context.Background()) {
		if err != nil {
			errs = append(errs, err)
			continue
		}
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return entries, errs
}

func rel(t *testing.T, root string, entries []types.FileEntry) []string {
	t.Helper()
	out := make([]string, len(entries))
	for i, e := range entries {
		r, err := filepath.Rel(root, e.Path)
		require.NoError(t, err)
		out[i] = filepath.ToSlash(r)
	}
	return out
}

func TestEntries_RegularFiles(t *testing.T) {
	root := t.TempDir()
	mkfile(t, root, "a.txt", 10)
	mkfile(t, root, "sub/b.txt", 20)
	mkfile(t, root, "sub/deeper/c.bin", 30)

	w, err := New(Options{Root: root})
	require.NoError(t, err)
	entries, errs := collect(t, w)

	assert.Empty(t, errs)
	assert.Equal(t, []string{"a.txt", "sub/b.txt", "sub/deeper/c.bin"}, rel(t, root, entries))
	assert.Equal(t, int64(10), entries[0].Size)
	assert.False(t, entries[0].ModTime.IsZero())
	assert.True(t, filepath.IsAbs(entries[0].Path))
	assert.Equal(t, int64(3), w.Stats().Files)
}

func TestEntries_ExcludeAndMinSize(t *testing.T) {
	root := t.TempDir()
	mkfile(t, root, "keep.dat", 100)
	mkfile(t, root, "tiny.dat", 1)
	mkfile(t, root, "node_modules/pkg/index.js", 100)
	mkfile(t, root, "notes.tmp", 100)
	mkfile(t, root, "photos/raw/img.cr2", 100)

	w, err := New(Options{
		Root:    root,
		MinSize: 10,
		Exclude: []string{"node_modules", "*.tmp", filepath.Join(root, "photos", "raw")},
	})
	require.NoError(t, err)
	entries, _ := collect(t, w)

	assert.Equal(t, []string{"keep.dat"}, rel(t, root, entries))
	stats := w.Stats()
	assert.Equal(t, int64(1), stats.Small)
	assert.GreaterOrEqual(t, stats.Excluded, int64(3))
}

func TestEntries_SymlinksNotFollowed(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}
	root := t.TempDir()
	target := mkfile(t, root, "real.txt", 5)
	require.NoError(t, os.Symlink(target, filepath.Join(root, "link.txt")))

	w, err := New(Options{Root: root})
	require.NoError(t, err)
	entries, _ := collect(t, w)
	assert.Equal(t, []string{"real.txt"}, rel(t, root, entries))
}

func TestEntries_HardLinksYieldedOnce(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("no inode identity on windows")
	}
	root := t.TempDir()
	target := mkfile(t, root, "one.txt", 5)
	require.NoError(t, os.Link(target, filepath.Join(root, "two.txt")))

	w, err := New(Options{Root: root})
	require.NoError(t, err)
	entries, _ := collect(t, w)
	require.Len(t, entries, 1)
	assert.NotZero(t, entries[0].Identity.Inode)
	assert.Equal(t, int64(1), w.Stats().Links)

	w, err = New(Options{Root: root, KeepHardLinks: true})
	require.NoError(t, err)
	entries, _ = collect(t, w)
	assert.Len(t, entries, 2)
}

func TestEntries_BadRoot(t *testing.T) {
	root := t.TempDir()
	file := mkfile(t, root, "file.txt", 1)

	for _, bad := range []string{filepath.Join(root, "missing"), file} {
		w, err := New(Options{Root: bad})
		require.NoError(t, err)
		entries, errs := collect(t, w)
		assert.Empty(t, entries)
		assert.Len(t, errs, 1)
	}
}

func TestEntries_EarlyBreak(t *testing.T) {
	root := t.TempDir()
	for i := range 200 {
		mkfile(t, root, filepath.Join("d", string(rune('a'+i%26)), "f"+string(rune('a'+i/26))), 1)
	}

	w, err := New(Options{Root: root})
	require.NoError(t, err)

	n := 0
	for range w.Entries(context.Background()) {
		n++
		if n == 5 {
			break
		}
	}
	assert.Equal(t, 5, n)
}

func TestNew_InvalidPattern(t *testing.T) {
	_, err := New(Options{Exclude: []string{"[unterminated"}})
	assert.Error(t, err)
}

func TestResolveRoot(t *testing.T) {
	root := t.TempDir()
	got, err := ResolveRoot(root)
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(got))

	_, err = ResolveRoot(mkfile(t, root, "x", 1))
	assert.ErrorIs(t, err, errNotDir)
}
