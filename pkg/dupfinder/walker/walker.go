// Package walker enumerates regular files under a root directory as a lazy
// sequence of file entries. Traversal is parallel (fastwalk), symlinks are
// not followed, and excluded paths are matched with glob patterns.
package walker

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/charlievieth/fastwalk"
	"github.com/gobwas/glob"

	"github.com/jamesainslie/dupfinder/pkg/dupfinder/logging"
	"github.com/jamesainslie/dupfinder/pkg/dupfinder/types"
)

var logger = logging.Get("walker")

// Options configures a Walker.
type Options struct {
	// Root is the directory to walk.
	Root string

	// Exclude holds glob patterns. A pattern matches a path if it matches
	// the full path or the base name, or if it names the path or one of its
	// parent directories literally.
	Exclude []string

	// MinSize skips files smaller than this many bytes.
	MinSize int64

	// Workers is the number of fastwalk goroutines. Zero lets fastwalk decide.
	Workers int

	// KeepHardLinks yields every link to a file instead of only the first.
	KeepHardLinks bool
}

// Stats counts what a walk has seen so far.
type Stats struct {
	Dirs     int64
	Files    int64
	Excluded int64
	Small    int64
	Links    int64
	Errors   int64
}

// Walker produces file entries for one root.
type Walker struct {
	opts     Options
	patterns []pattern

	dirs, files, excluded, small, links, errs atomic.Int64
}

type pattern struct {
	raw string
	g   glob.Glob
}

// New compiles the exclude patterns.
func New(opts Options) (*Walker, error) {
	w := &Walker{opts: opts}
	for _, p := range opts.Exclude {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, fmt.Errorf("invalid exclude pattern %q: %w", p, err)
		}
		w.patterns = append(w.patterns, pattern{raw: filepath.Clean(p), g: g})
	}
	return w, nil
}

// ResolveRoot returns the absolute form of root after checking that it is
// an existing directory.
func ResolveRoot(root string) (string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s: %w", abs, errNotDir)
	}
	return abs, nil
}

var errNotDir = errors.New("not a directory")

type item struct {
	entry types.FileEntry
	err   error
}

// Entries returns the files under the root. The walk starts when the
// sequence is ranged over and stops when the consumer breaks or ctx is
// canceled. Per-path failures are yielded as errors alongside an entry
// carrying the failing path; they do not stop the walk. The order is
// unspecified.
func (w *Walker) Entries(ctx context.Context) iter.Seq2[types.FileEntry, error] {
	return func(yield func(types.FileEntry, error) bool) {
		root, err := ResolveRoot(w.opts.Root)
		if err != nil {
			yield(types.FileEntry{Path: w.opts.Root}, err)
			return
		}

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		out := make(chan item, 256)
		go func() {
			defer close(out)
			conf := fastwalk.Config{Follow: false, NumWorkers: w.opts.Workers}
			err := fastwalk.Walk(&conf, root, w.visit(ctx, out))
			if err != nil && !errors.Is(err, context.Canceled) {
				select {
				case out <- item{entry: types.FileEntry{Path: root}, err: err}:
				case <-ctx.Done():
				}
			}
			logger.Debug("walk finished", "root", root, "files", w.files.Load(), "dirs", w.dirs.Load())
		}()

		for it := range out {
			if !yield(it.entry, it.err) {
				cancel()
				for range out {
				}
				return
			}
		}
	}
}

func (w *Walker) visit(ctx context.Context, out chan<- item) fs.WalkDirFunc {
	var seenMu sync.Mutex
	seen := make(map[[2]uint64]struct{})

	send := func(it item) error {
		select {
		case out <- it:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return func(path string, d fs.DirEntry, err error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			w.errs.Add(1)
			return send(item{entry: types.FileEntry{Path: path}, err: err})
		}

		if w.isExcluded(path) {
			w.excluded.Add(1)
			if d.IsDir() {
				return fastwalk.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			w.dirs.Add(1)
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			w.errs.Add(1)
			return send(item{entry: types.FileEntry{Path: path}, err: err})
		}
		if info.Size() < w.opts.MinSize {
			w.small.Add(1)
			return nil
		}

		id := identityOf(path, info)
		if id.Inode != 0 && !w.opts.KeepHardLinks {
			key := [2]uint64{id.Device, id.Inode}
			seenMu.Lock()
			_, dup := seen[key]
			seen[key] = struct{}{}
			seenMu.Unlock()
			if dup {
				w.links.Add(1)
				return nil
			}
		}

		w.files.Add(1)
		return send(item{entry: types.FileEntry{
			Path:     path,
			Size:     info.Size(),
			ModTime:  info.ModTime(),
			Identity: id,
		}})
	}
}

func (w *Walker) isExcluded(path string) bool {
	base := filepath.Base(path)
	for _, p := range w.patterns {
		if path == p.raw || strings.HasPrefix(path, p.raw+string(filepath.Separator)) {
			return true
		}
		if p.g.Match(path) || p.g.Match(base) {
			return true
		}
	}
	return false
}

// Stats returns the walk counters.
func (w *Walker) Stats() Stats {
	return Stats{
		Dirs:     w.dirs.Load(),
		Files:    w.files.Load(),
		Excluded: w.excluded.Load(),
		Small:    w.small.Load(),
		Links:    w.links.Load(),
		Errors:   w.errs.Load(),
	}
}
