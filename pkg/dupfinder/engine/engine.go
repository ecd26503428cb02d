// Package engine finds duplicate files in a stream of file entries while
// hashing as little content as possible.
//
// Entries are bucketed by size and only files that share a size with
// another file are hashed. Hashing runs on a bounded worker pool, goes
// through the checksum cache when one is configured, and is governed by a
// limit policy that can stop the run after a number of duplicate groups or
// before a byte budget is exceeded. Duplicate groups are sealed and yielded
// once the run reaches a terminal state.
package engine

import (
	"context"
	"errors"
	"iter"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/jamesainslie/dupfinder/pkg/dupfinder/index"
	"github.com/jamesainslie/dupfinder/pkg/dupfinder/limit"
	"github.com/jamesainslie/dupfinder/pkg/dupfinder/logging"
	"github.com/jamesainslie/dupfinder/pkg/dupfinder/types"
)

var logger = logging.Get("engine")

// ErrAlreadyRun is returned when an Engine is asked to run a second time.
var ErrAlreadyRun = errors.New("engine has already run")

// Result is everything a finished run produced.
type Result struct {
	Groups  []types.DuplicateGroup `json:"groups"`
	Summary types.Summary          `json:"summary"`
}

// Engine runs one duplicate search. It must not be reused.
type Engine struct {
	opts   Options
	policy *limit.Policy

	// mu serializes the index together with the policy so that a group
	// confirmation and the stop check it triggers are atomic.
	mu    sync.Mutex
	index *index.Index

	started atomic.Bool
	state   atomic.Int32

	seen, seenBytes       atomic.Int64
	candidates, hashed    atomic.Int64
	hits, misses, read    atomic.Int64
	skipped, skippedBytes atomic.Int64
	discarded, confirmed  atomic.Int64
	failed                atomic.Int64

	errMu  sync.Mutex
	errors []types.FileError

	currentPath  atomic.Value
	lastProgress atomic.Int64

	doneMu  sync.Mutex
	summary *types.Summary
	err     error
}

// New validates opts and returns an engine ready to run.
func New(opts Options) (*Engine, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	policy, err := limit.NewPolicy(opts.Limit)
	if err != nil {
		return nil, err
	}
	e := &Engine{
		opts:   opts,
		policy: policy,
		index:  index.New(),
	}
	e.state.Store(int32(types.StateScanning))
	return e, nil
}

// Groups returns a lazy sequence of duplicate groups found in entries.
// Nothing is read until the sequence is ranged over. The groups are yielded
// once the walk is exhausted or the limit stops the run; breaking out of
// the loop early simply drops the remaining groups. The sequence can be
// consumed once.
func (e *Engine) Groups(ctx context.Context, entries iter.Seq2[types.FileEntry, error]) iter.Seq[types.DuplicateGroup] {
	return func(yield func(types.DuplicateGroup) bool) {
		if !e.started.CompareAndSwap(false, true) {
			logger.Warn("engine already ran, ignoring second run")
			return
		}
		for _, g := range e.run(ctx, entries) {
			if !yield(g) {
				return
			}
		}
	}
}

// Run consumes entries and collects every group. The returned error is
// non-nil only if the engine was already run or ctx was canceled; a
// canceled run still returns the partial result.
func (e *Engine) Run(ctx context.Context, entries iter.Seq2[types.FileEntry, error]) (*Result, error) {
	if e.started.Load() {
		return nil, ErrAlreadyRun
	}

	var groups []types.DuplicateGroup
	for g := range e.Groups(ctx, entries) {
		groups = append(groups, g)
	}
	if groups == nil {
		groups = []types.DuplicateGroup{}
	}
	return &Result{Groups: groups, Summary: e.Summary()}, e.Err()
}

// Err returns the context error that interrupted the run, if any.
func (e *Engine) Err() error {
	e.doneMu.Lock()
	defer e.doneMu.Unlock()
	return e.err
}

// State returns the current engine state.
func (e *Engine) State() types.State {
	return types.State(e.state.Load())
}

// Summary returns the run summary. Before the run ends it is a live
// snapshot without group totals.
func (e *Engine) Summary() types.Summary {
	e.doneMu.Lock()
	if e.summary != nil {
		s := *e.summary
		e.doneMu.Unlock()
		return s
	}
	e.doneMu.Unlock()
	return e.snapshot()
}

// Errors returns the per-file failures recorded so far.
func (e *Engine) Errors() []types.FileError {
	e.errMu.Lock()
	defer e.errMu.Unlock()
	out := make([]types.FileError, len(e.errors))
	copy(out, e.errors)
	return out
}

func (e *Engine) run(ctx context.Context, entries iter.Seq2[types.FileEntry, error]) []types.DuplicateGroup {
	start := time.Now()
	sem := semaphore.NewWeighted(int64(e.opts.Workers))
	var wg sync.WaitGroup

	logger.Info("run started", "limit", e.opts.Limit.String(), "workers", e.opts.Workers, "cache", e.opts.Cache != nil)
	e.reportProgressForce()

	for f, err := range entries {
		if ctx.Err() != nil {
			break
		}
		if err != nil {
			e.addError(f.Path, types.StageWalk, err)
			continue
		}
		if !e.policy.ShouldContinue() {
			e.skip(f)
			continue
		}

		e.setState(types.StateScanning)
		e.seen.Add(1)
		e.seenBytes.Add(f.Size)
		e.currentPath.Store(f.Path)

		batch := e.evaluate(f)
		if !e.policy.ShouldContinue() {
			e.mu.Lock()
			for _, c := range batch {
				e.index.Drop(c)
				e.skip(c)
			}
			e.mu.Unlock()
			continue
		}

		for _, c := range batch {
			if err := sem.Acquire(ctx, 1); err != nil {
				break
			}
			e.candidates.Add(1)
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer sem.Release(1)
				e.hash(ctx, c)
			}()
		}
		e.reportProgress()
	}

	if ctx.Err() != nil {
		e.policy.Halt()
	}
	wg.Wait()
	return e.finish(ctx, start)
}

// evaluate offers f to the index and charges every promoted entry against
// the policy. When the policy refuses an entry the whole batch is dropped
// and counted as skipped, including entries already charged: a lone
// selected entry whose partner was refused cannot form a group.
func (e *Engine) evaluate(f types.FileEntry) []types.FileEntry {
	e.setState(types.StateEvaluating)

	e.mu.Lock()
	defer e.mu.Unlock()

	promoted := e.index.Offer(f)
	for _, c := range promoted {
		if e.policy.OnFileSelectedForHash(c) {
			continue
		}
		for _, refused := range promoted {
			e.index.Drop(refused)
			e.skip(refused)
		}
		if e.opts.Limit.Kind() == limit.KindBudget {
			logger.Info("byte budget reached", "path", c.Path, "size", c.Size)
		} else {
			logger.Debug("limit reached before dispatch", "path", c.Path)
		}
		return nil
	}
	return promoted
}

func (e *Engine) hash(ctx context.Context, f types.FileEntry) {
	e.setState(types.StateHashing)

	sum, hit, err := e.checksum(ctx, f)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		e.mu.Lock()
		e.index.Drop(f)
		e.mu.Unlock()
		e.failed.Add(1)
		e.addError(f.Path, types.StageHash, err)
		logger.Warn("hash failed", "path", f.Path, "error", err)
		return
	}

	e.hashed.Add(1)
	if hit {
		e.hits.Add(1)
	} else {
		e.misses.Add(1)
		e.read.Add(f.Size)
	}

	e.group(f, sum)
	e.reportProgress()
}

func (e *Engine) checksum(ctx context.Context, f types.FileEntry) (types.Checksum, bool, error) {
	if e.opts.Cache == nil {
		sum, err := e.opts.Hasher.Hash(ctx, f)
		return sum, false, err
	}

	res, err := e.opts.Cache.Checksum(ctx, f, e.opts.Hasher.Hash)
	if err != nil {
		return "", false, err
	}
	if res.LookupErr != nil {
		e.addError(f.Path, types.StageCache, res.LookupErr)
	}
	if res.StoreErr != nil {
		e.addError(f.Path, types.StageCache, res.StoreErr)
	}
	return res.Sum, res.Hit, nil
}

// group adds a hashed entry to the index. Results arriving after the group
// target was reached are discarded.
func (e *Engine) group(f types.FileEntry, sum types.Checksum) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.policy.AcceptsResults() {
		e.discarded.Add(1)
		return
	}

	e.setState(types.StateGrouping)
	if e.index.Add(f, sum) {
		e.confirmed.Add(1)
		if !e.policy.OnGroupConfirmed() && e.opts.Limit.Kind() == limit.KindCount {
			logger.Info("group target reached", "groups", e.confirmed.Load())
		}
	}
}

func (e *Engine) finish(ctx context.Context, start time.Time) []types.DuplicateGroup {
	e.mu.Lock()
	groups := e.index.Seal()
	unique, _ := e.index.Held()
	promoted, dropped := e.index.Promoted(), e.index.Dropped()
	e.mu.Unlock()

	final := types.StateDone
	if !e.policy.ShouldContinue() || ctx.Err() != nil {
		final = types.StateHalted
	}
	e.setState(final)

	s := e.snapshot()
	s.State = final
	s.Unique = unique
	s.Groups = len(groups)
	for _, g := range groups {
		s.Duplicates += len(g.Files)
		s.Wasted += g.Wasted()
	}
	s.Elapsed = time.Since(start)

	e.doneMu.Lock()
	e.summary = &s
	e.err = ctx.Err()
	e.doneMu.Unlock()

	logger.Info("run finished",
		"state", final.String(),
		"groups", s.Groups,
		"seen", s.FilesSeen,
		"hashed", s.FilesHashed,
		"cache_hits", s.CacheHits,
		"skipped", s.SkippedFiles,
		"errors", len(s.Errors),
		"promoted", promoted,
		"dropped", dropped,
		"discarded", e.discarded.Load(),
		"elapsed", s.Elapsed,
	)
	e.reportProgressForce()
	return groups
}

func (e *Engine) snapshot() types.Summary {
	return types.Summary{
		State:         e.State(),
		FilesSeen:     e.seen.Load(),
		BytesSeen:     e.seenBytes.Load(),
		Candidates:    e.candidates.Load(),
		FilesHashed:   e.hashed.Load(),
		BytesSelected: e.policy.Stats().Selected,
		BytesRead:     e.read.Load(),
		CacheHits:     e.hits.Load(),
		CacheMisses:   e.misses.Load(),
		SkippedFiles:  e.skipped.Load(),
		SkippedBytes:  e.skippedBytes.Load(),
		Errors:        e.Errors(),
	}
}

func (e *Engine) setState(s types.State) {
	for {
		cur := types.State(e.state.Load())
		if cur.Terminal() {
			return
		}
		if e.state.CompareAndSwap(int32(cur), int32(s)) {
			return
		}
	}
}

func (e *Engine) skip(f types.FileEntry) {
	e.skipped.Add(1)
	e.skippedBytes.Add(f.Size)
}

func (e *Engine) addError(path string, stage types.Stage, err error) {
	e.errMu.Lock()
	e.errors = append(e.errors, types.FileError{Path: path, Stage: stage, Err: err.Error()})
	e.errMu.Unlock()
}

// reportProgress calls OnProgress at most once per ProgressInterval.
func (e *Engine) reportProgress() {
	if e.opts.OnProgress == nil {
		return
	}
	now := time.Now().UnixNano()
	last := e.lastProgress.Load()
	if now-last < int64(e.opts.ProgressInterval) {
		return
	}
	if !e.lastProgress.CompareAndSwap(last, now) {
		return
	}
	e.sendProgress()
}

func (e *Engine) reportProgressForce() {
	if e.opts.OnProgress == nil {
		return
	}
	e.lastProgress.Store(time.Now().UnixNano())
	e.sendProgress()
}

func (e *Engine) sendProgress() {
	current, _ := e.currentPath.Load().(string)

	e.errMu.Lock()
	errs := int64(len(e.errors))
	e.errMu.Unlock()

	e.opts.OnProgress(types.Progress{
		State:         e.State(),
		FilesSeen:     e.seen.Load(),
		Candidates:    e.candidates.Load(),
		FilesHashed:   e.hashed.Load(),
		BytesSelected: e.policy.Stats().Selected,
		CacheHits:     e.hits.Load(),
		Groups:        e.confirmed.Load(),
		Errors:        errs,
		CurrentPath:   current,
	})
}
