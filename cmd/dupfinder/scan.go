package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/jamesainslie/dupfinder/cmd/dupfinder/tui"
	"github.com/jamesainslie/dupfinder/pkg/dupfinder/cache"
	"github.com/jamesainslie/dupfinder/pkg/dupfinder/config"
	"github.com/jamesainslie/dupfinder/pkg/dupfinder/engine"
	"github.com/jamesainslie/dupfinder/pkg/dupfinder/hasher"
	"github.com/jamesainslie/dupfinder/pkg/dupfinder/limit"
	"github.com/jamesainslie/dupfinder/pkg/dupfinder/manifest"
	"github.com/jamesainslie/dupfinder/pkg/dupfinder/output"
	"github.com/jamesainslie/dupfinder/pkg/dupfinder/tuner"
	"github.com/jamesainslie/dupfinder/pkg/dupfinder/types"
	"github.com/jamesainslie/dupfinder/pkg/dupfinder/walker"
)

// searchSettings is a search fully resolved from configuration and flags.
type searchSettings struct {
	Root          string
	Limit         limit.Limit
	MinSize       int64
	Exclude       []string
	KeepHardLinks bool

	Algorithm   string
	HashWorkers int
	WalkWorkers int
	BufferSize  int
	RateLimit   float64

	CacheEnabled bool
	CacheBackend string
	CachePath    string
	ResetCache   bool
}

// resolveSettings turns the loaded configuration and positional arguments
// into search settings. Flags are already merged into cfg.
func resolveSettings(cfg *config.Config, args []string) (searchSettings, error) {
	root := cfg.DefaultPath
	if len(args) > 0 {
		root = args[0]
	}
	expanded, err := config.ExpandPath(root)
	if err != nil {
		return searchSettings{}, fmt.Errorf("failed to expand path: %w", err)
	}
	absRoot, err := walker.ResolveRoot(expanded)
	if err != nil {
		if os.IsNotExist(err) {
			return searchSettings{}, fmt.Errorf("path does not exist: %s", expanded)
		}
		return searchSettings{}, fmt.Errorf("cannot search %s: %w", expanded, err)
	}

	l, err := cfg.Limit()
	if err != nil {
		return searchSettings{}, err
	}
	minSize, err := cfg.MinSizeBytes()
	if err != nil {
		return searchSettings{}, fmt.Errorf("invalid minimum size %q: %w", cfg.MinSize, err)
	}
	bufferSize, err := cfg.BufferSizeBytes()
	if err != nil {
		return searchSettings{}, fmt.Errorf("invalid buffer size %q: %w", cfg.Hashing.BufferSize, err)
	}

	resources, err := tuner.Detect()
	if err != nil {
		printVerbose("Failed to detect system resources, using defaults: %v", err)
		resources = tuner.SystemResources{
			CPUCores:     4,
			TotalRAM:     8 * types.GiB,
			AvailableRAM: 4 * types.GiB,
		}
	}
	tuned := tuner.CalculateWithOverrides(resources, cfg.Hashing.Workers, bufferSize)

	printVerbose("System: %d CPUs, %s RAM, %s available",
		resources.CPUCores,
		types.FormatSize(resources.TotalRAM),
		types.FormatSize(resources.AvailableRAM))
	printVerbose("Config: %d walk workers, %d hash workers, %s buffer",
		tuned.WalkWorkers, tuned.HashWorkers, types.FormatSize(int64(tuned.BufferSize)))

	return searchSettings{
		Root:          absRoot,
		Limit:         l,
		MinSize:       minSize,
		Exclude:       cfg.Exclude,
		KeepHardLinks: keepLinks,
		Algorithm:     cfg.Hashing.Algorithm,
		HashWorkers:   tuned.HashWorkers,
		WalkWorkers:   tuned.WalkWorkers,
		BufferSize:    tuned.BufferSize,
		RateLimit:     cfg.Hashing.RateLimit,
		CacheEnabled:  cfg.Cache.Enabled && !noCache,
		CacheBackend:  cfg.Cache.Backend,
		CachePath:     cfg.CachePath(),
		ResetCache:    resetCache,
	}, nil
}

// search holds the opened components of one duplicate search.
type search struct {
	settings searchSettings
	hasher   *hasher.Hasher
	cache    *cache.Cache
	walker   *walker.Walker
}

// openSearch builds the hasher, cache and walker for s. The caller must
// Close the returned search.
func openSearch(s searchSettings) (*search, error) {
	h, err := hasher.New(hasher.Options{
		Algorithm:  s.Algorithm,
		BufferSize: s.BufferSize,
		RateLimit:  s.RateLimit,
	})
	if err != nil {
		return nil, err
	}

	w, err := walker.New(walker.Options{
		Root:          s.Root,
		Exclude:       s.Exclude,
		MinSize:       s.MinSize,
		Workers:       s.WalkWorkers,
		KeepHardLinks: s.KeepHardLinks,
	})
	if err != nil {
		return nil, err
	}

	sr := &search{settings: s, hasher: h, walker: w}
	if s.CacheEnabled {
		c, err := cache.Open(cache.Options{
			Backend:   s.CacheBackend,
			Path:      s.CachePath,
			Algorithm: h.Algorithm(),
			Reset:     s.ResetCache,
		})
		if err != nil {
			logger.Warn("checksum cache unavailable", "backend", s.CacheBackend, "path", s.CachePath, "error", err)
			printInfo("Warning: checksum cache unavailable (%v), continuing without it", err)
		} else {
			sr.cache = c
		}
	}
	return sr, nil
}

// Run walks the root and returns the duplicate groups. It satisfies
// tui.SearchFunc.
func (s *search) Run(ctx context.Context, onProgress func(types.Progress)) (*engine.Result, error) {
	e, err := engine.New(engine.Options{
		Limit:      s.settings.Limit,
		Hasher:     s.hasher,
		Cache:      s.cache,
		Workers:    s.settings.HashWorkers,
		OnProgress: onProgress,
	})
	if err != nil {
		return nil, err
	}

	log := logger.With("root", s.settings.Root)
	log.Info("search started",
		"limit", s.settings.Limit.String(),
		"algorithm", s.hasher.Algorithm(),
		"cache", s.cache != nil)

	result, err := e.Run(ctx, s.walker.Entries(ctx))
	if result != nil {
		ws := s.walker.Stats()
		log.Info("search finished",
			"state", result.Summary.State,
			"groups", result.Summary.Groups,
			"files", result.Summary.FilesSeen,
			"excluded", ws.Excluded,
			"small", ws.Small,
			"links", ws.Links,
			"elapsed", result.Summary.Elapsed)
	}
	return result, err
}

// Close releases the cache.
func (s *search) Close() error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Close()
}

// selectFormatter resolves the output format name.
func selectFormatter(name, tmpl string) (output.Formatter, error) {
	if name == "" {
		name = "pretty"
	}
	if name == "template" {
		if tmpl == "" {
			return nil, fmt.Errorf("--template is required when using -o template")
		}
		return output.NewTemplateFormatter(tmpl), nil
	}
	f, err := output.Get(name)
	if err != nil {
		return nil, fmt.Errorf("unknown output format %q: available formats are %v", name, output.Available())
	}
	return f, nil
}

// useTUI reports whether the progress screen should be shown.
func useTUI(format string, out io.Writer) bool {
	if noInteractive || quiet || (format != "" && format != "pretty") {
		return false
	}
	f, ok := out.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}

// runScan is the main search command handler.
func runScan(cmd *cobra.Command, args []string) error {
	settings, err := resolveSettings(appConfig, args)
	if err != nil {
		return err
	}
	formatter, err := selectFormatter(outputFormat, templateStr)
	if err != nil {
		return err
	}

	s, err := openSearch(settings)
	if err != nil {
		return err
	}
	defer func() {
		if err := s.Close(); err != nil {
			logger.Warn("failed to close cache", "error", err)
		}
	}()

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		result      *engine.Result
		interrupted bool
	)
	if useTUI(outputFormat, cmd.OutOrStdout()) {
		if err := initTUILogging(); err != nil {
			return fmt.Errorf("failed to initialize TUI logging: %w", err)
		}
		outcome, err := tui.Run(ctx, tui.Options{
			Root:   settings.Root,
			Limit:  settings.Limit,
			Search: s.Run,
		})
		if err != nil {
			return err
		}
		result, interrupted = outcome.Result, outcome.Interrupted
	} else {
		printInfo("Searching %s for duplicates (%s)...", settings.Root, settings.Limit)
		result, err = s.Run(ctx, nil)
		if errors.Is(err, context.Canceled) {
			printInfo("Interrupted, reporting partial results")
			interrupted, err = true, nil
		}
		if err != nil {
			return fmt.Errorf("search failed: %w", err)
		}
	}

	if result == nil {
		printInfo("Search cancelled")
		return nil
	}

	if !interrupted {
		recordHistory(settings, s.hasher.Algorithm(), result)
	}

	report := &output.Report{
		Root:        settings.Root,
		Limit:       settings.Limit.String(),
		Algorithm:   s.hasher.Algorithm(),
		Groups:      result.Groups,
		Summary:     result.Summary,
		Interrupted: interrupted,
	}
	var buf bytes.Buffer
	if err := formatter.Format(&buf, report); err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}
	_, err = cmd.OutOrStdout().Write(buf.Bytes())
	return err
}

// recordHistory saves the search to the history directory. Failures are
// logged and otherwise ignored.
func recordHistory(settings searchSettings, algorithm string, result *engine.Result) {
	if !appConfig.History.Enabled {
		return
	}
	m, err := manifest.New(appConfig.HistoryPath())
	if err != nil {
		logger.Warn("history unavailable", "error", err)
		return
	}
	entry := manifest.NewEntry(settings.Root, settings.Limit.String(), algorithm, result.Groups, result.Summary)
	saved, err := m.Record(entry)
	if err != nil {
		logger.Warn("failed to record history", "error", err)
		return
	}
	printVerbose("Recorded search as %s", saved.ShortID())
}
