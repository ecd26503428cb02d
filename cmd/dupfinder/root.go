package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/dupfinder/pkg/dupfinder/config"
	"github.com/jamesainslie/dupfinder/pkg/dupfinder/logging"
)

var logger = logging.Get("cli")

var (
	cfgFile string

	// appConfig is loaded by initializeLogging before any command runs.
	appConfig *config.Config

	// Flags that have no configuration key.
	resetCache    bool
	noCache       bool
	noInteractive bool
	outputFormat  string
	templateStr   string
	keepLinks     bool
	quiet         bool
	verbose       bool

	rootCmd = &cobra.Command{
		Use:   "dupfinder [path]",
		Short: "Find duplicate files",
		Long: `Dupfinder walks a directory tree and reports groups of files with
identical content.

Files are first bucketed by size; only files that share a size with another
file are hashed. Checksums are cached so repeat searches only hash files
that changed. A search can stop early once it has found enough duplicate
groups (--at-least) or hashed enough data (--max-size).

Examples:
  dupfinder                      # Search the current directory
  dupfinder ~/Pictures           # Search a specific directory
  dupfinder -a 5 ~/Downloads     # Stop after five duplicate groups
  dupfinder -m 2G /srv           # Hash at most 2 GiB of data
  dupfinder -n -o json .         # Non-interactive JSON output
  dupfinder cache stats          # Show checksum cache statistics
  dupfinder history              # View past searches`,
		Args:              cobra.MaximumNArgs(1),
		PersistentPreRunE: initializeLogging,
		PersistentPostRun: func(*cobra.Command, []string) { _ = logging.Close() },
		RunE:              runScan,
		SilenceUsage:      true,
		SilenceErrors:     true,
	}
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default: ~/.config/dupfinder/config.yaml)")
	pf.BoolVarP(&quiet, "quiet", "q", false, "minimal output")
	pf.BoolVarP(&verbose, "verbose", "v", false, "debug output")
	pf.String("cache-backend", "", "checksum cache backend (badger, sqlite, memory)")

	f := rootCmd.Flags()
	f.IntP("at-least", "a", 0, "stop once this many duplicate groups were found")
	f.StringP("max-size", "m", "", "stop once this much data was hashed (e.g., 500M, 2G)")
	f.String("min-size", "", "ignore files smaller than this (e.g., 1K)")
	f.StringSliceP("exclude", "e", nil, "exclude patterns (can be specified multiple times)")
	f.String("algorithm", "", "hash algorithm")
	f.IntP("workers", "w", 0, "concurrent hash workers (0=auto)")
	f.String("buffer-size", "", "read buffer per hash worker (e.g., 64K, auto)")
	f.Float64("rate-limit", 0, "files hashed per second (0=unlimited)")
	f.BoolVar(&resetCache, "reset-cache", false, "wipe the checksum cache before searching")
	f.BoolVar(&noCache, "no-cache", false, "do not read or write the checksum cache")
	f.BoolVar(&keepLinks, "hard-links", false, "report hard links to the same file as duplicates")
	f.BoolVarP(&noInteractive, "no-interactive", "n", false, "disable TUI, use text output")
	f.StringVarP(&outputFormat, "output", "o", "", "output format (pretty, plain, paths, json, jsonl, yaml, template)")
	f.StringVar(&templateStr, "template", "", "Go template for -o template")

	rootCmd.MarkFlagsMutuallyExclusive("at-least", "max-size")
	rootCmd.MarkFlagsMutuallyExclusive("reset-cache", "no-cache")
}

// Execute runs the root command.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		printError("%v", err)
		return err
	}
	return nil
}

// printVerbose prints a message if verbose mode is enabled.
func printVerbose(format string, args ...any) {
	if verbose && !quiet {
		fmt.Fprintf(os.Stderr, "[DEBUG] "+format+"\n", args...)
	}
}

// printInfo prints a message to stderr if quiet mode is not enabled.
// Results go to stdout so they can be piped.
func printInfo(format string, args ...any) {
	if !quiet {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	}
}

// printError prints an error message to stderr.
func printError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
}
