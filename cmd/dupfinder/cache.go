package main

import (
	"encoding/json"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jamesainslie/dupfinder/pkg/dupfinder/cache"
)

var cacheJSON bool

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the checksum cache",
	Long: `Manage the checksum cache used to skip re-hashing unchanged files.

Checksums are keyed by device and inode and are reused only while the
file's size and modification time are unchanged.`,
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all cached checksums",
	RunE:  runCacheClear,
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache statistics",
	RunE:  runCacheStats,
}

var cachePathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the cache location",
	Run:   runCachePath,
}

func init() {
	cacheStatsCmd.Flags().BoolVar(&cacheJSON, "json", false, "output as JSON")

	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cachePathCmd)
	rootCmd.AddCommand(cacheCmd)
}

// openCache opens the configured cache for maintenance commands.
func openCache() (*cache.Cache, error) {
	return cache.Open(cache.Options{
		Backend: appConfig.Cache.Backend,
		Path:    appConfig.CachePath(),
	})
}

func runCacheClear(cmd *cobra.Command, _ []string) error {
	c, err := openCache()
	if err != nil {
		return fmt.Errorf("failed to open cache: %w", err)
	}
	defer c.Close()

	before, _ := c.Stats()
	if err := c.Reset(); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}

	logger.Info("cache cleared", "backend", before.Backend, "entries", before.Entries)
	if !quiet {
		fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d cached checksums\n", before.Entries)
	}
	return nil
}

func runCacheStats(cmd *cobra.Command, _ []string) error {
	c, err := openCache()
	if err != nil {
		return fmt.Errorf("failed to open cache: %w", err)
	}
	defer c.Close()

	stats, err := c.Stats()
	if err != nil {
		return fmt.Errorf("failed to read cache stats: %w", err)
	}

	out := cmd.OutOrStdout()
	path := appConfig.CachePath()
	if cacheJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Path    string `json:"path"`
			Backend string `json:"backend"`
			Entries int    `json:"entries"`
		}{path, stats.Backend, stats.Entries})
	}

	fmt.Fprintf(out, "Backend: %s\n", stats.Backend)
	if path != "" {
		fmt.Fprintf(out, "Path:    %s\n", path)
	}
	fmt.Fprintf(out, "Entries: %s\n", humanize.Comma(int64(stats.Entries)))
	return nil
}

func runCachePath(cmd *cobra.Command, _ []string) {
	path := appConfig.CachePath()
	if path == "" {
		path = "(in memory)"
	}
	fmt.Fprintln(cmd.OutOrStdout(), path)
}
