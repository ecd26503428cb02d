package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jamesainslie/dupfinder/pkg/dupfinder/config"
	"github.com/jamesainslie/dupfinder/pkg/dupfinder/manifest"
	"github.com/jamesainslie/dupfinder/pkg/dupfinder/types"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View search history",
	Long: `View the history of duplicate searches.

Every search records its root, limit, the groups it found and its
counters, so results can be reviewed later without searching again.`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

var historyShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show details of a specific search",
	Long:  `Display the groups found by a past search. The ID may be abbreviated to any unique prefix.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

var historyCleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Clean up old history entries",
	Long:  `Remove history entries older than the retention period, or all of them with --all.`,
	RunE:  runHistoryClean,
}

var (
	historyLimit int
	historyJSON  bool
	historyAll   bool
)

// maxShownFiles caps the files listed by history show.
const maxShownFiles = 50

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "l", 20, "maximum number of entries to show")
	historyShowCmd.Flags().BoolVar(&historyJSON, "json", false, "output the raw entry as JSON")
	historyCleanCmd.Flags().BoolVar(&historyAll, "all", false, "remove every entry")

	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyCleanCmd)
	rootCmd.AddCommand(historyCmd)
}

// getManifest returns a manifest instance with the configured directory.
func getManifest() (*manifest.Manifest, error) {
	return manifest.New(appConfig.HistoryPath())
}

// runHistory lists recent searches.
func runHistory(cmd *cobra.Command, _ []string) error {
	m, err := getManifest()
	if err != nil {
		return fmt.Errorf("failed to initialize history: %w", err)
	}

	entries, err := m.List(historyLimit)
	if err != nil {
		return fmt.Errorf("failed to list history: %w", err)
	}

	if len(entries) == 0 {
		printInfo("No history entries found.")
		printInfo("Run 'dupfinder [path]' to search for duplicates.")
		return nil
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\n%-8s  %-16s  %-7s  %6s  %10s  %s\n", "ID", "WHEN", "STATE", "GROUPS", "WASTED", "ROOT")
	fmt.Fprintln(out, strings.Repeat("-", 80))

	for _, entry := range entries {
		fmt.Fprintf(out, "%-8s  %-16s  %-7s  %6d  %10s  %s\n",
			entry.ShortID(),
			entry.Timestamp.Local().Format("2006-01-02 15:04"),
			entry.Summary.State,
			entry.Summary.Groups,
			types.FormatSize(entry.Summary.Wasted),
			truncateString(entry.Root, 30),
		)
	}

	fmt.Fprintln(out, strings.Repeat("-", 80))
	fmt.Fprintf(out, "\nShowing %d entries. Use --limit to see more.\n", len(entries))
	fmt.Fprintln(out, "Use 'dupfinder history show <id>' for details on a specific entry.")

	return nil
}

// runHistoryShow displays the groups of one search.
func runHistoryShow(cmd *cobra.Command, args []string) error {
	m, err := getManifest()
	if err != nil {
		return fmt.Errorf("failed to initialize history: %w", err)
	}

	entry, err := m.Get(args[0])
	if err != nil {
		return fmt.Errorf("failed to get entry: %w", err)
	}

	out := cmd.OutOrStdout()
	if historyJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(entry)
	}

	s := entry.Summary
	fmt.Fprintln(out, "\nSearch Details")
	fmt.Fprintln(out, strings.Repeat("=", 60))
	fmt.Fprintf(out, "ID:         %s\n", entry.ID)
	fmt.Fprintf(out, "Timestamp:  %s\n", entry.Timestamp.Local().Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(out, "Root:       %s\n", entry.Root)
	if entry.Limit != "" {
		fmt.Fprintf(out, "Limit:      %s\n", entry.Limit)
	}
	fmt.Fprintf(out, "Algorithm:  %s\n", entry.Algorithm)
	fmt.Fprintf(out, "State:      %s\n", s.State)
	fmt.Fprintf(out, "Files:      %s seen, %s hashed (%s), %s from cache\n",
		humanize.Comma(s.FilesSeen), humanize.Comma(s.FilesHashed),
		humanize.IBytes(uint64(s.BytesSelected)), humanize.Comma(s.CacheHits))
	if s.SkippedFiles > 0 {
		fmt.Fprintf(out, "Skipped:    %s files\n", humanize.Comma(s.SkippedFiles))
	}
	fmt.Fprintf(out, "Groups:     %d (%d files, %s wasted)\n", s.Groups, s.Duplicates, types.FormatSize(s.Wasted))
	if s.Errors > 0 {
		fmt.Fprintf(out, "Errors:     %d\n", s.Errors)
	}
	fmt.Fprintf(out, "Elapsed:    %s\n", s.Elapsed.Round(time.Millisecond))

	shown := 0
	for i, g := range entry.Groups {
		if shown >= maxShownFiles {
			fmt.Fprintf(out, "\n... and %d more groups\n", len(entry.Groups)-i)
			break
		}
		fmt.Fprintf(out, "\n%d files of %s  %s\n", len(g.Files), types.FormatSize(g.Size), types.Checksum(g.Checksum).Short())
		for _, path := range g.Files {
			fmt.Fprintf(out, "  %s\n", path)
			shown++
		}
	}

	return nil
}

// runHistoryClean removes old history entries.
func runHistoryClean(_ *cobra.Command, _ []string) error {
	m, err := getManifest()
	if err != nil {
		return fmt.Errorf("failed to initialize history: %w", err)
	}

	retentionDays := appConfig.History.RetentionDays
	if retentionDays <= 0 {
		retentionDays = config.DefaultRetentionDays
	}
	if historyAll {
		retentionDays = 0
		printInfo("Removing all history entries...")
	} else {
		printInfo("Cleaning history entries older than %d days...", retentionDays)
	}

	removed, err := m.Cleanup(retentionDays)
	if err != nil {
		return fmt.Errorf("failed to clean history: %w", err)
	}

	printInfo("Removed %d entries.", removed)
	return nil
}

// truncateString truncates a string to maxLen, adding "..." if truncated.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
