package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jamesainslie/dupfinder/pkg/dupfinder/cache"
	"github.com/jamesainslie/dupfinder/pkg/dupfinder/config"
	"github.com/jamesainslie/dupfinder/pkg/dupfinder/limit"
)

type jsonReport struct {
	Groups []struct {
		Checksum string `json:"checksum"`
		Size     int64  `json:"size"`
		Files    []struct {
			Path string `json:"path"`
		} `json:"files"`
	} `json:"groups"`
	Summary struct {
		State       string `json:"state"`
		FilesSeen   int64  `json:"files_seen"`
		FilesHashed int64  `json:"files_hashed"`
	} `json:"summary"`
}

func sampleTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"a.txt":        "hello world",
		"nested/b.txt": "hello world",
		"c.txt":        "hello there",
		"unique.txt":   "nothing else is this long",
		"big/x.bin":    strings.Repeat("x", 4096),
		"big/y.bin":    strings.Repeat("x", 4096),
	})
	return root
}

func TestRunScan_JSON(t *testing.T) {
	dir := isolate(t)
	root := sampleTree(t)

	out, err := execute(t, "-n", "-o", "json", root)
	if err != nil {
		t.Fatalf("execute() error = %v", err)
	}

	var report jsonReport
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if len(report.Groups) != 2 {
		t.Fatalf("got %d groups, want 2", len(report.Groups))
	}
	if report.Groups[0].Size != 4096 {
		t.Errorf("first group size = %d, want the larger group first", report.Groups[0].Size)
	}
	small := report.Groups[1]
	if len(small.Files) != 2 ||
		small.Files[0].Path != filepath.Join(root, "a.txt") ||
		small.Files[1].Path != filepath.Join(root, "nested", "b.txt") {
		t.Errorf("small group files = %+v", small.Files)
	}
	if report.Summary.State != "done" {
		t.Errorf("state = %q, want done", report.Summary.State)
	}
	if report.Summary.FilesSeen != 6 {
		t.Errorf("files_seen = %d, want 6", report.Summary.FilesSeen)
	}
	if report.Summary.FilesHashed != 5 {
		t.Errorf("files_hashed = %d, want 5 (unique size never hashed)", report.Summary.FilesHashed)
	}

	history, _ := filepath.Glob(filepath.Join(dir, "history", "*.json"))
	if len(history) != 1 {
		t.Errorf("history entries = %d, want 1", len(history))
	}
}

func TestRunScan_AtLeastStopsEarly(t *testing.T) {
	isolate(t)
	root := sampleTree(t)

	out, err := execute(t, "-n", "-o", "json", "--at-least", "1", root)
	if err != nil {
		t.Fatalf("execute() error = %v", err)
	}

	var report jsonReport
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if len(report.Groups) < 1 {
		t.Errorf("got %d groups, want at least 1", len(report.Groups))
	}
}

func TestRunScan_ZeroBudgetHashesNothing(t *testing.T) {
	isolate(t)
	root := sampleTree(t)

	for _, size := range []string{"0", "0k"} {
		out, err := execute(t, "-n", "-o", "json", "--max-size", size, root)
		if err != nil {
			t.Fatalf("--max-size %s: execute() error = %v", size, err)
		}

		var report jsonReport
		if err := json.Unmarshal([]byte(out), &report); err != nil {
			t.Fatalf("output is not JSON: %v", err)
		}
		if report.Summary.FilesHashed != 0 {
			t.Errorf("--max-size %s: files_hashed = %d, want 0", size, report.Summary.FilesHashed)
		}
		if len(report.Groups) != 0 {
			t.Errorf("--max-size %s: got %d groups, want 0", size, len(report.Groups))
		}
		if report.Summary.State != "halted" {
			t.Errorf("--max-size %s: state = %q, want halted", size, report.Summary.State)
		}
	}
}

func TestRunScan_Paths(t *testing.T) {
	isolate(t)
	root := sampleTree(t)

	out, err := execute(t, "-n", "-o", "paths", "--exclude", "big", root)
	if err != nil {
		t.Fatalf("execute() error = %v", err)
	}
	want := filepath.Join(root, "a.txt") + "\n" + filepath.Join(root, "nested", "b.txt") + "\n"
	if out != want {
		t.Errorf("output = %q, want %q", out, want)
	}
}

func TestRunScan_SQLiteCacheReused(t *testing.T) {
	dir := isolate(t)
	t.Setenv("DUPFINDER_CACHE_BACKEND", "sqlite")
	t.Setenv("DUPFINDER_CACHE_PATH", filepath.Join(dir, "cache", "checksums.db"))
	root := sampleTree(t)

	for i := range 2 {
		if _, err := execute(t, "-n", "-o", "json", root); err != nil {
			t.Fatalf("run %d: execute() error = %v", i, err)
		}
	}

	out, err := execute(t, "cache", "stats", "--json")
	if err != nil {
		t.Fatalf("cache stats error = %v", err)
	}
	var stats struct {
		Backend string `json:"backend"`
		Entries int    `json:"entries"`
	}
	if err := json.Unmarshal([]byte(out), &stats); err != nil {
		t.Fatalf("stats output is not JSON: %v\n%s", err, out)
	}
	if stats.Backend != cache.BackendSQLite || stats.Entries != 5 {
		t.Errorf("stats = %+v, want 5 sqlite entries", stats)
	}

	if _, err := execute(t, "cache", "clear"); err != nil {
		t.Fatalf("cache clear error = %v", err)
	}
	out, _ = execute(t, "cache", "stats", "--json")
	if !strings.Contains(out, `"entries": 0`) {
		t.Errorf("cache not cleared: %s", out)
	}
}

func TestRunScan_FlagErrors(t *testing.T) {
	isolate(t)
	root := sampleTree(t)

	tests := []struct {
		name string
		args []string
	}{
		{"both limits", []string{"-n", "--at-least", "2", "--max-size", "1G", root}},
		{"template without text", []string{"-n", "-o", "template", root}},
		{"unknown format", []string{"-n", "-o", "xml", root}},
		{"bad algorithm", []string{"-n", "--algorithm", "crc0", root}},
		{"missing root", []string{"-n", filepath.Join(root, "missing")}},
		{"root is a file", []string{"-n", filepath.Join(root, "a.txt")}},
		{"reset and no cache", []string{"-n", "--reset-cache", "--no-cache", root}},
		{"zero group target", []string{"-n", "--at-least", "0", root}},
		{"zero budget with target", []string{"-n", "--at-least", "0", "--max-size", "0", root}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := execute(t, tt.args...); err == nil {
				t.Errorf("execute(%v) should fail", tt.args)
			}
		})
	}
}

func TestResolveSettings(t *testing.T) {
	isolate(t)
	root := t.TempDir()
	t.Setenv("DUPFINDER_LIMITS_MAX_SIZE", "10M")
	t.Setenv("DUPFINDER_HASHING_WORKERS", "3")

	cfg, err := config.Load("")
	if err != nil {
		t.Fatal(err)
	}
	s, err := resolveSettings(cfg, []string{root})
	if err != nil {
		t.Fatalf("resolveSettings() error = %v", err)
	}

	if s.Root != root {
		t.Errorf("Root = %q, want %q", s.Root, root)
	}
	if s.Limit.Kind() != limit.KindBudget || s.Limit.Value() != 10<<20 {
		t.Errorf("Limit = %v, want a 10 MiB budget", s.Limit)
	}
	if s.HashWorkers != 3 {
		t.Errorf("HashWorkers = %d, want 3", s.HashWorkers)
	}
	if s.WalkWorkers < 1 || s.BufferSize < 1 {
		t.Errorf("tuned values not set: %+v", s)
	}
	if s.MinSize != 1 {
		t.Errorf("MinSize = %d, want 1", s.MinSize)
	}
	if s.CacheBackend != cache.BackendMemory || !s.CacheEnabled {
		t.Errorf("cache = %q enabled=%v", s.CacheBackend, s.CacheEnabled)
	}
}

func TestSelectFormatter(t *testing.T) {
	if _, err := selectFormatter("", ""); err != nil {
		t.Errorf("default format error = %v", err)
	}
	if _, err := selectFormatter("template", "{{.Root}}"); err != nil {
		t.Errorf("template error = %v", err)
	}
	if _, err := selectFormatter("template", ""); err == nil {
		t.Error("template without text should fail")
	}
	if _, err := selectFormatter("csv", ""); err == nil {
		t.Error("unknown format should fail")
	}
}

func TestUseTUI(t *testing.T) {
	t.Cleanup(func() { noInteractive = false })

	if useTUI("", &strings.Builder{}) {
		t.Error("non-terminal writer should not use the TUI")
	}
	if useTUI("json", os.Stdout) {
		t.Error("json output should not use the TUI")
	}
	noInteractive = true
	if useTUI("", os.Stdout) {
		t.Error("--no-interactive should disable the TUI")
	}
}
