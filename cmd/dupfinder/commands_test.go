package main

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestVersionCommand(t *testing.T) {
	isolate(t)

	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version error = %v", err)
	}
	if !strings.HasPrefix(out, "dupfinder dev") {
		t.Errorf("version output = %q", out)
	}
}

func TestConfigShowCommand(t *testing.T) {
	isolate(t)
	t.Setenv("DUPFINDER_LIMITS_AT_LEAST", "4")

	out, err := execute(t, "config", "show")
	if err != nil {
		t.Fatalf("config show error = %v", err)
	}
	for _, want := range []string{"using defaults", "at_least: 4", "DUPFINDER_LIMITS_AT_LEAST=4", "algorithm:"} {
		if !strings.Contains(out, want) {
			t.Errorf("config show output missing %q:\n%s", want, out)
		}
	}
}

func TestConfigInitAndPath(t *testing.T) {
	dir := isolate(t)

	if _, err := execute(t, "config", "init"); err != nil {
		t.Fatalf("config init error = %v", err)
	}

	out, err := execute(t, "config", "path")
	if err != nil {
		t.Fatalf("config path error = %v", err)
	}
	want := filepath.Join(dir, "config", "dupfinder", "config.yaml")
	if strings.TrimSpace(out) != want {
		t.Errorf("config path = %q, want %q", strings.TrimSpace(out), want)
	}
}

func TestCachePathCommand(t *testing.T) {
	isolate(t)

	out, err := execute(t, "cache", "path")
	if err != nil {
		t.Fatalf("cache path error = %v", err)
	}
	if strings.TrimSpace(out) != "(in memory)" {
		t.Errorf("cache path = %q", out)
	}
}

func TestHistoryCommands(t *testing.T) {
	isolate(t)
	root := sampleTree(t)

	for range 2 {
		if _, err := execute(t, "-n", "-o", "json", root); err != nil {
			t.Fatalf("scan error = %v", err)
		}
	}

	out, err := execute(t, "history")
	if err != nil {
		t.Fatalf("history error = %v", err)
	}
	if strings.Count(out, "done") != 2 {
		t.Errorf("history should list two finished searches:\n%s", out)
	}

	m, err := getManifest()
	if err != nil {
		t.Fatal(err)
	}
	entries, err := m.List(1)
	if err != nil || len(entries) != 1 {
		t.Fatalf("List() = %v, %v", entries, err)
	}

	out, err = execute(t, "history", "show", entries[0].ShortID())
	if err != nil {
		t.Fatalf("history show error = %v", err)
	}
	if !strings.Contains(out, entries[0].ID) || !strings.Contains(out, filepath.Join(root, "a.txt")) {
		t.Errorf("history show output:\n%s", out)
	}

	if _, err := execute(t, "history", "show", "zzzz"); err == nil {
		t.Error("history show with unknown id should fail")
	}

	if _, err := execute(t, "history", "clean", "--all"); err != nil {
		t.Fatalf("history clean error = %v", err)
	}
	entries, _ = m.List(0)
	if len(entries) != 0 {
		t.Errorf("history clean --all left %d entries", len(entries))
	}
}

func TestTruncateString(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"this is too long", 10, "this is..."},
		{"abc", 2, "ab"},
	}
	for _, tt := range tests {
		if got := truncateString(tt.in, tt.max); got != tt.want {
			t.Errorf("truncateString(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}
