package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jamesainslie/dupfinder/pkg/dupfinder/config"
	"github.com/jamesainslie/dupfinder/pkg/dupfinder/logging"
)

func TestInitializeLogging(t *testing.T) {
	dir := isolate(t)
	t.Cleanup(func() { _ = logging.Close() })

	if err := initializeLogging(nil, nil); err != nil {
		t.Fatalf("initializeLogging() returned error: %v", err)
	}
	if appConfig == nil {
		t.Fatal("appConfig was not loaded")
	}

	configDir, err := config.ConfigDir()
	if err != nil {
		t.Fatalf("failed to get config dir: %v", err)
	}
	if _, err := os.Stat(configDir); os.IsNotExist(err) {
		t.Errorf("config directory was not created: %s", configDir)
	}

	logger.Info("bootstrap test")
	if _, err := os.Stat(filepath.Join(dir, "state", "dupfinder.log")); err != nil {
		t.Errorf("log file was not created: %v", err)
	}
}

func TestInitializeLoggingInvalidConfig(t *testing.T) {
	isolate(t)
	t.Setenv("DUPFINDER_HASHING_ALGORITHM", "crc0")

	if err := initializeLogging(nil, nil); err == nil {
		t.Fatal("initializeLogging() should reject an unknown algorithm")
	}
}

func TestLoggingConfigLevels(t *testing.T) {
	isolate(t)
	cfg, err := config.Load("")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { verbose, quiet = false, false })

	tests := []struct {
		name        string
		verbose     bool
		quiet       bool
		tui         bool
		wantConsole string
		wantLevel   string
	}{
		{"default", false, false, false, "error", "info"},
		{"verbose", true, false, false, "debug", "debug"},
		{"quiet", false, true, false, "", "info"},
		{"tui", false, false, true, "error", "info"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verbose, quiet = tt.verbose, tt.quiet
			got, err := loggingConfig(cfg, tt.tui)
			if err != nil {
				t.Fatalf("loggingConfig() error = %v", err)
			}
			if got.ConsoleLevel != tt.wantConsole {
				t.Errorf("ConsoleLevel = %q, want %q", got.ConsoleLevel, tt.wantConsole)
			}
			if got.Level != tt.wantLevel {
				t.Errorf("Level = %q, want %q", got.Level, tt.wantLevel)
			}
			if got.TUIMode != tt.tui {
				t.Errorf("TUIMode = %v, want %v", got.TUIMode, tt.tui)
			}
		})
	}
}
