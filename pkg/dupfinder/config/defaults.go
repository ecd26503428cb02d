// Package config provides configuration management for dupfinder.
package config

import "github.com/jamesainslie/dupfinder/pkg/dupfinder/cache"

// Default configuration values for dupfinder.
const (
	// DefaultPath is the directory searched when none is given.
	DefaultPath = "."

	// DefaultMinSize skips empty files, which are trivially identical.
	DefaultMinSize = "1B"

	// DefaultBackend is the checksum cache backend.
	DefaultBackend = cache.BackendBadger

	// DefaultBufferSize lets the read buffer be sized from available memory.
	DefaultBufferSize = "auto"

	// DefaultRetentionDays is how long run history is kept.
	DefaultRetentionDays = 30

	// DefaultLogMaxSize is the log size that triggers rotation.
	DefaultLogMaxSize = "10MB"

	// AppName names the config, cache, data and state directories.
	AppName = "dupfinder"
)

// DefaultExclusions contains paths that should be excluded by default.
var DefaultExclusions = []string{
	"/proc",
	"/sys",
	"/dev",
	".git",
}

// DefaultComponents holds the per-component log levels.
var DefaultComponents = map[string]string{
	"engine": "info",
	"cache":  "info",
	"hasher": "info",
	"walker": "info",
	"cli":    "info",
}
