package types

import (
	"errors"
	"fmt"
)

// Stage names the step of a run a per-file error occurred in.
type Stage string

// Stages recorded on FileError.
const (
	StageWalk  Stage = "walk"
	StageHash  Stage = "hash"
	StageCache Stage = "cache"
)

// FileError pairs a path with the failure encountered while processing it.
type FileError struct {
	Path  string `json:"path" yaml:"path"`
	Stage Stage  `json:"stage" yaml:"stage"`
	Err   string `json:"error" yaml:"error"`
}

// Error implements error.
func (e FileError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Stage, e.Path, e.Err)
}

// ReadError is returned by the hasher when a file cannot be opened or
// becomes unreadable mid-stream.
type ReadError struct {
	Path string
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("read %s: %v", e.Path, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// CacheCorruptionError reports a cache record that could not be decoded.
// Callers treat it as a miss.
type CacheCorruptionError struct {
	Key string
	Err error
}

func (e *CacheCorruptionError) Error() string {
	return fmt.Sprintf("corrupt cache entry %q: %v", e.Key, e.Err)
}

func (e *CacheCorruptionError) Unwrap() error { return e.Err }

// ConfigurationError reports an invalid or contradictory limit setting.
// It is always returned before any scanning begins.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return "invalid configuration: " + e.Reason
	}
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

// IsConfigurationError reports whether err wraps a ConfigurationError.
func IsConfigurationError(err error) bool {
	var cfgErr *ConfigurationError
	return errors.As(err, &cfgErr)
}
