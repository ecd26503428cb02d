// Package logging provides component loggers for dupfinder backed by
// charmbracelet/log, writing to a rotating file and optionally to stderr.
//
// Packages declare their logger once:
//
//	var logger = logging.Get("engine")
//
// and the CLI calls Init after loading configuration. Loggers obtained
// before Init are silent and pick up the configured sinks afterwards.
package logging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/adrg/xdg"
	"github.com/charmbracelet/log"
)

// Level represents a logging level.
type Level int

// Log levels from least to most severe.
const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String returns the string representation of the level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "unknown"
	}
}

func (l Level) charm() log.Level {
	switch l {
	case LevelDebug:
		return log.DebugLevel
	case LevelWarn:
		return log.WarnLevel
	case LevelError:
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

// ErrInvalidLevel is returned when an invalid log level string is provided.
var ErrInvalidLevel = errors.New("invalid log level")

// ParseLevel parses a string into a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("%w: %s", ErrInvalidLevel, s)
	}
}

// Config configures the logging system.
type Config struct {
	// Level is the default file log level.
	Level string

	// Path is the log file path. Empty uses DefaultLogPath().
	Path string

	// Rotation configures log file rotation.
	Rotation RotationConfig

	// Components overrides the level per component name.
	Components map[string]string

	// ConsoleLevel mirrors records at or above this level to stderr.
	// Empty disables console output.
	ConsoleLevel string

	// TUIMode suppresses console output and keeps recent records in
	// memory for the progress screen.
	TUIMode bool
}

// Entry is a single record kept for the progress screen.
type Entry struct {
	Time      time.Time
	Level     Level
	Component string
	Message   string
}

// Logger is a component logger. It is cheap to copy and safe for
// concurrent use.
type Logger struct {
	component string
	fields    []any
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string, args ...any) { l.log(LevelDebug, msg, args) }

// Info logs an info message.
func (l *Logger) Info(msg string, args ...any) { l.log(LevelInfo, msg, args) }

// Warn logs a warning message.
func (l *Logger) Warn(msg string, args ...any) { l.log(LevelWarn, msg, args) }

// Error logs an error message.
func (l *Logger) Error(msg string, args ...any) { l.log(LevelError, msg, args) }

// With returns a logger that prefixes every record with args.
func (l *Logger) With(args ...any) *Logger {
	fields := make([]any, 0, len(l.fields)+len(args))
	fields = append(fields, l.fields...)
	fields = append(fields, args...)
	return &Logger{component: l.component, fields: fields}
}

// Component returns the component name.
func (l *Logger) Component() string { return l.component }

func (l *Logger) log(level Level, msg string, args []any) {
	if len(l.fields) > 0 {
		args = append(append([]any{}, l.fields...), args...)
	}

	s := global.sinks(l.component)
	emit(s.file, level, msg, args)
	if s.console != nil {
		emit(s.console, level, msg, args)
	}

	if level >= LevelWarn {
		global.remember(Entry{Time: time.Now(), Level: level, Component: l.component, Message: msg})
	}
}

func emit(dst *log.Logger, level Level, msg string, args []any) {
	switch level {
	case LevelDebug:
		dst.Debug(msg, args...)
	case LevelInfo:
		dst.Info(msg, args...)
	case LevelWarn:
		dst.Warn(msg, args...)
	case LevelError:
		dst.Error(msg, args...)
	}
}

type sinkSet struct {
	file    *log.Logger
	console *log.Logger
}

type state struct {
	mu         sync.RWMutex
	ready      bool
	writer     *RotatingWriter
	level      Level
	components map[string]Level
	console    bool
	consoleLvl Level
	recent     *Ring

	sinkCache map[string]*sinkSet
	loggers   map[string]*Logger
}

var global = &state{
	components: make(map[string]Level),
	sinkCache:  make(map[string]*sinkSet),
	loggers:    make(map[string]*Logger),
}

// Init configures the file and console sinks. It may be called again to
// reconfigure; existing loggers follow the new configuration.
func Init(cfg Config) error {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return fmt.Errorf("parsing log level: %w", err)
	}

	components := make(map[string]Level, len(cfg.Components))
	for comp, lvl := range cfg.Components {
		parsed, err := ParseLevel(lvl)
		if err != nil {
			return fmt.Errorf("parsing level for component %s: %w", comp, err)
		}
		components[comp] = parsed
	}

	var consoleLvl Level
	console := cfg.ConsoleLevel != "" && !cfg.TUIMode
	if console {
		if consoleLvl, err = ParseLevel(cfg.ConsoleLevel); err != nil {
			return fmt.Errorf("parsing console level: %w", err)
		}
	}

	path := cfg.Path
	if path == "" {
		path = DefaultLogPath()
	}
	writer, err := NewRotatingWriter(path, cfg.Rotation)
	if err != nil {
		return fmt.Errorf("creating log writer: %w", err)
	}

	global.mu.Lock()
	defer global.mu.Unlock()

	if global.writer != nil {
		_ = global.writer.Close()
	}
	global.writer = writer
	global.level = level
	global.components = components
	global.console = console
	global.consoleLvl = consoleLvl
	global.recent = nil
	if cfg.TUIMode {
		global.recent = NewRing(DefaultRingSize)
	}
	global.sinkCache = make(map[string]*sinkSet)
	global.ready = true

	return nil
}

// Get returns the logger for component.
func Get(component string) *Logger {
	global.mu.RLock()
	l, ok := global.loggers[component]
	global.mu.RUnlock()
	if ok {
		return l
	}

	global.mu.Lock()
	defer global.mu.Unlock()
	if l, ok := global.loggers[component]; ok {
		return l
	}
	l = &Logger{component: component}
	global.loggers[component] = l
	return l
}

func (s *state) sinks(component string) *sinkSet {
	s.mu.RLock()
	set, ok := s.sinkCache[component]
	s.mu.RUnlock()
	if ok {
		return set
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if set, ok := s.sinkCache[component]; ok {
		return set
	}
	set = s.build(component)
	s.sinkCache[component] = set
	return set
}

// build must be called with s.mu held.
func (s *state) build(component string) *sinkSet {
	level := s.level
	if lvl, ok := s.components[component]; ok {
		level = lvl
	}

	if !s.ready {
		return &sinkSet{file: log.NewWithOptions(io.Discard, log.Options{Level: level.charm(), Prefix: component})}
	}

	set := &sinkSet{
		file: log.NewWithOptions(s.writer, log.Options{
			Level:           level.charm(),
			ReportTimestamp: true,
			TimeFormat:      time.RFC3339,
			Prefix:          component,
		}),
	}
	if s.console {
		set.console = log.NewWithOptions(os.Stderr, log.Options{
			Level:           s.consoleLvl.charm(),
			ReportTimestamp: true,
			TimeFormat:      "15:04:05",
			Prefix:          component,
		})
	}
	return set
}

func (s *state) remember(e Entry) {
	s.mu.RLock()
	ring := s.recent
	s.mu.RUnlock()
	if ring != nil {
		ring.Add(e)
	}
}

// Recent returns the ring of recent warnings and errors, or nil outside
// TUI mode.
func Recent() *Ring {
	global.mu.RLock()
	defer global.mu.RUnlock()
	return global.recent
}

// Close flushes and closes the log file. Loggers become silent again.
func Close() error {
	global.mu.Lock()
	defer global.mu.Unlock()

	if !global.ready {
		return nil
	}
	global.ready = false
	global.sinkCache = make(map[string]*sinkSet)
	global.recent = nil

	if global.writer != nil {
		err := global.writer.Close()
		global.writer = nil
		if err != nil {
			return fmt.Errorf("closing log writer: %w", err)
		}
	}
	return nil
}

// DefaultLogPath returns $XDG_STATE_HOME/dupfinder/dupfinder.log.
func DefaultLogPath() string {
	return filepath.Join(xdg.StateHome, "dupfinder", "dupfinder.log")
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Level:    "info",
		Path:     DefaultLogPath(),
		Rotation: DefaultRotationConfig(),
	}
}
