package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"
)

// RotationConfig configures log file rotation.
type RotationConfig struct {
	// MaxSize is the size in bytes that triggers rotation. Zero uses 10 MiB.
	MaxSize int64

	// MaxAge is the number of days rotated files are kept. Zero keeps them.
	MaxAge int

	// MaxBackups is the number of rotated files kept. Zero keeps them all.
	MaxBackups int

	// Daily rotates the first write after midnight.
	Daily bool
}

// DefaultRotationConfig returns the default rotation settings.
func DefaultRotationConfig() RotationConfig {
	return RotationConfig{
		MaxSize:    10 << 20,
		MaxAge:     30,
		MaxBackups: 5,
		Daily:      true,
	}
}

// RotatingWriter is an io.WriteCloser that rotates its file by size or day.
// Writes take an advisory file lock so several dupfinder processes can share
// one log.
type RotatingWriter struct {
	mu      sync.Mutex
	path    string
	cfg     RotationConfig
	file    *os.File
	size    int64
	opened  time.Time
	nowFunc func() time.Time
}

// NewRotatingWriter opens path for appending, creating parent directories.
func NewRotatingWriter(path string, cfg RotationConfig) (*RotatingWriter, error) {
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = DefaultRotationConfig().MaxSize
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}

	w := &RotatingWriter{path: path, cfg: cfg, nowFunc: time.Now}
	if err := w.open(); err != nil {
		return nil, err
	}
	w.prune()
	return w, nil
}

// Write appends p, rotating first when needed.
func (w *RotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return 0, os.ErrClosed
	}
	if w.due(int64(len(p))) {
		if err := w.rotate(); err != nil {
			return 0, fmt.Errorf("rotating log file: %w", err)
		}
	}

	if err := lockFile(w.file); err != nil {
		return 0, fmt.Errorf("acquiring file lock: %w", err)
	}
	defer unlockFile(w.file)

	n, err := w.file.Write(p)
	w.size += int64(n)
	if err != nil {
		return n, fmt.Errorf("writing to log file: %w", err)
	}
	return n, nil
}

// Close syncs and closes the current file.
func (w *RotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return nil
	}
	syncErr := w.file.Sync()
	closeErr := w.file.Close()
	w.file = nil
	if syncErr != nil {
		return fmt.Errorf("syncing log file: %w", syncErr)
	}
	return closeErr
}

func (w *RotatingWriter) open() error {
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("stat log file: %w", err)
	}
	w.file = f
	w.size = info.Size()
	w.opened = info.ModTime()
	if w.size == 0 {
		w.opened = w.nowFunc()
	}
	return nil
}

func (w *RotatingWriter) due(incoming int64) bool {
	if w.size > 0 && w.size+incoming > w.cfg.MaxSize {
		return true
	}
	if !w.cfg.Daily {
		return false
	}
	now := w.nowFunc()
	y1, m1, d1 := now.Date()
	y2, m2, d2 := w.opened.Date()
	return y1 != y2 || m1 != m2 || d1 != d2
}

// backupName returns the rotated name for the current file, e.g.
// dupfinder.2026-01-20T150405.log.
func (w *RotatingWriter) backupName() string {
	ext := filepath.Ext(w.path)
	base := strings.TrimSuffix(w.path, ext)
	return fmt.Sprintf("%s.%s%s", base, w.nowFunc().Format("2006-01-02T150405.000"), ext)
}

func (w *RotatingWriter) rotate() error {
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("closing current file: %w", err)
	}
	w.file = nil

	if err := os.Rename(w.path, w.backupName()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("renaming log file: %w", err)
	}
	if err := w.open(); err != nil {
		return err
	}
	w.opened = w.nowFunc()
	w.prune()
	return nil
}

// Backups returns rotated files for this writer, newest first.
func (w *RotatingWriter) Backups() []string {
	dir := filepath.Dir(w.path)
	name := filepath.Base(w.path)
	ext := filepath.Ext(name)
	prefix := strings.TrimSuffix(name, ext) + "."

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	type backup struct {
		path string
		mod  time.Time
	}
	var found []backup
	for _, e := range entries {
		n := e.Name()
		if e.IsDir() || n == name || !strings.HasPrefix(n, prefix) || !strings.HasSuffix(n, ext) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		found = append(found, backup{path: filepath.Join(dir, n), mod: info.ModTime()})
	}

	slices.SortFunc(found, func(a, b backup) int { return b.mod.Compare(a.mod) })

	paths := make([]string, len(found))
	for i, b := range found {
		paths[i] = b.path
	}
	return paths
}

func (w *RotatingWriter) prune() {
	now := w.nowFunc()
	maxAge := time.Duration(w.cfg.MaxAge) * 24 * time.Hour

	for i, path := range w.Backups() {
		remove := w.cfg.MaxBackups > 0 && i >= w.cfg.MaxBackups
		if !remove && w.cfg.MaxAge > 0 {
			if info, err := os.Stat(path); err == nil && now.Sub(info.ModTime()) > maxAge {
				remove = true
			}
		}
		if remove {
			_ = os.Remove(path)
		}
	}
}
