package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jamesainslie/dupfinder/pkg/dupfinder/logging"
)

var logger = logging.Get("manifest")

// ErrNotFound is returned by Get when no entry matches.
var ErrNotFound = errors.New("history entry not found")

// ErrAmbiguous is returned by Get when an ID prefix matches several entries.
var ErrAmbiguous = errors.New("history entry ID is ambiguous")

// Manifest manages run history in a directory.
type Manifest struct {
	dir string
	mu  sync.Mutex
}

// New creates a new Manifest with the given directory.
// The directory is not created until EnsureDir or Record is called.
func New(dir string) (*Manifest, error) {
	if dir == "" {
		return nil, errors.New("history directory cannot be empty")
	}
	return &Manifest{dir: dir}, nil
}

// Dir returns the history directory.
func (m *Manifest) Dir() string { return m.dir }

// EnsureDir creates the history directory if it does not exist.
func (m *Manifest) EnsureDir() error {
	return os.MkdirAll(m.dir, 0o755)
}

// Record assigns an ID and timestamp to entry and persists it.
func (m *Manifest) Record(entry *Entry) (*Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.EnsureDir(); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	entry.ID = uuid.NewString()
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	if entry.Groups == nil {
		entry.Groups = []GroupRecord{}
	}

	if err := m.writeEntry(entry); err != nil {
		return nil, fmt.Errorf("failed to write history entry: %w", err)
	}
	logger.Debug("run recorded", "id", entry.ID, "groups", len(entry.Groups))
	return entry, nil
}

// writeEntry writes an entry to a JSON file via a temp file and rename.
func (m *Manifest) writeEntry(entry *Entry) error {
	filePath := filepath.Join(m.dir, entryFilename(entry))

	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal entry: %w", err)
	}

	tmpPath := filePath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := os.Rename(tmpPath, filePath); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}

// entryFilename prefixes the ID with the timestamp so files sort by age.
func entryFilename(entry *Entry) string {
	return fmt.Sprintf("%s-%s.json", entry.Timestamp.UTC().Format("20060102T150405"), entry.ID)
}

// List returns entries newest first. If limit is 0 or negative, all entries
// are returned. Files that cannot be parsed are skipped.
func (m *Manifest) List(limit int) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries, err := m.readAll()
	if err != nil {
		return nil, err
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})

	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// Get retrieves an entry by full ID or unique ID prefix.
func (m *Manifest) Get(id string) (*Entry, error) {
	if id == "" {
		return nil, errors.New("entry ID cannot be empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	entries, err := m.readAll()
	if err != nil {
		return nil, err
	}

	var match *Entry
	for i := range entries {
		switch {
		case entries[i].ID == id:
			return &entries[i], nil
		case strings.HasPrefix(entries[i].ID, id):
			if match != nil {
				return nil, fmt.Errorf("%w: %s", ErrAmbiguous, id)
			}
			match = &entries[i]
		}
	}
	if match == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return match, nil
}

func (m *Manifest) readAll() ([]Entry, error) {
	files, err := os.ReadDir(m.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []Entry{}, nil
		}
		return nil, fmt.Errorf("failed to read history directory: %w", err)
	}

	entries := []Entry{}
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".json") {
			continue
		}

		entry, err := m.readEntryFile(f.Name())
		if err != nil {
			logger.Warn("skipping unreadable history entry", "file", f.Name(), "error", err)
			continue
		}
		entries = append(entries, *entry)
	}
	return entries, nil
}

func (m *Manifest) readEntryFile(filename string) (*Entry, error) {
	data, err := os.ReadFile(filepath.Join(m.dir, filename))
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal entry: %w", err)
	}
	return &entry, nil
}

// Cleanup removes entries whose files are older than retentionDays and
// returns how many were removed. A retention of zero removes everything.
func (m *Manifest) Cleanup(retentionDays int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().AddDate(0, 0, -retentionDays)

	files, err := os.ReadDir(m.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read history directory: %w", err)
	}

	removed := 0
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".json") {
			continue
		}

		info, err := f.Info()
		if err != nil {
			continue
		}

		if retentionDays == 0 || info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(m.dir, f.Name())); err != nil {
				logger.Warn("failed to remove history entry", "file", f.Name(), "error", err)
				continue
			}
			removed++
		}
	}

	return removed, nil
}
