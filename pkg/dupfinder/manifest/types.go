// Package manifest keeps a history of duplicate searches on the filesystem,
// one JSON document per run.
package manifest

import (
	"time"

	"github.com/jamesainslie/dupfinder/pkg/dupfinder/types"
)

// Entry records one run.
type Entry struct {
	ID        string        `json:"id"`
	Timestamp time.Time     `json:"timestamp"`
	Root      string        `json:"root"`
	Limit     string        `json:"limit,omitempty"`
	Algorithm string        `json:"algorithm,omitempty"`
	Groups    []GroupRecord `json:"groups"`
	Summary   Summary       `json:"summary"`
}

// GroupRecord is a duplicate group as stored in history.
type GroupRecord struct {
	Checksum string   `json:"checksum"`
	Size     int64    `json:"size"`
	Files    []string `json:"files"`
}

// Summary contains the run counters worth keeping.
type Summary struct {
	State         string        `json:"state"`
	FilesSeen     int64         `json:"files_seen"`
	FilesHashed   int64         `json:"files_hashed"`
	BytesSelected int64         `json:"bytes_selected"`
	CacheHits     int64         `json:"cache_hits"`
	SkippedFiles  int64         `json:"skipped_files"`
	Groups        int           `json:"groups"`
	Duplicates    int           `json:"duplicates"`
	Wasted        int64         `json:"wasted"`
	Errors        int           `json:"errors"`
	Elapsed       time.Duration `json:"elapsed"`
}

// NewEntry builds an unsaved entry from a finished run.
func NewEntry(root, limit, algorithm string, groups []types.DuplicateGroup, s types.Summary) *Entry {
	records := make([]GroupRecord, len(groups))
	for i, g := range groups {
		records[i] = GroupRecord{
			Checksum: string(g.Checksum),
			Size:     g.Size,
			Files:    g.Paths(),
		}
	}

	return &Entry{
		Root:      root,
		Limit:     limit,
		Algorithm: algorithm,
		Groups:    records,
		Summary: Summary{
			State:         s.State.String(),
			FilesSeen:     s.FilesSeen,
			FilesHashed:   s.FilesHashed,
			BytesSelected: s.BytesSelected,
			CacheHits:     s.CacheHits,
			SkippedFiles:  s.SkippedFiles,
			Groups:        s.Groups,
			Duplicates:    s.Duplicates,
			Wasted:        s.Wasted,
			Errors:        len(s.Errors),
			Elapsed:       s.Elapsed,
		},
	}
}

// ShortID returns the first block of the entry ID.
func (e *Entry) ShortID() string {
	if len(e.ID) > 8 {
		return e.ID[:8]
	}
	return e.ID
}
