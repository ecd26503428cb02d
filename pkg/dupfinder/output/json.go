package output

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/jamesainslie/dupfinder/pkg/dupfinder/types"
)

// jsonOutput represents the full JSON output structure.
type jsonOutput struct {
	Groups  []jsonGroup `json:"groups"`
	Summary jsonSummary `json:"summary"`
	Meta    jsonMeta    `json:"meta"`
}

// jsonGroup represents one duplicate group.
type jsonGroup struct {
	Checksum  string     `json:"checksum"`
	Size      int64      `json:"size"`
	SizeHuman string     `json:"size_human"`
	Wasted    int64      `json:"wasted"`
	Files     []jsonFile `json:"files"`
}

// jsonFile represents a group member.
type jsonFile struct {
	Path    string    `json:"path"`
	ModTime time.Time `json:"mod_time,omitempty"`
}

// jsonSummary represents run counters.
type jsonSummary struct {
	State         string            `json:"state"`
	FilesSeen     int64             `json:"files_seen"`
	Candidates    int64             `json:"candidates"`
	FilesHashed   int64             `json:"files_hashed"`
	BytesSelected int64             `json:"bytes_selected"`
	BytesRead     int64             `json:"bytes_read"`
	CacheHits     int64             `json:"cache_hits"`
	CacheMisses   int64             `json:"cache_misses"`
	SkippedFiles  int64             `json:"skipped_files"`
	SkippedBytes  int64             `json:"skipped_bytes"`
	Duration      string            `json:"duration"`
	Errors        []types.FileError `json:"errors,omitempty"`
}

// jsonMeta represents metadata in JSON output.
type jsonMeta struct {
	Root        string `json:"root"`
	Limit       string `json:"limit,omitempty"`
	Algorithm   string `json:"algorithm,omitempty"`
	TotalGroups int    `json:"total_groups"`
	TotalFiles  int    `json:"total_files"`
	TotalWasted int64  `json:"total_wasted"`
	Interrupted bool   `json:"interrupted"`
}

func newJSONGroup(g types.DuplicateGroup) jsonGroup {
	files := make([]jsonFile, len(g.Files))
	for i, f := range g.Files {
		files[i] = jsonFile{Path: f.Path, ModTime: f.ModTime}
	}
	return jsonGroup{
		Checksum:  string(g.Checksum),
		Size:      g.Size,
		SizeHuman: types.FormatSize(g.Size),
		Wasted:    g.Wasted(),
		Files:     files,
	}
}

// JSONFormatter formats output as a single indented JSON object.
type JSONFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *JSONFormatter) Format(w *bytes.Buffer, r *Report) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(f.buildOutput(r))
}

func (f *JSONFormatter) buildOutput(r *Report) jsonOutput {
	groups := make([]jsonGroup, len(r.Groups))
	for i, g := range r.Groups {
		groups[i] = newJSONGroup(g)
	}

	s := r.Summary
	return jsonOutput{
		Groups: groups,
		Summary: jsonSummary{
			State:         s.State.String(),
			FilesSeen:     s.FilesSeen,
			Candidates:    s.Candidates,
			FilesHashed:   s.FilesHashed,
			BytesSelected: s.BytesSelected,
			BytesRead:     s.BytesRead,
			CacheHits:     s.CacheHits,
			CacheMisses:   s.CacheMisses,
			SkippedFiles:  s.SkippedFiles,
			SkippedBytes:  s.SkippedBytes,
			Duration:      formatDurationString(s.Elapsed),
			Errors:        s.Errors,
		},
		Meta: jsonMeta{
			Root:        r.Root,
			Limit:       r.Limit,
			Algorithm:   r.Algorithm,
			TotalGroups: len(r.Groups),
			TotalFiles:  r.Files(),
			TotalWasted: r.Wasted(),
			Interrupted: r.Interrupted,
		},
	}
}

// formatDurationString formats a duration as a string for JSON output.
func formatDurationString(d time.Duration) string {
	if d == 0 {
		return ""
	}
	return d.String()
}

func init() {
	Register("json", func() Formatter {
		return &JSONFormatter{}
	})
}

// Ensure JSONFormatter implements Formatter.
var _ Formatter = (*JSONFormatter)(nil)

// JSONLFormatter formats output as newline-delimited JSON, one compact
// object per duplicate group. Suitable for streaming into jq.
type JSONLFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *JSONLFormatter) Format(w *bytes.Buffer, r *Report) error {
	for _, g := range r.Groups {
		data, err := json.Marshal(newJSONGroup(g))
		if err != nil {
			return err
		}
		w.Write(data)
		w.WriteByte('\n')
	}
	return nil
}

func init() {
	Register("jsonl", func() Formatter {
		return &JSONLFormatter{}
	})
}

// Ensure JSONLFormatter implements Formatter.
var _ Formatter = (*JSONLFormatter)(nil)
