// Package types provides the core data types shared by the dupfinder
// packages: file snapshots produced by the walker, checksums, duplicate
// groups and the run summary, along with helpers for parsing and
// formatting file sizes.
package types

import (
	"fmt"
	"time"
)

// Identity identifies a file independently of the path it was reached by.
// Device and Inode are zero on platforms that do not expose them.
type Identity struct {
	Device uint64 `json:"device,omitempty" yaml:"device,omitempty"`
	Inode  uint64 `json:"inode,omitempty" yaml:"inode,omitempty"`
	Path   string `json:"path" yaml:"path"`
}

// Key returns the string used to index the identity in the checksum cache.
// Device and inode are preferred so renamed files keep their entry.
func (id Identity) Key() string {
	if id.Inode != 0 {
		return fmt.Sprintf("i:%d:%d", id.Device, id.Inode)
	}
	return "p:" + id.Path
}

// FileEntry is an immutable snapshot of a regular file supplied by the walker.
type FileEntry struct {
	// Path is the absolute path to the file.
	Path string `json:"path" yaml:"path"`

	// Size is the file size in bytes.
	Size int64 `json:"size" yaml:"size"`

	// ModTime is the last modification time of the file.
	ModTime time.Time `json:"mod_time" yaml:"mod_time"`

	// Identity is the device/inode pair (or path) of the file.
	Identity Identity `json:"-" yaml:"-"`
}

// HumanSize returns the file size formatted as a human-readable string.
func (f FileEntry) HumanSize() string {
	return FormatSize(f.Size)
}

// Signature is the cheap, collision-prone key used to bucket files before
// committing to a full hash.
type Signature int64

// SignatureOf returns the signature of a file entry: its size.
func SignatureOf(f FileEntry) Signature {
	return Signature(f.Size)
}

// Checksum is a full-content digest rendered as "<algorithm>:<hex>".
// Checksums from different algorithms never compare equal.
type Checksum string

// NewChecksum formats a raw digest for the named algorithm.
func NewChecksum(algorithm string, digest []byte) Checksum {
	return Checksum(fmt.Sprintf("%s:%x", algorithm, digest))
}

// Algorithm returns the algorithm prefix of the checksum.
func (c Checksum) Algorithm() string {
	for i := 0; i < len(c); i++ {
		if c[i] == ':' {
			return string(c[:i])
		}
	}
	return ""
}

// Short returns an abbreviated form of the checksum for display.
func (c Checksum) Short() string {
	hex := string(c)
	if alg := c.Algorithm(); alg != "" {
		hex = hex[len(alg)+1:]
	}
	if len(hex) > 12 {
		hex = hex[:12]
	}
	return hex
}

// DuplicateGroup is a sealed set of at least two files sharing one checksum.
type DuplicateGroup struct {
	// Checksum is the content digest shared by every member.
	Checksum Checksum `json:"checksum" yaml:"checksum"`

	// Size is the size in bytes of each member.
	Size int64 `json:"size" yaml:"size"`

	// Files are the members ordered by path.
	Files []FileEntry `json:"files" yaml:"files"`
}

// Paths returns the member paths of the group.
func (g DuplicateGroup) Paths() []string {
	paths := make([]string, len(g.Files))
	for i, f := range g.Files {
		paths[i] = f.Path
	}
	return paths
}

// Wasted returns the bytes that could be reclaimed by keeping a single copy.
func (g DuplicateGroup) Wasted() int64 {
	if len(g.Files) < 2 {
		return 0
	}
	return g.Size * int64(len(g.Files)-1)
}

// State is a state of the duplicate engine.
type State int

// Engine states. Halted and Done are terminal.
const (
	StateScanning State = iota
	StateEvaluating
	StateHashing
	StateGrouping
	StateHalted
	StateDone
)

var stateNames = map[State]string{
	StateScanning:   "scanning",
	StateEvaluating: "evaluating",
	StateHashing:    "hashing",
	StateGrouping:   "grouping",
	StateHalted:     "halted",
	StateDone:       "done",
}

// String returns the lowercase state name.
func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == StateHalted || s == StateDone
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Summary describes a finished engine run.
type Summary struct {
	// State is the terminal state the run ended in.
	State State `json:"state" yaml:"state"`

	// FilesSeen is the number of entries pulled from the walker before the
	// run halted or completed.
	FilesSeen int64 `json:"files_seen" yaml:"files_seen"`

	// BytesSeen is the total size of FilesSeen.
	BytesSeen int64 `json:"bytes_seen" yaml:"bytes_seen"`

	// Candidates is the number of files promoted for hashing.
	Candidates int64 `json:"candidates" yaml:"candidates"`

	// FilesHashed is the number of checksums obtained, from cache or hasher.
	FilesHashed int64 `json:"files_hashed" yaml:"files_hashed"`

	// BytesSelected is the total size of files selected for hashing.
	BytesSelected int64 `json:"bytes_selected" yaml:"bytes_selected"`

	// BytesRead is the number of content bytes actually read by the hasher.
	BytesRead int64 `json:"bytes_read" yaml:"bytes_read"`

	// CacheHits and CacheMisses count checksum cache lookups.
	CacheHits   int64 `json:"cache_hits" yaml:"cache_hits"`
	CacheMisses int64 `json:"cache_misses" yaml:"cache_misses"`

	// Unique is the number of files never hashed because no other file
	// shared their signature.
	Unique int64 `json:"unique" yaml:"unique"`

	// SkippedFiles and SkippedBytes count files the run chose not to
	// examine because a limit stopped it.
	SkippedFiles int64 `json:"skipped_files" yaml:"skipped_files"`
	SkippedBytes int64 `json:"skipped_bytes" yaml:"skipped_bytes"`

	// Groups is the number of duplicate groups emitted.
	Groups int `json:"groups" yaml:"groups"`

	// Duplicates is the number of files across all groups.
	Duplicates int `json:"duplicates" yaml:"duplicates"`

	// Wasted is the reclaimable size across all groups.
	Wasted int64 `json:"wasted" yaml:"wasted"`

	// Errors are the per-file failures encountered during the run.
	Errors []FileError `json:"errors,omitempty" yaml:"errors,omitempty"`

	// Elapsed is the wall-clock duration of the run.
	Elapsed time.Duration `json:"elapsed" yaml:"elapsed"`
}

// Progress reports real-time engine progress.
type Progress struct {
	State         State  `json:"state"`
	FilesSeen     int64  `json:"files_seen"`
	Candidates    int64  `json:"candidates"`
	FilesHashed   int64  `json:"files_hashed"`
	BytesSelected int64  `json:"bytes_selected"`
	CacheHits     int64  `json:"cache_hits"`
	Groups        int64  `json:"groups"`
	Errors        int64  `json:"errors"`
	CurrentPath   string `json:"current_path"`
}
