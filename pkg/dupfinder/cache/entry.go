package cache

import (
	"bytes"
	"encoding/gob"
	"errors"
	"time"

	"github.com/jamesainslie/dupfinder/pkg/dupfinder/types"
)

// Version is incremented when the persisted entry format changes.
// Stores written with another version are wiped on open.
const Version = 1

// ErrNotFound is returned by backends when a key does not exist.
var ErrNotFound = errors.New("cache entry not found")

// Entry is a checksum together with the metadata it was computed against.
type Entry struct {
	Size     int64  // File size in bytes at hash time
	Mtime    int64  // Modification time as UnixNano at hash time
	Checksum string // Rendered types.Checksum
	HashedAt int64  // Unix seconds when the checksum was computed
}

// NewEntry snapshots f's metadata for sum.
func NewEntry(f types.FileEntry, sum types.Checksum) *Entry {
	return &Entry{
		Size:     f.Size,
		Mtime:    f.ModTime.UnixNano(),
		Checksum: string(sum),
		HashedAt: time.Now().Unix(),
	}
}

// Matches reports whether the entry was computed for f's current size and
// modification time.
func (e *Entry) Matches(f types.FileEntry) bool {
	return e.Size == f.Size && e.Mtime == f.ModTime.UnixNano()
}

// Sum returns the cached checksum.
func (e *Entry) Sum() types.Checksum { return types.Checksum(e.Checksum) }

// Encode serializes the entry using gob.
func (e *Entry) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(e); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode deserializes data into the entry. An entry without a checksum is
// rejected as malformed.
func (e *Entry) Decode(data []byte) error {
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(e); err != nil {
		return err
	}
	if e.Checksum == "" {
		return errors.New("entry has no checksum")
	}
	return nil
}

// Key returns the storage key for f.
func Key(f types.FileEntry) string {
	id := f.Identity
	if id.Path == "" && id.Inode == 0 {
		id.Path = f.Path
	}
	return "c:" + id.Key()
}
