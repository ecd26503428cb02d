// Package index buckets files by a cheap signature and promotes them for
// full hashing only once a second file shares the signature. Hashed files
// are re-bucketed by checksum; buckets with two or more members become
// duplicate groups.
//
// An Index is not safe for concurrent use; the engine serializes access.
package index

import (
	"cmp"
	"slices"

	"github.com/jamesainslie/dupfinder/pkg/dupfinder/types"
)

type bucket struct {
	held     *types.FileEntry
	promoted bool
	bySum    map[types.Checksum][]types.FileEntry
}

// Index is the grouping index of one run.
type Index struct {
	buckets map[types.Signature]*bucket
	sealed  bool

	held      int64
	heldBytes int64
	promoted  int64
	dropped   int64
}

// New returns an empty index.
func New() *Index {
	return &Index{buckets: make(map[types.Signature]*bucket)}
}

// Offer files f under its signature and returns the entries that now need a
// full hash: nil for the first entry of a signature, both the held entry and
// f for the second, and f alone afterwards. Offer returns nil once sealed.
func (ix *Index) Offer(f types.FileEntry) []types.FileEntry {
	if ix.sealed {
		return nil
	}

	sig := types.SignatureOf(f)
	b, ok := ix.buckets[sig]
	if !ok {
		held := f
		ix.buckets[sig] = &bucket{held: &held}
		ix.held++
		ix.heldBytes += f.Size
		return nil
	}

	if !b.promoted {
		b.promoted = true
		b.bySum = make(map[types.Checksum][]types.FileEntry)
		first := *b.held
		b.held = nil
		ix.held--
		ix.heldBytes -= first.Size
		ix.promoted += 2
		return []types.FileEntry{first, f}
	}

	ix.promoted++
	return []types.FileEntry{f}
}

// Add records the checksum of a promoted entry and reports whether this
// addition confirmed a new duplicate group, which happens exactly once per
// checksum, when its second member arrives. Add is a no-op once sealed.
func (ix *Index) Add(f types.FileEntry, sum types.Checksum) bool {
	if ix.sealed {
		return false
	}
	b, ok := ix.buckets[types.SignatureOf(f)]
	if !ok || !b.promoted {
		return false
	}
	b.bySum[sum] = append(b.bySum[sum], f)
	return len(b.bySum[sum]) == 2
}

// Drop removes a promoted entry that will never be added, because hashing
// failed or the byte budget refused it. Any checksum already recorded for f
// is forgotten. Drop is a no-op once sealed.
func (ix *Index) Drop(f types.FileEntry) {
	if ix.sealed {
		return
	}
	b, ok := ix.buckets[types.SignatureOf(f)]
	if !ok || !b.promoted {
		return
	}
	for sum, files := range b.bySum {
		files = slices.DeleteFunc(files, func(m types.FileEntry) bool { return m.Path == f.Path })
		if len(files) == 0 {
			delete(b.bySum, sum)
		} else {
			b.bySum[sum] = files
		}
	}
	ix.dropped++
}

// Seal closes the index and returns every checksum bucket with at least two
// members. Groups are ordered largest first, members by path.
func (ix *Index) Seal() []types.DuplicateGroup {
	ix.sealed = true

	var groups []types.DuplicateGroup
	for sig, b := range ix.buckets {
		for sum, files := range b.bySum {
			if len(files) < 2 {
				continue
			}
			members := slices.Clone(files)
			slices.SortFunc(members, func(a, b types.FileEntry) int { return cmp.Compare(a.Path, b.Path) })
			groups = append(groups, types.DuplicateGroup{Checksum: sum, Size: int64(sig), Files: members})
		}
	}

	slices.SortFunc(groups, func(a, b types.DuplicateGroup) int {
		if c := cmp.Compare(b.Size, a.Size); c != 0 {
			return c
		}
		return cmp.Compare(a.Checksum, b.Checksum)
	})
	return groups
}

// Held returns the number and total size of entries that never shared a
// signature and so were never hashed.
func (ix *Index) Held() (files, bytes int64) { return ix.held, ix.heldBytes }

// Promoted returns the number of entries handed out for hashing.
func (ix *Index) Promoted() int64 { return ix.promoted }

// Dropped returns the number of promoted entries removed by Drop.
func (ix *Index) Dropped() int64 { return ix.dropped }
