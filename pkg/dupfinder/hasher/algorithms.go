package hasher

import (
	"crypto/md5" //nolint:gosec // content fingerprint, not a security boundary
	"crypto/sha256"
	"hash"
	"sort"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/zeebo/xxh3"
)

// DefaultAlgorithm is used when no algorithm is configured.
const DefaultAlgorithm = "xxh3"

// Algorithm describes a registered digest.
type Algorithm struct {
	Name string
	New  func() hash.Hash
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Algorithm)
)

// Register adds an algorithm to the registry, replacing any with the same name.
func Register(alg Algorithm) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[alg.Name] = alg
}

// Lookup returns the algorithm registered under name.
func Lookup(name string) (Algorithm, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	alg, ok := registry[name]
	return alg, ok
}

// Available returns the sorted names of registered algorithms.
func Available() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func init() {
	Register(Algorithm{Name: "xxh3", New: func() hash.Hash { return &xxh3Digest{h: xxh3.New()} }})
	Register(Algorithm{Name: "xxhash", New: func() hash.Hash { return xxhash.New() }})
	Register(Algorithm{Name: "sha256", New: sha256.New})
	Register(Algorithm{Name: "md5", New: md5.New})
}

var _ hash.Hash = (*xxh3Digest)(nil)

// xxh3Digest exposes the 128-bit XXH3 sum through hash.Hash.
type xxh3Digest struct {
	h *xxh3.Hasher
}

func (d *xxh3Digest) Write(p []byte) (int, error) { return d.h.Write(p) }

func (d *xxh3Digest) Sum(b []byte) []byte {
	sum := d.h.Sum128().Bytes()
	return append(b, sum[:]...)
}

func (d *xxh3Digest) Reset()         { d.h.Reset() }
func (d *xxh3Digest) Size() int      { return 16 }
func (d *xxh3Digest) BlockSize() int { return 64 }
