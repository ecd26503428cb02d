package logging

import "sync"

// DefaultRingSize is the number of entries kept by the progress screen.
const DefaultRingSize = 50

// Ring keeps the most recent entries, overwriting the oldest.
type Ring struct {
	mu    sync.RWMutex
	buf   []Entry
	next  int
	count int
}

// NewRing returns a ring holding up to size entries.
func NewRing(size int) *Ring {
	if size <= 0 {
		size = DefaultRingSize
	}
	return &Ring{buf: make([]Entry, size)}
}

// Add appends e.
func (r *Ring) Add(e Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf[r.next] = e
	r.next = (r.next + 1) % len(r.buf)
	if r.count < len(r.buf) {
		r.count++
	}
}

// Last returns up to n entries, oldest first.
func (r *Ring) Last(n int) []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n = min(n, r.count)
	out := make([]Entry, n)
	first := (r.next - n + len(r.buf)) % len(r.buf)
	for i := range n {
		out[i] = r.buf[(first+i)%len(r.buf)]
	}
	return out
}

// Len returns the number of entries held.
func (r *Ring) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.count
}
