package cache

import (
	"fmt"
	"sort"
	"sync"
)

// Backend persists encoded entries by key. Put must be durable and atomic
// before it returns. Get returns ErrNotFound for absent keys.
type Backend interface {
	Name() string
	Get(key string) ([]byte, error)
	Put(key string, value []byte) error
	Delete(key string) error
	Reset() error
	Len() (int, error)
	Close() error
}

// Backend names accepted by Open.
const (
	BackendBadger = "badger"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Backends returns the supported backend names.
func Backends() []string {
	names := []string{BackendBadger, BackendSQLite, BackendMemory}
	sort.Strings(names)
	return names
}

func openBackend(name, path string) (Backend, error) {
	switch name {
	case "", BackendBadger:
		return OpenBadger(path)
	case BackendSQLite:
		return OpenSQLite(path)
	case BackendMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q (available: %v)", name, Backends())
	}
}

// Memory is an in-process backend. Entries do not survive the process.
type Memory struct {
	mu      sync.RWMutex
	entries map[string][]byte
}

// NewMemory returns an empty in-memory backend.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string][]byte)}
}

func (m *Memory) Name() string { return BackendMemory }

func (m *Memory) Get(key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.entries[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (m *Memory) Put(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = append([]byte(nil), value...)
	return nil
}

func (m *Memory) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

func (m *Memory) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string][]byte)
	return nil
}

func (m *Memory) Len() (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries), nil
}

func (m *Memory) Close() error { return nil }
