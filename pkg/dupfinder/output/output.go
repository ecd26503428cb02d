// Package output provides formatters for displaying duplicate search results
// in various output formats (pretty, plain, json, yaml, etc.).
//
// The package uses a registry pattern to allow registration of multiple
// formatter implementations that can be selected at runtime.
//
// Basic usage:
//
//	formatter, err := output.Get("pretty")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	var buf bytes.Buffer
//	if err := formatter.Format(&buf, report); err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Print(buf.String())
package output

import (
	"bytes"
	"fmt"
	"sort"
	"sync"

	"github.com/jamesainslie/dupfinder/pkg/dupfinder/types"
)

// Report contains the complete output data for formatting.
type Report struct {
	// Root is the directory that was searched.
	Root string

	// Limit describes the stop condition, e.g. "at least 3 groups".
	Limit string

	// Algorithm is the checksum algorithm used.
	Algorithm string

	// Groups are the duplicate groups, largest files first.
	Groups []types.DuplicateGroup

	// Summary holds the run counters.
	Summary types.Summary

	// Interrupted is set when the user canceled the run.
	Interrupted bool
}

// Files returns the number of files across all groups.
func (r *Report) Files() int {
	n := 0
	for _, g := range r.Groups {
		n += len(g.Files)
	}
	return n
}

// Wasted returns the reclaimable bytes across all groups.
func (r *Report) Wasted() int64 {
	var total int64
	for _, g := range r.Groups {
		total += g.Wasted()
	}
	return total
}

// Halted reports whether a limit stopped the run before it saw every file.
func (r *Report) Halted() bool {
	return r.Summary.State == types.StateHalted && !r.Interrupted
}

// Formatter is the interface that all output formatters must implement.
type Formatter interface {
	// Format writes the formatted output to the buffer.
	Format(w *bytes.Buffer, r *Report) error
}

// FormatterFactory is a function that creates a new Formatter instance.
type FormatterFactory func() Formatter

// Registry manages formatter registration and lookup.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]FormatterFactory
}

// NewRegistry creates a new formatter registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]FormatterFactory),
	}
}

// Register adds a formatter factory to the registry.
// It will replace any existing formatter with the same name.
func (r *Registry) Register(name string, factory FormatterFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Get returns a new formatter instance by name.
func (r *Registry) Get(name string) (Formatter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown formatter: %s", name)
	}
	return factory(), nil
}

// Available returns a sorted list of all registered formatter names.
func (r *Registry) Available() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry is the global formatter registry.
var DefaultRegistry = NewRegistry()

// Register adds a formatter factory to the default registry.
func Register(name string, factory FormatterFactory) {
	DefaultRegistry.Register(name, factory)
}

// Get returns a new formatter instance from the default registry.
func Get(name string) (Formatter, error) {
	return DefaultRegistry.Get(name)
}

// Available returns all formatter names from the default registry.
func Available() []string {
	return DefaultRegistry.Available()
}
