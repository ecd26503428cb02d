// Package limit implements the stop policy of a duplicate search: either a
// target number of confirmed duplicate groups or a budget of bytes that may
// be selected for hashing. The two are mutually exclusive.
package limit

import (
	"fmt"
	"sync"

	"github.com/jamesainslie/dupfinder/pkg/dupfinder/types"
)

// Kind distinguishes the limit variants.
type Kind int

const (
	// KindUnlimited never stops a run.
	KindUnlimited Kind = iota
	// KindCount stops after a number of groups has been confirmed.
	KindCount
	// KindBudget stops before the selected bytes would exceed a budget.
	KindBudget
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindCount:
		return "count"
	case KindBudget:
		return "budget"
	default:
		return "unlimited"
	}
}

// Limit is a tagged variant: Unlimited, Count(n) or Budget(bytes).
// The zero value is Unlimited.
type Limit struct {
	kind  Kind
	value int64
}

// Unlimited returns a limit that never stops a run.
func Unlimited() Limit { return Limit{kind: KindUnlimited} }

// Count returns a limit that stops once n duplicate groups are confirmed.
func Count(n int) Limit { return Limit{kind: KindCount, value: int64(n)} }

// Budget returns a limit that bounds the total size of files selected for
// hashing to bytes.
func Budget(bytes int64) Limit { return Limit{kind: KindBudget, value: bytes} }

// FromOptions builds a limit from the two mutually exclusive settings.
// A nil pointer means the setting is absent; an explicit zero is kept, so
// a zero byte budget hashes nothing and a zero group target is rejected.
func FromOptions(atLeast *int, maxSize *int64) (Limit, error) {
	switch {
	case atLeast != nil && maxSize != nil:
		return Limit{}, &types.ConfigurationError{
			Field:  "limit",
			Reason: "at-least and max-size are mutually exclusive",
		}
	case atLeast != nil:
		l := Count(*atLeast)
		return l, l.Validate()
	case maxSize != nil:
		l := Budget(*maxSize)
		return l, l.Validate()
	default:
		return Unlimited(), nil
	}
}

// Kind returns the variant of the limit.
func (l Limit) Kind() Kind { return l.kind }

// Value returns the group target or byte budget. It is zero for Unlimited.
func (l Limit) Value() int64 { return l.value }

// Validate checks the limit value for its variant.
func (l Limit) Validate() error {
	switch l.kind {
	case KindCount:
		if l.value < 1 {
			return &types.ConfigurationError{
				Field:  "at-least",
				Reason: fmt.Sprintf("must be at least 1, got %d", l.value),
			}
		}
	case KindBudget:
		if l.value < 0 {
			return &types.ConfigurationError{
				Field:  "max-size",
				Reason: fmt.Sprintf("must not be negative, got %d", l.value),
			}
		}
	case KindUnlimited:
	default:
		return &types.ConfigurationError{Field: "limit", Reason: fmt.Sprintf("unknown kind %d", l.kind)}
	}
	return nil
}

// String describes the limit for logs and reports.
func (l Limit) String() string {
	switch l.kind {
	case KindCount:
		return fmt.Sprintf("at least %d groups", l.value)
	case KindBudget:
		return fmt.Sprintf("at most %s hashed", types.FormatSize(l.value))
	default:
		return "unlimited"
	}
}

// Policy tracks the remaining allowance of a Limit during one run.
// All methods are safe for concurrent use.
type Policy struct {
	mu        sync.Mutex
	limit     Limit
	remaining int64
	selected  int64
	confirmed int
	halted    bool
	exhausted bool
}

// NewPolicy validates l and returns a fresh policy for it.
func NewPolicy(l Limit) (*Policy, error) {
	if err := l.Validate(); err != nil {
		return nil, err
	}
	return &Policy{limit: l, remaining: l.value}, nil
}

// Limit returns the configured limit.
func (p *Policy) Limit() Limit { return p.limit }

// ShouldContinue reports whether the run may keep dispatching work.
func (p *Policy) ShouldContinue() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.halted
}

// OnGroupConfirmed records a newly confirmed duplicate group and reports
// whether the run may continue. Only count limits react to it.
func (p *Policy) OnGroupConfirmed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.halted {
		return false
	}
	p.confirmed++
	if p.limit.kind == KindCount {
		p.remaining--
		if p.remaining <= 0 {
			p.halted = true
		}
	}
	return !p.halted
}

// OnFileSelectedForHash charges the file's size against a byte budget and
// reports whether it may be hashed. A file that would take the budget below
// zero is refused and halts the policy. Count and unlimited policies accept
// every file until halted.
func (p *Policy) OnFileSelectedForHash(f types.FileEntry) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.halted {
		return false
	}
	if p.limit.kind == KindBudget {
		if f.Size > p.remaining {
			p.halted = true
			p.exhausted = true
			return false
		}
		p.remaining -= f.Size
	}
	p.selected += f.Size
	return true
}

// AcceptsResults reports whether checksums of files already selected may
// still be grouped. A spent byte budget keeps the work it already committed
// to; a reached group target or an explicit Halt discards it.
func (p *Policy) AcceptsResults() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.halted || p.exhausted
}

// Halt stops the policy unconditionally.
func (p *Policy) Halt() {
	p.mu.Lock()
	p.halted = true
	p.exhausted = false
	p.mu.Unlock()
}

// Stats is a snapshot of a policy.
type Stats struct {
	Halted    bool
	Selected  int64
	Remaining int64
	Confirmed int
}

// Stats returns a consistent snapshot of the policy counters.
// Remaining is meaningful only for count and budget limits.
func (p *Policy) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		Halted:    p.halted,
		Selected:  p.selected,
		Remaining: p.remaining,
		Confirmed: p.confirmed,
	}
}
