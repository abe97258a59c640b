// Package skip decides whether a failed record can be isolated so the run
// continues, and enforces the run's failed-record limit.
package skip

import (
	"github.com/Dryik/migration-tool/pkg/batch/support/util/exception"
)

// SkipPolicy decides whether a record failure is isolated (the record is
// counted as failed and the run continues) or stops the run.
// A policy instance belongs to one run and is not safe for concurrent use.
type SkipPolicy interface {
	// ShouldSkip determines if a failure can be isolated under the current
	// limit.
	ShouldSkip(err error) bool
	// CanSkip determines if further failures are allowed within the limit.
	CanSkip() bool
	// IncrementSkipCount increments the count of isolated failures by 1.
	IncrementSkipCount()
	// GetSkipCount returns the number of failures isolated so far.
	GetSkipCount() int
	// GetSkipLimit returns the failure limit; 0 means unlimited.
	GetSkipLimit() int
}

// DefaultSkipPolicyFactory is a factory for creating SkipPolicy.
type DefaultSkipPolicyFactory struct{}

// NewDefaultSkipPolicyFactory creates a new DefaultSkipPolicyFactory.
func NewDefaultSkipPolicyFactory() *DefaultSkipPolicyFactory {
	return &DefaultSkipPolicyFactory{}
}

// Create creates a SkipPolicy. skipLimit is the maximum number of isolated
// failures, 0 meaning unlimited. skippableExceptions names error types that
// are isolated even though they would otherwise be fatal.
func (f *DefaultSkipPolicyFactory) Create(skipLimit int, skippableExceptions []string) SkipPolicy {
	if skipLimit < 0 {
		skipLimit = 0
	}
	return &defaultSkipPolicy{
		skipLimit:           skipLimit,
		skippableExceptions: skippableExceptions,
	}
}

type defaultSkipPolicy struct {
	skipLimit           int
	skippableExceptions []string
	currentSkipCount    int
}

// ShouldSkip isolates every non-fatal failure while the limit allows it.
// Fatal failures (authentication, state persistence) are isolated only when
// listed in skippableExceptions.
func (p *defaultSkipPolicy) ShouldSkip(err error) bool {
	if err == nil || !p.CanSkip() {
		return false
	}

	if !exception.IsFatal(err) {
		return true
	}

	for _, typeName := range p.skippableExceptions {
		if exception.IsErrorOfType(err, typeName) {
			return true
		}
	}

	return false
}

func (p *defaultSkipPolicy) CanSkip() bool {
	return p.skipLimit == 0 || p.currentSkipCount < p.skipLimit
}

func (p *defaultSkipPolicy) IncrementSkipCount() {
	p.currentSkipCount++
}

func (p *defaultSkipPolicy) GetSkipCount() int {
	return p.currentSkipCount
}

func (p *defaultSkipPolicy) GetSkipLimit() int {
	return p.skipLimit
}

// Verify interfaces
var _ SkipPolicy = (*defaultSkipPolicy)(nil)
