package engine

import (
	"fmt"
	"strings"
)

// UnknownResourceTypeError reports a resource type tag with no
// registration. Raised before any mutation.
type UnknownResourceTypeError struct {
	Tag string
}

func (e *UnknownResourceTypeError) Error() string {
	return fmt.Sprintf("unknown resource type %q", e.Tag)
}

// DuplicateAddressError reports two desired resources sharing one
// address. Raised before any mutation.
type DuplicateAddressError struct {
	Address string
}

func (e *DuplicateAddressError) Error() string {
	return fmt.Sprintf("duplicate resource address %q", e.Address)
}

// DependencyCycleError carries the sorted set of addresses that could
// not be ordered.
type DependencyCycleError struct {
	Addresses []string
}

func (e *DependencyCycleError) Error() string {
	return "dependency cycle involving: " + strings.Join(e.Addresses, ", ")
}

// ScopeMismatchError reports a state file that belongs to a different
// project scope than the engine is configured for. Every operation
// refuses outright rather than risk cross-environment corruption.
type ScopeMismatchError struct {
	Expected string
	Got      string
}

func (e *ScopeMismatchError) Error() string {
	return fmt.Sprintf("state belongs to project %q, engine is scoped to %q", e.Got, e.Expected)
}

// StalePlanError reports that the live state no longer matches the
// snapshot a plan recorded. The caller must re-plan; the engine never
// silently re-diffs.
type StalePlanError struct {
	Reason string
}

func (e *StalePlanError) Error() string {
	return "stale plan: " + e.Reason
}

// ApplyError wraps a handler failure mid-apply. Result holds everything
// that was applied (and durably persisted) before the failure.
type ApplyError struct {
	Address string
	Result  *ApplyResult
	Err     error
}

func (e *ApplyError) Error() string {
	return fmt.Sprintf("apply failed on %s: %v", e.Address, e.Err)
}

func (e *ApplyError) Unwrap() error { return e.Err }

// CanceledError reports context cancellation observed between apply
// operations. Result carries the same partial-progress contract as
// ApplyError.
type CanceledError struct {
	Result *ApplyResult
	Err    error
}

func (e *CanceledError) Error() string {
	return fmt.Sprintf("apply cancelled: %v", e.Err)
}

func (e *CanceledError) Unwrap() error { return e.Err }
