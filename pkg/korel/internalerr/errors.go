// Package internalerr collects the sentinel errors shared across korel's
// reasoning packages so callers can use errors.Is/errors.As instead of
// matching on strings.
package internalerr

import "errors"

// Sentinel errors for common cases
var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrDuplicate        = errors.New("duplicate entry")
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrInvalidConfig    = errors.New("invalid configuration")

	// ErrValueRange is raised at ingestion when a fuzzy value falls
	// outside [0,1]. Fatal: the caller's tell/substitution is rejected.
	ErrValueRange = errors.New("fuzzy value out of range [0,1]")

	// ErrShapeMismatch is raised when two atoms being compared have
	// incompatible shape (arity, function name, or argument positions).
	// The inference layer catches this and treats it as "not a match";
	// it must never reach a Tell/Ask caller.
	ErrShapeMismatch = errors.New("atoms not comparable")

	// ErrIllegalConnective is raised at sentence-construction time when
	// a disjunction/implication/equivalence sits above an indicative
	// conditional on its consequent branch.
	ErrIllegalConnective = errors.New("illegal connective placement around indicative conditional")

	// ErrEmptyInput is returned by tell("").
	ErrEmptyInput = errors.New("empty input")

	// ErrNoSolution signals that a consequent name has no rules
	// attached to it. Internal to the inference engine; swallowed by
	// Ask and surfaced to the caller as "unknown", never as an error.
	ErrNoSolution = errors.New("no rules for consequent")

	// ErrLockTimeout is returned internally when an atom lock could not
	// be acquired within the configured bound. The evaluator downgrades
	// it to an unknown result; it is not fatal to the enclosing query.
	ErrLockTimeout = errors.New("timed out acquiring atom lock")
)
