// Package dberrors defines the error-kind taxonomy shared by every index
// engine, the manager, and the planner.
package dberrors

import "errors"

// Sentinel kinds. Wrap these with fmt.Errorf("...: %w", ErrXxx) so callers
// can recover the kind with errors.Is while the message keeps call-site
// context.
var (
	// ErrIO marks an underlying file read/write/seek failure.
	ErrIO = errors.New("io error")

	// ErrSchema marks a malformed CSV row, an unknown column in a
	// predicate, or a type mismatch in an INSERT.
	ErrSchema = errors.New("schema error")

	// ErrDuplicateID marks a rejected insert_full: the restaurant_id
	// already exists in at least one of the uniqueness-chain indexes.
	ErrDuplicateID = errors.New("duplicate id")

	// ErrNotFound marks a lookup that found nothing. Engines return this
	// paired with an empty result, never surfacing it as a failure to
	// callers further up unless they choose to check for it.
	ErrNotFound = errors.New("not found")

	// ErrPlan marks a forced index incompatible with a predicate
	// attribute, or a predicate shape the planner cannot route.
	ErrPlan = errors.New("plan error")

	// ErrParse marks a structurally malformed AST reaching the planner.
	ErrParse = errors.New("parse error")
)
