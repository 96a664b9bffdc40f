package board

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is the root of every "absent" condition (column or card).
	ErrNotFound = errors.New("not found")

	// ErrColumnNotFound is returned when a column record has not been provisioned.
	ErrColumnNotFound = fmt.Errorf("column %w", ErrNotFound)

	// ErrCardNotFound is returned when no card with the requested id is in the column.
	ErrCardNotFound = fmt.Errorf("card %w", ErrNotFound)

	// ErrOrderMismatch is returned when a reorder request is not a permutation
	// of the column's current card ids.
	ErrOrderMismatch = errors.New("order does not match column contents")

	// ErrForbidden is returned for policy violations such as deleting outside idea.
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidArgument is returned for malformed scopes, columns, cards or names.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrTransient marks store timeouts and unavailability. Safe to retry.
	ErrTransient = errors.New("transient store failure")
)

// TransientError wraps a store failure that may succeed when retried.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Op, ErrTransient, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrTransient) match any TransientError.
func (e *TransientError) Is(target error) bool {
	return target == ErrTransient
}

// IsNotFound returns true if err is a column or card not-found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsTransient returns true if err may succeed when retried.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}

// IsTerminal returns true for errors that must be reported to the caller as-is:
// not found, order mismatch, forbidden and invalid argument.
func IsTerminal(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrOrderMismatch) ||
		errors.Is(err, ErrForbidden) ||
		errors.Is(err, ErrInvalidArgument)
}

func transient(op string, err error) error {
	return &TransientError{Op: op, Err: err}
}
