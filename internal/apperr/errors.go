// Package apperr holds the error taxonomy shared by the timer and KPI services.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means the entry or record does not exist or belongs to someone else.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyStopped is returned when an operation needs an active entry and the
	// referenced entry is already closed. It matches ErrNotFound with errors.Is.
	ErrAlreadyStopped = fmt.Errorf("%w: timer already stopped", ErrNotFound)

	// ErrValidation marks malformed period, date or category input.
	ErrValidation = errors.New("validation error")

	// ErrStorage marks a transient failure of the underlying store.
	ErrStorage = errors.New("storage error")

	// ErrPartialComputation means a report could not be assembled because a required read failed.
	ErrPartialComputation = errors.New("report computation aborted")
)

// Storage wraps a store failure for the named operation.
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrStorage) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
}

// Validation builds a validation error with a formatted message.
func Validation(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Partial wraps a read failure that aborted report assembly.
func Partial(orgID int64, err error) error {
	return fmt.Errorf("%w for organization %d: %w", ErrPartialComputation, orgID, err)
}
