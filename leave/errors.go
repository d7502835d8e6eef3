/*
errors.go - Error types for the leave core

ERROR CATEGORIES:
  1. Validation errors - bad input, rejected before the store is touched
  2. Batch errors      - every date in a batch was skipped
  3. Store errors      - load or save failed
  4. Notification      - email delivery failed (logged, never surfaced)

Terminal replays on approval links are NOT errors. They are reported as
Outcome values on a Decision (see lifecycle.go).

USAGE:
    if errors.Is(err, leave.ErrNoDatesAccepted) {
        var nd *leave.NoDatesAcceptedError
        errors.As(err, &nd)
        ...
    }
*/
package leave

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is returned for malformed input.
	ErrValidation = errors.New("validation failed")

	// ErrUnauthenticated is returned when no submitter identity is available.
	ErrUnauthenticated = errors.New("no authenticated user")

	// ErrNoDatesAccepted is returned when a batch admitted nothing.
	ErrNoDatesAccepted = errors.New("no dates accepted")

	// ErrStoreIO is returned when the record store cannot be read or written.
	ErrStoreIO = errors.New("record store failure")

	// ErrNotification is returned by notifiers when a message cannot be sent.
	ErrNotification = errors.New("notification failed")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError names the offending field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// NoDatesAcceptedError carries the per-date reasons of a fully skipped batch.
type NoDatesAcceptedError struct {
	Skipped []Skipped
}

func (e *NoDatesAcceptedError) Error() string {
	return fmt.Sprintf("no dates accepted: %d skipped", len(e.Skipped))
}

func (e *NoDatesAcceptedError) Unwrap() error {
	return ErrNoDatesAccepted
}

// StoreError wraps a persistence failure with the operation that hit it.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

// Unwrap exposes both the sentinel and the underlying cause.
func (e *StoreError) Unwrap() []error {
	return []error{ErrStoreIO, e.Err}
}

// NotificationError wraps a delivery failure for one notification kind.
type NotificationError struct {
	Kind string
	Err  error
}

func (e *NotificationError) Error() string {
	return fmt.Sprintf("notify %s: %v", e.Kind, e.Err)
}

func (e *NotificationError) Unwrap() []error {
	return []error{ErrNotification, e.Err}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError reports whether err was caused by caller input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrUnauthenticated) ||
		errors.Is(err, ErrNoDatesAccepted)
}
