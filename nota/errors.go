/*
errors.go - Error types for the NOTA engine

ERROR CATEGORIES:
  1. Validation - extra-event registration rules; nothing is created
  2. Lookup - unknown OSI, event, cycle, event type or employee
  3. Workflow - transitions refused in strict mode, paid cycles
  4. Store - optimistic concurrency conflicts

Lookup misses inside the engine itself never surface as errors: eligibility
fails closed and the report builder substitutes placeholders. The sentinels
below are for the service and storage layers that resolve ids.

Stale assignments are not errors at all; see IsStale in assignment.go.
*/
package nota

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	ErrValidation        = errors.New("validation failed")
	ErrNotEligible       = errors.New("employee not eligible for event type")
	ErrEventTypeInactive = errors.New("event type is inactive")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrCyclePaid         = errors.New("pay cycle already paid")
	ErrCycleNotClosed    = errors.New("pay cycle is not closed")
	ErrInvalidConfig     = errors.New("invalid pay configuration")

	ErrOSINotFound       = errors.New("osi not found")
	ErrEventNotFound     = errors.New("nota event not found")
	ErrCycleNotFound     = errors.New("pay cycle not found")
	ErrEventTypeNotFound = errors.New("event type not found")
	ErrEmployeeNotFound  = errors.New("employee not found")
	ErrPlanItemNotFound  = errors.New("plan item not found")
	ErrConfigNotFound    = errors.New("pay configuration not found")

	// ErrConcurrentModification is returned when a store detects a stale revision.
	ErrConcurrentModification = errors.New("concurrent modification detected")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// ValidationError names the offending field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// TransitionError describes a refused status change.
type TransitionError struct {
	EventID string
	From    EventStatus
	To      EventStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("event %s: cannot move from %s to %s", e.EventID, e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrNotEligible) ||
		errors.Is(err, ErrEventTypeInactive) ||
		errors.Is(err, ErrInvalidConfig)
}

// IsConflict returns true if the request clashes with current state.
func IsConflict(err error) bool {
	return errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrCyclePaid) ||
		errors.Is(err, ErrCycleNotClosed) ||
		errors.Is(err, ErrConcurrentModification)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrOSINotFound) ||
		errors.Is(err, ErrEventNotFound) ||
		errors.Is(err, ErrCycleNotFound) ||
		errors.Is(err, ErrEventTypeNotFound) ||
		errors.Is(err, ErrEmployeeNotFound) ||
		errors.Is(err, ErrPlanItemNotFound) ||
		errors.Is(err, ErrConfigNotFound)
}
