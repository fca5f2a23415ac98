package scheduling

import "errors"

// Common errors returned by the scheduling engine. Callers branch with
// errors.Is; handlers map them to HTTP status codes.
var (
	// ErrInvalidInput marks malformed identifiers, too-short durations, and
	// other synchronous validation failures.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound is returned for an unknown appointment id.
	ErrNotFound = errors.New("appointment not found")

	// ErrConflict is returned when a candidate interval overlaps the doctor's
	// confirmed schedule.
	ErrConflict = errors.New("schedule conflict")

	// ErrInvalidState is returned for a lifecycle transition that the state
	// machine does not allow.
	ErrInvalidState = errors.New("invalid appointment state")

	// ErrNotOwner is returned when the caller's doctor or patient id does not
	// match the appointment.
	ErrNotOwner = errors.New("appointment does not belong to caller")
)
