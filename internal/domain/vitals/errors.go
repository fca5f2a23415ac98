package vitals

import "errors"

var (
	// ErrInvalidReading marks a measurement outside the physiological
	// acceptance limits or a malformed request.
	ErrInvalidReading = errors.New("invalid vital sign reading")

	// ErrDuplicateReading is returned when a patient already has a reading
	// recorded for the calendar date.
	ErrDuplicateReading = errors.New("vitals already recorded for this date")

	// ErrNoReadings is returned when a patient has no recorded vitals.
	ErrNoReadings = errors.New("no vital signs recorded")

	// ErrPanicCooldown is returned when the panic button is pressed again
	// inside its cooldown window.
	ErrPanicCooldown = errors.New("panic button is on cooldown")
)
