package scheduling

import "errors"

var (
	// ErrInvalidTimeRange is returned by slot generation when the end of
	// the requested window precedes its start.
	ErrInvalidTimeRange = errors.New("end time cannot be before start time")

	// ErrAppointmentNotFound is returned when the referenced slot id does
	// not exist in the store.
	ErrAppointmentNotFound = errors.New("appointment not found")

	// ErrPatientNotFound is returned when no patient matches the given
	// phone number.
	ErrPatientNotFound = errors.New("patient not found")

	// ErrAlreadyTaken is returned when booking or retracting a slot that
	// already has an owner.
	ErrAlreadyTaken = errors.New("appointment is already taken")

	// ErrNoAppointments is returned when retraction is attempted against
	// an entirely empty calendar.
	ErrNoAppointments = errors.New("no appointments exist")

	// ErrConcurrentConflict is returned when the optimistic version check
	// lost a race. The caller must re-fetch and re-check state before
	// retrying; the winning write may already have taken the slot.
	ErrConcurrentConflict = errors.New("appointment was modified concurrently, please retry")
)
