package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// AppointmentStore contains all appointment persistence needed by the
// service. The store is the authoritative arbiter for concurrent bookings:
// Claim must provide true compare-and-swap semantics so that exactly one of
// N conflicting writers against the same record succeeds.
type AppointmentStore interface {
	// CreateOpenSlots persists the given windows as open appointments and
	// returns the created records in the same order.
	CreateOpenSlots(ctx context.Context, windows []SlotWindow) ([]Appointment, error)

	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)

	// Claim marks the appointment taken by patientID, conditioned on the
	// stored version still matching expectedVersion and the record still
	// being open. It returns ErrConcurrentConflict when either condition
	// fails and ErrAppointmentNotFound when the record no longer exists.
	Claim(ctx context.Context, id uuid.UUID, expectedVersion int64, patientID uuid.UUID) (*Appointment, error)

	// Delete removes the record. Deleting an absent id reports
	// ErrAppointmentNotFound, never silent success.
	Delete(ctx context.Context, id uuid.UUID) error

	Count(ctx context.Context) (int64, error)

	ListOpen(ctx context.Context) ([]Appointment, error)
	// ListOpenBetween returns open appointments whose interval intersects
	// [from, to).
	ListOpenBetween(ctx context.Context, from, to time.Time) ([]Appointment, error)
	ListTaken(ctx context.Context) ([]Appointment, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]Appointment, error)
}

// PatientDirectory resolves and creates patient identities by phone number.
type PatientDirectory interface {
	// FindByPhone returns ErrPatientNotFound when no patient matches.
	FindByPhone(ctx context.Context, phone string) (*Patient, error)
	Create(ctx context.Context, name, phone string) (*Patient, error)
}
