package scheduling

import (
	"time"

	"github.com/google/uuid"
)

// SlotDuration is the fixed length of every bookable slot.
const SlotDuration = 30 * time.Minute

// Appointment is one bookable half-hour interval on the calendar.
// The interval is half-open: [StartTime, EndTime).
//
// Taken is terminal: once a booking claims the slot it is never reopened,
// and PatientID is set exactly when Taken flips to true. Version backs the
// optimistic concurrency check and increments on every successful mutation.
type Appointment struct {
	ID        uuid.UUID
	StartTime time.Time
	EndTime   time.Time
	Taken     bool
	PatientID *uuid.UUID
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Patient is a calendar user, keyed externally by phone number since
// callers never know store-assigned ids in advance.
type Patient struct {
	ID          uuid.UUID
	Name        string
	PhoneNumber string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// SlotWindow is a candidate slot interval produced by the generator,
// before the store assigns it an identity.
type SlotWindow struct {
	Start time.Time
	End   time.Time
}
