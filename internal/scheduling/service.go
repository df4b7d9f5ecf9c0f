package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	redisclient "github.com/slotwise/doctor-calendar/internal/redis"
)

// Service exposes the calendar operations: opening slots, booking one,
// retracting an unclaimed one, and the read projections over the store.
type Service struct {
	store    AppointmentStore
	patients PatientDirectory
	locker   redisclient.Locker
	log      zerolog.Logger
}

func NewService(store AppointmentStore, patients PatientDirectory, locker redisclient.Locker, log zerolog.Logger) *Service {
	return &Service{
		store:    store,
		patients: patients,
		locker:   locker,
		log:      log,
	}
}

// OpenTimes tiles [start, end) with half-hour slots and persists them all as
// open appointments. An inverted range fails with ErrInvalidTimeRange; an
// empty range is legal and creates nothing.
func (s *Service) OpenTimes(ctx context.Context, start, end time.Time) ([]Appointment, error) {
	windows, err := SlotWindows(start, end)
	if err != nil {
		return nil, err
	}
	if len(windows) == 0 {
		return []Appointment{}, nil
	}

	created, err := s.store.CreateOpenSlots(ctx, windows)
	if err != nil {
		return nil, fmt.Errorf("persist open slots: %w", err)
	}

	s.log.Info().
		Time("start", start).
		Time("end", end).
		Int("slots", len(created)).
		Msg("opened appointment slots")

	return created, nil
}

// Book claims the appointment for the patient identified by phone, creating
// the patient on first contact. Exactly one of N concurrent calls against the
// same open slot succeeds; the rest observe ErrAlreadyTaken or
// ErrConcurrentConflict. A conflict means re-fetch and retry, never blind
// re-write: the winning booking may already own the slot.
func (s *Service) Book(ctx context.Context, appointmentID uuid.UUID, patientName, phone string) (*Appointment, error) {
	patient, err := s.resolvePatient(ctx, patientName, phone)
	if err != nil {
		return nil, err
	}

	var booked *Appointment

	err = s.locker.WithAppointmentLock(ctx, appointmentID, func(lockCtx context.Context) error {
		appt, err := s.store.GetByID(lockCtx, appointmentID)
		if err != nil {
			if errors.Is(err, ErrAppointmentNotFound) {
				return err
			}
			return fmt.Errorf("load appointment: %w", err)
		}

		if appt.Taken {
			return ErrAlreadyTaken
		}

		claimed, err := s.store.Claim(lockCtx, appointmentID, appt.Version, patient.ID)
		if err != nil {
			return err
		}

		booked = claimed
		return nil
	})

	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			// Another booker holds the gate; same remedy as a lost
			// version race.
			return nil, ErrConcurrentConflict
		}
		return nil, err
	}

	s.log.Info().
		Stringer("appointment_id", booked.ID).
		Stringer("patient_id", patient.ID).
		Int64("version", booked.Version).
		Msg("appointment booked")

	return booked, nil
}

// Retract deletes an appointment that is still open. Taken appointments can
// never be removed through this path.
func (s *Service) Retract(ctx context.Context, appointmentID uuid.UUID) error {
	n, err := s.store.Count(ctx)
	if err != nil {
		return fmt.Errorf("count appointments: %w", err)
	}
	if n == 0 {
		return ErrNoAppointments
	}

	appt, err := s.store.GetByID(ctx, appointmentID)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return err
		}
		return fmt.Errorf("load appointment: %w", err)
	}

	if appt.Taken {
		return ErrAlreadyTaken
	}

	if err := s.store.Delete(ctx, appointmentID); err != nil {
		return err
	}

	s.log.Info().
		Stringer("appointment_id", appointmentID).
		Msg("open appointment retracted")

	return nil
}

// OpenAppointments lists every slot still up for booking.
func (s *Service) OpenAppointments(ctx context.Context) ([]Appointment, error) {
	appts, err := s.store.ListOpen(ctx)
	if err != nil {
		return nil, fmt.Errorf("list open appointments: %w", err)
	}
	return appts, nil
}

// OpenAppointmentsOn lists open slots whose interval intersects the calendar
// day containing the given instant.
func (s *Service) OpenAppointmentsOn(ctx context.Context, day time.Time) ([]Appointment, error) {
	startOfDay := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	endOfDay := startOfDay.Add(24 * time.Hour)

	appts, err := s.store.ListOpenBetween(ctx, startOfDay, endOfDay)
	if err != nil {
		return nil, fmt.Errorf("list open appointments for day: %w", err)
	}
	return appts, nil
}

// TakenAppointments lists every claimed slot.
func (s *Service) TakenAppointments(ctx context.Context) ([]Appointment, error) {
	appts, err := s.store.ListTaken(ctx)
	if err != nil {
		return nil, fmt.Errorf("list taken appointments: %w", err)
	}
	return appts, nil
}

// PatientAppointments lists the appointments owned by the patient with the
// given phone number. The patient's appointment list is a projection over
// the appointment store, not patient state.
func (s *Service) PatientAppointments(ctx context.Context, phone string) ([]Appointment, error) {
	patient, err := s.patients.FindByPhone(ctx, phone)
	if err != nil {
		if errors.Is(err, ErrPatientNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("find patient by phone: %w", err)
	}

	appts, err := s.store.ListByPatient(ctx, patient.ID)
	if err != nil {
		return nil, fmt.Errorf("list patient appointments: %w", err)
	}
	return appts, nil
}

// resolvePatient looks up the patient by phone and creates one on first
// contact. Resolution is idempotent: a lost insert race on the unique phone
// column falls back to the lookup, so repeat bookings always reuse the same
// identity.
func (s *Service) resolvePatient(ctx context.Context, name, phone string) (*Patient, error) {
	patient, err := s.patients.FindByPhone(ctx, phone)
	if err == nil {
		return patient, nil
	}
	if !errors.Is(err, ErrPatientNotFound) {
		return nil, fmt.Errorf("find patient by phone: %w", err)
	}

	created, createErr := s.patients.Create(ctx, name, phone)
	if createErr == nil {
		s.log.Info().
			Stringer("patient_id", created.ID).
			Msg("registered new patient")
		return created, nil
	}

	// A concurrent booking with the same phone may have inserted first.
	patient, err = s.patients.FindByPhone(ctx, phone)
	if err == nil {
		return patient, nil
	}

	return nil, fmt.Errorf("create patient: %w", createErr)
}
