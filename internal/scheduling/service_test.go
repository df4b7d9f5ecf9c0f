package scheduling

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	redisclient "github.com/slotwise/doctor-calendar/internal/redis"
)

func newTestService(t *testing.T) (*Service, *MemoryRepository) {
	t.Helper()
	repo := NewMemoryRepository()
	svc := NewService(repo, repo, redisclient.NewNoopLocker(), zerolog.Nop())
	return svc, repo
}

func openOneSlot(t *testing.T, svc *Service) Appointment {
	t.Helper()
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	created, err := svc.OpenTimes(context.Background(), start, start.Add(30*time.Minute))
	require.NoError(t, err)
	require.Len(t, created, 1)
	return created[0]
}

func TestOpenTimes_CreatesChronologicalOpenSlots(t *testing.T) {
	svc, _ := newTestService(t)

	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	created, err := svc.OpenTimes(context.Background(), start, start.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, created, 2)

	assert.Equal(t, start, created[0].StartTime)
	assert.Equal(t, start.Add(30*time.Minute), created[1].StartTime)
	for _, a := range created {
		assert.False(t, a.Taken)
		assert.Nil(t, a.PatientID)
		assert.EqualValues(t, 1, a.Version)
	}
}

func TestOpenTimes_InvertedRange(t *testing.T) {
	svc, repo := newTestService(t)

	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	_, err := svc.OpenTimes(context.Background(), start, start.Add(-time.Hour))
	assert.ErrorIs(t, err, ErrInvalidTimeRange)

	n, err := repo.Count(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)
}

func TestBook_HappyPath(t *testing.T) {
	svc, repo := newTestService(t)
	slot := openOneSlot(t, svc)

	booked, err := svc.Book(context.Background(), slot.ID, "Jane Doe", "555-0100")
	require.NoError(t, err)

	assert.True(t, booked.Taken)
	require.NotNil(t, booked.PatientID)
	assert.EqualValues(t, 2, booked.Version)

	stored, err := repo.GetByID(context.Background(), slot.ID)
	require.NoError(t, err)
	assert.True(t, stored.Taken)
	require.NotNil(t, stored.PatientID)
	assert.Equal(t, *booked.PatientID, *stored.PatientID)
}

func TestBook_UnknownAppointment(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Book(context.Background(), uuid.New(), "Jane Doe", "555-0100")
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
}

func TestBook_AlreadyTaken(t *testing.T) {
	svc, _ := newTestService(t)
	slot := openOneSlot(t, svc)

	_, err := svc.Book(context.Background(), slot.ID, "Jane Doe", "555-0100")
	require.NoError(t, err)

	_, err = svc.Book(context.Background(), slot.ID, "John Roe", "555-0200")
	assert.ErrorIs(t, err, ErrAlreadyTaken)
}

func TestBook_PatientResolutionIsIdempotent(t *testing.T) {
	svc, repo := newTestService(t)

	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	created, err := svc.OpenTimes(context.Background(), start, start.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, created, 2)

	first, err := svc.Book(context.Background(), created[0].ID, "Jane Doe", "555-0100")
	require.NoError(t, err)
	second, err := svc.Book(context.Background(), created[1].ID, "Jane Doe", "555-0100")
	require.NoError(t, err)

	assert.Equal(t, *first.PatientID, *second.PatientID, "same phone must reuse the same patient")

	mine, err := repo.ListByPatient(context.Background(), *first.PatientID)
	require.NoError(t, err)
	assert.Len(t, mine, 2)
}

func TestBook_ExactlyOneConcurrentWinner(t *testing.T) {
	svc, _ := newTestService(t)
	slot := openOneSlot(t, svc)

	const bookers = 50

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)

	for i := 0; i < bookers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()

			phone := uuid.NewString()
			_, err := svc.Book(context.Background(), slot.ID, "Contender", phone)
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
				return
			}

			// Every loser must see one of the two conflict kinds,
			// never anything else.
			assert.True(t,
				errors.Is(err, ErrAlreadyTaken) || errors.Is(err, ErrConcurrentConflict),
				"unexpected booking error: %v", err)
		}(i)
	}

	wg.Wait()
	assert.Equal(t, 1, successes, "exactly one concurrent booking must win")
}

// stubBusyLocker simulates another booker holding the appointment's gate.
type stubBusyLocker struct{}

func (stubBusyLocker) WithAppointmentLock(context.Context, uuid.UUID, func(ctx context.Context) error) error {
	return redisclient.ErrLockNotAcquired
}

func TestBook_LockContentionIsRetryableConflict(t *testing.T) {
	repo := NewMemoryRepository()
	svc := NewService(repo, repo, stubBusyLocker{}, zerolog.Nop())
	slot := openOneSlot(t, svc)

	_, err := svc.Book(context.Background(), slot.ID, "Jane Doe", "555-0100")
	assert.ErrorIs(t, err, ErrConcurrentConflict,
		"lock unavailability must surface as the retryable conflict, not the raw lock error")

	stored, err := repo.GetByID(context.Background(), slot.ID)
	require.NoError(t, err)
	assert.False(t, stored.Taken)
	assert.Nil(t, stored.PatientID)
	assert.EqualValues(t, 1, stored.Version)
}

func TestBook_ConcurrentConflictOnStaleVersion(t *testing.T) {
	svc, repo := newTestService(t)
	slot := openOneSlot(t, svc)

	// Simulate a writer that read version 1 but lost the race.
	_, err := repo.Claim(context.Background(), slot.ID, slot.Version, uuid.New())
	require.NoError(t, err)

	_, err = repo.Claim(context.Background(), slot.ID, slot.Version, uuid.New())
	assert.ErrorIs(t, err, ErrConcurrentConflict)
}

func TestClaim_TakenIsTerminalEvenWithCurrentVersion(t *testing.T) {
	svc, repo := newTestService(t)
	slot := openOneSlot(t, svc)

	winner := uuid.New()
	claimed, err := repo.Claim(context.Background(), slot.ID, slot.Version, winner)
	require.NoError(t, err)

	// A claim that read the post-booking state must still lose: the
	// version matches but the slot is no longer open.
	_, err = repo.Claim(context.Background(), slot.ID, claimed.Version, uuid.New())
	assert.ErrorIs(t, err, ErrConcurrentConflict)

	stored, err := repo.GetByID(context.Background(), slot.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.PatientID)
	assert.Equal(t, winner, *stored.PatientID)
	assert.Equal(t, claimed.Version, stored.Version)
}

func TestRetract_OpenSlot(t *testing.T) {
	svc, repo := newTestService(t)
	slot := openOneSlot(t, svc)

	require.NoError(t, svc.Retract(context.Background(), slot.ID))

	_, err := repo.GetByID(context.Background(), slot.ID)
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
}

func TestRetract_EmptyCalendar(t *testing.T) {
	svc, _ := newTestService(t)

	err := svc.Retract(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNoAppointments)
}

func TestRetract_UnknownAppointment(t *testing.T) {
	svc, _ := newTestService(t)
	openOneSlot(t, svc)

	err := svc.Retract(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
}

func TestRetract_TakenSlotNeverDeleted(t *testing.T) {
	svc, repo := newTestService(t)
	slot := openOneSlot(t, svc)

	_, err := svc.Book(context.Background(), slot.ID, "Jane Doe", "555-0100")
	require.NoError(t, err)

	err = svc.Retract(context.Background(), slot.ID)
	assert.ErrorIs(t, err, ErrAlreadyTaken)

	stored, err := repo.GetByID(context.Background(), slot.ID)
	require.NoError(t, err)
	assert.True(t, stored.Taken)
}

func TestProjections(t *testing.T) {
	svc, _ := newTestService(t)

	monday := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	tuesday := monday.AddDate(0, 0, 1)

	mondaySlots, err := svc.OpenTimes(context.Background(), monday, monday.Add(time.Hour))
	require.NoError(t, err)
	_, err = svc.OpenTimes(context.Background(), tuesday, tuesday.Add(time.Hour))
	require.NoError(t, err)

	_, err = svc.Book(context.Background(), mondaySlots[0].ID, "Jane Doe", "555-0100")
	require.NoError(t, err)

	open, err := svc.OpenAppointments(context.Background())
	require.NoError(t, err)
	assert.Len(t, open, 3)

	openMonday, err := svc.OpenAppointmentsOn(context.Background(), monday)
	require.NoError(t, err)
	assert.Len(t, openMonday, 1)

	taken, err := svc.TakenAppointments(context.Background())
	require.NoError(t, err)
	require.Len(t, taken, 1)
	assert.Equal(t, mondaySlots[0].ID, taken[0].ID)

	mine, err := svc.PatientAppointments(context.Background(), "555-0100")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, mondaySlots[0].ID, mine[0].ID)

	_, err = svc.PatientAppointments(context.Background(), "555-9999")
	assert.ErrorIs(t, err, ErrPatientNotFound)
}
