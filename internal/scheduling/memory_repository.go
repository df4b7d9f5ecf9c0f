package scheduling

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository implements AppointmentStore and PatientDirectory on a
// mutex-guarded map. The version check runs under the same mutex as the
// write, which gives it the compare-and-swap semantics the service relies
// on. Used by tests and local development.
type MemoryRepository struct {
	mu           sync.Mutex
	appointments map[uuid.UUID]*Appointment
	patients     map[uuid.UUID]*Patient
	byPhone      map[string]uuid.UUID
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		appointments: make(map[uuid.UUID]*Appointment),
		patients:     make(map[uuid.UUID]*Patient),
		byPhone:      make(map[string]uuid.UUID),
	}
}

// AppointmentStore methods

func (m *MemoryRepository) CreateOpenSlots(_ context.Context, windows []SlotWindow) ([]Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	created := make([]Appointment, 0, len(windows))
	for _, w := range windows {
		a := &Appointment{
			ID:        uuid.New(),
			StartTime: w.Start,
			EndTime:   w.End,
			Taken:     false,
			Version:   1,
			CreatedAt: now,
			UpdatedAt: now,
		}
		m.appointments[a.ID] = a
		created = append(created, *a)
	}

	return created, nil
}

func (m *MemoryRepository) GetByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}

	cp := *a
	return &cp, nil
}

func (m *MemoryRepository) Claim(_ context.Context, id uuid.UUID, expectedVersion int64, patientID uuid.UUID) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	if a.Version != expectedVersion || a.Taken {
		return nil, ErrConcurrentConflict
	}

	pid := patientID
	a.Taken = true
	a.PatientID = &pid
	a.Version++
	a.UpdatedAt = time.Now()

	cp := *a
	return &cp, nil
}

func (m *MemoryRepository) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.appointments[id]; !ok {
		return ErrAppointmentNotFound
	}
	delete(m.appointments, id)
	return nil
}

func (m *MemoryRepository) Count(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return int64(len(m.appointments)), nil
}

func (m *MemoryRepository) ListOpen(_ context.Context) ([]Appointment, error) {
	return m.list(func(a *Appointment) bool { return !a.Taken }), nil
}

func (m *MemoryRepository) ListOpenBetween(_ context.Context, from, to time.Time) ([]Appointment, error) {
	return m.list(func(a *Appointment) bool {
		return !a.Taken && a.StartTime.Before(to) && a.EndTime.After(from)
	}), nil
}

func (m *MemoryRepository) ListTaken(_ context.Context) ([]Appointment, error) {
	return m.list(func(a *Appointment) bool { return a.Taken }), nil
}

func (m *MemoryRepository) ListByPatient(_ context.Context, patientID uuid.UUID) ([]Appointment, error) {
	return m.list(func(a *Appointment) bool {
		return a.PatientID != nil && *a.PatientID == patientID
	}), nil
}

func (m *MemoryRepository) list(keep func(*Appointment) bool) []Appointment {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []Appointment
	for _, a := range m.appointments {
		if keep(a) {
			result = append(result, *a)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].StartTime.Before(result[j].StartTime)
	})

	return result
}

// PatientDirectory methods

func (m *MemoryRepository) FindByPhone(_ context.Context, phone string) (*Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.byPhone[phone]
	if !ok {
		return nil, ErrPatientNotFound
	}

	cp := *m.patients[id]
	return &cp, nil
}

func (m *MemoryRepository) Create(_ context.Context, name, phone string) (*Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Mirrors the unique phone_number column: a racing insert loses here
	// and the caller falls back to lookup.
	if existing, ok := m.byPhone[phone]; ok {
		cp := *m.patients[existing]
		return &cp, nil
	}

	now := time.Now()
	p := &Patient{
		ID:          uuid.New(),
		Name:        name,
		PhoneNumber: phone,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	m.patients[p.ID] = p
	m.byPhone[phone] = p.ID

	cp := *p
	return &cp, nil
}
