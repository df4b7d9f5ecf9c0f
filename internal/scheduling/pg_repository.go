package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PgxPool is the subset of pgxpool.Pool the repository uses. Keeping it an
// interface lets tests substitute a pgxmock pool.
type PgxPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PgRepository implements AppointmentStore and PatientDirectory on Postgres.
// The optimistic concurrency contract is carried by the version column: every
// mutation is guarded by `WHERE version = $n` and bumps the counter.
type PgRepository struct {
	pool PgxPool
}

func NewPgRepository(pool PgxPool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var patientID *uuid.UUID

	err := row.Scan(
		&a.ID,
		&a.StartTime,
		&a.EndTime,
		&a.Taken,
		&patientID,
		&a.Version,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.PatientID = patientID
	return &a, nil
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient

	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.PhoneNumber,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}

	return &p, nil
}

func collectAppointments(rows pgx.Rows) ([]Appointment, error) {
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// AppointmentStore methods

func (r *PgRepository) CreateOpenSlots(ctx context.Context, windows []SlotWindow) ([]Appointment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin create open slots: %w", err)
	}
	defer tx.Rollback(ctx)

	created := make([]Appointment, 0, len(windows))
	for _, w := range windows {
		id := uuid.New()

		row := tx.QueryRow(ctx, `
			INSERT INTO appointments (id, start_time, end_time, taken, patient_id, version, created_at, updated_at)
			VALUES ($1, $2, $3, FALSE, NULL, 1, now(), now())
			RETURNING id, start_time, end_time, taken, patient_id, version, created_at, updated_at
		`, id, w.Start, w.End)

		a, err := scanAppointment(row)
		if err != nil {
			return nil, fmt.Errorf("insert open slot: %w", err)
		}
		created = append(created, *a)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit create open slots: %w", err)
	}

	return created, nil
}

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, start_time, end_time, taken, patient_id, version, created_at, updated_at
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) Claim(ctx context.Context, id uuid.UUID, expectedVersion int64, patientID uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET taken = TRUE,
		    patient_id = $3,
		    version = version + 1,
		    updated_at = now()
		WHERE id = $1
		  AND version = $2
		  AND taken = FALSE
		RETURNING id, start_time, end_time, taken, patient_id, version, created_at, updated_at
	`, id, expectedVersion, patientID)

	a, err := scanAppointment(row)
	if err == nil {
		return a, nil
	}
	if !errors.Is(err, ErrAppointmentNotFound) {
		return nil, err
	}

	// Zero rows: either the version moved or the record is gone. Tell the
	// caller which, so a real conflict is reported as retryable.
	var exists bool
	checkErr := r.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM appointments WHERE id = $1)
	`, id).Scan(&exists)
	if checkErr != nil {
		return nil, fmt.Errorf("check appointment after claim miss: %w", checkErr)
	}
	if exists {
		return nil, ErrConcurrentConflict
	}
	return nil, ErrAppointmentNotFound
}

func (r *PgRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM appointments
		WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("delete appointment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

func (r *PgRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx, `
		SELECT count(*) FROM appointments
	`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count appointments: %w", err)
	}
	return n, nil
}

func (r *PgRepository) ListOpen(ctx context.Context) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, start_time, end_time, taken, patient_id, version, created_at, updated_at
		FROM appointments
		WHERE taken = FALSE
		ORDER BY start_time
	`)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) ListOpenBetween(ctx context.Context, from, to time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, start_time, end_time, taken, patient_id, version, created_at, updated_at
		FROM appointments
		WHERE taken = FALSE
		  AND start_time < $2
		  AND end_time > $1
		ORDER BY start_time
	`, from, to)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) ListTaken(ctx context.Context) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, start_time, end_time, taken, patient_id, version, created_at, updated_at
		FROM appointments
		WHERE taken = TRUE
		ORDER BY start_time
	`)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, start_time, end_time, taken, patient_id, version, created_at, updated_at
		FROM appointments
		WHERE patient_id = $1
		ORDER BY start_time
	`, patientID)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

// PatientDirectory methods

func (r *PgRepository) FindByPhone(ctx context.Context, phone string) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, phone_number, created_at, updated_at
		FROM patients
		WHERE phone_number = $1
	`, phone)
	return scanPatient(row)
}

func (r *PgRepository) Create(ctx context.Context, name, phone string) (*Patient, error) {
	id := uuid.New()

	row := r.pool.QueryRow(ctx, `
		INSERT INTO patients (id, name, phone_number, created_at, updated_at)
		VALUES ($1, $2, $3, now(), now())
		RETURNING id, name, phone_number, created_at, updated_at
	`, id, name, phone)

	p, err := scanPatient(row)
	if err != nil {
		return nil, fmt.Errorf("insert patient: %w", err)
	}
	return p, nil
}
