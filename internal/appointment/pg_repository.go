package appointment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/clinic-scheduling/internal/db"
	"github.com/hackgods/clinic-scheduling/internal/timeslot"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const appointmentColumns = `id, patient_id, doctor_id, appointment_date, start_time, end_time,
	service_kind, status, notes, booking_code, reminded_at, created_at, updated_at`

var activeStatusArgs = []string{string(StatusBooked), string(StatusConfirmed), string(StatusRescheduled)}

// Helpers

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var (
		a          Appointment
		start, end pgtype.Time
	)

	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.DoctorID,
		&a.Date,
		&start,
		&end,
		&a.ServiceKind,
		&a.Status,
		&a.Notes,
		&a.Code,
		&a.RemindedAt,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.Date = timeslot.Date(a.Date)
	a.Start = db.TimeOfDay(start)
	a.End = db.TimeOfDay(end)
	return &a, nil
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

// Interface methods

func (r *PgRepository) Insert(ctx context.Context, a *Appointment) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.Code == "" {
		a.Code = NewCode(a.ID, a.Date)
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO appointments (id, patient_id, doctor_id, appointment_date, start_time, end_time,
			service_kind, status, notes, booking_code, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now(), now())
		RETURNING `+appointmentColumns,
		a.ID, a.PatientID, a.DoctorID, a.Date, db.Time(a.Start), db.Time(a.End),
		a.ServiceKind, a.Status, a.Notes, a.Code,
	)

	created, err := scanAppointment(row)
	if err != nil {
		return writeErr("insert", err)
	}
	*a = *created
	return nil
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) ListActiveForDoctorDate(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE doctor_id = $1
		  AND appointment_date = $2
		  AND status = ANY($3)
		ORDER BY start_time
	`, doctorID, date, activeStatusArgs)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) List(ctx context.Context, f Filter) ([]Appointment, error) {
	query, args := listQuery(f)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

// listQuery renders f as a SELECT with numbered placeholders. A zero Limit
// means no limit, as in MemoryRepository.
func listQuery(f Filter) (string, []any) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) string {
		args = append(args, v)
		return fmt.Sprintf(cond, len(args))
	}

	if f.DoctorID != nil {
		where = append(where, add("doctor_id = $%d", *f.DoctorID))
	}
	if f.PatientID != nil {
		where = append(where, add("patient_id = $%d", *f.PatientID))
	}
	if f.Status != nil {
		where = append(where, add("status = $%d", string(*f.Status)))
	}
	if f.From != nil {
		where = append(where, add("appointment_date >= $%d", *f.From))
	}
	if f.To != nil {
		where = append(where, add("appointment_date <= $%d", *f.To))
	}

	query := `SELECT ` + appointmentColumns + ` FROM appointments`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY appointment_date, start_time`
	if f.Limit > 0 {
		query += add(" LIMIT $%d", f.Limit)
	}
	if f.Offset > 0 {
		query += add(" OFFSET $%d", f.Offset)
	}
	return query, args
}

func (r *PgRepository) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+appointmentColumns,
		id, to, from,
	)

	a, err := scanAppointment(row)
	if errors.Is(err, ErrAppointmentNotFound) {
		return nil, ErrStatusChanged
	}
	return a, err
}

func (r *PgRepository) Move(ctx context.Context, id uuid.UUID, from Status, date time.Time, iv timeslot.Interval) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET appointment_date = $3,
		    start_time = $4,
		    end_time = $5,
		    status = 'rescheduled',
		    reminded_at = NULL,
		    updated_at = now()
		WHERE id = $1
		  AND status = $2
		RETURNING `+appointmentColumns,
		id, from, date, db.Time(iv.Start), db.Time(iv.End),
	)

	a, err := scanAppointment(row)
	if err != nil {
		return nil, writeErr("move", err)
	}
	return a, nil
}

// writeErr maps the outcome of a guarded write: no row back means the status
// guard failed, 23P01 means the exclusion constraint saw an overlap.
func writeErr(op string, err error) error {
	switch {
	case errors.Is(err, ErrAppointmentNotFound):
		return ErrStatusChanged
	case db.IsCode(err, db.CodeExclusionViolation):
		return ErrOverlap
	}
	return fmt.Errorf("%s appointment: %w", op, err)
}

func (r *PgRepository) FindUnreminded(ctx context.Context, fromDate, toDate time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE appointment_date BETWEEN $1 AND $2
		  AND status = ANY($3)
		  AND reminded_at IS NULL
		ORDER BY appointment_date, start_time
	`, fromDate, toDate, activeStatusArgs)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) MarkReminded(ctx context.Context, id uuid.UUID, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE appointments
		SET reminded_at = $2
		WHERE id = $1 AND reminded_at IS NULL
	`, id, at)
	if err != nil {
		return fmt.Errorf("mark reminded: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrStatusChanged
	}
	return nil
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
