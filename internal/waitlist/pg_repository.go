package waitlist

import (
	"context"
	"errors"
	"fmt"
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

const entryColumns = `id, patient_id, doctor_id, requested_date, requested_start, requested_end,
	notes, is_notified, notified_at, created_at`

func scanEntry(row pgx.Row) (*Entry, error) {
	var (
		e          Entry
		start, end pgtype.Time
	)

	err := row.Scan(
		&e.ID,
		&e.PatientID,
		&e.DoctorID,
		&e.RequestedDate,
		&start,
		&end,
		&e.Notes,
		&e.Notified,
		&e.NotifiedAt,
		&e.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEntryNotFound
		}
		return nil, err
	}

	e.RequestedDate = timeslot.Date(e.RequestedDate)
	e.RequestedStart = db.TimeOfDay(start)
	e.RequestedEnd = db.TimeOfDay(end)
	return &e, nil
}

func collectEntries(rows pgx.Rows) ([]Entry, error) {
	defer rows.Close()

	var result []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *e)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) Create(ctx context.Context, e *Entry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO waiting_list_entries (id, patient_id, doctor_id, requested_date, requested_start, requested_end, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		RETURNING `+entryColumns,
		e.ID, e.PatientID, e.DoctorID, e.RequestedDate,
		db.Time(e.RequestedStart), db.Time(e.RequestedEnd), e.Notes,
	)

	created, err := scanEntry(row)
	if err != nil {
		return fmt.Errorf("insert waiting list entry: %w", err)
	}
	*e = *created
	return nil
}

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*Entry, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+entryColumns+`
		FROM waiting_list_entries
		WHERE id = $1
	`, id)
	return scanEntry(row)
}

func (r *PgRepository) ListPending(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]Entry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+entryColumns+`
		FROM waiting_list_entries
		WHERE doctor_id = $1
		  AND requested_date = $2
		  AND NOT is_notified
		ORDER BY created_at
	`, doctorID, date)
	if err != nil {
		return nil, err
	}
	return collectEntries(rows)
}

func (r *PgRepository) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]Entry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+entryColumns+`
		FROM waiting_list_entries
		WHERE patient_id = $1
		ORDER BY requested_date, requested_start
	`, patientID)
	if err != nil {
		return nil, err
	}
	return collectEntries(rows)
}

func (r *PgRepository) PendingDoctorDates(ctx context.Context, fromDate time.Time) ([]DoctorDate, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT doctor_id, requested_date
		FROM waiting_list_entries
		WHERE NOT is_notified
		  AND requested_date >= $1
		ORDER BY requested_date
	`, fromDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []DoctorDate
	for rows.Next() {
		var dd DoctorDate
		if err := rows.Scan(&dd.DoctorID, &dd.Date); err != nil {
			return nil, err
		}
		dd.Date = timeslot.Date(dd.Date)
		result = append(result, dd)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) MarkNotified(ctx context.Context, id uuid.UUID, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE waiting_list_entries
		SET is_notified = true,
		    notified_at = $2
		WHERE id = $1 AND NOT is_notified
	`, id, at)
	if err != nil {
		return fmt.Errorf("mark notified: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyNotified
	}
	return nil
}
