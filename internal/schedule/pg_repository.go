package schedule

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
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const templateColumns = `id, doctor_id, day_of_week, start_time, end_time, break_start, break_end, is_active, created_at, updated_at`

func scanTemplate(row pgx.Row) (*Template, error) {
	var (
		t                        Template
		day                      int16
		start, end, bStart, bEnd pgtype.Time
	)

	err := row.Scan(
		&t.ID,
		&t.DoctorID,
		&day,
		&start,
		&end,
		&bStart,
		&bEnd,
		&t.Active,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTemplateNotFound
		}
		return nil, err
	}

	t.Day = time.Weekday(day)
	t.Start = db.TimeOfDay(start)
	t.End = db.TimeOfDay(end)
	t.BreakStart = db.NullTimeOfDay(bStart)
	t.BreakEnd = db.NullTimeOfDay(bEnd)
	return &t, nil
}

func (r *PgRepository) Upsert(ctx context.Context, t *Template) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO schedule_templates (id, doctor_id, day_of_week, start_time, end_time, break_start, break_end, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
		ON CONFLICT (doctor_id, day_of_week) DO UPDATE
		SET start_time  = EXCLUDED.start_time,
		    end_time    = EXCLUDED.end_time,
		    break_start = EXCLUDED.break_start,
		    break_end   = EXCLUDED.break_end,
		    is_active   = EXCLUDED.is_active,
		    updated_at  = now()
		RETURNING `+templateColumns,
		t.ID, t.DoctorID, int16(t.Day), db.Time(t.Start), db.Time(t.End),
		db.NullTime(t.BreakStart), db.NullTime(t.BreakEnd), t.Active,
	)

	saved, err := scanTemplate(row)
	if err != nil {
		return fmt.Errorf("upsert schedule template: %w", err)
	}
	*t = *saved
	return nil
}

func (r *PgRepository) GetForDay(ctx context.Context, doctorID uuid.UUID, day time.Weekday) (*Template, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+templateColumns+`
		FROM schedule_templates
		WHERE doctor_id = $1 AND day_of_week = $2
	`, doctorID, int16(day))
	return scanTemplate(row)
}

func (r *PgRepository) ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]Template, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+templateColumns+`
		FROM schedule_templates
		WHERE doctor_id = $1
		ORDER BY day_of_week
	`, doctorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Template
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *t)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) SetActive(ctx context.Context, doctorID uuid.UUID, day time.Weekday, active bool) (*Template, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE schedule_templates
		SET is_active = $3,
		    updated_at = now()
		WHERE doctor_id = $1 AND day_of_week = $2
		RETURNING `+templateColumns,
		doctorID, int16(day), active,
	)
	return scanTemplate(row)
}
