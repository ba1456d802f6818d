package db

import (
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/hackgods/clinic-scheduling/internal/timeslot"
)

// SQLSTATE codes the repositories translate into domain errors.
const (
	CodeExclusionViolation = "23P01"
	CodeUniqueViolation    = "23505"
)

const microsPerMinute = int64(time.Minute / time.Microsecond)

// Time converts a wall-clock time of day to a TIME parameter.
func Time(t timeslot.TimeOfDay) pgtype.Time {
	return pgtype.Time{Microseconds: int64(t) * microsPerMinute, Valid: true}
}

// NullTime is Time for optional columns; nil becomes SQL NULL.
func NullTime(t *timeslot.TimeOfDay) pgtype.Time {
	if t == nil {
		return pgtype.Time{}
	}
	return Time(*t)
}

func TimeOfDay(t pgtype.Time) timeslot.TimeOfDay {
	return timeslot.TimeOfDay(t.Microseconds / microsPerMinute)
}

func NullTimeOfDay(t pgtype.Time) *timeslot.TimeOfDay {
	if !t.Valid {
		return nil
	}
	v := TimeOfDay(t)
	return &v
}

// IsCode reports whether err is a postgres error with the given SQLSTATE.
func IsCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}
