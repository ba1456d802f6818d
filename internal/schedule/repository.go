package schedule

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository persists weekly templates. Upsert keys on (doctor, day) so a
// doctor never holds two templates for the same weekday.
type Repository interface {
	Upsert(ctx context.Context, t *Template) error
	GetForDay(ctx context.Context, doctorID uuid.UUID, day time.Weekday) (*Template, error)
	ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]Template, error)
	SetActive(ctx context.Context, doctorID uuid.UUID, day time.Weekday, active bool) (*Template, error)
}
