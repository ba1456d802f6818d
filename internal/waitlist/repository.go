package waitlist

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository is append-only apart from MarkNotified, which flips an entry
// exactly once and returns ErrAlreadyNotified to any later caller.
type Repository interface {
	Create(ctx context.Context, e *Entry) error
	GetByID(ctx context.Context, id uuid.UUID) (*Entry, error)
	ListPending(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]Entry, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]Entry, error)
	PendingDoctorDates(ctx context.Context, fromDate time.Time) ([]DoctorDate, error)
	MarkNotified(ctx context.Context, id uuid.UUID, at time.Time) error
}
