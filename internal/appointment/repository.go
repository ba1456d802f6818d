package appointment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/timeslot"
)

var (
	ErrAppointmentNotFound = errors.New("appointment not found")
	// ErrOverlap means another active appointment of the same doctor already
	// covers part of the requested range.
	ErrOverlap = errors.New("overlapping active appointment")
	// ErrStatusChanged is returned by compare-and-set updates when the stored
	// status no longer matches the expected one.
	ErrStatusChanged = errors.New("appointment status changed concurrently")
)

// Repository is the booking ledger. Insert and Move enforce the no-overlap
// rule for active statuses themselves, so the check cannot be skipped by a
// racing caller.
type Repository interface {
	Insert(ctx context.Context, a *Appointment) error
	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	ListActiveForDoctorDate(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]Appointment, error)
	List(ctx context.Context, f Filter) ([]Appointment, error)

	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error)
	// Move sets a new date and range and flips the status to Rescheduled.
	Move(ctx context.Context, id uuid.UUID, from Status, date time.Time, iv timeslot.Interval) (*Appointment, error)

	// Reminders
	FindUnreminded(ctx context.Context, fromDate, toDate time.Time) ([]Appointment, error)
	MarkReminded(ctx context.Context, id uuid.UUID, at time.Time) error

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
}
