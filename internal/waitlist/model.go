package waitlist

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/timeslot"
)

var (
	ErrEntryNotFound   = errors.New("waiting list entry not found")
	ErrAlreadyNotified = errors.New("waiting list entry already notified")
	ErrInvalidEntry    = errors.New("invalid waiting list entry")
)

// Entry records demand that could not be booked: a patient wanted doctorID
// on RequestedDate between RequestedStart and RequestedEnd.
type Entry struct {
	ID             uuid.UUID
	PatientID      uuid.UUID
	DoctorID       uuid.UUID
	RequestedDate  time.Time
	RequestedStart timeslot.TimeOfDay
	RequestedEnd   timeslot.TimeOfDay
	Notes          string
	Notified       bool
	NotifiedAt     *time.Time
	CreatedAt      time.Time
}

func (e Entry) Interval() timeslot.Interval {
	return timeslot.Interval{Start: e.RequestedStart, End: e.RequestedEnd}
}

// DoctorDate is a (doctor, date) pair that still has pending entries.
type DoctorDate struct {
	DoctorID uuid.UUID
	Date     time.Time
}
