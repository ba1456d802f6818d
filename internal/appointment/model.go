package appointment

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/timeslot"
)

type Status string

const (
	StatusBooked      Status = "booked"
	StatusConfirmed   Status = "confirmed"
	StatusCanceled    Status = "canceled"
	StatusCompleted   Status = "completed"
	StatusRescheduled Status = "rescheduled"
)

// ActiveStatuses hold their time range against other bookings.
var ActiveStatuses = []Status{StatusBooked, StatusConfirmed, StatusRescheduled}

var transitions = map[Status][]Status{
	StatusBooked:      {StatusConfirmed, StatusCanceled, StatusRescheduled},
	StatusConfirmed:   {StatusCanceled, StatusRescheduled, StatusCompleted},
	StatusRescheduled: {StatusCanceled, StatusRescheduled},
}

func (s Status) Valid() bool {
	switch s {
	case StatusBooked, StatusConfirmed, StatusCanceled, StatusCompleted, StatusRescheduled:
		return true
	}
	return false
}

func (s Status) Active() bool {
	return s == StatusBooked || s == StatusConfirmed || s == StatusRescheduled
}

// Terminal statuses accept no further transitions.
func (s Status) Terminal() bool {
	return s == StatusCanceled || s == StatusCompleted
}

func (s Status) CanTransitionTo(to Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == to {
			return true
		}
	}
	return false
}

type ServiceKind string

const (
	ServiceConsultation ServiceKind = "consultation"
	ServiceLab          ServiceKind = "lab"
	ServiceFollowUp     ServiceKind = "follow_up"
)

func (k ServiceKind) Valid() bool {
	switch k {
	case ServiceConsultation, ServiceLab, ServiceFollowUp:
		return true
	}
	return false
}

// Appointment is a committed booking. Date is a calendar day (midnight UTC)
// and Start/End are wall-clock times in the clinic's timezone.
type Appointment struct {
	ID          uuid.UUID
	PatientID   uuid.UUID
	DoctorID    uuid.UUID
	Date        time.Time
	Start       timeslot.TimeOfDay
	End         timeslot.TimeOfDay
	ServiceKind ServiceKind
	Status      Status
	Notes       string
	Code        string
	RemindedAt  *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (a Appointment) Interval() timeslot.Interval {
	return timeslot.Interval{Start: a.Start, End: a.End}
}

// StartsAt is the instant the appointment begins in loc.
func (a Appointment) StartsAt(loc *time.Location) time.Time {
	return timeslot.At(a.Date, a.Start, loc)
}

// NewCode builds the human-readable booking reference, APT-<id prefix>-<YYYYMMDD>.
func NewCode(id uuid.UUID, date time.Time) string {
	prefix := strings.ToUpper(strings.ReplaceAll(id.String(), "-", "")[:8])
	return fmt.Sprintf("APT-%s-%s", prefix, date.Format("20060102"))
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}

// Filter narrows List. Zero values mean "any".
type Filter struct {
	DoctorID  *uuid.UUID
	PatientID *uuid.UUID
	Status    *Status
	From      *time.Time
	To        *time.Time
	Limit     int
	Offset    int
}
