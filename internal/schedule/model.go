package schedule

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/timeslot"
)

var (
	ErrTemplateNotFound = errors.New("schedule template not found")
	ErrInvalidTemplate  = errors.New("invalid schedule template")
)

// Template is a doctor's working hours for one day of the week. There is at
// most one template per (doctor, day); it is deactivated, never deleted.
type Template struct {
	ID         uuid.UUID
	DoctorID   uuid.UUID
	Day        time.Weekday
	Start      timeslot.TimeOfDay
	End        timeslot.TimeOfDay
	BreakStart *timeslot.TimeOfDay
	BreakEnd   *timeslot.TimeOfDay
	Active     bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (t Template) Hours() timeslot.Interval {
	return timeslot.Interval{Start: t.Start, End: t.End}
}

// Break returns the break interval, if the template has one.
func (t Template) Break() (timeslot.Interval, bool) {
	if t.BreakStart == nil || t.BreakEnd == nil {
		return timeslot.Interval{}, false
	}
	return timeslot.Interval{Start: *t.BreakStart, End: *t.BreakEnd}, true
}

func (t Template) Validate() error {
	if t.Day < time.Sunday || t.Day > time.Saturday {
		return fmt.Errorf("%w: day of week %d", ErrInvalidTemplate, t.Day)
	}
	if !t.Hours().Valid() {
		return fmt.Errorf("%w: start %s must be before end %s", ErrInvalidTemplate, t.Start, t.End)
	}
	if (t.BreakStart == nil) != (t.BreakEnd == nil) {
		return fmt.Errorf("%w: break needs both start and end", ErrInvalidTemplate)
	}

	br, ok := t.Break()
	if !ok {
		return nil
	}
	if !br.Valid() {
		return fmt.Errorf("%w: break start %s must be before break end %s", ErrInvalidTemplate, br.Start, br.End)
	}
	if !br.Within(t.Hours()) {
		return fmt.Errorf("%w: break %s outside working hours %s", ErrInvalidTemplate, br, t.Hours())
	}
	return nil
}
