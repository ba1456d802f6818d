package availability

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/schedule"
	"github.com/hackgods/clinic-scheduling/internal/timeslot"
)

// WorkingDay is what a doctor offers on a date before bookings are
// subtracted: the working hours and the intervals inside them that are closed.
type WorkingDay struct {
	Hours  timeslot.Interval
	Breaks []timeslot.Interval
}

// Strategy decides a doctor's working day. ok is false when the doctor does
// not work that date. It is chosen when the Calculator is built.
type Strategy interface {
	WorkingDay(ctx context.Context, doctorID uuid.UUID, date time.Time) (day WorkingDay, ok bool, err error)
}

// TemplateSource is satisfied by *schedule.Service.
type TemplateSource interface {
	ActiveTemplate(ctx context.Context, doctorID uuid.UUID, day time.Weekday) (*schedule.Template, error)
}

// WeeklyTemplate derives the working day from the doctor's active template
// for the date's weekday.
type WeeklyTemplate struct {
	Templates TemplateSource
}

func (w WeeklyTemplate) WorkingDay(ctx context.Context, doctorID uuid.UUID, date time.Time) (WorkingDay, bool, error) {
	tpl, err := w.Templates.ActiveTemplate(ctx, doctorID, date.Weekday())
	if err != nil {
		if errors.Is(err, schedule.ErrTemplateNotFound) {
			return WorkingDay{}, false, nil
		}
		return WorkingDay{}, false, err
	}

	day := WorkingDay{Hours: tpl.Hours()}
	if br, ok := tpl.Break(); ok {
		day.Breaks = append(day.Breaks, br)
	}
	return day, true, nil
}
