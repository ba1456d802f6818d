// Package availability turns a doctor's working day and the ledger's active
// bookings into free slots, and answers whether an arbitrary range is free.
// All ranges are half-open; [a,b) and [c,d) conflict iff a < d and c < b.
package availability

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/timeslot"
)

const DefaultUnit = time.Hour

// BookedSource is satisfied by appointment.Repository.
type BookedSource interface {
	ListActiveForDoctorDate(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]appointment.Appointment, error)
}

type Calculator struct {
	strategy Strategy
	gate     Strategy
	booked   BookedSource
	unit     time.Duration
}

type Option func(*Calculator)

// WithGate makes IsSlotAvailable read working days from gate while
// AvailableSlots keeps using the listing strategy. Bookings are admitted on
// the gate, so it must not serve stale templates.
func WithGate(gate Strategy) Option {
	return func(c *Calculator) {
		if gate != nil {
			c.gate = gate
		}
	}
}

// NewCalculator builds a calculator emitting slots of length unit. A
// unit shorter than a minute falls back to DefaultUnit.
func NewCalculator(strategy Strategy, booked BookedSource, unit time.Duration, opts ...Option) *Calculator {
	if unit < time.Minute {
		unit = DefaultUnit
	}
	c := &Calculator{strategy: strategy, gate: strategy, booked: booked, unit: unit}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Calculator) Unit() time.Duration {
	return c.unit
}

// AvailableSlots returns the free unit-length slots of doctorID on date, in
// order. Slots start at the template start and step by the unit; a slot whose
// end would pass the template end is dropped rather than truncated.
func (c *Calculator) AvailableSlots(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]timeslot.Interval, error) {
	day, ok, err := c.strategy.WorkingDay(ctx, doctorID, date)
	if err != nil {
		return nil, fmt.Errorf("working day: %w", err)
	}
	if !ok {
		return []timeslot.Interval{}, nil
	}

	busy, err := c.busy(ctx, doctorID, date, uuid.Nil)
	if err != nil {
		return nil, err
	}

	slots := []timeslot.Interval{}
	for cur := day.Hours.Start; cur.Add(c.unit) <= day.Hours.End; cur = cur.Add(c.unit) {
		slot := timeslot.Interval{Start: cur, End: cur.Add(c.unit)}
		if overlapsAny(slot, day.Breaks) || overlapsAny(slot, busy) {
			continue
		}
		slots = append(slots, slot)
	}
	return slots, nil
}

// IsSlotAvailable applies the same rules to an arbitrary range: inside the
// working hours, clear of every break, and clear of every active booking
// except exclude (the appointment being moved, or uuid.Nil). The working day
// comes from the gate strategy.
func (c *Calculator) IsSlotAvailable(ctx context.Context, doctorID uuid.UUID, date time.Time, iv timeslot.Interval, exclude uuid.UUID) (bool, error) {
	if !iv.Valid() {
		return false, nil
	}

	day, ok, err := c.gate.WorkingDay(ctx, doctorID, date)
	if err != nil {
		return false, fmt.Errorf("working day: %w", err)
	}
	if !ok || !iv.Within(day.Hours) || overlapsAny(iv, day.Breaks) {
		return false, nil
	}

	busy, err := c.busy(ctx, doctorID, date, exclude)
	if err != nil {
		return false, err
	}
	return !overlapsAny(iv, busy), nil
}

func (c *Calculator) busy(ctx context.Context, doctorID uuid.UUID, date time.Time, exclude uuid.UUID) ([]timeslot.Interval, error) {
	appts, err := c.booked.ListActiveForDoctorDate(ctx, doctorID, date)
	if err != nil {
		return nil, fmt.Errorf("list booked: %w", err)
	}

	busy := make([]timeslot.Interval, 0, len(appts))
	for _, a := range appts {
		if a.ID == exclude || !a.Status.Active() {
			continue
		}
		busy = append(busy, a.Interval())
	}
	return busy, nil
}

func overlapsAny(iv timeslot.Interval, others []timeslot.Interval) bool {
	for _, o := range others {
		if iv.Overlaps(o) {
			return true
		}
	}
	return false
}
