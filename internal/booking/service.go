// Package booking is the conflict and policy engine. It validates booking
// requests against the weekly schedule and the ledger, places them under a
// per-doctor-per-date lock, and enforces the cancellation and reschedule
// windows and the appointment state machine.
package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/metrics"
	"github.com/hackgods/clinic-scheduling/internal/notify"
	"github.com/hackgods/clinic-scheduling/internal/profile"
	redisclient "github.com/hackgods/clinic-scheduling/internal/redis"
	"github.com/hackgods/clinic-scheduling/internal/timeslot"
	"github.com/hackgods/clinic-scheduling/internal/waitlist"
)

const (
	EventAppointmentBooked      = "APPOINTMENT_BOOKED"
	EventAppointmentConfirmed   = "APPOINTMENT_CONFIRMED"
	EventAppointmentCanceled    = "APPOINTMENT_CANCELED"
	EventAppointmentRescheduled = "APPOINTMENT_RESCHEDULED"
	EventAppointmentCompleted   = "APPOINTMENT_COMPLETED"
	EventAppointmentReminded    = "APPOINTMENT_REMINDED"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// Profiles is satisfied by profile.Repository.
type Profiles interface {
	GetDoctorByID(ctx context.Context, id uuid.UUID) (*profile.Doctor, error)
	GetPatientByID(ctx context.Context, id uuid.UUID) (*profile.Patient, error)
}

// SlotChecker is satisfied by *availability.Calculator.
type SlotChecker interface {
	IsSlotAvailable(ctx context.Context, doctorID uuid.UUID, date time.Time, iv timeslot.Interval, exclude uuid.UUID) (bool, error)
}

// Waitlist is satisfied by *waitlist.Manager.
type Waitlist interface {
	Enqueue(ctx context.Context, patientID, doctorID uuid.UUID, date time.Time, iv timeslot.Interval, notes string) (*waitlist.Entry, error)
	NotifyIfOpened(ctx context.Context, doctorID uuid.UUID, date time.Time) (int, error)
}

type Policy struct {
	// Location is the clinic timezone that appointment wall times refer to.
	Location           *time.Location
	CancellationWindow time.Duration
	RescheduleWindow   time.Duration
	ReminderLead       time.Duration
	// WaitlistOnCancel runs the waiting list check for a date as soon as a
	// slot on it is freed by a cancellation or reschedule.
	WaitlistOnCancel bool
}

func DefaultPolicy() Policy {
	return Policy{
		Location:           time.UTC,
		CancellationWindow: 24 * time.Hour,
		RescheduleWindow:   24 * time.Hour,
		ReminderLead:       24 * time.Hour,
		WaitlistOnCancel:   true,
	}
}

type Dependencies struct {
	Ledger     appointment.Repository
	Profiles   Profiles
	Slots      SlotChecker
	Waitlist   Waitlist
	Dispatcher notify.Dispatcher
	Locker     Locker
	Log        *zap.Logger
	Metrics    *metrics.Metrics
	// Now defaults to time.Now.
	Now func() time.Time
}

type Service struct {
	ledger     appointment.Repository
	profiles   Profiles
	slots      SlotChecker
	waitlist   Waitlist
	dispatcher notify.Dispatcher
	locker     Locker
	policy     Policy
	log        *zap.Logger
	metrics    *metrics.Metrics
	now        func() time.Time
}

func NewService(deps Dependencies, policy Policy) *Service {
	if policy.Location == nil {
		policy.Location = time.UTC
	}

	s := &Service{
		ledger:     deps.Ledger,
		profiles:   deps.Profiles,
		slots:      deps.Slots,
		waitlist:   deps.Waitlist,
		dispatcher: deps.Dispatcher,
		locker:     deps.Locker,
		policy:     policy,
		log:        deps.Log,
		metrics:    deps.Metrics,
		now:        deps.Now,
	}
	if s.dispatcher == nil {
		s.dispatcher = notify.Nop{}
	}
	if s.locker == nil {
		s.locker = NewLocalLocker()
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Request is a booking request for [Start, End) on Date, in clinic time.
type Request struct {
	PatientID   uuid.UUID
	DoctorID    uuid.UUID
	Date        time.Time
	Start       timeslot.TimeOfDay
	End         timeslot.TimeOfDay
	ServiceKind appointment.ServiceKind
	Notes       string
}

func (r Request) Interval() timeslot.Interval {
	return timeslot.Interval{Start: r.Start, End: r.End}
}

// RequestBooking places a Booked appointment, or records the request on the
// waiting list and returns a *QueuedError when the range is not available.
//
// The availability check and the insert run under the doctor's lock for
// that date, and the ledger rejects overlaps on insert, so two concurrent
// requests for overlapping ranges cannot both succeed.
func (s *Service) RequestBooking(ctx context.Context, req Request) (*appointment.Appointment, error) {
	req.Date = timeslot.Date(req.Date)
	iv := req.Interval()

	if err := s.validateSlot(req.Date, iv); err != nil {
		s.metrics.ObserveBooking("request", "invalid")
		return nil, err
	}
	if !req.ServiceKind.Valid() {
		s.metrics.ObserveBooking("request", "invalid")
		return nil, fmt.Errorf("%w: unknown service kind %q", ErrValidation, req.ServiceKind)
	}
	if err := s.checkParties(ctx, req.DoctorID, req.PatientID); err != nil {
		return nil, err
	}

	var created *appointment.Appointment

	err := s.withDayLock(ctx, "request", req.DoctorID, req.Date, func(lockCtx context.Context) error {
		ok, err := s.slots.IsSlotAvailable(lockCtx, req.DoctorID, req.Date, iv, uuid.Nil)
		if err != nil {
			return fmt.Errorf("check availability: %w", err)
		}
		if !ok {
			return errUnavailable
		}

		appt := &appointment.Appointment{
			PatientID:   req.PatientID,
			DoctorID:    req.DoctorID,
			Date:        req.Date,
			Start:       req.Start,
			End:         req.End,
			ServiceKind: req.ServiceKind,
			Status:      appointment.StatusBooked,
			Notes:       req.Notes,
		}
		if err := s.ledger.Insert(lockCtx, appt); err != nil {
			if errors.Is(err, appointment.ErrOverlap) {
				return errUnavailable
			}
			return fmt.Errorf("insert appointment: %w", err)
		}

		created = appt
		return nil
	})

	if err != nil {
		if errors.Is(err, errUnavailable) {
			return nil, s.queue(ctx, req)
		}
		s.metrics.ObserveBooking("request", "error")
		return nil, err
	}

	s.metrics.ObserveBooking("request", "booked")
	s.dispatcher.Dispatch(created.PatientID, notify.KindBooking, created.Code)
	s.logEvent(ctx, created.ID, EventAppointmentBooked, map[string]any{
		"patient_id":   created.PatientID.String(),
		"doctor_id":    created.DoctorID.String(),
		"date":         timeslot.FormatDate(created.Date),
		"range":        created.Interval().String(),
		"service_kind": string(created.ServiceKind),
		"code":         created.Code,
	})

	return created, nil
}

func (s *Service) queue(ctx context.Context, req Request) error {
	if s.waitlist == nil {
		s.metrics.ObserveBooking("request", "conflict")
		return fmt.Errorf("%w: requested range %s is not available", ErrConflict, req.Interval())
	}

	entry, err := s.waitlist.Enqueue(ctx, req.PatientID, req.DoctorID, req.Date, req.Interval(), req.Notes)
	if err != nil {
		s.metrics.ObserveBooking("request", "conflict")
		s.log.Error("failed to record waiting list entry",
			zap.String("patient_id", req.PatientID.String()),
			zap.String("doctor_id", req.DoctorID.String()),
			zap.Error(err),
		)
		return fmt.Errorf("%w: requested range %s is not available", ErrConflict, req.Interval())
	}

	s.metrics.ObserveBooking("request", "queued")
	return &QueuedError{Entry: entry}
}

// Cancel moves an active appointment to Canceled. It is refused once the
// appointment has started, or when it starts within the cancellation window.
// Canceling twice is rejected as an invalid transition and has no effect.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error) {
	appt, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !appt.Status.CanTransitionTo(appointment.StatusCanceled) {
		s.metrics.ObserveBooking("cancel", "rejected")
		return nil, fmt.Errorf("%w: cannot cancel a %s appointment", ErrInvalidTransition, appt.Status)
	}
	if err := s.checkWindow(appt, s.policy.CancellationWindow, "cancel"); err != nil {
		s.metrics.ObserveBooking("cancel", "rejected")
		return nil, err
	}

	updated, err := s.ledger.UpdateAppointmentStatus(ctx, appt.ID, appt.Status, appointment.StatusCanceled)
	if err != nil {
		s.metrics.ObserveBooking("cancel", "error")
		if errors.Is(err, appointment.ErrStatusChanged) {
			return nil, fmt.Errorf("%w: appointment was modified concurrently", ErrConflict)
		}
		return nil, fmt.Errorf("cancel appointment: %w", err)
	}

	s.metrics.ObserveBooking("cancel", "ok")
	s.dispatcher.Dispatch(updated.PatientID, notify.KindCancellation, updated.Code)
	s.logEvent(ctx, updated.ID, EventAppointmentCanceled, map[string]any{
		"previous_status": string(appt.Status),
	})
	s.slotFreed(ctx, updated.DoctorID, updated.Date)

	return updated, nil
}

// Reschedule moves an appointment to a new date and range with the same
// doctor. The new range is validated like a fresh booking, ignoring the
// appointment itself, and must clear the reschedule window measured from the
// current start. An unavailable range is a plain conflict: nothing is queued.
// The old range is free as soon as the move commits.
func (s *Service) Reschedule(ctx context.Context, id uuid.UUID, date time.Time, iv timeslot.Interval) (*appointment.Appointment, error) {
	appt, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !appt.Status.CanTransitionTo(appointment.StatusRescheduled) {
		s.metrics.ObserveBooking("reschedule", "rejected")
		return nil, fmt.Errorf("%w: cannot reschedule a %s appointment", ErrInvalidTransition, appt.Status)
	}
	if err := s.checkWindow(appt, s.policy.RescheduleWindow, "reschedule"); err != nil {
		s.metrics.ObserveBooking("reschedule", "rejected")
		return nil, err
	}

	date = timeslot.Date(date)
	if err := s.validateSlot(date, iv); err != nil {
		s.metrics.ObserveBooking("reschedule", "invalid")
		return nil, err
	}

	var moved *appointment.Appointment

	err = s.withDayLock(ctx, "reschedule", appt.DoctorID, date, func(lockCtx context.Context) error {
		ok, err := s.slots.IsSlotAvailable(lockCtx, appt.DoctorID, date, iv, appt.ID)
		if err != nil {
			return fmt.Errorf("check availability: %w", err)
		}
		if !ok {
			return errUnavailable
		}

		moved, err = s.ledger.Move(lockCtx, appt.ID, appt.Status, date, iv)
		switch {
		case errors.Is(err, appointment.ErrOverlap):
			return errUnavailable
		case errors.Is(err, appointment.ErrStatusChanged):
			return fmt.Errorf("%w: appointment was modified concurrently", ErrConflict)
		case err != nil:
			return fmt.Errorf("move appointment: %w", err)
		}
		return nil
	})

	if err != nil {
		if errors.Is(err, errUnavailable) {
			s.metrics.ObserveBooking("reschedule", "conflict")
			return nil, fmt.Errorf("%w: requested range %s is not available", ErrConflict, iv)
		}
		s.metrics.ObserveBooking("reschedule", "error")
		return nil, err
	}

	s.metrics.ObserveBooking("reschedule", "ok")
	s.dispatcher.Dispatch(moved.PatientID, notify.KindReschedule, moved.Code)
	s.logEvent(ctx, moved.ID, EventAppointmentRescheduled, map[string]any{
		"from_date":  timeslot.FormatDate(appt.Date),
		"from_range": appt.Interval().String(),
		"to_date":    timeslot.FormatDate(moved.Date),
		"to_range":   moved.Interval().String(),
	})
	s.slotFreed(ctx, appt.DoctorID, appt.Date)

	return moved, nil
}

// Confirm is only allowed from Booked.
func (s *Service) Confirm(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error) {
	return s.transition(ctx, id, appointment.StatusBooked, appointment.StatusConfirmed, "confirm", EventAppointmentConfirmed)
}

// Complete is only allowed from Confirmed.
func (s *Service) Complete(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error) {
	return s.transition(ctx, id, appointment.StatusConfirmed, appointment.StatusCompleted, "complete", EventAppointmentCompleted)
}

func (s *Service) transition(ctx context.Context, id uuid.UUID, from, to appointment.Status, op, event string) (*appointment.Appointment, error) {
	appt, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if appt.Status != from {
		s.metrics.ObserveBooking(op, "rejected")
		return nil, fmt.Errorf("%w: cannot %s a %s appointment", ErrInvalidTransition, op, appt.Status)
	}

	updated, err := s.ledger.UpdateAppointmentStatus(ctx, appt.ID, from, to)
	if err != nil {
		s.metrics.ObserveBooking(op, "error")
		if errors.Is(err, appointment.ErrStatusChanged) {
			return nil, fmt.Errorf("%w: appointment was modified concurrently", ErrInvalidTransition)
		}
		return nil, fmt.Errorf("%s appointment: %w", op, err)
	}

	s.metrics.ObserveBooking(op, "ok")
	s.logEvent(ctx, updated.ID, event, map[string]any{})
	return updated, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error) {
	return s.get(ctx, id)
}

// List returns appointments matching f. Limit defaults to 20 and is capped at 100.
func (s *Service) List(ctx context.Context, f appointment.Filter) ([]appointment.Appointment, error) {
	if f.Limit <= 0 {
		f.Limit = defaultListLimit
	}
	if f.Limit > maxListLimit {
		f.Limit = maxListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	list, err := s.ledger.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return list, nil
}

// SendReminders dispatches a reminder for every active appointment that
// starts within the reminder lead and has not been reminded yet. It is
// intended to be called by the worker periodically.
func (s *Service) SendReminders(ctx context.Context) (int, error) {
	now := s.now()
	horizon := now.Add(s.policy.ReminderLead)

	candidates, err := s.ledger.FindUnreminded(ctx,
		timeslot.Today(now, s.policy.Location),
		timeslot.Today(horizon, s.policy.Location),
	)
	if err != nil {
		return 0, fmt.Errorf("find unreminded appointments: %w", err)
	}

	sent := 0
	for _, appt := range candidates {
		start := appt.StartsAt(s.policy.Location)
		if !start.After(now) || start.After(horizon) {
			continue
		}

		if err := s.ledger.MarkReminded(ctx, appt.ID, now); err != nil {
			if !errors.Is(err, appointment.ErrStatusChanged) {
				s.log.Warn("failed to mark appointment reminded",
					zap.String("appointment_id", appt.ID.String()),
					zap.Error(err),
				)
			}
			continue
		}

		s.dispatcher.Dispatch(appt.PatientID, notify.KindReminder, appt.Code)
		s.logEvent(ctx, appt.ID, EventAppointmentReminded, map[string]any{
			"starts_at": start,
		})
		s.metrics.ObserveBooking("reminder", "ok")
		sent++
	}

	return sent, nil
}

func (s *Service) get(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error) {
	appt, err := s.ledger.GetAppointmentByID(ctx, id)
	if err != nil {
		if errors.Is(err, appointment.ErrAppointmentNotFound) {
			return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
		}
		return nil, fmt.Errorf("load appointment: %w", err)
	}
	return appt, nil
}

func (s *Service) validateSlot(date time.Time, iv timeslot.Interval) error {
	if !iv.Valid() {
		return fmt.Errorf("%w: start %s must be before end %s", ErrValidation, iv.Start, iv.End)
	}
	if date.Before(timeslot.Today(s.now(), s.policy.Location)) {
		return fmt.Errorf("%w: date %s is in the past", ErrValidation, timeslot.FormatDate(date))
	}
	return nil
}

func (s *Service) checkParties(ctx context.Context, doctorID, patientID uuid.UUID) error {
	if _, err := s.profiles.GetDoctorByID(ctx, doctorID); err != nil {
		if errors.Is(err, profile.ErrDoctorNotFound) {
			return fmt.Errorf("%w: %w", ErrNotFound, err)
		}
		return fmt.Errorf("load doctor: %w", err)
	}
	if _, err := s.profiles.GetPatientByID(ctx, patientID); err != nil {
		if errors.Is(err, profile.ErrPatientNotFound) {
			return fmt.Errorf("%w: %w", ErrNotFound, err)
		}
		return fmt.Errorf("load patient: %w", err)
	}
	return nil
}

// checkWindow refuses changes to appointments that have started or start
// less than window from now. Exactly window ahead is still allowed.
func (s *Service) checkWindow(appt *appointment.Appointment, window time.Duration, op string) error {
	now := s.now()
	start := appt.StartsAt(s.policy.Location)

	if !now.Before(start) {
		return fmt.Errorf("%w: cannot %s an appointment that has already started", ErrPolicyViolation, op)
	}
	if start.Sub(now) < window {
		return fmt.Errorf("%w: cannot %s less than %s before the appointment", ErrPolicyViolation, op, window)
	}
	return nil
}

// withDayLock runs fn under the doctor/date lock. When the lock stays busy
// past the locker's wait, fn runs unlocked: the ledger itself rejects
// overlapping inserts and moves, so the outcome is the same and only the
// check-then-write window is wider.
func (s *Service) withDayLock(ctx context.Context, op string, doctorID uuid.UUID, date time.Time, fn func(context.Context) error) error {
	err := s.locker.WithLock(ctx, redisclient.DoctorDayKey(doctorID, date), fn)
	if !errors.Is(err, redisclient.ErrLockNotAcquired) {
		return err
	}

	s.metrics.ObserveBooking(op, "lock_busy")
	s.log.Warn("doctor day lock busy, relying on ledger overlap check",
		zap.String("op", op),
		zap.String("doctor_id", doctorID.String()),
		zap.String("date", timeslot.FormatDate(date)),
	)
	return fn(ctx)
}

// slotFreed runs the waiting list check for a date that just gained free
// time. Failures are logged, never returned.
func (s *Service) slotFreed(ctx context.Context, doctorID uuid.UUID, date time.Time) {
	if !s.policy.WaitlistOnCancel || s.waitlist == nil {
		return
	}
	if _, err := s.waitlist.NotifyIfOpened(ctx, doctorID, date); err != nil {
		s.log.Warn("waiting list check failed",
			zap.String("doctor_id", doctorID.String()),
			zap.String("date", timeslot.FormatDate(date)),
			zap.Error(err),
		)
	}
}

func (s *Service) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.log.Warn("failed to marshal event payload", zap.String("event", eventType), zap.Error(err))
		data = nil
	}

	apptID := appointmentID

	ev := appointment.EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     s.now(),
	}

	if err := s.ledger.InsertEvent(ctx, ev); err != nil {
		s.log.Warn("failed to insert event log",
			zap.String("event", eventType),
			zap.String("appointment_id", appointmentID.String()),
			zap.Error(err),
		)
	}
}
