package waitlist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-scheduling/internal/metrics"
	"github.com/hackgods/clinic-scheduling/internal/notify"
	"github.com/hackgods/clinic-scheduling/internal/timeslot"
)

// SlotChecker is satisfied by *availability.Calculator.
type SlotChecker interface {
	IsSlotAvailable(ctx context.Context, doctorID uuid.UUID, date time.Time, iv timeslot.Interval, exclude uuid.UUID) (bool, error)
}

type Manager struct {
	repo       Repository
	slots      SlotChecker
	dispatcher notify.Dispatcher
	loc        *time.Location
	now        func() time.Time
	log        *zap.Logger
	metrics    *metrics.Metrics
}

type ManagerOption func(*Manager)

func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.now = now }
}

func WithLocation(loc *time.Location) ManagerOption {
	return func(m *Manager) { m.loc = loc }
}

func WithMetrics(mt *metrics.Metrics) ManagerOption {
	return func(m *Manager) { m.metrics = mt }
}

func NewManager(repo Repository, slots SlotChecker, dispatcher notify.Dispatcher, log *zap.Logger, opts ...ManagerOption) *Manager {
	if dispatcher == nil {
		dispatcher = notify.Nop{}
	}
	if log == nil {
		log = zap.NewNop()
	}

	m := &Manager{
		repo:       repo,
		slots:      slots,
		dispatcher: dispatcher,
		loc:        time.UTC,
		now:        time.Now,
		log:        log.Named("waitlist"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Enqueue records that patientID wants doctorID on date within iv. Entries
// are append-only; repeated calls create repeated entries.
func (m *Manager) Enqueue(ctx context.Context, patientID, doctorID uuid.UUID, date time.Time, iv timeslot.Interval, notes string) (*Entry, error) {
	if !iv.Valid() {
		return nil, fmt.Errorf("%w: requested range %s", ErrInvalidEntry, iv)
	}
	date = timeslot.Date(date)
	if date.Before(timeslot.Today(m.now(), m.loc)) {
		return nil, fmt.Errorf("%w: requested date %s is in the past", ErrInvalidEntry, timeslot.FormatDate(date))
	}

	e := &Entry{
		PatientID:      patientID,
		DoctorID:       doctorID,
		RequestedDate:  date,
		RequestedStart: iv.Start,
		RequestedEnd:   iv.End,
		Notes:          notes,
	}
	if err := m.repo.Create(ctx, e); err != nil {
		return nil, fmt.Errorf("create waiting list entry: %w", err)
	}

	m.log.Info("waiting list entry created",
		zap.String("entry_id", e.ID.String()),
		zap.String("patient_id", patientID.String()),
		zap.String("doctor_id", doctorID.String()),
		zap.String("date", timeslot.FormatDate(date)),
		zap.Stringer("range", iv),
	)
	return e, nil
}

func (m *Manager) Get(ctx context.Context, id uuid.UUID) (*Entry, error) {
	e, err := m.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrEntryNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get waiting list entry: %w", err)
	}
	return e, nil
}

func (m *Manager) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]Entry, error) {
	entries, err := m.repo.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("list waiting list entries: %w", err)
	}
	return entries, nil
}

// NotifyIfOpened re-checks every pending entry for doctorID on date and, for
// each whose range is now free, marks it notified and dispatches a
// slot_opened event to the patient. It returns how many were notified.
// Entries are not booked on the patient's behalf.
func (m *Manager) NotifyIfOpened(ctx context.Context, doctorID uuid.UUID, date time.Time) (int, error) {
	date = timeslot.Date(date)
	if date.Before(timeslot.Today(m.now(), m.loc)) {
		return 0, nil
	}

	entries, err := m.repo.ListPending(ctx, doctorID, date)
	if err != nil {
		return 0, fmt.Errorf("list pending entries: %w", err)
	}

	notified := 0
	for _, e := range entries {
		ok, err := m.slots.IsSlotAvailable(ctx, doctorID, date, e.Interval(), uuid.Nil)
		if err != nil {
			return notified, fmt.Errorf("check entry %s: %w", e.ID, err)
		}
		if !ok {
			continue
		}

		if err := m.repo.MarkNotified(ctx, e.ID, m.now()); err != nil {
			if errors.Is(err, ErrAlreadyNotified) {
				continue
			}
			return notified, fmt.Errorf("mark entry %s notified: %w", e.ID, err)
		}

		m.dispatcher.Dispatch(e.PatientID, notify.KindSlotOpened, e.ID.String())
		notified++
	}

	m.metrics.ObserveWaitlistNotified(notified)
	if notified > 0 {
		m.log.Info("waiting list notified",
			zap.String("doctor_id", doctorID.String()),
			zap.String("date", timeslot.FormatDate(date)),
			zap.Int("count", notified),
		)
	}
	return notified, nil
}

// Sweep runs NotifyIfOpened for every (doctor, date) from today on that still
// has pending entries. A failure for one pair is logged and the sweep goes on.
func (m *Manager) Sweep(ctx context.Context) (int, error) {
	pairs, err := m.repo.PendingDoctorDates(ctx, timeslot.Today(m.now(), m.loc))
	if err != nil {
		return 0, fmt.Errorf("list pending doctor dates: %w", err)
	}

	total := 0
	for _, p := range pairs {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		n, err := m.NotifyIfOpened(ctx, p.DoctorID, p.Date)
		total += n
		if err != nil {
			m.log.Warn("waiting list sweep failed",
				zap.String("doctor_id", p.DoctorID.String()),
				zap.String("date", timeslot.FormatDate(p.Date)),
				zap.Error(err),
			)
		}
	}
	return total, nil
}
