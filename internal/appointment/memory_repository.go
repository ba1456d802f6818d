package appointment

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/timeslot"
)

// MemoryRepository is an in-process ledger. Every mutation that can create
// an overlap runs its check under the same write lock, which gives it the
// guarantee the exclusion constraint gives the postgres ledger.
type MemoryRepository struct {
	mu           sync.RWMutex
	appointments map[uuid.UUID]*Appointment
	events       []EventLog
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{appointments: make(map[uuid.UUID]*Appointment)}
}

func (r *MemoryRepository) overlapsLocked(doctorID uuid.UUID, date time.Time, iv timeslot.Interval, exclude uuid.UUID) bool {
	for _, a := range r.appointments {
		if a.ID == exclude || a.DoctorID != doctorID || !a.Date.Equal(date) || !a.Status.Active() {
			continue
		}
		if a.Interval().Overlaps(iv) {
			return true
		}
	}
	return false
}

func (r *MemoryRepository) Insert(_ context.Context, a *Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if a.Status.Active() && r.overlapsLocked(a.DoctorID, a.Date, a.Interval(), uuid.Nil) {
		return ErrOverlap
	}

	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.Code == "" {
		a.Code = NewCode(a.ID, a.Date)
	}
	now := time.Now()
	a.CreatedAt, a.UpdatedAt = now, now

	cp := *a
	r.appointments[a.ID] = &cp
	return nil
}

func (r *MemoryRepository) GetAppointmentByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	cp := *a
	return &cp, nil
}

func sortByDateTime(list []Appointment) {
	sort.Slice(list, func(i, j int) bool {
		if !list[i].Date.Equal(list[j].Date) {
			return list[i].Date.Before(list[j].Date)
		}
		return list[i].Start < list[j].Start
	})
}

func (r *MemoryRepository) ListActiveForDoctorDate(_ context.Context, doctorID uuid.UUID, date time.Time) ([]Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []Appointment
	for _, a := range r.appointments {
		if a.DoctorID == doctorID && a.Date.Equal(date) && a.Status.Active() {
			result = append(result, *a)
		}
	}
	sortByDateTime(result)
	return result, nil
}

func (r *MemoryRepository) List(_ context.Context, f Filter) ([]Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []Appointment
	for _, a := range r.appointments {
		switch {
		case f.DoctorID != nil && a.DoctorID != *f.DoctorID,
			f.PatientID != nil && a.PatientID != *f.PatientID,
			f.Status != nil && a.Status != *f.Status,
			f.From != nil && a.Date.Before(*f.From),
			f.To != nil && a.Date.After(*f.To):
			continue
		}
		result = append(result, *a)
	}
	sortByDateTime(result)

	if f.Offset >= len(result) {
		return nil, nil
	}
	result = result[f.Offset:]
	if f.Limit > 0 && f.Limit < len(result) {
		result = result[:f.Limit]
	}
	return result, nil
}

func (r *MemoryRepository) UpdateAppointmentStatus(_ context.Context, id uuid.UUID, from, to Status) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.appointments[id]
	if !ok || a.Status != from {
		return nil, ErrStatusChanged
	}
	if to.Active() && !from.Active() && r.overlapsLocked(a.DoctorID, a.Date, a.Interval(), a.ID) {
		return nil, ErrOverlap
	}
	a.Status = to
	a.UpdatedAt = time.Now()
	cp := *a
	return &cp, nil
}

func (r *MemoryRepository) Move(_ context.Context, id uuid.UUID, from Status, date time.Time, iv timeslot.Interval) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.appointments[id]
	if !ok || a.Status != from {
		return nil, ErrStatusChanged
	}
	if r.overlapsLocked(a.DoctorID, date, iv, a.ID) {
		return nil, ErrOverlap
	}

	a.Date = date
	a.Start, a.End = iv.Start, iv.End
	a.Status = StatusRescheduled
	a.RemindedAt = nil
	a.UpdatedAt = time.Now()
	cp := *a
	return &cp, nil
}

func (r *MemoryRepository) FindUnreminded(_ context.Context, fromDate, toDate time.Time) ([]Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []Appointment
	for _, a := range r.appointments {
		if !a.Status.Active() || a.RemindedAt != nil {
			continue
		}
		if a.Date.Before(fromDate) || a.Date.After(toDate) {
			continue
		}
		result = append(result, *a)
	}
	sortByDateTime(result)
	return result, nil
}

func (r *MemoryRepository) MarkReminded(_ context.Context, id uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.appointments[id]
	if !ok || a.RemindedAt != nil {
		return ErrStatusChanged
	}
	a.RemindedAt = &at
	return nil
}

func (r *MemoryRepository) InsertEvent(_ context.Context, ev EventLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ev.ID = int64(len(r.events) + 1)
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now()
	}
	r.events = append(r.events, ev)
	return nil
}

// Events returns the recorded event log, oldest first.
func (r *MemoryRepository) Events() []EventLog {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]EventLog, len(r.events))
	copy(out, r.events)
	return out
}
