package waitlist

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/timeslot"
)

type MemoryRepository struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]*Entry
	seq     []uuid.UUID
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{entries: make(map[uuid.UUID]*Entry)}
}

func (r *MemoryRepository) Create(_ context.Context, e *Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	e.CreatedAt = time.Now()
	cp := *e
	r.entries[e.ID] = &cp
	r.seq = append(r.seq, e.ID)
	return nil
}

func (r *MemoryRepository) GetByID(_ context.Context, id uuid.UUID) (*Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[id]
	if !ok {
		return nil, ErrEntryNotFound
	}
	cp := *e
	return &cp, nil
}

// ListPending returns entries in insertion order.
func (r *MemoryRepository) ListPending(_ context.Context, doctorID uuid.UUID, date time.Time) ([]Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []Entry
	for _, id := range r.seq {
		e := r.entries[id]
		if e.DoctorID == doctorID && e.RequestedDate.Equal(date) && !e.Notified {
			result = append(result, *e)
		}
	}
	return result, nil
}

func (r *MemoryRepository) ListByPatient(_ context.Context, patientID uuid.UUID) ([]Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []Entry
	for _, id := range r.seq {
		if e := r.entries[id]; e.PatientID == patientID {
			result = append(result, *e)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		if !result[i].RequestedDate.Equal(result[j].RequestedDate) {
			return result[i].RequestedDate.Before(result[j].RequestedDate)
		}
		return result[i].RequestedStart < result[j].RequestedStart
	})
	return result, nil
}

func (r *MemoryRepository) PendingDoctorDates(_ context.Context, fromDate time.Time) ([]DoctorDate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]bool)
	var result []DoctorDate
	for _, id := range r.seq {
		e := r.entries[id]
		if e.Notified || e.RequestedDate.Before(fromDate) {
			continue
		}
		key := e.DoctorID.String() + "/" + timeslot.FormatDate(e.RequestedDate)
		if !seen[key] {
			seen[key] = true
			result = append(result, DoctorDate{DoctorID: e.DoctorID, Date: e.RequestedDate})
		}
	}
	sort.SliceStable(result, func(i, j int) bool { return result[i].Date.Before(result[j].Date) })
	return result, nil
}

func (r *MemoryRepository) MarkNotified(_ context.Context, id uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return ErrEntryNotFound
	}
	if e.Notified {
		return ErrAlreadyNotified
	}
	e.Notified = true
	e.NotifiedAt = &at
	return nil
}
