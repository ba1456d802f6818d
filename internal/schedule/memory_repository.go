package schedule

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type templateKey struct {
	doctorID uuid.UUID
	day      time.Weekday
}

type MemoryRepository struct {
	mu        sync.RWMutex
	templates map[templateKey]*Template
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{templates: make(map[templateKey]*Template)}
}

func (r *MemoryRepository) Upsert(_ context.Context, t *Template) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := templateKey{t.DoctorID, t.Day}
	now := time.Now()

	if existing, ok := r.templates[key]; ok {
		t.ID = existing.ID
		t.CreatedAt = existing.CreatedAt
	} else {
		if t.ID == uuid.Nil {
			t.ID = uuid.New()
		}
		t.CreatedAt = now
	}
	t.UpdatedAt = now

	cp := *t
	r.templates[key] = &cp
	return nil
}

func (r *MemoryRepository) GetForDay(_ context.Context, doctorID uuid.UUID, day time.Weekday) (*Template, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.templates[templateKey{doctorID, day}]
	if !ok {
		return nil, ErrTemplateNotFound
	}
	cp := *t
	return &cp, nil
}

func (r *MemoryRepository) ListByDoctor(_ context.Context, doctorID uuid.UUID) ([]Template, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []Template
	for key, t := range r.templates {
		if key.doctorID == doctorID {
			result = append(result, *t)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Day < result[j].Day })
	return result, nil
}

func (r *MemoryRepository) SetActive(_ context.Context, doctorID uuid.UUID, day time.Weekday, active bool) (*Template, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.templates[templateKey{doctorID, day}]
	if !ok {
		return nil, ErrTemplateNotFound
	}
	t.Active = active
	t.UpdatedAt = time.Now()
	cp := *t
	return &cp, nil
}
