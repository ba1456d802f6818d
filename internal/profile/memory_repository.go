package profile

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository keeps profiles in process memory. Used by the memory
// storage driver and by tests.
type MemoryRepository struct {
	mu       sync.RWMutex
	doctors  map[uuid.UUID]*Doctor
	patients map[uuid.UUID]*Patient
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		doctors:  make(map[uuid.UUID]*Doctor),
		patients: make(map[uuid.UUID]*Patient),
	}
}

func (r *MemoryRepository) GetDoctorByID(_ context.Context, id uuid.UUID) (*Doctor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.doctors[id]
	if !ok || d.Deleted {
		return nil, ErrDoctorNotFound
	}
	cp := *d
	return &cp, nil
}

func (r *MemoryRepository) GetPatientByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.patients[id]
	if !ok || p.Deleted {
		return nil, ErrPatientNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *MemoryRepository) CreateDoctor(_ context.Context, d *Doctor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	now := time.Now()
	d.CreatedAt, d.UpdatedAt = now, now
	cp := *d
	r.doctors[d.ID] = &cp
	return nil
}

func (r *MemoryRepository) CreatePatient(_ context.Context, p *Patient) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	now := time.Now()
	p.CreatedAt, p.UpdatedAt = now, now
	cp := *p
	r.patients[p.ID] = &cp
	return nil
}

func (r *MemoryRepository) SoftDeleteDoctor(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.doctors[id]
	if !ok || d.Deleted {
		return ErrDoctorNotFound
	}
	now := time.Now()
	d.Deleted, d.DeletedAt, d.UpdatedAt = true, &now, now
	return nil
}

func (r *MemoryRepository) SoftDeletePatient(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.patients[id]
	if !ok || p.Deleted {
		return ErrPatientNotFound
	}
	now := time.Now()
	p.Deleted, p.DeletedAt, p.UpdatedAt = true, &now, now
	return nil
}
