package profile

import (
	"context"

	"github.com/google/uuid"
)

// Repository resolves the opaque identities handed to the scheduling core.
type Repository interface {
	GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)

	CreateDoctor(ctx context.Context, d *Doctor) error
	CreatePatient(ctx context.Context, p *Patient) error

	SoftDeleteDoctor(ctx context.Context, id uuid.UUID) error
	SoftDeletePatient(ctx context.Context, id uuid.UUID) error
}
