package profile

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrDoctorNotFound  = errors.New("doctor not found")
	ErrPatientNotFound = errors.New("patient not found")
)

// Doctor and Patient are the identities the scheduling core refers to by id.
// Removal is soft: Deleted plus DeletedAt, and a deleted profile is treated
// as unknown by lookups.
type Doctor struct {
	ID            uuid.UUID
	Name          string
	Specialty     *string
	LicenseNumber *string
	Deleted       bool
	DeletedAt     *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type Patient struct {
	ID        uuid.UUID
	Name      string
	Email     *string
	Deleted   bool
	DeletedAt *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}
