package profile

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRepository_DoctorLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	specialty := "Cardiology"
	d := &Doctor{Name: "Dr. Karimov", Specialty: &specialty}
	require.NoError(t, repo.CreateDoctor(ctx, d))
	require.NotEqual(t, uuid.Nil, d.ID)

	got, err := repo.GetDoctorByID(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, "Dr. Karimov", got.Name)
	assert.False(t, got.Deleted)

	require.NoError(t, repo.SoftDeleteDoctor(ctx, d.ID))

	_, err = repo.GetDoctorByID(ctx, d.ID)
	assert.ErrorIs(t, err, ErrDoctorNotFound)
	assert.ErrorIs(t, repo.SoftDeleteDoctor(ctx, d.ID), ErrDoctorNotFound)
}

func TestMemoryRepository_PatientLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	_, err := repo.GetPatientByID(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrPatientNotFound)

	p := &Patient{Name: "Aziza"}
	require.NoError(t, repo.CreatePatient(ctx, p))

	got, err := repo.GetPatientByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Aziza", got.Name)

	require.NoError(t, repo.SoftDeletePatient(ctx, p.ID))
	_, err = repo.GetPatientByID(ctx, p.ID)
	assert.ErrorIs(t, err, ErrPatientNotFound)
}
