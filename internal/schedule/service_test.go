package schedule

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-scheduling/internal/timeslot"
)

func mondayTemplate(doctorID uuid.UUID) *Template {
	return &Template{
		DoctorID:   doctorID,
		Day:        time.Monday,
		Start:      timeslot.Clock(9, 0),
		End:        timeslot.Clock(17, 0),
		BreakStart: clockPtr(12, 0),
		BreakEnd:   clockPtr(13, 0),
		Active:     true,
	}
}

func TestService_UpsertIsUniquePerDay(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewMemoryRepository(), zap.NewNop())
	doctorID := uuid.New()

	first := mondayTemplate(doctorID)
	require.NoError(t, svc.Upsert(ctx, first))

	second := mondayTemplate(doctorID)
	second.End = timeslot.Clock(15, 0)
	require.NoError(t, svc.Upsert(ctx, second))
	assert.Equal(t, first.ID, second.ID)

	list, err := svc.ListByDoctor(ctx, doctorID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, timeslot.Clock(15, 0), list[0].End)
}

func TestService_UpsertRejectsInvalid(t *testing.T) {
	svc := NewService(NewMemoryRepository(), nil)

	tpl := mondayTemplate(uuid.New())
	tpl.BreakEnd = clockPtr(18, 0)

	assert.ErrorIs(t, svc.Upsert(context.Background(), tpl), ErrInvalidTemplate)
}

func TestService_ActiveTemplate(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewMemoryRepository(), nil)
	doctorID := uuid.New()

	_, err := svc.ActiveTemplate(ctx, doctorID, time.Monday)
	assert.ErrorIs(t, err, ErrTemplateNotFound)

	require.NoError(t, svc.Upsert(ctx, mondayTemplate(doctorID)))

	got, err := svc.ActiveTemplate(ctx, doctorID, time.Monday)
	require.NoError(t, err)
	assert.Equal(t, timeslot.Clock(9, 0), got.Start)

	_, err = svc.SetActive(ctx, doctorID, time.Monday, false)
	require.NoError(t, err)

	_, err = svc.ActiveTemplate(ctx, doctorID, time.Monday)
	assert.ErrorIs(t, err, ErrTemplateNotFound)

	_, err = svc.SetActive(ctx, doctorID, time.Tuesday, true)
	assert.ErrorIs(t, err, ErrTemplateNotFound)
}

func TestCachedRepository_InvalidatesOnWrite(t *testing.T) {
	ctx := context.Background()
	repo := NewCachedRepository(NewMemoryRepository(), time.Minute)
	doctorID := uuid.New()

	require.NoError(t, repo.Upsert(ctx, mondayTemplate(doctorID)))

	got, err := repo.GetForDay(ctx, doctorID, time.Monday)
	require.NoError(t, err)
	assert.True(t, got.Active)

	_, err = repo.SetActive(ctx, doctorID, time.Monday, false)
	require.NoError(t, err)

	got, err = repo.GetForDay(ctx, doctorID, time.Monday)
	require.NoError(t, err)
	assert.False(t, got.Active)

	updated := mondayTemplate(doctorID)
	updated.Start = timeslot.Clock(10, 0)
	require.NoError(t, repo.Upsert(ctx, updated))

	got, err = repo.GetForDay(ctx, doctorID, time.Monday)
	require.NoError(t, err)
	assert.Equal(t, timeslot.Clock(10, 0), got.Start)
}

func TestCachedRepository_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewCachedRepository(NewMemoryRepository(), time.Minute)
	doctorID := uuid.New()
	require.NoError(t, repo.Upsert(ctx, mondayTemplate(doctorID)))

	first, err := repo.GetForDay(ctx, doctorID, time.Monday)
	require.NoError(t, err)
	first.Start = timeslot.Clock(6, 0)

	second, err := repo.GetForDay(ctx, doctorID, time.Monday)
	require.NoError(t, err)
	assert.Equal(t, timeslot.Clock(9, 0), second.Start)
}
