package appointment

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-scheduling/internal/timeslot"
)

var monday = time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)

func newAppt(doctorID uuid.UUID, date time.Time, start, end timeslot.TimeOfDay) *Appointment {
	return &Appointment{
		PatientID:   uuid.New(),
		DoctorID:    doctorID,
		Date:        date,
		Start:       start,
		End:         end,
		ServiceKind: ServiceConsultation,
		Status:      StatusBooked,
	}
}

func TestMemoryRepository_InsertRejectsOverlap(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	doctorID := uuid.New()

	first := newAppt(doctorID, monday, timeslot.Clock(10, 0), timeslot.Clock(11, 0))
	require.NoError(t, repo.Insert(ctx, first))
	assert.NotEmpty(t, first.Code)

	assert.ErrorIs(t, repo.Insert(ctx, newAppt(doctorID, monday, timeslot.Clock(10, 30), timeslot.Clock(11, 30))), ErrOverlap)

	// touching ranges, another doctor, another day
	assert.NoError(t, repo.Insert(ctx, newAppt(doctorID, monday, timeslot.Clock(11, 0), timeslot.Clock(12, 0))))
	assert.NoError(t, repo.Insert(ctx, newAppt(uuid.New(), monday, timeslot.Clock(10, 0), timeslot.Clock(11, 0))))
	assert.NoError(t, repo.Insert(ctx, newAppt(doctorID, monday.AddDate(0, 0, 1), timeslot.Clock(10, 0), timeslot.Clock(11, 0))))
}

func TestMemoryRepository_CanceledFreesRange(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	doctorID := uuid.New()

	first := newAppt(doctorID, monday, timeslot.Clock(10, 0), timeslot.Clock(11, 0))
	require.NoError(t, repo.Insert(ctx, first))

	_, err := repo.UpdateAppointmentStatus(ctx, first.ID, StatusBooked, StatusCanceled)
	require.NoError(t, err)

	assert.NoError(t, repo.Insert(ctx, newAppt(doctorID, monday, timeslot.Clock(10, 0), timeslot.Clock(11, 0))))

	active, err := repo.ListActiveForDoctorDate(ctx, doctorID, monday)
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestMemoryRepository_UpdateStatusIsCompareAndSet(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	a := newAppt(uuid.New(), monday, timeslot.Clock(9, 0), timeslot.Clock(10, 0))
	require.NoError(t, repo.Insert(ctx, a))

	updated, err := repo.UpdateAppointmentStatus(ctx, a.ID, StatusBooked, StatusConfirmed)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, updated.Status)

	_, err = repo.UpdateAppointmentStatus(ctx, a.ID, StatusBooked, StatusCanceled)
	assert.ErrorIs(t, err, ErrStatusChanged)
}

func TestMemoryRepository_Move(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	doctorID := uuid.New()

	a := newAppt(doctorID, monday, timeslot.Clock(9, 0), timeslot.Clock(10, 0))
	require.NoError(t, repo.Insert(ctx, a))
	other := newAppt(doctorID, monday, timeslot.Clock(14, 0), timeslot.Clock(15, 0))
	require.NoError(t, repo.Insert(ctx, other))

	_, err := repo.Move(ctx, a.ID, StatusBooked, monday, timeslot.Interval{Start: timeslot.Clock(14, 30), End: timeslot.Clock(15, 30)})
	assert.ErrorIs(t, err, ErrOverlap)

	// overlapping its own old range is fine
	moved, err := repo.Move(ctx, a.ID, StatusBooked, monday, timeslot.Interval{Start: timeslot.Clock(9, 30), End: timeslot.Clock(10, 30)})
	require.NoError(t, err)
	assert.Equal(t, StatusRescheduled, moved.Status)
	assert.Equal(t, timeslot.Clock(9, 30), moved.Start)
	assert.Equal(t, a.ID, moved.ID)

	// old range is free again
	assert.NoError(t, repo.Insert(ctx, newAppt(doctorID, monday, timeslot.Clock(8, 30), timeslot.Clock(9, 30))))

	_, err = repo.Move(ctx, a.ID, StatusBooked, monday, timeslot.Interval{Start: timeslot.Clock(16, 0), End: timeslot.Clock(17, 0)})
	assert.ErrorIs(t, err, ErrStatusChanged)
}

func TestMemoryRepository_ConcurrentInsertsNeverOverlap(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	doctorID := uuid.New()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := repo.Insert(ctx, newAppt(doctorID, monday, timeslot.Clock(10, 0), timeslot.Clock(11, 0)))
			if err == nil {
				mu.Lock()
				success++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, success)
}

func TestMemoryRepository_ListFilter(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	doctorID := uuid.New()

	for h := 9; h < 14; h++ {
		require.NoError(t, repo.Insert(ctx, newAppt(doctorID, monday, timeslot.Clock(h, 0), timeslot.Clock(h+1, 0))))
	}
	require.NoError(t, repo.Insert(ctx, newAppt(uuid.New(), monday, timeslot.Clock(9, 0), timeslot.Clock(10, 0))))

	all, err := repo.List(ctx, Filter{DoctorID: &doctorID, Limit: 100})
	require.NoError(t, err)
	require.Len(t, all, 5)
	assert.Equal(t, timeslot.Clock(9, 0), all[0].Start)

	page, err := repo.List(ctx, Filter{DoctorID: &doctorID, Limit: 2, Offset: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, timeslot.Clock(11, 0), page[0].Start)

	_, err = repo.UpdateAppointmentStatus(ctx, all[0].ID, StatusBooked, StatusConfirmed)
	require.NoError(t, err)
	confirmed := StatusConfirmed
	got, err := repo.List(ctx, Filter{Status: &confirmed, Limit: 100})
	require.NoError(t, err)
	assert.Len(t, got, 1)

	tuesday := monday.AddDate(0, 0, 1)
	got, err = repo.List(ctx, Filter{From: &tuesday, Limit: 100})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMemoryRepository_Reminders(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	a := newAppt(uuid.New(), monday, timeslot.Clock(9, 0), timeslot.Clock(10, 0))
	require.NoError(t, repo.Insert(ctx, a))

	due, err := repo.FindUnreminded(ctx, monday, monday)
	require.NoError(t, err)
	require.Len(t, due, 1)

	require.NoError(t, repo.MarkReminded(ctx, a.ID, time.Now()))
	assert.ErrorIs(t, repo.MarkReminded(ctx, a.ID, time.Now()), ErrStatusChanged)

	due, err = repo.FindUnreminded(ctx, monday, monday)
	require.NoError(t, err)
	assert.Empty(t, due)
}
