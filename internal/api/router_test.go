package api

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/availability"
	"github.com/hackgods/clinic-scheduling/internal/booking"
	"github.com/hackgods/clinic-scheduling/internal/metrics"
	"github.com/hackgods/clinic-scheduling/internal/notify"
	"github.com/hackgods/clinic-scheduling/internal/profile"
	"github.com/hackgods/clinic-scheduling/internal/schedule"
	"github.com/hackgods/clinic-scheduling/internal/timeslot"
	"github.com/hackgods/clinic-scheduling/internal/waitlist"
)

// Saturday 2026-10-17 09:00 UTC; appointments go on Monday 2026-10-19.
var saturday = time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type server struct {
	handler  http.Handler
	clock    *clock
	doctorID uuid.UUID
	patients []uuid.UUID
}

func newServer(t *testing.T) *server {
	t.Helper()
	ctx := context.Background()

	profiles := profile.NewMemoryRepository()
	doctor := &profile.Doctor{Name: "Dr. Karimov"}
	require.NoError(t, profiles.CreateDoctor(ctx, doctor))

	var patients []uuid.UUID
	for i := 0; i < 2; i++ {
		p := &profile.Patient{Name: "patient"}
		require.NoError(t, profiles.CreatePatient(ctx, p))
		patients = append(patients, p.ID)
	}

	schedules := schedule.NewService(schedule.NewMemoryRepository(), nil)
	bs, be := timeslot.Clock(12, 0), timeslot.Clock(13, 0)
	require.NoError(t, schedules.Upsert(ctx, &schedule.Template{
		DoctorID:   doctor.ID,
		Day:        time.Monday,
		Start:      timeslot.Clock(9, 0),
		End:        timeslot.Clock(17, 0),
		BreakStart: &bs,
		BreakEnd:   &be,
		Active:     true,
	}))

	clk := &clock{now: saturday}
	ledger := appointment.NewMemoryRepository()
	calc := availability.NewCalculator(availability.WeeklyTemplate{Templates: schedules}, ledger, time.Hour)
	wl := waitlist.NewManager(waitlist.NewMemoryRepository(), calc, notify.Nop{}, nil, waitlist.WithClock(clk.Now))

	svc := booking.NewService(booking.Dependencies{
		Ledger:   ledger,
		Profiles: profiles,
		Slots:    calc,
		Waitlist: wl,
		Now:      clk.Now,
	}, booking.DefaultPolicy())

	reg := prometheus.NewRegistry()
	h := NewRouter(RouterConfig{
		Booking:   svc,
		Schedules: schedules,
		Slots:     calc,
		Waitlist:  wl,
		Profiles:  profiles,
		Gatherer:  reg,
		Metrics:   metrics.New("clinic", reg),
		Env:       "test",
		Version:   "v-test",
	})

	return &server{handler: h, clock: clk, doctorID: doctor.ID, patients: patients}
}

func (s *server) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func (s *server) bookingBody(patient int, start, end string) CreateAppointmentRequest {
	return CreateAppointmentRequest{
		PatientID:   s.patients[patient].String(),
		DoctorID:    s.doctorID.String(),
		Date:        "2026-10-19",
		StartTime:   start,
		EndTime:     end,
		ServiceKind: "consultation",
	}
}

func (s *server) book(t *testing.T, patient int, start, end string) AppointmentResponse {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/appointments", s.bookingBody(patient, start, end))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[AppointmentResponse](t, rec)
}

func TestCreateAppointment(t *testing.T) {
	s := newServer(t)

	appt := s.book(t, 0, "10:00", "11:00")

	assert.Equal(t, "booked", appt.Status)
	assert.Equal(t, "2026-10-19", appt.Date)
	assert.Equal(t, "10:00", appt.StartTime)
	assert.Equal(t, "11:00", appt.EndTime)
	assert.Regexp(t, `^APT-[0-9A-F]{8}-20261019$`, appt.Code)
}

func TestCreateAppointment_BadRequests(t *testing.T) {
	s := newServer(t)

	tests := []struct {
		name    string
		mutate  func(*CreateAppointmentRequest)
		code    string
		details string
	}{
		{"bad start time", func(r *CreateAppointmentRequest) { r.StartTime = "10am" }, "invalid_request_body", "start_time"},
		{"bad service kind", func(r *CreateAppointmentRequest) { r.ServiceKind = "surgery" }, "invalid_request_body", "service_kind"},
		{"bad date", func(r *CreateAppointmentRequest) { r.Date = "19.10.2026" }, "invalid_request_body", "date"},
		{"missing doctor", func(r *CreateAppointmentRequest) { r.DoctorID = "" }, "invalid_request_body", "doctor_id"},
		{"start after end", func(r *CreateAppointmentRequest) { r.StartTime, r.EndTime = "11:00", "10:00" }, "validation_failed", ""},
		{"past date", func(r *CreateAppointmentRequest) { r.Date = "2026-10-16" }, "validation_failed", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := s.bookingBody(0, "10:00", "11:00")
			tt.mutate(&body)

			rec := s.do(t, http.MethodPost, "/appointments", body)
			require.Equal(t, http.StatusBadRequest, rec.Code)

			resp := decode[ErrorResponse](t, rec)
			assert.Equal(t, tt.code, resp.Error)
			assert.Contains(t, resp.Details, tt.details)
		})
	}
}

func TestCreateAppointment_MalformedJSON(t *testing.T) {
	s := newServer(t)

	req := httptest.NewRequest(http.MethodPost, "/appointments", bytes.NewBufferString("{"))
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_request_body", decode[ErrorResponse](t, rec).Error)
}

func TestCreateAppointment_UnknownPatient(t *testing.T) {
	s := newServer(t)

	body := s.bookingBody(0, "10:00", "11:00")
	body.PatientID = uuid.NewString()

	rec := s.do(t, http.MethodPost, "/appointments", body)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "patient_not_found", decode[ErrorResponse](t, rec).Error)
}

func TestCreateAppointment_TakenSlotIsQueued(t *testing.T) {
	s := newServer(t)
	s.book(t, 0, "10:00", "11:00")

	rec := s.do(t, http.MethodPost, "/appointments", s.bookingBody(1, "10:30", "11:30"))
	require.Equal(t, http.StatusConflict, rec.Code)

	resp := decode[ErrorResponse](t, rec)
	assert.Equal(t, "slot_unavailable_queued", resp.Error)
	require.NotNil(t, resp.WaitingListEntry)
	assert.Equal(t, s.patients[1], resp.WaitingListEntry.PatientID)
	assert.Equal(t, "10:30", resp.WaitingListEntry.StartTime)
	assert.False(t, resp.WaitingListEntry.Notified)

	rec = s.do(t, http.MethodGet, "/waiting-list/"+resp.WaitingListEntry.ID.String(), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAvailableSlots(t *testing.T) {
	s := newServer(t)
	path := "/doctors/" + s.doctorID.String() + "/available-slots?date=2026-10-19"

	rec := s.do(t, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[AvailableSlotsResponse](t, rec).Slots, 7)

	s.book(t, 0, "10:00", "11:00")

	rec = s.do(t, http.MethodGet, path, nil)
	resp := decode[AvailableSlotsResponse](t, rec)
	require.Len(t, resp.Slots, 6)
	assert.Equal(t, SlotResponse{StartTime: "09:00", EndTime: "10:00"}, resp.Slots[0])
	assert.Equal(t, SlotResponse{StartTime: "11:00", EndTime: "12:00"}, resp.Slots[1])

	// Tuesday has no template.
	rec = s.do(t, http.MethodGet, "/doctors/"+s.doctorID.String()+"/available-slots?date=2026-10-20", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, mustJSON(t, decode[AvailableSlotsResponse](t, rec).Slots))
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}

func TestAvailableSlots_BadInput(t *testing.T) {
	s := newServer(t)

	rec := s.do(t, http.MethodGet, "/doctors/"+s.doctorID.String()+"/available-slots?date=monday", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/doctors/not-a-uuid/available-slots?date=2026-10-19", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/doctors/"+uuid.NewString()+"/available-slots?date=2026-10-19", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAppointmentLifecycle(t *testing.T) {
	s := newServer(t)
	appt := s.book(t, 0, "10:00", "11:00")
	base := "/appointments/" + appt.ID.String()

	rec := s.do(t, http.MethodPost, base+"/confirm", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "confirmed", decode[AppointmentResponse](t, rec).Status)

	rec = s.do(t, http.MethodPost, base+"/confirm", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "invalid_status_transition", decode[ErrorResponse](t, rec).Error)

	rec = s.do(t, http.MethodPost, base+"/reschedule", RescheduleRequest{Date: "2026-10-19", StartTime: "14:00", EndTime: "15:00"})
	require.Equal(t, http.StatusOK, rec.Code)
	moved := decode[AppointmentResponse](t, rec)
	assert.Equal(t, "rescheduled", moved.Status)
	assert.Equal(t, "14:00", moved.StartTime)
	assert.Equal(t, appt.ID, moved.ID)

	rec = s.do(t, http.MethodPost, base+"/cancel", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "canceled", decode[AppointmentResponse](t, rec).Status)

	rec = s.do(t, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "canceled", decode[AppointmentResponse](t, rec).Status)
}

func TestCancel_InsideWindowIsPolicyViolation(t *testing.T) {
	s := newServer(t)
	appt := s.book(t, 0, "10:00", "11:00")

	// 22 hours before the appointment.
	s.clock.Set(time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC))

	rec := s.do(t, http.MethodPost, "/appointments/"+appt.ID.String()+"/cancel", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "policy_violation", decode[ErrorResponse](t, rec).Error)
}

func TestReschedule_ConflictIsNotQueued(t *testing.T) {
	s := newServer(t)
	s.book(t, 0, "10:00", "11:00")
	other := s.book(t, 1, "14:00", "15:00")

	rec := s.do(t, http.MethodPost, "/appointments/"+other.ID.String()+"/reschedule",
		RescheduleRequest{Date: "2026-10-19", StartTime: "10:00", EndTime: "11:00"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	resp := decode[ErrorResponse](t, rec)
	assert.Equal(t, "slot_conflict", resp.Error)
	assert.Nil(t, resp.WaitingListEntry)
}

func TestAppointment_NotFoundAndBadID(t *testing.T) {
	s := newServer(t)

	rec := s.do(t, http.MethodGet, "/appointments/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "appointment_not_found", decode[ErrorResponse](t, rec).Error)

	rec = s.do(t, http.MethodPost, "/appointments/xyz/cancel", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListAppointments(t *testing.T) {
	s := newServer(t)
	first := s.book(t, 0, "10:00", "11:00")
	s.book(t, 1, "14:00", "15:00")
	s.do(t, http.MethodPost, "/appointments/"+first.ID.String()+"/confirm", nil)

	rec := s.do(t, http.MethodGet, "/appointments?doctor_id="+s.doctorID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	all := decode[ListAppointmentsResponse](t, rec)
	assert.Len(t, all.Appointments, 2)
	assert.Equal(t, 20, all.Limit)

	rec = s.do(t, http.MethodGet, "/appointments?status=confirmed", nil)
	confirmed := decode[ListAppointmentsResponse](t, rec)
	require.Len(t, confirmed.Appointments, 1)
	assert.Equal(t, first.ID, confirmed.Appointments[0].ID)

	rec = s.do(t, http.MethodGet, "/appointments?limit=500", nil)
	assert.Equal(t, 100, decode[ListAppointmentsResponse](t, rec).Limit)

	for _, q := range []string{"status=lost", "from=tomorrow", "limit=ten", "patient_id=1"} {
		rec = s.do(t, http.MethodGet, "/appointments?"+q, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestSchedules(t *testing.T) {
	s := newServer(t)
	base := "/doctors/" + s.doctorID.String() + "/schedules"

	bs, be := "13:00", "14:00"
	rec := s.do(t, http.MethodPut, base+"/Tuesday", UpsertScheduleRequest{
		StartTime:  "08:00",
		EndTime:    "16:00",
		BreakStart: &bs,
		BreakEnd:   &be,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	tue := decode[ScheduleResponse](t, rec)
	assert.Equal(t, "tuesday", tue.Day)
	assert.True(t, tue.Active)
	require.NotNil(t, tue.BreakStart)
	assert.Equal(t, "13:00", *tue.BreakStart)

	rec = s.do(t, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]ScheduleResponse](t, rec), 2)

	rec = s.do(t, http.MethodPost, base+"/tuesday/deactivate", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[ScheduleResponse](t, rec).Active)

	rec = s.do(t, http.MethodGet, "/doctors/"+s.doctorID.String()+"/available-slots?date=2026-10-20", nil)
	assert.Empty(t, decode[AvailableSlotsResponse](t, rec).Slots)

	rec = s.do(t, http.MethodPost, base+"/tuesday/activate", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = s.do(t, http.MethodGet, "/doctors/"+s.doctorID.String()+"/available-slots?date=2026-10-20", nil)
	assert.Len(t, decode[AvailableSlotsResponse](t, rec).Slots, 7)
}

func TestSchedules_Rejects(t *testing.T) {
	s := newServer(t)
	base := "/doctors/" + s.doctorID.String() + "/schedules"
	outside := "18:00"
	end := "19:00"

	tests := []struct {
		name   string
		path   string
		body   any
		status int
		code   string
	}{
		{"unknown day", base + "/someday", UpsertScheduleRequest{StartTime: "09:00", EndTime: "17:00"}, http.StatusBadRequest, "invalid_day"},
		{"bad time", base + "/friday", UpsertScheduleRequest{StartTime: "9", EndTime: "17:00"}, http.StatusBadRequest, "invalid_request_body"},
		{"start after end", base + "/friday", UpsertScheduleRequest{StartTime: "17:00", EndTime: "09:00"}, http.StatusBadRequest, "invalid_schedule"},
		{"break outside hours", base + "/friday", UpsertScheduleRequest{StartTime: "09:00", EndTime: "17:00", BreakStart: &outside, BreakEnd: &end}, http.StatusBadRequest, "invalid_schedule"},
		{"half a break", base + "/friday", UpsertScheduleRequest{StartTime: "09:00", EndTime: "17:00", BreakStart: &outside}, http.StatusBadRequest, "invalid_schedule"},
		{"unknown doctor", "/doctors/" + uuid.NewString() + "/schedules/friday", UpsertScheduleRequest{StartTime: "09:00", EndTime: "17:00"}, http.StatusNotFound, "doctor_not_found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPut, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.code, decode[ErrorResponse](t, rec).Error)
		})
	}

	rec := s.do(t, http.MethodPost, base+"/sunday/activate", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWaitingList(t *testing.T) {
	s := newServer(t)
	appt := s.book(t, 0, "10:00", "11:00")

	rec := s.do(t, http.MethodPost, "/waiting-list", JoinWaitingListRequest{
		PatientID: s.patients[1].String(),
		DoctorID:  s.doctorID.String(),
		Date:      "2026-10-19",
		StartTime: "10:00",
		EndTime:   "11:00",
		Notes:     "mornings only",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	entry := decode[WaitingListEntryResponse](t, rec)
	assert.Equal(t, "mornings only", entry.Notes)

	notifyPath := "/doctors/" + s.doctorID.String() + "/waiting-list/notify?date=2026-10-19"
	rec = s.do(t, http.MethodPost, notifyPath, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, decode[NotifyWaitingListResponse](t, rec).Notified)

	// Cancelling runs the waiting list hook, which marks the entry notified.
	rec = s.do(t, http.MethodPost, "/appointments/"+appt.ID.String()+"/cancel", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/waiting-list?patient_id="+s.patients[1].String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	entries := decode[[]WaitingListEntryResponse](t, rec)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].Notified)
	assert.NotNil(t, entries[0].NotifiedAt)
}

func TestWaitingList_Rejects(t *testing.T) {
	s := newServer(t)

	join := JoinWaitingListRequest{
		PatientID: s.patients[0].String(),
		DoctorID:  s.doctorID.String(),
		Date:      "2026-10-16",
		StartTime: "10:00",
		EndTime:   "11:00",
	}
	rec := s.do(t, http.MethodPost, "/waiting-list", join)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_waiting_list_entry", decode[ErrorResponse](t, rec).Error)

	join.Date = "2026-10-19"
	join.DoctorID = uuid.NewString()
	rec = s.do(t, http.MethodPost, "/waiting-list", join)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodGet, "/waiting-list?patient_id=nope", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/waiting-list/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRequestID(t *testing.T) {
	s := newServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))

	rec = s.do(t, http.MethodGet, "/health/live", nil)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "v-test", decode[LivenessResponse](t, rec).Version)
}

func TestReadiness(t *testing.T) {
	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("connection refused") }

	tests := []struct {
		name   string
		checks []HealthCheck
		status int
		want   string
	}{
		{"no checks", nil, http.StatusOK, "ok"},
		{"all up", []HealthCheck{{Name: "postgres", Critical: true, Ping: ok}, {Name: "redis", Ping: ok}}, http.StatusOK, "ok"},
		{"redis down", []HealthCheck{{Name: "postgres", Critical: true, Ping: ok}, {Name: "redis", Ping: down}}, http.StatusOK, "degraded"},
		{"postgres down", []HealthCheck{{Name: "postgres", Critical: true, Ping: down}, {Name: "redis", Ping: ok}}, http.StatusServiceUnavailable, "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler(tt.checks, "test", "v1")
			rec := httptest.NewRecorder()
			h.Readiness(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

			assert.Equal(t, tt.status, rec.Code)
			resp := decode[ReadinessResponse](t, rec)
			assert.Equal(t, tt.want, resp.Status)
			assert.Len(t, resp.Dependencies, len(tt.checks))
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := newServer(t)
	s.book(t, 0, "10:00", "11:00")

	rec := s.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `clinic_http_request_duration_seconds_count{method="POST",route="/appointments",status="201"} 1`)
}
