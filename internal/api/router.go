package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/booking"
	"github.com/hackgods/clinic-scheduling/internal/metrics"
	"github.com/hackgods/clinic-scheduling/internal/profile"
	"github.com/hackgods/clinic-scheduling/internal/schedule"
	"github.com/hackgods/clinic-scheduling/internal/timeslot"
	"github.com/hackgods/clinic-scheduling/internal/waitlist"
)

// BookingService is satisfied by *booking.Service.
type BookingService interface {
	RequestBooking(ctx context.Context, req booking.Request) (*appointment.Appointment, error)
	Cancel(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error)
	Reschedule(ctx context.Context, id uuid.UUID, date time.Time, iv timeslot.Interval) (*appointment.Appointment, error)
	Confirm(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error)
	Complete(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error)
	Get(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error)
	List(ctx context.Context, f appointment.Filter) ([]appointment.Appointment, error)
}

// ScheduleService is satisfied by *schedule.Service.
type ScheduleService interface {
	Upsert(ctx context.Context, t *schedule.Template) error
	SetActive(ctx context.Context, doctorID uuid.UUID, day time.Weekday, active bool) (*schedule.Template, error)
	ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]schedule.Template, error)
}

// SlotService is satisfied by *availability.Calculator.
type SlotService interface {
	AvailableSlots(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]timeslot.Interval, error)
}

// WaitlistService is satisfied by *waitlist.Manager.
type WaitlistService interface {
	Enqueue(ctx context.Context, patientID, doctorID uuid.UUID, date time.Time, iv timeslot.Interval, notes string) (*waitlist.Entry, error)
	Get(ctx context.Context, id uuid.UUID) (*waitlist.Entry, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]waitlist.Entry, error)
	NotifyIfOpened(ctx context.Context, doctorID uuid.UUID, date time.Time) (int, error)
}

type ProfileService interface {
	GetDoctorByID(ctx context.Context, id uuid.UUID) (*profile.Doctor, error)
	GetPatientByID(ctx context.Context, id uuid.UUID) (*profile.Patient, error)
}

type RouterConfig struct {
	Booking   BookingService
	Schedules ScheduleService
	Slots     SlotService
	Waitlist  WaitlistService
	Profiles  ProfileService

	Checks   []HealthCheck
	Gatherer prometheus.Gatherer
	Log      *zap.Logger
	Metrics  *metrics.Metrics

	// RateLimitRPS is the per-IP request budget per second; 0 disables it.
	RateLimitRPS int
	Env          string
	Version      string
}

func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Log == nil {
		cfg.Log = zap.NewNop()
	}

	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Log, cfg.Metrics))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	health := NewHealthHandler(cfg.Checks, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Group(func(r chi.Router) {
		if cfg.RateLimitRPS > 0 {
			r.Use(httprate.LimitByIP(cfg.RateLimitRPS, time.Second))
		}

		r.Route("/doctors/{doctorID}", func(r chi.Router) {
			r.Get("/schedules", listSchedulesHandler(cfg.Schedules))
			r.Put("/schedules/{day}", upsertScheduleHandler(cfg.Schedules, cfg.Profiles))
			r.Post("/schedules/{day}/activate", setScheduleActiveHandler(cfg.Schedules, true))
			r.Post("/schedules/{day}/deactivate", setScheduleActiveHandler(cfg.Schedules, false))
			r.Get("/available-slots", availableSlotsHandler(cfg.Slots, cfg.Profiles))
			r.Post("/waiting-list/notify", notifyWaitingListHandler(cfg.Waitlist))
		})

		r.Post("/appointments", createAppointmentHandler(cfg.Booking))
		r.Get("/appointments", listAppointmentsHandler(cfg.Booking))
		r.Get("/appointments/{id}", getAppointmentHandler(cfg.Booking))
		r.Post("/appointments/{id}/confirm", appointmentActionHandler(cfg.Booking.Confirm))
		r.Post("/appointments/{id}/cancel", appointmentActionHandler(cfg.Booking.Cancel))
		r.Post("/appointments/{id}/complete", appointmentActionHandler(cfg.Booking.Complete))
		r.Post("/appointments/{id}/reschedule", rescheduleAppointmentHandler(cfg.Booking))

		r.Post("/waiting-list", joinWaitingListHandler(cfg.Waitlist, cfg.Profiles))
		r.Get("/waiting-list", listWaitingListHandler(cfg.Waitlist))
		r.Get("/waiting-list/{id}", getWaitingListEntryHandler(cfg.Waitlist))
	})

	return r
}
