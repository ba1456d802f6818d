// Package app wires configuration into the storage, lock, notification and
// engine components shared by the api-server and scheduler-worker binaries.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-scheduling/internal/api"
	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/availability"
	"github.com/hackgods/clinic-scheduling/internal/booking"
	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/internal/db"
	"github.com/hackgods/clinic-scheduling/internal/metrics"
	"github.com/hackgods/clinic-scheduling/internal/notify"
	"github.com/hackgods/clinic-scheduling/internal/profile"
	redisclient "github.com/hackgods/clinic-scheduling/internal/redis"
	"github.com/hackgods/clinic-scheduling/internal/schedule"
	"github.com/hackgods/clinic-scheduling/internal/waitlist"
)

const metricsNamespace = "clinic"

type App struct {
	Config   config.Config
	Log      *zap.Logger
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics

	Pool  *pgxpool.Pool
	Redis *redis.Client

	Profiles   profile.Repository
	Ledger     appointment.Repository
	Schedules  *schedule.Service
	Slots      *availability.Calculator
	Waitlist   *waitlist.Manager
	Booking    *booking.Service
	Dispatcher *notify.AsyncDispatcher

	// templates is the uncached schedule store that gates bookings.
	templates schedule.Repository
	closers   []func()
}

// Build connects the configured backends and assembles the engine. On error
// everything opened so far is closed again.
func Build(ctx context.Context, cfg config.Config, log *zap.Logger) (_ *App, err error) {
	a := &App{
		Config:   cfg,
		Log:      log,
		Registry: prometheus.NewRegistry(),
	}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	a.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.Metrics = metrics.New(metricsNamespace, a.Registry)

	if err := a.buildStorage(ctx); err != nil {
		return nil, err
	}

	locker, err := a.buildLocker(ctx)
	if err != nil {
		return nil, err
	}

	sink, err := a.buildSink()
	if err != nil {
		return nil, err
	}
	a.Dispatcher = notify.NewAsyncDispatcher(sink, notify.Options{
		Workers:   cfg.NotifyWorkers,
		QueueSize: cfg.NotifyQueueSize,
		Timeout:   cfg.NotifyTimeout,
	}, log, a.Metrics)
	a.closers = append(a.closers, a.Dispatcher.Close)

	a.Slots = availability.NewCalculator(
		availability.WeeklyTemplate{Templates: a.Schedules},
		a.Ledger,
		cfg.SlotDuration,
		availability.WithGate(availability.WeeklyTemplate{
			Templates: schedule.NewService(a.templates, log),
		}),
	)

	a.Waitlist = waitlist.NewManager(a.waitlistRepo(), a.Slots, a.Dispatcher, log,
		waitlist.WithLocation(cfg.Location),
		waitlist.WithMetrics(a.Metrics),
	)

	a.Booking = booking.NewService(booking.Dependencies{
		Ledger:     a.Ledger,
		Profiles:   a.Profiles,
		Slots:      a.Slots,
		Waitlist:   a.Waitlist,
		Dispatcher: a.Dispatcher,
		Locker:     locker,
		Log:        log,
		Metrics:    a.Metrics,
	}, booking.Policy{
		Location:           cfg.Location,
		CancellationWindow: cfg.CancellationWindow,
		RescheduleWindow:   cfg.RescheduleWindow,
		ReminderLead:       cfg.ReminderLead,
		WaitlistOnCancel:   cfg.WaitlistOnCancel,
	})

	return a, nil
}

func (a *App) buildStorage(ctx context.Context) error {
	var scheduleRepo schedule.Repository

	switch a.Config.StorageDriver {
	case config.StoragePostgres:
		pgCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		pool, err := db.ConnectPostgres(pgCtx, a.Config.PostgresDSN, a.Config.PoolOptions("clinic-scheduling"))
		cancel()
		if err != nil {
			return fmt.Errorf("postgres connection: %w", err)
		}
		a.Pool = pool
		a.closers = append(a.closers, pool.Close)
		a.Log.Info("connected to postgres")

		if a.Config.RunMigrations {
			n, err := db.Migrate(ctx, pool, a.Log)
			if err != nil {
				return fmt.Errorf("run migrations: %w", err)
			}
			a.Log.Info("migrations applied", zap.Int("count", n))
		}

		a.Profiles = profile.NewPgRepository(pool)
		a.Ledger = appointment.NewPgRepository(pool)
		scheduleRepo = schedule.NewPgRepository(pool)
	default:
		a.Log.Warn("using in-memory storage, data is lost on restart")
		a.Profiles = profile.NewMemoryRepository()
		a.Ledger = appointment.NewMemoryRepository()
		scheduleRepo = schedule.NewMemoryRepository()
	}

	a.templates = scheduleRepo
	a.Schedules = schedule.NewService(
		schedule.NewCachedRepository(scheduleRepo, a.Config.TemplateCacheTTL),
		a.Log,
	)
	return nil
}

func (a *App) waitlistRepo() waitlist.Repository {
	if a.Pool != nil {
		return waitlist.NewPgRepository(a.Pool)
	}
	return waitlist.NewMemoryRepository()
}

func (a *App) buildLocker(ctx context.Context) (booking.Locker, error) {
	if a.Config.LockDriver != config.LockRedis {
		return booking.NewLocalLocker(), nil
	}

	rdb, err := redisclient.NewRedisClient(ctx, redisclient.ClientOptions{
		Addr:     a.Config.RedisAddr,
		Username: a.Config.RedisUsername,
		Password: a.Config.RedisPassword,
		PoolSize: a.Config.RedisPoolSize,
	})
	if err != nil {
		return nil, fmt.Errorf("redis connection: %w", err)
	}
	a.Redis = rdb
	a.closers = append(a.closers, func() {
		if err := rdb.Close(); err != nil {
			a.Log.Warn("error closing redis", zap.Error(err))
		}
	})
	a.Log.Info("connected to redis")

	return redisclient.NewRedisLocker(rdb, redisclient.LockOptions{
		TTL:        a.Config.LockTTL,
		Wait:       a.Config.LockWait,
		RetryDelay: a.Config.LockRetryDelay,
	}), nil
}

func (a *App) buildSink() (notify.Sink, error) {
	if a.Config.NotifyDriver != config.NotifyRabbitMQ {
		return notify.NewLogSink(a.Log), nil
	}

	sink, err := notify.DialRabbitSink(a.Config.RabbitMQURL, a.Config.RabbitMQExchange)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq connection: %w", err)
	}
	a.closers = append(a.closers, func() {
		if err := sink.Close(); err != nil {
			a.Log.Warn("error closing rabbitmq sink", zap.Error(err))
		}
	})
	a.Log.Info("connected to rabbitmq", zap.String("exchange", a.Config.RabbitMQExchange))
	return sink, nil
}

// HealthChecks reports postgres as critical and redis as degrading, matching
// what each one costs the booking path when it is down.
func (a *App) HealthChecks() []api.HealthCheck {
	var checks []api.HealthCheck
	if a.Pool != nil {
		checks = append(checks, api.HealthCheck{Name: "postgres", Critical: true, Ping: a.Pool.Ping})
	}
	if a.Redis != nil {
		checks = append(checks, api.HealthCheck{Name: "redis", Ping: redisclient.Pinger(a.Redis)})
	}
	return checks
}

func (a *App) Router() http.Handler {
	return api.NewRouter(api.RouterConfig{
		Booking:      a.Booking,
		Schedules:    a.Schedules,
		Slots:        a.Slots,
		Waitlist:     a.Waitlist,
		Profiles:     a.Profiles,
		Checks:       a.HealthChecks(),
		Gatherer:     a.Registry,
		Log:          a.Log,
		Metrics:      a.Metrics,
		RateLimitRPS: a.Config.RateLimitRPS,
		Env:          a.Config.Env,
		Version:      a.Config.Version,
	})
}

// RunWorkerCycle runs one scheduler-worker pass: the waiting-list sweep and
// the reminder scan. Both run even if the first fails.
func (a *App) RunWorkerCycle(ctx context.Context) error {
	notified, sweepErr := a.Waitlist.Sweep(ctx)
	if sweepErr != nil {
		sweepErr = fmt.Errorf("waiting list sweep: %w", sweepErr)
	}

	reminded, remindErr := a.Booking.SendReminders(ctx)
	if remindErr != nil {
		remindErr = fmt.Errorf("send reminders: %w", remindErr)
	}

	a.Log.Info("worker cycle complete",
		zap.Int("waitlist_notified", notified),
		zap.Int("reminders_sent", reminded),
	)
	return errors.Join(sweepErr, remindErr)
}

// Close releases resources in reverse order of acquisition. The dispatcher
// is drained before the sinks and pools it may still be using.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
