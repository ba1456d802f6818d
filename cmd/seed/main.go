package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/internal/db"
	"github.com/hackgods/clinic-scheduling/internal/logger"
	"github.com/hackgods/clinic-scheduling/internal/profile"
	"github.com/hackgods/clinic-scheduling/internal/schedule"
	"github.com/hackgods/clinic-scheduling/internal/timeslot"
)

type seedConfig struct {
	Doctors  int `envconfig:"DOCTORS" default:"20"`
	Patients int `envconfig:"PATIENTS" default:"2000"`
}

var specialties = []string{
	"General Practice",
	"Cardiology",
	"Dermatology",
	"Endocrinology",
	"Neurology",
	"Ophthalmology",
	"Orthopedics",
	"Pediatrics",
	"Laboratory",
	"ENT",
}

var workdays = []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}
	if cfg.StorageDriver != config.StoragePostgres {
		log.Fatalf("seed needs STORAGE_DRIVER=%s", config.StoragePostgres)
	}

	var sc seedConfig
	if err := envconfig.Process("SEED", &sc); err != nil {
		log.Fatalf("seed config: %v", err)
	}

	zl, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer zl.Sync() //nolint:errcheck
	zl = zl.Named("seed")

	ctx := context.Background()

	connCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	pool, err := db.ConnectPostgres(connCtx, cfg.PostgresDSN, cfg.PoolOptions("clinic-seed"))
	cancel()
	if err != nil {
		zl.Fatal("connect postgres", zap.Error(err))
	}
	defer pool.Close()

	if _, err := db.Migrate(ctx, pool, zl); err != nil {
		zl.Fatal("migrate", zap.Error(err))
	}

	faker := gofakeit.New(0)
	profiles := profile.NewPgRepository(pool)
	templates := schedule.NewService(schedule.NewPgRepository(pool), zl)

	if err := seedDoctors(ctx, zl, faker, profiles, templates, sc.Doctors); err != nil {
		zl.Fatal("seed doctors", zap.Error(err))
	}
	if err := seedPatients(ctx, zl, faker, profiles, sc.Patients); err != nil {
		zl.Fatal("seed patients", zap.Error(err))
	}

	zl.Info("seed complete", zap.Int("doctors", sc.Doctors), zap.Int("patients", sc.Patients))
}

// seedDoctors creates doctors working Monday to Friday, 09:00-17:00 with a
// lunch break at 12:00-13:00.
func seedDoctors(ctx context.Context, zl *zap.Logger, faker *gofakeit.Faker, profiles profile.Repository, templates *schedule.Service, count int) error {
	zl.Info("seeding doctors", zap.Int("count", count))

	bs, be := timeslot.Clock(12, 0), timeslot.Clock(13, 0)

	for i := 0; i < count; i++ {
		specialty := faker.RandomString(specialties)
		license := fmt.Sprintf("LIC-%06d", faker.Number(0, 999999))

		d := &profile.Doctor{
			Name:          "Dr. " + faker.Name(),
			Specialty:     &specialty,
			LicenseNumber: &license,
		}
		if err := profiles.CreateDoctor(ctx, d); err != nil {
			return err
		}

		for _, day := range workdays {
			if err := templates.Upsert(ctx, &schedule.Template{
				DoctorID:   d.ID,
				Day:        day,
				Start:      timeslot.Clock(9, 0),
				End:        timeslot.Clock(17, 0),
				BreakStart: &bs,
				BreakEnd:   &be,
				Active:     true,
			}); err != nil {
				return err
			}
		}
	}

	zl.Info("doctors seeded")
	return nil
}

func seedPatients(ctx context.Context, zl *zap.Logger, faker *gofakeit.Faker, profiles profile.Repository, count int) error {
	zl.Info("seeding patients", zap.Int("count", count))

	const progressEvery = 500

	for i := 0; i < count; i++ {
		email := faker.Email()
		if err := profiles.CreatePatient(ctx, &profile.Patient{Name: faker.Name(), Email: &email}); err != nil {
			return err
		}
		if (i+1)%progressEvery == 0 {
			zl.Info("patients seeded", zap.Int("done", i+1), zap.Int("total", count))
		}
	}

	zl.Info("patients seeded")
	return nil
}
