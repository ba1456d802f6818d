package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/internal/db"
	"github.com/hackgods/clinic-scheduling/internal/logger"
	"github.com/hackgods/clinic-scheduling/internal/timeslot"
)

type SimConfig struct {
	APIBaseURL   string        `envconfig:"API_BASE_URL" default:"http://localhost:8080"`
	Duration     time.Duration `envconfig:"DURATION" default:"30s"`
	Workers      int           `envconfig:"WORKERS" default:"10"`
	BookingRatio float64       `envconfig:"BOOKING_RATIO" default:"0.5"`
	ConfirmRatio float64       `envconfig:"CONFIRM_RATIO" default:"0.1"`
	CancelRatio  float64       `envconfig:"CANCEL_RATIO" default:"0.1"`
	ReadRatio    float64       `envconfig:"READ_RATIO" default:"0.3"`
	PatientLimit int           `envconfig:"PATIENT_LIMIT" default:"2000"`
	DoctorLimit  int           `envconfig:"DOCTOR_LIMIT" default:"5"`
	// Days is how many calendar days ahead bookings are spread over. A small
	// value with few doctors makes collisions, and so the lock, hot.
	Days int `envconfig:"DAYS" default:"5"`

	PostgresDSN string `ignored:"true"`
}

// slotStarts are the hourly starts inside the seeded 09:00-17:00 template,
// skipping the 12:00 lunch break.
var slotStarts = []int{9, 10, 11, 13, 14, 15, 16}

type DataPool struct {
	Patients     []uuid.UUID
	Doctors      []uuid.UUID
	Dates        []time.Time
	mu           sync.RWMutex
	appointments []uuid.UUID
}

func (dp *DataPool) AddAppointment(id uuid.UUID) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.appointments = append(dp.appointments, id)
}

func (dp *DataPool) GetRandomAppointment(rng *rand.Rand) (uuid.UUID, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if len(dp.appointments) == 0 {
		return uuid.Nil, false
	}
	return dp.appointments[rng.Intn(len(dp.appointments))], true
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, success bool, conflict bool) {
	atomic.AddInt64(&om.Total, 1)
	switch {
	case success:
		atomic.AddInt64(&om.Success, 1)
	case conflict:
		atomic.AddInt64(&om.Conflict, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, lo, hi, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	n := len(latencies)
	return sum / time.Duration(n), latencies[0], latencies[n-1], latencies[n*50/100], latencies[p95Index(n)]
}

func p95Index(n int) int {
	idx := n * 95 / 100
	if idx >= n {
		idx = n - 1
	}
	return idx
}

type Metrics struct {
	Booking        OperationMetrics
	Confirm        OperationMetrics
	Cancel         OperationMetrics
	ReadByID       OperationMetrics
	ListByPatient  OperationMetrics
	AvailableSlots OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	log     *zap.Logger
	metrics Metrics
}

func main() {
	cfg := loadConfig()

	zl, err := logger.New("prod", "info")
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer zl.Sync() //nolint:errcheck
	zl = zl.Named("simulate")

	zl.Info("simulator starting",
		zap.Duration("duration", cfg.Duration),
		zap.Int("workers", cfg.Workers),
		zap.Float64("booking_ratio", cfg.BookingRatio),
		zap.Float64("confirm_ratio", cfg.ConfirmRatio),
		zap.Float64("cancel_ratio", cfg.CancelRatio),
		zap.Float64("read_ratio", cfg.ReadRatio),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, db.PoolOptions{MaxConns: 4, ApplicationName: "clinic-simulate"})
	if err != nil {
		zl.Fatal("connect postgres", zap.Error(err))
	}
	defer pgPool.Close()

	dataPool, err := loadDataPool(ctx, pgPool, cfg)
	if err != nil {
		zl.Fatal("load data pool", zap.Error(err))
	}
	zl.Info("data pool loaded",
		zap.Int("patients", len(dataPool.Patients)),
		zap.Int("doctors", len(dataPool.Doctors)),
		zap.Int("dates", len(dataPool.Dates)),
	)

	sim := &Simulator{
		config: cfg,
		pool:   dataPool,
		client: &http.Client{Timeout: 10 * time.Second},
		log:    zl,
	}

	sim.Run()
	sim.PrintReport()

	checkCtx, checkCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer checkCancel()
	overlaps, err := countOverlaps(checkCtx, pgPool)
	if err != nil {
		zl.Fatal("double booking check", zap.Error(err))
	}
	fmt.Printf("Double bookings found: %d\n", overlaps)
	if overlaps > 0 {
		zl.Fatal("double bookings detected", zap.Int("count", overlaps))
	}
}

func loadConfig() SimConfig {
	baseCfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load base config: %v", err)
	}

	var cfg SimConfig
	if err := envconfig.Process("SIM", &cfg); err != nil {
		log.Fatalf("simulator config: %v", err)
	}
	cfg.PostgresDSN = baseCfg.PostgresDSN

	if cfg.PostgresDSN == "" {
		log.Fatal("POSTGRES_DSN is required (set in .env or environment)")
	}
	if cfg.Workers <= 0 || cfg.Duration <= 0 || cfg.Days <= 0 {
		log.Fatal("SIM_WORKERS, SIM_DURATION and SIM_DAYS must be > 0")
	}

	total := cfg.BookingRatio + cfg.ConfirmRatio + cfg.CancelRatio + cfg.ReadRatio
	if total > 0 {
		cfg.BookingRatio /= total
		cfg.ConfirmRatio /= total
		cfg.CancelRatio /= total
		cfg.ReadRatio /= total
	}
	return cfg
}

func loadDataPool(ctx context.Context, pool *pgxpool.Pool, cfg SimConfig) (*DataPool, error) {
	dataPool := &DataPool{}

	var err error
	dataPool.Patients, err = loadIDs(ctx, pool, `SELECT id FROM patients WHERE NOT is_deleted LIMIT $1`, cfg.PatientLimit)
	if err != nil {
		return nil, fmt.Errorf("load patients: %w", err)
	}
	dataPool.Doctors, err = loadIDs(ctx, pool, `
		SELECT DISTINCT d.id FROM doctors d
		JOIN schedule_templates s ON s.doctor_id = d.id AND s.is_active
		WHERE NOT d.is_deleted
		LIMIT $1
	`, cfg.DoctorLimit)
	if err != nil {
		return nil, fmt.Errorf("load doctors: %w", err)
	}

	if len(dataPool.Patients) == 0 {
		return nil, fmt.Errorf("no patients loaded, run cmd/seed first")
	}
	if len(dataPool.Doctors) == 0 {
		return nil, fmt.Errorf("no doctors with a schedule loaded, run cmd/seed first")
	}

	// Weekdays starting two days out, so cancellations stay outside the window.
	day := timeslot.Date(time.Now()).AddDate(0, 0, 2)
	for len(dataPool.Dates) < cfg.Days {
		if day.Weekday() != time.Saturday && day.Weekday() != time.Sunday {
			dataPool.Dates = append(dataPool.Dates, day)
		}
		day = day.AddDate(0, 0, 1)
	}

	return dataPool, nil
}

func loadIDs(ctx context.Context, pool *pgxpool.Pool, query string, limit int) ([]uuid.UUID, error) {
	rows, err := pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// countOverlaps looks for pairs of active appointments of one doctor whose
// ranges intersect. Anything above zero is a double booking.
func countOverlaps(ctx context.Context, pool *pgxpool.Pool) (int, error) {
	var n int
	err := pool.QueryRow(ctx, `
		SELECT count(*) FROM appointments a
		JOIN appointments b
		  ON a.doctor_id = b.doctor_id
		 AND a.appointment_date = b.appointment_date
		 AND a.id < b.id
		 AND a.start_time < b.end_time
		 AND b.start_time < a.end_time
		WHERE a.status IN ('booked', 'confirmed', 'rescheduled')
		  AND b.status IN ('booked', 'confirmed', 'rescheduled')
	`).Scan(&n)
	return n, err
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	s.log.Info("starting simulation")

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	s.log.Info("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))
	c := s.config

	for {
		select {
		case <-ctx.Done():
			return
		default:
			r := rng.Float64()
			switch {
			case r < c.BookingRatio:
				s.doBooking(ctx, rng)
			case r < c.BookingRatio+c.ConfirmRatio:
				s.doAction(ctx, rng, "confirm", &s.metrics.Confirm)
			case r < c.BookingRatio+c.ConfirmRatio+c.CancelRatio:
				s.doAction(ctx, rng, "cancel", &s.metrics.Cancel)
			default:
				switch rng.Intn(3) {
				case 0:
					s.doReadByID(ctx, rng)
				case 1:
					s.doListByPatient(ctx, rng)
				case 2:
					s.doAvailableSlots(ctx, rng)
				}
			}
		}
	}
}

func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand) {
	p := s.pool
	hour := slotStarts[rng.Intn(len(slotStarts))]

	body, _ := json.Marshal(map[string]string{
		"patient_id":   p.Patients[rng.Intn(len(p.Patients))].String(),
		"doctor_id":    p.Doctors[rng.Intn(len(p.Doctors))].String(),
		"date":         timeslot.FormatDate(p.Dates[rng.Intn(len(p.Dates))]),
		"start_time":   timeslot.Clock(hour, 0).String(),
		"end_time":     timeslot.Clock(hour+1, 0).String(),
		"service_kind": "consultation",
	})

	start := time.Now()
	resp, err := s.send(ctx, http.MethodPost, "/appointments", body)
	latency := time.Since(start)

	success, conflict := false, false
	if err == nil {
		defer resp.Body.Close()

		switch resp.StatusCode {
		case http.StatusCreated:
			success = true
			var apptResp struct {
				ID uuid.UUID `json:"id"`
			}
			if b, _ := io.ReadAll(resp.Body); len(b) > 0 && json.Unmarshal(b, &apptResp) == nil && apptResp.ID != uuid.Nil {
				p.AddAppointment(apptResp.ID)
			}
		case http.StatusConflict:
			conflict = true
		}
	}

	s.metrics.Booking.Record(latency, success, conflict)
}

func (s *Simulator) doAction(ctx context.Context, rng *rand.Rand, action string, om *OperationMetrics) {
	apptID, ok := s.pool.GetRandomAppointment(rng)
	if !ok {
		return
	}

	start := time.Now()
	resp, err := s.send(ctx, http.MethodPost, "/appointments/"+apptID.String()+"/"+action, nil)
	latency := time.Since(start)

	success, conflict := false, false
	if err == nil {
		defer resp.Body.Close()
		success = resp.StatusCode == http.StatusOK
		conflict = resp.StatusCode == http.StatusConflict || resp.StatusCode == http.StatusUnprocessableEntity
	}

	om.Record(latency, success, conflict)
}

func (s *Simulator) doReadByID(ctx context.Context, rng *rand.Rand) {
	apptID, ok := s.pool.GetRandomAppointment(rng)
	if !ok {
		return
	}
	s.doGet(ctx, "/appointments/"+apptID.String(), &s.metrics.ReadByID)
}

func (s *Simulator) doListByPatient(ctx context.Context, rng *rand.Rand) {
	patientID := s.pool.Patients[rng.Intn(len(s.pool.Patients))]
	s.doGet(ctx, "/appointments?patient_id="+patientID.String()+"&limit=20&offset=0", &s.metrics.ListByPatient)
}

func (s *Simulator) doAvailableSlots(ctx context.Context, rng *rand.Rand) {
	doctorID := s.pool.Doctors[rng.Intn(len(s.pool.Doctors))]
	date := s.pool.Dates[rng.Intn(len(s.pool.Dates))]
	s.doGet(ctx, "/doctors/"+doctorID.String()+"/available-slots?date="+timeslot.FormatDate(date), &s.metrics.AvailableSlots)
}

func (s *Simulator) doGet(ctx context.Context, path string, om *OperationMetrics) {
	start := time.Now()
	resp, err := s.send(ctx, http.MethodGet, path, nil)
	latency := time.Since(start)

	success := false
	if err == nil {
		defer resp.Body.Close()
		success = resp.StatusCode == http.StatusOK
	}
	om.Record(latency, success, false)
}

func (s *Simulator) send(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, s.config.APIBaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return s.client.Do(req)
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Println()

	printOperationReport("Booking (conflicts are queued requests)", &s.metrics.Booking)
	printOperationReport("Confirm", &s.metrics.Confirm)
	printOperationReport("Cancel", &s.metrics.Cancel)
	printOperationReport("Read by ID", &s.metrics.ReadByID)
	printOperationReport("List by Patient", &s.metrics.ListByPatient)
	printOperationReport("Available Slots", &s.metrics.AvailableSlots)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	failed := atomic.LoadInt64(&om.Error)

	avg, lo, hi, p50, p95 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, float64(failed)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n",
		avg.Round(time.Millisecond), lo.Round(time.Millisecond), hi.Round(time.Millisecond),
		p50.Round(time.Millisecond), p95.Round(time.Millisecond))
	fmt.Println()
}
