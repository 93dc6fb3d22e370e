package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"cloud.google.com/go/civil"
	"github.com/brianvoe/gofakeit/v7"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/hackgods/training-appointments/internal/availability"
	"github.com/hackgods/training-appointments/internal/config"
	"github.com/hackgods/training-appointments/internal/db"
	"github.com/hackgods/training-appointments/internal/logging"
)

type simConfig struct {
	APIBaseURL   string
	Duration     time.Duration
	Workers      int
	Horizon      int
	BookRatio    float64
	ConfirmRatio float64
	CancelRatio  float64
	ReadRatio    float64
	StudentLimit int
}

// bookings tracks appointment ids created during the run.
type bookings struct {
	mu  sync.Mutex
	ids []uuid.UUID
}

func (b *bookings) add(id uuid.UUID) {
	b.mu.Lock()
	b.ids = append(b.ids, id)
	b.mu.Unlock()
}

func (b *bookings) pick(f *gofakeit.Faker) (uuid.UUID, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.ids) == 0 {
		return uuid.Nil, false
	}
	return b.ids[f.IntN(len(b.ids))], true
}

type opStats struct {
	total     atomic.Int64
	ok        atomic.Int64
	rejected  atomic.Int64
	failed    atomic.Int64
	mu        sync.Mutex
	latencies []time.Duration
}

// record classifies a response: 2xx is ok, 4xx is a business rejection,
// anything else (including transport errors) is a failure.
func (s *opStats) record(latency time.Duration, status int) {
	s.total.Add(1)
	switch {
	case status >= 200 && status < 300:
		s.ok.Add(1)
	case status >= 400 && status < 500:
		s.rejected.Add(1)
	default:
		s.failed.Add(1)
	}

	s.mu.Lock()
	s.latencies = append(s.latencies, latency)
	s.mu.Unlock()
}

func (s *opStats) percentiles() (avg, p50, p95, max time.Duration) {
	s.mu.Lock()
	sorted := append([]time.Duration(nil), s.latencies...)
	s.mu.Unlock()

	if len(sorted) == 0 {
		return 0, 0, 0, 0
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var sum time.Duration
	for _, l := range sorted {
		sum += l
	}
	at := func(pct int) time.Duration {
		idx := len(sorted) * pct / 100
		if idx >= len(sorted) {
			idx = len(sorted) - 1
		}
		return sorted[idx]
	}
	return sum / time.Duration(len(sorted)), at(50), at(95), sorted[len(sorted)-1]
}

type simulator struct {
	cfg      simConfig
	log      *zap.Logger
	client   *http.Client
	students []uuid.UUID
	created  bookings
	today    civil.Date

	book, confirm, cancel, get, byStudent, slots, check opStats
}

func main() {
	base, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(base.LogLevel, base.Env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()
	logger = logger.Named("simulate")

	cfg := loadSimConfig()
	if cfg.Workers <= 0 || cfg.Duration <= 0 {
		logger.Fatal("SIM_WORKERS and SIM_DURATION must be positive")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, base.PostgresDSN)
	if err != nil {
		logger.Fatal("connect postgres", zap.Error(err))
	}
	defer pool.Close()

	students, err := loadStudents(ctx, pool, cfg.StudentLimit)
	if err != nil {
		logger.Fatal("load students", zap.Error(err))
	}

	sim := &simulator{
		cfg:      cfg,
		log:      logger,
		client:   &http.Client{Timeout: 10 * time.Second},
		students: students,
		today:    civil.DateOf(time.Now().In(base.TimeZone)),
	}

	logger.Info("simulation starting",
		zap.Int("students", len(students)),
		zap.Int("workers", cfg.Workers),
		zap.Duration("duration", cfg.Duration),
		zap.Int("horizon_days", cfg.Horizon))

	sim.run()
	sim.report(os.Stdout)
}

func loadSimConfig() simConfig {
	cfg := simConfig{
		APIBaseURL:   strings.TrimRight(getEnv("SIM_API_BASE_URL", "http://localhost:8080"), "/"),
		Duration:     getDuration("SIM_DURATION", 30*time.Second),
		Workers:      getInt("SIM_WORKERS", 10),
		Horizon:      getInt("SIM_HORIZON_DAYS", 30),
		BookRatio:    getFloat("SIM_BOOK_RATIO", 0.4),
		ConfirmRatio: getFloat("SIM_CONFIRM_RATIO", 0.15),
		CancelRatio:  getFloat("SIM_CANCEL_RATIO", 0.05),
		ReadRatio:    getFloat("SIM_READ_RATIO", 0.4),
		StudentLimit: getInt("SIM_STUDENT_LIMIT", 2000),
	}
	if cfg.Horizon < 1 {
		cfg.Horizon = 1
	}

	total := cfg.BookRatio + cfg.ConfirmRatio + cfg.CancelRatio + cfg.ReadRatio
	if total > 0 {
		cfg.BookRatio /= total
		cfg.ConfirmRatio /= total
		cfg.CancelRatio /= total
		cfg.ReadRatio /= total
	}
	return cfg
}

func loadStudents(ctx context.Context, pool *pgxpool.Pool, limit int) ([]uuid.UUID, error) {
	rows, err := pool.Query(ctx, `SELECT id FROM students ORDER BY created_at LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query students: %w", err)
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
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("no students found, run cmd/seed first")
	}
	return ids, nil
}

func (s *simulator) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Duration)
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < s.cfg.Workers; i++ {
		wg.Add(1)
		go func(seed uint64) {
			defer wg.Done()
			s.worker(ctx, gofakeit.New(seed))
		}(uint64(time.Now().UnixNano()) + uint64(i))
	}
	wg.Wait()

	s.log.Info("simulation complete")
}

func (s *simulator) worker(ctx context.Context, f *gofakeit.Faker) {
	for ctx.Err() == nil {
		r := f.Float64()
		switch {
		case r < s.cfg.BookRatio:
			s.doBook(ctx, f)
		case r < s.cfg.BookRatio+s.cfg.ConfirmRatio:
			s.doConfirm(ctx, f)
		case r < s.cfg.BookRatio+s.cfg.ConfirmRatio+s.cfg.CancelRatio:
			s.doCancel(ctx, f)
		default:
			switch f.IntN(4) {
			case 0:
				s.doGet(ctx, f)
			case 1:
				s.doListByStudent(ctx, f)
			case 2:
				s.doAvailableSlots(ctx, f)
			default:
				s.doCheck(ctx, f)
			}
		}
	}
}

// randomDate returns a weekday within the configured horizon.
func (s *simulator) randomDate(f *gofakeit.Faker) civil.Date {
	d := s.today.AddDays(f.Number(1, s.cfg.Horizon))
	for d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
		d = d.AddDays(1)
	}
	return d
}

func randomKind(f *gofakeit.Faker) availability.SlotKind {
	kinds := availability.Kinds()
	return kinds[f.IntN(len(kinds))]
}

// call performs a request and returns the status code (0 on transport
// error) and the response body.
func (s *simulator) call(ctx context.Context, method, path string, payload any) (int, []byte, time.Duration) {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			s.log.Error("marshal request", zap.Error(err))
			return 0, nil, 0
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.cfg.APIBaseURL+path, body)
	if err != nil {
		return 0, nil, 0
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := s.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		if ctx.Err() == nil {
			s.log.Debug("request failed", zap.String("path", path), zap.Error(err))
		}
		return 0, nil, latency
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, data, latency
}

func (s *simulator) doBook(ctx context.Context, f *gofakeit.Faker) {
	payload := map[string]string{
		"studentId":       s.students[f.IntN(len(s.students))].String(),
		"date":            s.randomDate(f).String(),
		"appointmentType": string(randomKind(f)),
	}

	status, data, latency := s.call(ctx, http.MethodPost, "/appointments", payload)
	if ctx.Err() != nil {
		return
	}
	s.book.record(latency, status)

	if status == http.StatusCreated {
		var created struct {
			ID uuid.UUID `json:"id"`
		}
		if err := json.Unmarshal(data, &created); err == nil && created.ID != uuid.Nil {
			s.created.add(created.ID)
		}
	}
}

func (s *simulator) doConfirm(ctx context.Context, f *gofakeit.Faker) {
	id, ok := s.created.pick(f)
	if !ok {
		return
	}
	status, _, latency := s.call(ctx, http.MethodPost, "/appointments/"+id.String()+"/confirm", nil)
	if ctx.Err() == nil {
		s.confirm.record(latency, status)
	}
}

func (s *simulator) doCancel(ctx context.Context, f *gofakeit.Faker) {
	id, ok := s.created.pick(f)
	if !ok {
		return
	}
	payload := map[string]string{"reason": "simulated cancellation"}
	status, _, latency := s.call(ctx, http.MethodPost, "/appointments/"+id.String()+"/cancel", payload)
	if ctx.Err() == nil {
		s.cancel.record(latency, status)
	}
}

func (s *simulator) doGet(ctx context.Context, f *gofakeit.Faker) {
	id, ok := s.created.pick(f)
	if !ok {
		return
	}
	status, _, latency := s.call(ctx, http.MethodGet, "/appointments/"+id.String(), nil)
	if ctx.Err() == nil {
		s.get.record(latency, status)
	}
}

func (s *simulator) doListByStudent(ctx context.Context, f *gofakeit.Faker) {
	student := s.students[f.IntN(len(s.students))]
	status, _, latency := s.call(ctx, http.MethodGet, "/students/"+student.String()+"/appointments?limit=20", nil)
	if ctx.Err() == nil {
		s.byStudent.record(latency, status)
	}
}

func (s *simulator) doAvailableSlots(ctx context.Context, f *gofakeit.Faker) {
	start := s.today.AddDays(f.Number(0, s.cfg.Horizon))
	end := start.AddDays(f.Number(0, 13))
	path := fmt.Sprintf("/appointments/available-slots?startDate=%s&endDate=%s", start, end)

	status, _, latency := s.call(ctx, http.MethodGet, path, nil)
	if ctx.Err() == nil {
		s.slots.record(latency, status)
	}
}

func (s *simulator) doCheck(ctx context.Context, f *gofakeit.Faker) {
	path := fmt.Sprintf("/appointments/availability?date=%s&type=%s", s.randomDate(f), randomKind(f))
	status, _, latency := s.call(ctx, http.MethodGet, path, nil)
	if ctx.Err() == nil {
		s.check.record(latency, status)
	}
}

func (s *simulator) report(w io.Writer) {
	line := strings.Repeat("=", 72)
	fmt.Fprintln(w, line)
	fmt.Fprintf(w, "SIMULATION REPORT  duration=%s workers=%d horizon=%dd\n",
		s.cfg.Duration, s.cfg.Workers, s.cfg.Horizon)
	fmt.Fprintln(w, line)
	fmt.Fprintf(w, "%-22s %8s %8s %8s %8s %9s %9s %9s\n",
		"operation", "total", "ok", "4xx", "failed", "avg", "p95", "max")

	rows := []struct {
		name  string
		stats *opStats
	}{
		{"book", &s.book},
		{"confirm", &s.confirm},
		{"cancel", &s.cancel},
		{"get by id", &s.get},
		{"list by student", &s.byStudent},
		{"available slots", &s.slots},
		{"check availability", &s.check},
	}
	for _, row := range rows {
		total := row.stats.total.Load()
		if total == 0 {
			continue
		}
		avg, _, p95, max := row.stats.percentiles()
		fmt.Fprintf(w, "%-22s %8d %8d %8d %8d %9s %9s %9s\n",
			row.name, total, row.stats.ok.Load(), row.stats.rejected.Load(), row.stats.failed.Load(),
			avg.Round(time.Millisecond), p95.Round(time.Millisecond), max.Round(time.Millisecond))
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
