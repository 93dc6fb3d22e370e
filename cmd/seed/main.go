package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"cloud.google.com/go/civil"
	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/hackgods/training-appointments/internal/appointment"
	"github.com/hackgods/training-appointments/internal/availability"
	"github.com/hackgods/training-appointments/internal/config"
	"github.com/hackgods/training-appointments/internal/db"
	"github.com/hackgods/training-appointments/internal/events"
	"github.com/hackgods/training-appointments/internal/logging"
	"github.com/hackgods/training-appointments/internal/offday"
)

// inlineLocker runs fn directly; the seeder is the only writer.
type inlineLocker struct{}

func (inlineLocker) WithDateLock(ctx context.Context, _ civil.Date, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.Env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()
	logger = logger.Named("seed")
	for _, w := range cfg.Warnings {
		logger.Warn(w)
	}
	logger.Info("seed starting")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatal("connect postgres", zap.Error(err))
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	students, err := seedStudents(context.Background(), pool, getInt("SEED_STUDENTS", 500), logger)
	if err != nil {
		logger.Fatal("seed students", zap.Error(err))
	}

	recorder := events.NewRecorder(events.NewPgStore(pool), events.NopPublisher{}, logger)
	offDays := offday.NewService(offday.NewPgRepository(pool), nil, recorder, logger,
		offday.WithMaxRangeDays(cfg.MaxRangeDays))
	if err := seedOffDays(context.Background(), offDays, cfg, logger); err != nil {
		logger.Fatal("seed off days", zap.Error(err))
	}

	svc := appointment.NewService(appointment.NewPgRepository(pool), inlineLocker{}, offDays, cfg,
		appointment.WithEvents(recorder),
		appointment.WithLogger(logger),
	)
	if err := seedAppointments(context.Background(), svc, students, getInt("SEED_BOOKINGS", 200), cfg, logger); err != nil {
		logger.Fatal("seed appointments", zap.Error(err))
	}

	logger.Info("seed complete")
}

func seedStudents(ctx context.Context, pool *pgxpool.Pool, count int, logger *zap.Logger) ([]uuid.UUID, error) {
	logger.Info("seeding students", zap.Int("count", count))

	const batchSize = 500
	ids := make([]uuid.UUID, 0, count)

	for offset := 0; offset < count; offset += batchSize {
		end := offset + batchSize
		if end > count {
			end = count
		}

		err := db.InTx(ctx, pool, func(tx pgx.Tx) error {
			for i := offset; i < end; i++ {
				id := uuid.New()
				_, err := tx.Exec(ctx, `
					INSERT INTO students (id, name, email, created_at, updated_at)
					VALUES ($1, $2, $3, now(), now())
				`, id, gofakeit.Name(), gofakeit.Email())
				if err != nil {
					return err
				}
				ids = append(ids, id)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}

		logger.Info("students seeded", zap.Int("done", end), zap.Int("total", count))
	}

	return ids, nil
}

// seedOffDays creates a weekly afternoon block, a full-day closure and a
// one-off morning block, all relative to today.
func seedOffDays(ctx context.Context, svc *offday.Service, cfg config.Config, logger *zap.Logger) error {
	today := civil.DateOf(time.Now().In(cfg.TimeZone))
	nextFriday := today
	for nextFriday.Weekday() != time.Friday {
		nextFriday = nextFriday.AddDays(1)
	}
	until := nextFriday.AddDays(7 * 12)

	inputs := []offday.Input{
		{
			Date:           nextFriday,
			IsRecurring:    true,
			RecurringUntil: &until,
			DisabledSlots:  []availability.SlotKind{availability.AfternoonHalf},
			Reason:         ptr("Weekly staff meeting"),
		},
		{
			Date:          nextWeekday(today.AddDays(gofakeit.Number(10, 20))),
			DisabledSlots: []availability.SlotKind{availability.FullDay},
			Reason:        ptr("Trainer " + gofakeit.FirstName() + " on leave"),
		},
		{
			Date:          nextWeekday(today.AddDays(gofakeit.Number(3, 9))),
			DisabledSlots: []availability.SlotKind{availability.MorningHalf},
			Reason:        ptr("Room maintenance"),
		},
	}

	for _, in := range inputs {
		o, err := svc.Create(ctx, in)
		if err != nil {
			return err
		}
		logger.Info("off day created",
			zap.Stringer("id", o.ID),
			zap.String("date", o.Date.String()),
			zap.Bool("recurring", o.IsRecurring))
	}
	return nil
}

func seedAppointments(ctx context.Context, svc *appointment.Service, students []uuid.UUID, count int, cfg config.Config, logger *zap.Logger) error {
	if len(students) == 0 {
		return nil
	}
	logger.Info("seeding appointments", zap.Int("attempts", count))

	today := civil.DateOf(time.Now().In(cfg.TimeZone))
	kinds := availability.Kinds()
	created, rejected := 0, 0

	for i := 0; i < count; i++ {
		in := appointment.NewAppointment{
			StudentID: students[gofakeit.Number(0, len(students)-1)],
			Date:      nextWeekday(today.AddDays(gofakeit.Number(1, 60))),
			Type:      kinds[gofakeit.Number(0, len(kinds)-1)],
		}
		if gofakeit.Bool() {
			in.Notes = ptr(seedNotes[gofakeit.Number(0, len(seedNotes)-1)] + " " + gofakeit.Word())
		}

		appt, err := svc.CreateAppointment(ctx, in)
		if err != nil {
			if errors.Is(err, appointment.ErrSlotUnavailable) {
				rejected++
				continue
			}
			return err
		}
		created++

		// Most seeded bookings are confirmed so they outlive APPOINTMENT_TTL
		if gofakeit.Number(1, 10) <= 8 {
			if _, err := svc.ConfirmAppointment(ctx, appt.ID); err != nil {
				return err
			}
		}
	}

	logger.Info("appointments seeded", zap.Int("created", created), zap.Int("unavailable", rejected))
	return nil
}

var seedNotes = []string{
	"Portfolio review:",
	"Mock interview, topic",
	"Lab session on",
	"Follow-up about",
}

func nextWeekday(d civil.Date) civil.Date {
	for d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
		d = d.AddDays(1)
	}
	return d
}

func ptr[T any](v T) *T { return &v }

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return def
}
