package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hackgods/training-appointments/internal/appointment"
	"github.com/hackgods/training-appointments/internal/config"
	"github.com/hackgods/training-appointments/internal/db"
	"github.com/hackgods/training-appointments/internal/events"
	"github.com/hackgods/training-appointments/internal/logging"
	"github.com/hackgods/training-appointments/internal/offday"
	redisclient "github.com/hackgods/training-appointments/internal/redis"
)

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
	logger = logger.Named("expiry-worker")
	for _, w := range cfg.Warnings {
		logger.Warn(w)
	}

	logger.Info("expiry worker starting up",
		zap.String("env", cfg.Env),
		zap.Duration("interval", cfg.WorkerInterval))

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, db.WithMaxConns(int32(cfg.PGMaxConns)))
	cancelPg()
	if err != nil {
		logger.Fatal("postgres connection error", zap.Error(err))
	}
	defer pgPool.Close()
	logger.Info("connected to Postgres")

	rdb, err := redisclient.NewRedisClient(rootCtx, cfg)
	if err != nil {
		logger.Fatal("redis connection error", zap.Error(err))
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Warn("error closing redis", zap.Error(err))
		}
	}()
	logger.Info("connected to Redis")

	pub, closePub, err := events.Connect(cfg.AMQPURL, cfg.AMQPExchange)
	if err != nil {
		logger.Fatal("amqp connection error", zap.Error(err))
	}
	defer func() { _ = closePub() }()

	recorder := events.NewRecorder(events.NewPgStore(pgPool), pub, logger)
	cache := redisclient.NewAvailabilityCache(rdb, cfg.CacheTTL)
	offDays := offday.NewService(offday.NewPgRepository(pgPool), cache, recorder, logger,
		offday.WithMaxRangeDays(cfg.MaxRangeDays))

	svc := appointment.NewService(
		appointment.NewPgRepository(pgPool),
		redisclient.NewRedisDateLocker(rdb, cfg.LockTTL, redisclient.WithWait(cfg.LockWait, 0)),
		offDays,
		cfg,
		appointment.WithCache(cache),
		appointment.WithEvents(recorder),
		appointment.WithLogger(logger),
	)

	// Run once at startup
	runOnce(rootCtx, svc, logger)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			logger.Info("shutdown signal received, stopping expiry worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, svc, logger)
		}
	}
}

func runOnce(ctx context.Context, svc *appointment.Service, logger *zap.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	expired, err := svc.ExpirePendingAppointments(runCtx)
	if err != nil {
		logger.Error("expiry run error", zap.Error(err))
		return
	}
	logger.Info("expiry run complete",
		zap.Int("expired", expired),
		zap.Duration("took", time.Since(start)))
}
