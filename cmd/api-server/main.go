package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/hackgods/training-appointments/internal/api"
	"github.com/hackgods/training-appointments/internal/appointment"
	"github.com/hackgods/training-appointments/internal/config"
	"github.com/hackgods/training-appointments/internal/db"
	"github.com/hackgods/training-appointments/internal/events"
	"github.com/hackgods/training-appointments/internal/logging"
	"github.com/hackgods/training-appointments/internal/metrics"
	"github.com/hackgods/training-appointments/internal/offday"
	redisclient "github.com/hackgods/training-appointments/internal/redis"
)

var version = "dev"

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
	for _, w := range cfg.Warnings {
		logger.Warn(w)
	}

	logger.Info("api-server starting up",
		zap.String("env", cfg.Env),
		zap.String("http_port", cfg.HTTPPort),
		zap.String("version", version))

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

	// Connect Redis
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
	defer func() {
		if err := closePub(); err != nil {
			logger.Warn("error closing amqp publisher", zap.Error(err))
		}
	}()
	if cfg.AMQPURL == "" {
		logger.Info("AMQP_URL not set, domain events are only written to event_logs")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	recorder := events.NewRecorder(events.NewPgStore(pgPool), pub, logger)
	cache := redisclient.NewAvailabilityCache(rdb, cfg.CacheTTL)

	offDays := offday.NewService(offday.NewPgRepository(pgPool), cache, recorder, logger.Named("offday"),
		offday.WithMaxRangeDays(cfg.MaxRangeDays))
	appointments := appointment.NewService(
		appointment.NewPgRepository(pgPool),
		redisclient.NewRedisDateLocker(rdb, cfg.LockTTL, redisclient.WithWait(cfg.LockWait, 0)),
		offDays,
		cfg,
		appointment.WithCache(cache),
		appointment.WithEvents(recorder),
		appointment.WithMetrics(m),
		appointment.WithLogger(logger.Named("appointment")),
	)

	router := api.NewRouter(api.RouterConfig{
		Appointments: appointments,
		OffDays:      offDays,
		Postgres:     pgPool,
		Redis:        api.PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() }),
		Logger:       logger.Named("http"),
		Metrics:      m,
		Gatherer:     reg,
		CORSOrigins:  cfg.CORSOrigins,
		RateLimitRPS: cfg.RateLimitRPS,
		Env:          cfg.Env,
		Version:      version,
	})

	srv := &http.Server{
		Addr:              net.JoinHostPort("", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", srv.Addr))
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case <-rootCtx.Done():
		logger.Info("shutdown signal received")
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}

	logger.Info("api-server stopped")
}
