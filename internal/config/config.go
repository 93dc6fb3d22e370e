package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
)

type Config struct {
	Env         string // dev, prod
	HTTPPort    string // default 8080
	LogLevel    string // debug, info, warn, error
	PostgresDSN string // required
	PGMaxConns  int

	// REDIS_URL wins over the discrete fields when set
	RedisURL      string
	RedisAddr     string
	RedisUsername string
	RedisPassword string

	AMQPURL      string // optional, events only go to event_logs when empty
	AMQPExchange string

	TimeZone        *time.Location // business zone, only used to decide "today"
	AppointmentTTL  time.Duration  // how long a pending appointment holds its slot
	LockTTL         time.Duration
	LockWait        time.Duration // how long a booking waits for a contended date lock
	ShutdownTimeout time.Duration
	WorkerInterval  time.Duration
	CacheTTL        time.Duration
	MaxRangeDays    int
	AllowWeekends   bool
	CORSOrigins     []string
	RateLimitRPS    int

	// Warnings lists variables that were set but unparsable and fell back to
	// their defaults. Binaries log them once the logger exists.
	Warnings []string
}

func Load() (Config, error) {
	_ = godotenv.Load()

	var env envReader
	cfg := Config{
		Env:             env.str("APP_ENV", "dev"),
		HTTPPort:        env.str("HTTP_PORT", "8080"),
		LogLevel:        env.str("LOG_LEVEL", "info"),
		PostgresDSN:     env.str("POSTGRES_DSN", ""),
		PGMaxConns:      env.positive("PG_MAX_CONNS", 10),
		RedisURL:        env.str("REDIS_URL", ""),
		RedisAddr:       env.str("REDIS_ADDR", "127.0.0.1:6379"),
		RedisUsername:   env.str("REDIS_USERNAME", ""),
		RedisPassword:   env.str("REDIS_PASSWORD", ""),
		AMQPURL:         env.str("AMQP_URL", ""),
		AMQPExchange:    env.str("AMQP_EXCHANGE", "training.appointments"),
		AppointmentTTL:  env.duration("APPOINTMENT_TTL", 10*time.Minute),
		LockTTL:         env.duration("LOCK_TTL", 5*time.Second),
		LockWait:        env.duration("LOCK_WAIT", 0),
		ShutdownTimeout: env.duration("SHUTDOWN_TIMEOUT", 10*time.Second),
		WorkerInterval:  env.duration("WORKER_INTERVAL", time.Minute),
		CacheTTL:        env.duration("AVAILABILITY_CACHE_TTL", 30*time.Second),
		MaxRangeDays:    env.positive("MAX_RANGE_DAYS", 186),
		AllowWeekends:   env.boolean("ALLOW_WEEKENDS", false),
		CORSOrigins:     env.list("CORS_ORIGINS", []string{"http://localhost:3000"}),
		RateLimitRPS:    env.positive("RATE_LIMIT_RPS", 50),
	}
	cfg.Warnings = env.warnings

	if cfg.PostgresDSN == "" {
		return Config{}, errors.New("POSTGRES_DSN is required")
	}

	tz := env.str("APP_TIMEZONE", "UTC")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return Config{}, fmt.Errorf("invalid APP_TIMEZONE %q: %w", tz, err)
	}
	cfg.TimeZone = loc

	return cfg, nil
}

// envReader reads typed variables and remembers which ones it had to ignore.
type envReader struct {
	warnings []string
}

func (e *envReader) warn(key, raw string, def any) {
	e.warnings = append(e.warnings, fmt.Sprintf("invalid value %s=%q, using default %v", key, raw, def))
}

func (e *envReader) str(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// duration accepts plain seconds ("90") or a Go duration ("250ms").
func (e *envReader) duration(key string, def time.Duration) time.Duration {
	v := e.str(key, "")
	if v == "" {
		return def
	}
	if n, err := strconv.Atoi(v); err == nil && n >= 0 {
		return time.Duration(n) * time.Second
	}
	if d, err := time.ParseDuration(v); err == nil && d >= 0 {
		return d
	}
	e.warn(key, v, def)
	return def
}

func (e *envReader) positive(key string, def int) int {
	v := e.str(key, "")
	if v == "" {
		return def
	}
	if n, err := strconv.Atoi(v); err == nil && n > 0 {
		return n
	}
	e.warn(key, v, def)
	return def
}

func (e *envReader) boolean(key string, def bool) bool {
	v := e.str(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.warn(key, v, def)
		return def
	}
	return b
}

func (e *envReader) list(key string, def []string) []string {
	var out []string
	for _, item := range strings.Split(e.str(key, ""), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
