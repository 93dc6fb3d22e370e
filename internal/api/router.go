package api

import (
	"context"
	"net/http"
	"time"

	"cloud.google.com/go/civil"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/hackgods/training-appointments/internal/appointment"
	"github.com/hackgods/training-appointments/internal/availability"
	"github.com/hackgods/training-appointments/internal/metrics"
	"github.com/hackgods/training-appointments/internal/offday"
)

type AppointmentService interface {
	CreateAppointment(ctx context.Context, in appointment.NewAppointment) (*appointment.Appointment, error)
	ConfirmAppointment(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error)
	CancelAppointment(ctx context.Context, id uuid.UUID, reason *string) (*appointment.Appointment, error)
	GetAppointment(ctx context.Context, id uuid.UUID) (*appointment.AppointmentDetail, error)
	ListAppointments(ctx context.Context, filter appointment.ListFilter) ([]appointment.Appointment, error)
	ListAppointmentsByStudent(ctx context.Context, studentID uuid.UUID, limit, offset int) ([]appointment.Appointment, error)
	CheckAvailability(ctx context.Context, date civil.Date, kind availability.SlotKind) (bool, error)
	AvailableSlots(ctx context.Context, start, end civil.Date) ([]availability.DateAvailability, error)
}

type OffDayService interface {
	Create(ctx context.Context, in offday.Input) (*offday.OffDay, error)
	Update(ctx context.Context, id uuid.UUID, in offday.Input) (*offday.OffDay, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Get(ctx context.Context, id uuid.UUID) (*offday.OffDay, error)
	List(ctx context.Context) ([]offday.OffDay, error)
	Calendar(ctx context.Context, from, to civil.Date) ([]offday.Occurrence, error)
}

type RouterConfig struct {
	Appointments AppointmentService
	OffDays      OffDayService
	Postgres     Pinger
	Redis        Pinger
	Logger       *zap.Logger
	Metrics      *metrics.Metrics
	Gatherer     prometheus.Gatherer
	CORSOrigins  []string
	RateLimitRPS int
	Env          string
	Version      string
}

func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}

	r := chi.NewRouter()

	// Apply middleware
	r.Use(RequestContext(cfg.Logger))
	r.Use(AccessLog)
	r.Use(MetricsMiddleware(cfg.Metrics))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))
	if cfg.RateLimitRPS > 0 {
		r.Use(httprate.LimitByIP(cfg.RateLimitRPS, time.Second))
	}

	// Health and metrics endpoints
	health := NewHealthHandler(cfg.Env, cfg.Version,
		DependencyCheck{Name: "postgres", Pinger: cfg.Postgres, Critical: true},
		DependencyCheck{Name: "redis", Pinger: cfg.Redis},
	)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))

	// Appointment endpoints
	r.Route("/appointments", func(r chi.Router) {
		r.Get("/available-slots", availableSlotsHandler(cfg.Appointments))
		r.Get("/availability", checkAvailabilityHandler(cfg.Appointments))
		r.Post("/", createAppointmentHandler(cfg.Appointments))
		r.Get("/", listAppointmentsHandler(cfg.Appointments))
		r.Get("/{id}", getAppointmentHandler(cfg.Appointments))
		r.Post("/{id}/confirm", confirmAppointmentHandler(cfg.Appointments))
		r.Post("/{id}/cancel", cancelAppointmentHandler(cfg.Appointments))
	})
	r.Get("/students/{id}/appointments", listStudentAppointmentsHandler(cfg.Appointments))

	// Off-day endpoints
	r.Route("/admin-off-days", func(r chi.Router) {
		r.Get("/", listOffDaysHandler(cfg.OffDays))
		r.Post("/", createOffDayHandler(cfg.OffDays))
		r.Get("/calendar", offDayCalendarHandler(cfg.OffDays))
		r.Get("/{id}", getOffDayHandler(cfg.OffDays))
		r.Put("/{id}", updateOffDayHandler(cfg.OffDays))
		r.Delete("/{id}", deleteOffDayHandler(cfg.OffDays))
	})

	return r
}
