package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/hackgods/training-appointments/internal/availability"
	"github.com/hackgods/training-appointments/internal/config"
	"github.com/hackgods/training-appointments/internal/events"
	"github.com/hackgods/training-appointments/internal/metrics"
	redisclient "github.com/hackgods/training-appointments/internal/redis"
)

var tracer = otel.Tracer("github.com/hackgods/training-appointments/internal/appointment")

var (
	ErrSlotUnavailable         = errors.New("requested slot is not available")
	ErrSlotBeingBooked         = errors.New("date is currently being booked, please retry")
	ErrAppointmentExpiredState = errors.New("appointment is already expired")
	ErrInvalidStatusTransition = errors.New("invalid status transition")
	ErrDateInPast              = errors.New("date is in the past")
	ErrDateNotBookable         = errors.New("date is not bookable")
	ErrInvalidSlotKind         = errors.New("invalid appointment type")
	ErrInvalidRange            = errors.New("end date is before start date")
	ErrRangeTooLarge           = errors.New("date range is too large")
)

// OffDaySource supplies the resolver view of every off-day rule.
type OffDaySource interface {
	Snapshots(ctx context.Context) ([]availability.OffDay, error)
}

// AvailabilityCache stores computed ranges under a generation counter.
type AvailabilityCache interface {
	Generation(ctx context.Context) (int64, error)
	Get(ctx context.Context, gen int64, start, end civil.Date) ([]availability.DateAvailability, bool, error)
	Set(ctx context.Context, gen int64, start, end civil.Date, days []availability.DateAvailability) error
	Invalidate(ctx context.Context) error
}

type Service struct {
	repo    Repository
	locker  redisclient.Locker
	offDays OffDaySource
	cache   AvailabilityCache
	events  *events.Recorder
	metrics *metrics.Metrics
	log     *zap.Logger
	cfg     config.Config
	now     func() time.Time
}

type Option func(*Service)

func WithCache(c AvailabilityCache) Option { return func(s *Service) { s.cache = c } }

func WithEvents(r *events.Recorder) Option { return func(s *Service) { s.events = r } }

func WithMetrics(m *metrics.Metrics) Option { return func(s *Service) { s.metrics = m } }

func WithLogger(l *zap.Logger) Option { return func(s *Service) { s.log = l } }

func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

func NewService(repo Repository, locker redisclient.Locker, offDays OffDaySource, cfg config.Config, opts ...Option) *Service {
	s := &Service{
		repo:    repo,
		locker:  locker,
		offDays: offDays,
		cfg:     cfg,
		log:     zap.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// today is the current calendar date in the business time zone.
func (s *Service) today() civil.Date {
	loc := s.cfg.TimeZone
	if loc == nil {
		loc = time.UTC
	}
	return civil.DateOf(s.now().In(loc))
}

func isWeekend(d civil.Date) bool {
	wd := d.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// bookable applies the calendar gates that sit in front of the resolver.
func (s *Service) bookable(date civil.Date) error {
	if date.Before(s.today()) {
		return ErrDateInPast
	}
	if !s.cfg.AllowWeekends && isWeekend(date) {
		return ErrDateNotBookable
	}
	return nil
}

// CreateAppointment reserves a slot kind on a date for a student.
// The per-date lock serialises check-then-insert so two concurrent requests
// cannot both take the same half of a day.
func (s *Service) CreateAppointment(ctx context.Context, in NewAppointment) (appt *Appointment, err error) {
	ctx, span := tracer.Start(ctx, "appointment.create")
	defer span.End()
	span.SetAttributes(
		attribute.String("appointment.date", in.Date.String()),
		attribute.String("appointment.type", string(in.Type)),
	)
	defer func() {
		kind := string(in.Type)
		if !in.Type.Valid() {
			kind = "invalid"
		}
		s.metrics.ObserveBooking(kind, bookingOutcome(err))
	}()

	if !in.Type.Valid() {
		return nil, ErrInvalidSlotKind
	}
	if !in.Date.IsValid() {
		return nil, ErrDateNotBookable
	}
	if err := s.bookable(in.Date); err != nil {
		return nil, err
	}

	if _, err := s.repo.GetStudentByID(ctx, in.StudentID); err != nil {
		if errors.Is(err, ErrStudentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load student: %w", err)
	}

	var created *Appointment

	err = s.locker.WithDateLock(ctx, in.Date, func(lockCtx context.Context) error {
		// Re-read both snapshots inside the critical section
		booked, err := s.repo.ListActiveByDate(lockCtx, in.Date)
		if err != nil {
			return fmt.Errorf("load appointments for date: %w", err)
		}
		offDays, err := s.offDays.Snapshots(lockCtx)
		if err != nil {
			return fmt.Errorf("load off days: %w", err)
		}

		if !availability.IsSlotAvailable(in.Date, in.Type, offDays, snapshots(booked)) {
			return ErrSlotUnavailable
		}

		expiresAt := s.now().Add(s.cfg.AppointmentTTL)
		appt, err := s.repo.CreatePendingAppointment(lockCtx, in, expiresAt)
		if err != nil {
			return fmt.Errorf("create pending appointment: %w", err)
		}
		created = appt
		return nil
	})

	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrSlotBeingBooked
		}
		return nil, err
	}

	// Recorded after the date lock is released.
	s.events.Record(ctx, events.New(events.AppointmentCreated, created.ID, map[string]any{
		"student_id":       in.StudentID.String(),
		"date":             in.Date.String(),
		"appointment_type": string(in.Type),
		"expires_at":       created.ExpiresAt,
	}))
	s.invalidate(ctx)
	return created, nil
}

func bookingOutcome(err error) string {
	switch {
	case err == nil:
		return "created"
	case errors.Is(err, ErrSlotUnavailable):
		return "unavailable"
	case errors.Is(err, ErrSlotBeingBooked):
		return "contended"
	case errors.Is(err, ErrDateInPast), errors.Is(err, ErrDateNotBookable),
		errors.Is(err, ErrInvalidSlotKind), errors.Is(err, ErrStudentNotFound):
		return "rejected"
	default:
		return "error"
	}
}

// ConfirmAppointment moves a pending appointment to confirmed
func (s *Service) ConfirmAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	ctx, span := tracer.Start(ctx, "appointment.confirm")
	defer span.End()

	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load appointment: %w", err)
	}

	if appt.Status == StatusExpired {
		return nil, ErrAppointmentExpiredState
	}
	if appt.Status != StatusPending {
		return nil, ErrInvalidStatusTransition
	}

	if appt.ExpiresAt != nil && appt.ExpiresAt.Before(s.now()) {
		// Try to mark it as expired if still pending
		_, updErr := s.repo.UpdateAppointmentStatus(ctx, appt.ID, StatusPending, StatusExpired)
		if updErr != nil && !errors.Is(updErr, ErrAppointmentNotFound) {
			s.log.Warn("failed to mark appointment as expired during confirm",
				zap.Stringer("appointment_id", appt.ID), zap.Error(updErr))
		}
		if updErr == nil {
			s.events.Record(ctx, events.New(events.AppointmentExpired, appt.ID, map[string]any{
				"reason": "confirm_after_expiry",
			}))
			s.invalidate(ctx)
		}
		return nil, ErrAppointmentExpiredState
	}

	updated, err := s.repo.UpdateAppointmentStatus(ctx, appt.ID, StatusPending, StatusConfirmed)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			// Lost a race with cancel or the expiry worker
			return nil, ErrInvalidStatusTransition
		}
		return nil, fmt.Errorf("confirm appointment: %w", err)
	}

	s.events.Record(ctx, events.New(events.AppointmentConfirmed, updated.ID, map[string]any{
		"date":             updated.Date.String(),
		"appointment_type": string(updated.Type),
	}))
	s.invalidate(ctx)

	return updated, nil
}

// CancelAppointment releases a pending or confirmed appointment.
func (s *Service) CancelAppointment(ctx context.Context, id uuid.UUID, reason *string) (*Appointment, error) {
	ctx, span := tracer.Start(ctx, "appointment.cancel")
	defer span.End()

	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load appointment: %w", err)
	}
	if appt.Status != StatusPending && appt.Status != StatusConfirmed {
		return nil, ErrInvalidStatusTransition
	}

	cancelled, err := s.repo.CancelAppointment(ctx, appt.ID, reason)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, ErrInvalidStatusTransition
		}
		return nil, fmt.Errorf("cancel appointment: %w", err)
	}

	payload := map[string]any{
		"previous_status": string(appt.Status),
		"date":            cancelled.Date.String(),
	}
	if reason != nil {
		payload["reason"] = *reason
	}
	s.events.Record(ctx, events.New(events.AppointmentCancelled, cancelled.ID, payload))
	s.invalidate(ctx)

	return cancelled, nil
}

// ExpirePendingAppointments is intended to be called by the worker periodically.
// It returns how many appointments were expired.
func (s *Service) ExpirePendingAppointments(ctx context.Context) (int, error) {
	ctx, span := tracer.Start(ctx, "appointment.expire_pending")
	defer span.End()

	expiredCandidates, err := s.repo.FindExpiredPending(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("find expired pending appointments: %w", err)
	}

	expired := 0
	for _, appt := range expiredCandidates {
		_, err := s.repo.UpdateAppointmentStatus(ctx, appt.ID, StatusPending, StatusExpired)
		if err != nil {
			if !errors.Is(err, ErrAppointmentNotFound) {
				s.log.Warn("failed to expire appointment",
					zap.Stringer("appointment_id", appt.ID), zap.Error(err))
			}
			continue
		}
		expired++
		s.events.Record(ctx, events.New(events.AppointmentExpired, appt.ID, map[string]any{
			"reason": "worker",
		}))
	}

	span.SetAttributes(attribute.Int("appointment.expired", expired))
	if expired > 0 {
		s.invalidate(ctx)
	}
	return expired, nil
}

// GetAppointment retrieves an appointment together with its student
func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error) {
	detail, err := s.repo.GetAppointmentDetail(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return detail, nil
}

// ListAppointments returns appointments whose date falls in the filter range.
func (s *Service) ListAppointments(ctx context.Context, filter ListFilter) ([]Appointment, error) {
	if err := s.checkRange(filter.Start, filter.End); err != nil {
		return nil, err
	}
	appts, err := s.repo.ListInRange(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return appts, nil
}

// ListAppointmentsByStudent retrieves appointments for a specific student
func (s *Service) ListAppointmentsByStudent(ctx context.Context, studentID uuid.UUID, limit, offset int) ([]Appointment, error) {
	if limit <= 0 {
		limit = 20 // default
	}
	if limit > 100 {
		limit = 100 // max
	}
	if offset < 0 {
		offset = 0
	}

	appointments, err := s.repo.ListByStudent(ctx, studentID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list appointments by student: %w", err)
	}
	return appointments, nil
}

// CheckAvailability reports whether a slot kind can be booked on a date.
func (s *Service) CheckAvailability(ctx context.Context, date civil.Date, kind availability.SlotKind) (bool, error) {
	ctx, span := tracer.Start(ctx, "availability.check")
	defer span.End()

	if !kind.Valid() {
		return false, ErrInvalidSlotKind
	}
	if s.bookable(date) != nil {
		s.metrics.ObserveAvailabilityCheck(string(kind), false)
		return false, nil
	}

	booked, err := s.repo.ListActiveByDate(ctx, date)
	if err != nil {
		return false, fmt.Errorf("load appointments for date: %w", err)
	}
	offDays, err := s.offDays.Snapshots(ctx)
	if err != nil {
		return false, fmt.Errorf("load off days: %w", err)
	}

	ok := availability.IsSlotAvailable(date, kind, offDays, snapshots(booked))
	s.metrics.ObserveAvailabilityCheck(string(kind), ok)
	return ok, nil
}

func (s *Service) checkRange(start, end civil.Date) error {
	if end.Before(start) {
		return ErrInvalidRange
	}
	if s.cfg.MaxRangeDays > 0 && end.DaysSince(start)+1 > s.cfg.MaxRangeDays {
		return ErrRangeTooLarge
	}
	return nil
}

// AvailableSlots returns the per-date availability map for [start, end].
// Dates that fail the calendar gates are reported with no slots.
func (s *Service) AvailableSlots(ctx context.Context, start, end civil.Date) ([]availability.DateAvailability, error) {
	ctx, span := tracer.Start(ctx, "availability.range")
	defer span.End()
	span.SetAttributes(
		attribute.String("availability.start", start.String()),
		attribute.String("availability.end", end.String()),
	)

	if err := s.checkRange(start, end); err != nil {
		return nil, err
	}

	days, err := s.resolveRange(ctx, start, end)
	if err != nil {
		return nil, err
	}

	out := make([]availability.DateAvailability, len(days))
	for i, d := range days {
		out[i] = d
		if s.bookable(d.Date) != nil {
			out[i].AvailableSlots = []availability.SlotKind{}
		}
	}
	return out, nil
}

// resolveRange serves the raw resolver output, through the cache when one is
// configured. The generation is read before computing so a concurrent write
// can never leave a stale result under the current generation.
func (s *Service) resolveRange(ctx context.Context, start, end civil.Date) ([]availability.DateAvailability, error) {
	gen, cacheable := int64(0), s.cache != nil
	if cacheable {
		g, err := s.cache.Generation(ctx)
		if err != nil {
			s.log.Warn("availability cache unavailable", zap.Error(err))
			cacheable = false
		} else {
			gen = g
			days, hit, err := s.cache.Get(ctx, gen, start, end)
			if err != nil {
				s.log.Warn("availability cache read failed", zap.Error(err))
			}
			s.metrics.ObserveCacheLookup(hit)
			if hit {
				return days, nil
			}
		}
	}

	booked, err := s.repo.ListActiveInRange(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("load appointments for range: %w", err)
	}
	offDays, err := s.offDays.Snapshots(ctx)
	if err != nil {
		return nil, fmt.Errorf("load off days: %w", err)
	}

	days := availability.BuildMonthAvailability(start, end, offDays, snapshots(booked))

	if cacheable {
		if err := s.cache.Set(ctx, gen, start, end, days); err != nil {
			s.log.Warn("availability cache write failed", zap.Error(err))
		}
	}
	return days, nil
}

func (s *Service) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(context.WithoutCancel(ctx)); err != nil {
		s.log.Warn("failed to invalidate availability cache", zap.Error(err))
	}
}
