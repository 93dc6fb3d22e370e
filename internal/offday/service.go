package offday

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/hackgods/training-appointments/internal/availability"
	"github.com/hackgods/training-appointments/internal/events"
)

var tracer = otel.Tracer("github.com/hackgods/training-appointments/internal/offday")

var (
	ErrInvalidOffDay = errors.New("invalid off day")
	ErrInvalidRange  = errors.New("end date is before start date")
	ErrRangeTooLarge = errors.New("date range is too large")
)

// Invalidator drops every cached availability range.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

type Service struct {
	repo   Repository
	cache  Invalidator
	events *events.Recorder
	log    *zap.Logger

	maxRangeDays int
}

type Option func(*Service)

// WithMaxRangeDays caps the number of days Calendar will expand. Zero means
// no cap.
func WithMaxRangeDays(n int) Option { return func(s *Service) { s.maxRangeDays = n } }

func NewService(repo Repository, cache Invalidator, rec *events.Recorder, log *zap.Logger, opts ...Option) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Service{repo: repo, cache: cache, events: rec, log: log}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Normalize validates in and rewrites DisabledSlots to the distinct half-day
// kinds it covers, morning first.
func Normalize(in Input) (Input, error) {
	if !in.Date.IsValid() {
		return in, fmt.Errorf("%w: date is not a valid calendar date", ErrInvalidOffDay)
	}
	if len(in.DisabledSlots) == 0 {
		return in, fmt.Errorf("%w: disabledSlots must not be empty", ErrInvalidOffDay)
	}

	var set availability.SlotSet
	for _, k := range in.DisabledSlots {
		if !k.Valid() {
			return in, fmt.Errorf("%w: %w: %q", ErrInvalidOffDay, availability.ErrUnknownSlotKind, string(k))
		}
		set = set.Union(k.Halves())
	}

	halves := make([]availability.SlotKind, 0, 2)
	for _, k := range []availability.SlotKind{availability.MorningHalf, availability.AfternoonHalf} {
		if set.Has(k) {
			halves = append(halves, k)
		}
	}
	in.DisabledSlots = halves

	if in.RecurringUntil != nil {
		if !in.IsRecurring {
			return in, fmt.Errorf("%w: recurringUntil requires isRecurring", ErrInvalidOffDay)
		}
		if in.RecurringUntil.Before(in.Date) {
			return in, fmt.Errorf("%w: recurringUntil is before date", ErrInvalidOffDay)
		}
	}

	if in.Reason != nil && *in.Reason == "" {
		in.Reason = nil
	}
	return in, nil
}

func (s *Service) Create(ctx context.Context, in Input) (*OffDay, error) {
	ctx, span := tracer.Start(ctx, "offday.create")
	defer span.End()

	in, err := Normalize(in)
	if err != nil {
		return nil, err
	}

	created, err := s.repo.Create(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("create off day: %w", err)
	}

	s.events.Record(ctx, events.New(events.OffDayCreated, created.ID, payload(created)))
	s.invalidate(ctx)
	return created, nil
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, in Input) (*OffDay, error) {
	ctx, span := tracer.Start(ctx, "offday.update")
	defer span.End()

	in, err := Normalize(in)
	if err != nil {
		return nil, err
	}

	updated, err := s.repo.Update(ctx, id, in)
	if err != nil {
		if errors.Is(err, ErrOffDayNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("update off day: %w", err)
	}

	s.events.Record(ctx, events.New(events.OffDayUpdated, updated.ID, payload(updated)))
	s.invalidate(ctx)
	return updated, nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	ctx, span := tracer.Start(ctx, "offday.delete")
	defer span.End()

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrOffDayNotFound) {
			return err
		}
		return fmt.Errorf("delete off day: %w", err)
	}

	s.events.Record(ctx, events.New(events.OffDayDeleted, id, nil))
	s.invalidate(ctx)
	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*OffDay, error) {
	o, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrOffDayNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get off day: %w", err)
	}
	return o, nil
}

func (s *Service) List(ctx context.Context) ([]OffDay, error) {
	list, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list off days: %w", err)
	}
	return list, nil
}

// Snapshots returns the resolver view of every stored rule.
func (s *Service) Snapshots(ctx context.Context) ([]availability.OffDay, error) {
	list, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]availability.OffDay, len(list))
	for i, o := range list {
		out[i] = o.Snapshot()
	}
	return out, nil
}

// Calendar expands every rule into its dates within [from, to], ordered by
// date. Open-ended recurring rules stop at to.
func (s *Service) Calendar(ctx context.Context, from, to civil.Date) ([]Occurrence, error) {
	ctx, span := tracer.Start(ctx, "offday.calendar")
	defer span.End()

	if to.Before(from) {
		return nil, ErrInvalidRange
	}
	if s.maxRangeDays > 0 && to.DaysSince(from)+1 > s.maxRangeDays {
		return nil, ErrRangeTooLarge
	}

	list, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]Occurrence, 0)
	for _, o := range list {
		snap := o.Snapshot()
		for _, d := range availability.Occurrences(snap, from, to) {
			out = append(out, Occurrence{
				OffDayID: o.ID,
				Date:     d,
				Blocked:  availability.BlockedSlots(snap, d).Kinds(),
				Reason:   o.Reason,
			})
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func payload(o *OffDay) map[string]any {
	p := map[string]any{
		"date":           o.Date.String(),
		"is_recurring":   o.IsRecurring,
		"disabled_slots": slotStrings(o.DisabledSlots),
	}
	if o.RecurringUntil != nil {
		p["recurring_until"] = o.RecurringUntil.String()
	}
	if o.Reason != nil {
		p["reason"] = *o.Reason
	}
	return p
}

func (s *Service) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(context.WithoutCancel(ctx)); err != nil {
		s.log.Warn("failed to invalidate availability cache", zap.Error(err))
	}
}
