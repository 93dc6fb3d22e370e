package appointment

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"

	"github.com/hackgods/training-appointments/internal/availability"
	"github.com/hackgods/training-appointments/internal/events"
)

type memRepo struct {
	mu           sync.Mutex
	now          func() time.Time
	students     map[uuid.UUID]Student
	appointments map[uuid.UUID]*Appointment
	rangeLoads   int
}

func newMemRepo(now func() time.Time) *memRepo {
	return &memRepo{
		now:          now,
		students:     map[uuid.UUID]Student{},
		appointments: map[uuid.UUID]*Appointment{},
	}
}

func (r *memRepo) addStudent(name string) uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := uuid.New()
	r.students[id] = Student{ID: id, Name: name}
	return id
}

func (r *memRepo) active(a *Appointment) bool {
	switch a.Status {
	case StatusConfirmed:
		return true
	case StatusPending:
		return a.ExpiresAt == nil || a.ExpiresAt.After(r.now())
	}
	return false
}

func (r *memRepo) sorted(keep func(*Appointment) bool) []Appointment {
	out := make([]Appointment, 0)
	for _, a := range r.appointments {
		if keep(a) {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

func (r *memRepo) GetStudentByID(_ context.Context, id uuid.UUID) (*Student, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.students[id]
	if !ok {
		return nil, ErrStudentNotFound
	}
	return &s, nil
}

func (r *memRepo) GetAppointmentByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *memRepo) GetAppointmentDetail(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error) {
	a, err := r.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s, _ := r.GetStudentByID(ctx, a.StudentID)
	return &AppointmentDetail{Appointment: *a, Student: s}, nil
}

func (r *memRepo) ListActiveByDate(_ context.Context, date civil.Date) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sorted(func(a *Appointment) bool { return a.Date == date && r.active(a) }), nil
}

func (r *memRepo) ListActiveInRange(_ context.Context, start, end civil.Date) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rangeLoads++
	return r.sorted(func(a *Appointment) bool {
		return !a.Date.Before(start) && !a.Date.After(end) && r.active(a)
	}), nil
}

func (r *memRepo) ListInRange(_ context.Context, f ListFilter) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sorted(func(a *Appointment) bool {
		if a.Date.Before(f.Start) || a.Date.After(f.End) {
			return false
		}
		return f.IncludeCancelled || a.Status != StatusCancelled
	}), nil
}

func (r *memRepo) ListByStudent(_ context.Context, studentID uuid.UUID, limit, offset int) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := r.sorted(func(a *Appointment) bool { return a.StudentID == studentID })
	if offset >= len(all) {
		return []Appointment{}, nil
	}
	all = all[offset:]
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (r *memRepo) CreatePendingAppointment(_ context.Context, in NewAppointment, expiresAt time.Time) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	a := &Appointment{
		ID:        uuid.New(),
		StudentID: in.StudentID,
		Date:      in.Date,
		Type:      in.Type,
		Status:    StatusPending,
		Notes:     in.Notes,
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: &expiresAt,
	}
	r.appointments[a.ID] = a
	cp := *a
	return &cp, nil
}

func (r *memRepo) UpdateAppointmentStatus(_ context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[id]
	if !ok || a.Status != from {
		return nil, ErrAppointmentNotFound
	}
	a.Status = to
	cp := *a
	return &cp, nil
}

func (r *memRepo) CancelAppointment(_ context.Context, id uuid.UUID, reason *string) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[id]
	if !ok || (a.Status != StatusPending && a.Status != StatusConfirmed) {
		return nil, ErrAppointmentNotFound
	}
	a.Status = StatusCancelled
	a.CancelReason = reason
	cp := *a
	return &cp, nil
}

func (r *memRepo) FindExpiredPending(_ context.Context, now time.Time) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sorted(func(a *Appointment) bool {
		return a.Status == StatusPending && a.ExpiresAt != nil && a.ExpiresAt.Before(now)
	}), nil
}

// mutexLocker serialises every date behind one mutex.
type mutexLocker struct {
	mu sync.Mutex
}

func (l *mutexLocker) WithDateLock(ctx context.Context, _ civil.Date, fn func(ctx context.Context) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return fn(ctx)
}

type contendedLocker struct{ err error }

func (l contendedLocker) WithDateLock(context.Context, civil.Date, func(context.Context) error) error {
	return l.err
}

type staticOffDays []availability.OffDay

func (s staticOffDays) Snapshots(context.Context) ([]availability.OffDay, error) {
	return []availability.OffDay(s), nil
}

type mapCache struct {
	mu          sync.Mutex
	gen         int64
	entries     map[string][]availability.DateAvailability
	invalidated int
}

func newMapCache() *mapCache {
	return &mapCache{entries: map[string][]availability.DateAvailability{}}
}

func (c *mapCache) key(gen int64, start, end civil.Date) string {
	return fmt.Sprintf("%d:%s:%s", gen, start, end)
}

func (c *mapCache) Generation(context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen, nil
}

func (c *mapCache) Get(_ context.Context, gen int64, start, end civil.Date) ([]availability.DateAvailability, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	days, ok := c.entries[c.key(gen, start, end)]
	return days, ok, nil
}

func (c *mapCache) Set(_ context.Context, gen int64, start, end civil.Date, days []availability.DateAvailability) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[c.key(gen, start, end)] = days
	return nil
}

func (c *mapCache) Invalidate(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.invalidated++
	return nil
}

type capturePublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *capturePublisher) Publish(_ context.Context, ev events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *capturePublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Type
	}
	return out
}
