package appointment

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
)

var (
	ErrStudentNotFound     = errors.New("student not found")
	ErrAppointmentNotFound = errors.New("appointment not found")
)

// Repository contains all DB interactions needed by the service.
type Repository interface {
	GetStudentByID(ctx context.Context, id uuid.UUID) (*Student, error)

	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	GetAppointmentDetail(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error)

	// Active bookings feed the availability resolver. Active means confirmed,
	// or pending and not yet past its expiry.
	ListActiveByDate(ctx context.Context, date civil.Date) ([]Appointment, error)
	ListActiveInRange(ctx context.Context, start, end civil.Date) ([]Appointment, error)

	ListInRange(ctx context.Context, filter ListFilter) ([]Appointment, error)
	ListByStudent(ctx context.Context, studentID uuid.UUID, limit, offset int) ([]Appointment, error)

	// Creation and updates
	CreatePendingAppointment(ctx context.Context, in NewAppointment, expiresAt time.Time) (*Appointment, error)
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error)
	CancelAppointment(ctx context.Context, id uuid.UUID, reason *string) (*Appointment, error)

	// Expiry worker
	FindExpiredPending(ctx context.Context, now time.Time) ([]Appointment, error)
}
