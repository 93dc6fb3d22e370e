package appointment

import (
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"

	"github.com/hackgods/training-appointments/internal/availability"
)

type AppointmentStatus string

const (
	StatusPending   AppointmentStatus = "pending"
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusCancelled AppointmentStatus = "cancelled"
	StatusExpired   AppointmentStatus = "expired"
)

type Student struct {
	ID        uuid.UUID
	Name      string
	Email     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Appointment struct {
	ID           uuid.UUID
	StudentID    uuid.UUID
	Date         civil.Date
	Type         availability.SlotKind
	Status       AppointmentStatus
	Notes        *string
	CancelReason *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	ExpiresAt    *time.Time
}

// Snapshot is the resolver view of the appointment.
func (a Appointment) Snapshot() availability.Appointment {
	return availability.Appointment{Date: a.Date, Type: a.Type}
}

type AppointmentDetail struct {
	Appointment
	Student *Student
}

type NewAppointment struct {
	StudentID uuid.UUID
	Date      civil.Date
	Type      availability.SlotKind
	Notes     *string
}

type ListFilter struct {
	Start            civil.Date
	End              civil.Date
	IncludeCancelled bool
}

func snapshots(appts []Appointment) []availability.Appointment {
	out := make([]availability.Appointment, len(appts))
	for i, a := range appts {
		out[i] = a.Snapshot()
	}
	return out
}
