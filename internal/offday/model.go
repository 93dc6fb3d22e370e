package offday

import (
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"

	"github.com/hackgods/training-appointments/internal/availability"
)

// OffDay is a stored admin rule. DisabledSlots only ever holds half-day
// kinds; a full day is stored as both halves.
type OffDay struct {
	ID             uuid.UUID
	Date           civil.Date
	IsRecurring    bool
	RecurringUntil *civil.Date
	DisabledSlots  []availability.SlotKind
	Reason         *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (o OffDay) Snapshot() availability.OffDay {
	s := availability.OffDay{
		Date:           o.Date,
		IsRecurring:    o.IsRecurring,
		RecurringUntil: o.RecurringUntil,
		DisabledSlots:  o.DisabledSlots,
	}
	if o.Reason != nil {
		s.Reason = *o.Reason
	}
	return s
}

// Input is the write model for create and update.
type Input struct {
	Date           civil.Date
	IsRecurring    bool
	RecurringUntil *civil.Date
	DisabledSlots  []availability.SlotKind
	Reason         *string
}

// Occurrence is one calendar date on which an off-day rule applies.
type Occurrence struct {
	OffDayID uuid.UUID
	Date     civil.Date
	Blocked  []availability.SlotKind
	Reason   *string
}
