package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	AppointmentCreated   = "APPOINTMENT_CREATED"
	AppointmentConfirmed = "APPOINTMENT_CONFIRMED"
	AppointmentCancelled = "APPOINTMENT_CANCELLED"
	AppointmentExpired   = "APPOINTMENT_EXPIRED"
	OffDayCreated        = "OFF_DAY_CREATED"
	OffDayUpdated        = "OFF_DAY_UPDATED"
	OffDayDeleted        = "OFF_DAY_DELETED"
)

type Event struct {
	ID          uuid.UUID      `json:"id"`
	Type        string         `json:"type"`
	AggregateID uuid.UUID      `json:"aggregate_id"`
	Payload     map[string]any `json:"payload,omitempty"`
	OccurredAt  time.Time      `json:"occurred_at"`
}

func New(eventType string, aggregateID uuid.UUID, payload map[string]any) Event {
	return Event{
		ID:          uuid.New(),
		Type:        eventType,
		AggregateID: aggregateID,
		Payload:     payload,
		OccurredAt:  time.Now().UTC(),
	}
}

// Publisher fans domain events out to other services.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
