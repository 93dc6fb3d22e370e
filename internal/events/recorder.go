package events

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/hackgods/training-appointments/internal/db"
)

// Store persists events to the event_logs table.
type Store interface {
	InsertEvent(ctx context.Context, ev Event) error
}

type PgStore struct {
	q db.Querier
}

func NewPgStore(q db.Querier) *PgStore {
	return &PgStore{q: q}
}

func (s *PgStore) InsertEvent(ctx context.Context, ev Event) error {
	var payload []byte
	if len(ev.Payload) > 0 {
		data, err := json.Marshal(ev.Payload)
		if err != nil {
			return fmt.Errorf("marshal event payload: %w", err)
		}
		payload = data
	}

	_, err := s.q.Exec(ctx, `
		INSERT INTO event_logs (event_type, aggregate_id, payload, created_at)
		VALUES ($1, $2, $3, $4)
	`, ev.Type, ev.AggregateID, payload, ev.OccurredAt)
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}
	return nil
}

// Recorder writes every event to the store and then publishes it. Failures
// are logged and swallowed: the state change they describe already happened.
type Recorder struct {
	store Store
	pub   Publisher
	log   *zap.Logger
}

func NewRecorder(store Store, pub Publisher, log *zap.Logger) *Recorder {
	if pub == nil {
		pub = NopPublisher{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Recorder{store: store, pub: pub, log: log}
}

func (r *Recorder) Record(ctx context.Context, ev Event) {
	if r == nil {
		return
	}
	if r.store != nil {
		if err := r.store.InsertEvent(ctx, ev); err != nil {
			r.log.Warn("failed to insert event log",
				zap.String("event_type", ev.Type),
				zap.Stringer("aggregate_id", ev.AggregateID),
				zap.Error(err))
		}
	}
	if err := r.pub.Publish(ctx, ev); err != nil {
		r.log.Warn("failed to publish event",
			zap.String("event_type", ev.Type),
			zap.Stringer("aggregate_id", ev.AggregateID),
			zap.Error(err))
	}
}
