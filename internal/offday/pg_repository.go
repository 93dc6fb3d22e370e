package offday

import (
	"context"
	"errors"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hackgods/training-appointments/internal/availability"
	"github.com/hackgods/training-appointments/internal/db"
)

type PgRepository struct {
	q db.Querier
}

func NewPgRepository(q db.Querier) *PgRepository {
	return &PgRepository{q: q}
}

const offDayColumns = `id, off_date, is_recurring, recurring_until, disabled_slots, reason, created_at, updated_at`

func scanOffDay(row pgx.Row) (*OffDay, error) {
	var o OffDay
	var until *civil.Date
	var reason *string
	var slots []string

	err := row.Scan(
		&o.ID,
		&o.Date,
		&o.IsRecurring,
		&until,
		&slots,
		&reason,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOffDayNotFound
		}
		return nil, err
	}

	o.RecurringUntil = until
	o.Reason = reason
	o.DisabledSlots = make([]availability.SlotKind, len(slots))
	for i, s := range slots {
		o.DisabledSlots[i] = availability.SlotKind(s)
	}
	return &o, nil
}

func slotStrings(kinds []availability.SlotKind) []string {
	out := make([]string, len(kinds))
	for i, k := range kinds {
		out[i] = string(k)
	}
	return out
}

func (r *PgRepository) Create(ctx context.Context, in Input) (*OffDay, error) {
	row := r.q.QueryRow(ctx, `
		INSERT INTO admin_off_days (id, off_date, is_recurring, recurring_until, disabled_slots, reason, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now(), now())
		RETURNING `+offDayColumns+`
	`, uuid.New(), in.Date, in.IsRecurring, in.RecurringUntil, slotStrings(in.DisabledSlots), in.Reason)
	return scanOffDay(row)
}

func (r *PgRepository) Update(ctx context.Context, id uuid.UUID, in Input) (*OffDay, error) {
	row := r.q.QueryRow(ctx, `
		UPDATE admin_off_days
		SET off_date = $2,
		    is_recurring = $3,
		    recurring_until = $4,
		    disabled_slots = $5,
		    reason = $6,
		    updated_at = now()
		WHERE id = $1
		RETURNING `+offDayColumns+`
	`, id, in.Date, in.IsRecurring, in.RecurringUntil, slotStrings(in.DisabledSlots), in.Reason)
	return scanOffDay(row)
}

func (r *PgRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM admin_off_days WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrOffDayNotFound
	}
	return nil
}

func (r *PgRepository) Get(ctx context.Context, id uuid.UUID) (*OffDay, error) {
	row := r.q.QueryRow(ctx, `
		SELECT `+offDayColumns+`
		FROM admin_off_days
		WHERE id = $1
	`, id)
	return scanOffDay(row)
}

func (r *PgRepository) List(ctx context.Context) ([]OffDay, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+offDayColumns+`
		FROM admin_off_days
		ORDER BY off_date, created_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]OffDay, 0)
	for rows.Next() {
		o, err := scanOffDay(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
