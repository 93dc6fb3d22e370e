package offday

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrOffDayNotFound = errors.New("off day not found")

type Repository interface {
	Create(ctx context.Context, in Input) (*OffDay, error)
	Update(ctx context.Context, id uuid.UUID, in Input) (*OffDay, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Get(ctx context.Context, id uuid.UUID) (*OffDay, error)
	List(ctx context.Context) ([]OffDay, error)
}
