package patient

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByStatus(ctx context.Context, statuses []Status, limit, offset int) ([]*Patient, int, error)
	ListByAssignedStaff(ctx context.Context, staffID uuid.UUID) ([]*Patient, error)
	// ListActive returns all patients whose status admits them to the
	// ordering index (waiting or scheduled), in queue-entry order.
	ListActive(ctx context.Context) ([]*Patient, error)
	CountByStatus(ctx context.Context) (map[Status]int, error)
	Count(ctx context.Context) (int, error)
}
