package staff

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, s *Staff) error
	GetByID(ctx context.Context, id uuid.UUID) (*Staff, error)
	Update(ctx context.Context, s *Staff) error
	Delete(ctx context.Context, id uuid.UUID) error
	// List returns staff in creation order (created_at, id) — the documented
	// deterministic tie-break for selector workload ties.
	List(ctx context.Context, limit, offset int) ([]*Staff, int, error)
	ListActive(ctx context.Context) ([]*Staff, error)
	Count(ctx context.Context) (int, error)
	CountActive(ctx context.Context) (int, error)
}
