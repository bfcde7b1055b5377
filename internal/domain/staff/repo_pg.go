package staff

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

const cols = `id, name, active, shift_start, shift_end, queue_ids, workload_min, created_at, updated_at`

func scanStaff(row pgx.Row) (*Staff, error) {
	var s Staff
	err := row.Scan(&s.ID, &s.Name, &s.Active, &s.ShiftStart, &s.ShiftEnd,
		&s.QueueIDs, &s.WorkloadMin, &s.CreatedAt, &s.UpdatedAt)
	if s.QueueIDs == nil {
		s.QueueIDs = []uuid.UUID{}
	}
	return &s, err
}

func (r *repoPG) Create(ctx context.Context, s *Staff) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.QueueIDs == nil {
		s.QueueIDs = []uuid.UUID{}
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO staff (id, name, active, shift_start, shift_end, queue_ids, workload_min)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		s.ID, s.Name, s.Active, s.ShiftStart, s.ShiftEnd, s.QueueIDs, s.WorkloadMin)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Staff, error) {
	return scanStaff(r.pool.QueryRow(ctx, `SELECT `+cols+` FROM staff WHERE id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, s *Staff) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE staff SET name=$2, active=$3, shift_start=$4, shift_end=$5,
			queue_ids=$6, workload_min=$7, updated_at=NOW()
		WHERE id = $1`,
		s.ID, s.Name, s.Active, s.ShiftStart, s.ShiftEnd, s.QueueIDs, s.WorkloadMin)
	return err
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM staff WHERE id = $1`, id)
	return err
}

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*Staff, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM staff`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `SELECT `+cols+` FROM staff ORDER BY created_at, id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	items, err := collect(rows)
	return items, total, err
}

func (r *repoPG) ListActive(ctx context.Context) ([]*Staff, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+cols+` FROM staff WHERE active ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collect(rows)
}

func (r *repoPG) Count(ctx context.Context) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM staff`).Scan(&n)
	return n, err
}

func (r *repoPG) CountActive(ctx context.Context) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM staff WHERE active`).Scan(&n)
	return n, err
}

func collect(rows pgx.Rows) ([]*Staff, error) {
	var items []*Staff
	for rows.Next() {
		s, err := scanStaff(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}
