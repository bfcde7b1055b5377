package patient

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

const cols = `id, name, visit_type, priority_level, estimated_service_min,
	arrival_at, queue_entered_at, assigned_staff_id, preferred_staff_id,
	appointment_at, score, status, created_at, updated_at`

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.Name, &p.VisitType, &p.PriorityLevel, &p.EstimatedServiceMin,
		&p.ArrivalAt, &p.QueueEnteredAt, &p.AssignedStaffID, &p.PreferredStaffID,
		&p.AppointmentAt, &p.Score, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	return &p, err
}

func (r *repoPG) Create(ctx context.Context, p *Patient) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO patients (id, name, visit_type, priority_level, estimated_service_min,
			arrival_at, queue_entered_at, assigned_staff_id, preferred_staff_id,
			appointment_at, score, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		p.ID, p.Name, p.VisitType, p.PriorityLevel, p.EstimatedServiceMin,
		p.ArrivalAt, p.QueueEnteredAt, p.AssignedStaffID, p.PreferredStaffID,
		p.AppointmentAt, p.Score, p.Status)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return scanPatient(r.pool.QueryRow(ctx, `SELECT `+cols+` FROM patients WHERE id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, p *Patient) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE patients SET name=$2, visit_type=$3, priority_level=$4, estimated_service_min=$5,
			arrival_at=$6, queue_entered_at=$7, assigned_staff_id=$8, preferred_staff_id=$9,
			appointment_at=$10, score=$11, status=$12, updated_at=NOW()
		WHERE id = $1`,
		p.ID, p.Name, p.VisitType, p.PriorityLevel, p.EstimatedServiceMin,
		p.ArrivalAt, p.QueueEnteredAt, p.AssignedStaffID, p.PreferredStaffID,
		p.AppointmentAt, p.Score, p.Status)
	return err
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM patients WHERE id = $1`, id)
	return err
}

func (r *repoPG) ListByStatus(ctx context.Context, statuses []Status, limit, offset int) ([]*Patient, int, error) {
	if len(statuses) == 0 {
		return nil, 0, nil
	}
	placeholders := make([]string, len(statuses))
	args := make([]interface{}, 0, len(statuses)+2)
	for i, s := range statuses {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args = append(args, s)
	}
	in := strings.Join(placeholders, ",")

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM patients WHERE status IN (`+in+`)`, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	rows, err := r.pool.Query(ctx, `SELECT `+cols+` FROM patients WHERE status IN (`+in+`)
		ORDER BY queue_entered_at NULLS LAST, created_at
		LIMIT $`+fmt.Sprint(len(statuses)+1)+` OFFSET $`+fmt.Sprint(len(statuses)+2), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	items, err := collect(rows)
	return items, total, err
}

func (r *repoPG) ListByAssignedStaff(ctx context.Context, staffID uuid.UUID) ([]*Patient, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+cols+` FROM patients WHERE assigned_staff_id = $1
		ORDER BY queue_entered_at NULLS LAST, created_at`, staffID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collect(rows)
}

func (r *repoPG) ListActive(ctx context.Context) ([]*Patient, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+cols+` FROM patients WHERE status IN ($1,$2)
		ORDER BY queue_entered_at NULLS LAST, created_at`, StatusWaiting, StatusScheduled)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collect(rows)
}

func (r *repoPG) CountByStatus(ctx context.Context) (map[Status]int, error) {
	rows, err := r.pool.Query(ctx, `SELECT status, COUNT(*) FROM patients GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := make(map[Status]int)
	for rows.Next() {
		var s Status
		var n int
		if err := rows.Scan(&s, &n); err != nil {
			return nil, err
		}
		counts[s] = n
	}
	return counts, rows.Err()
}

func (r *repoPG) Count(ctx context.Context) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM patients`).Scan(&n)
	return n, err
}

func collect(rows pgx.Rows) ([]*Patient, error) {
	var items []*Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}
