package postgres

import (
	"context"
	"fmt"

	"field-dispatch/internal/core"

	"github.com/jackc/pgx/v5"
)

const requestColumns = `id, customer_id, status, service_type, address, items, technician_id, job_id, created_at, updated_at`

func scanRequest(row pgx.Row) (*core.ServiceRequest, error) {
	var r core.ServiceRequest
	if err := row.Scan(
		&r.ID, &r.CustomerID, &r.Status, &r.ServiceType, &r.Address, &r.Items,
		&r.TechnicianID, &r.JobID, &r.CreatedAt, &r.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *Store) GetServiceRequest(ctx context.Context, id string) (*core.ServiceRequest, error) {
	r, err := scanRequest(s.pool.QueryRow(ctx, `SELECT `+requestColumns+` FROM service_requests WHERE id = $1`, id))
	if err != nil {
		return nil, wrapErr(fmt.Sprintf("get service request %s", id), err)
	}
	return r, nil
}

func (s *Store) ListServiceRequests(ctx context.Context, status core.RequestStatus) ([]core.ServiceRequest, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+requestColumns+`
		FROM service_requests
		WHERE $1 = '' OR status = $1
		ORDER BY created_at, id`,
		string(status),
	)
	if err != nil {
		return nil, wrapErr("list service requests", err)
	}
	defer rows.Close()

	var out []core.ServiceRequest
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, wrapErr("scan service request", err)
		}
		out = append(out, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("list service requests", err)
	}
	return out, nil
}

func (s *Store) CreateServiceRequest(ctx context.Context, r *core.ServiceRequest) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO service_requests (`+requestColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		r.ID, r.CustomerID, string(r.Status), r.ServiceType, r.Address, itemsOrEmpty(r.Items),
		r.TechnicianID, r.JobID, r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		return wrapErr(fmt.Sprintf("create service request %s", r.ID), err)
	}
	return nil
}

func (s *Store) UpdateServiceRequest(ctx context.Context, r *core.ServiceRequest) error {
	return s.execOne(ctx, fmt.Sprintf("update service request %s", r.ID), `
		UPDATE service_requests
		SET status = $2, items = $3, technician_id = $4, job_id = $5, updated_at = $6
		WHERE id = $1`,
		r.ID, string(r.Status), itemsOrEmpty(r.Items), r.TechnicianID, r.JobID, r.UpdatedAt,
	)
}

// ClaimServiceRequest is a single conditional UPDATE, so concurrent claimers across
// processes cannot both win.
func (s *Store) ClaimServiceRequest(ctx context.Context, id string, from, to core.RequestStatus) (bool, error) {
	op := fmt.Sprintf("claim service request %s", id)
	tag, err := s.pool.Exec(ctx, `
		UPDATE service_requests
		SET status = $3, updated_at = now()
		WHERE id = $1 AND status = $2 AND (technician_id IS NULL OR technician_id = '')`,
		id, string(from), string(to),
	)
	if err != nil {
		return false, wrapErr(op, err)
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}

	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM service_requests WHERE id = $1)`, id).Scan(&exists); err != nil {
		return false, wrapErr(op, err)
	}
	if !exists {
		return false, fmt.Errorf("%s: %w", op, core.ErrNotFound)
	}
	return false, nil
}
