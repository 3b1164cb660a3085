package postgres

import (
	"context"
	"fmt"
	"strings"

	"field-dispatch/internal/core"

	"github.com/jackc/pgx/v5"
)

const jobColumns = `id, customer_id, request_id, service_type, address, technician_id, status, items,
	fulfillment_applied, spawned_from_job_id, next_job_id, started_at, ended_at, created_at, updated_at`

func scanJob(row pgx.Row) (*core.Job, error) {
	var j core.Job
	if err := row.Scan(
		&j.ID, &j.CustomerID, &j.RequestID, &j.ServiceType, &j.Address, &j.TechnicianID,
		&j.Status, &j.Items, &j.FulfillmentApplied, &j.SpawnedFromJobID, &j.NextJobID,
		&j.StartedAt, &j.EndedAt, &j.CreatedAt, &j.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &j, nil
}

func itemsOrEmpty(items []core.LineItem) []core.LineItem {
	if items == nil {
		return []core.LineItem{}
	}
	return items
}

func (s *Store) GetJob(ctx context.Context, id string) (*core.Job, error) {
	j, err := scanJob(s.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id))
	if err != nil {
		return nil, wrapErr(fmt.Sprintf("get job %s", id), err)
	}
	return j, nil
}

func (s *Store) ListJobs(ctx context.Context, filter core.JobFilter) ([]core.Job, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if filter.TechnicianID != "" {
		add("technician_id = $%d", filter.TechnicianID)
	}
	if filter.SpawnedFromJobID != "" {
		add("spawned_from_job_id = $%d", filter.SpawnedFromJobID)
	}
	if len(filter.Status) > 0 {
		statuses := make([]string, len(filter.Status))
		for i, st := range filter.Status {
			statuses[i] = string(st)
		}
		add("status = ANY($%d)", statuses)
	}
	if filter.NonTerminal {
		where = append(where, "status IN ('open', 'en_route')")
	}

	query := `SELECT ` + jobColumns + ` FROM jobs`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at, id`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, wrapErr("list jobs", err)
	}
	defer rows.Close()

	var jobs []core.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, wrapErr("scan job", err)
		}
		jobs = append(jobs, *j)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("list jobs", err)
	}
	return jobs, nil
}

func (s *Store) CreateJob(ctx context.Context, j *core.Job) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO jobs (`+jobColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		j.ID, j.CustomerID, j.RequestID, j.ServiceType, j.Address, j.TechnicianID,
		string(j.Status), itemsOrEmpty(j.Items), j.FulfillmentApplied, j.SpawnedFromJobID, j.NextJobID,
		j.StartedAt, j.EndedAt, j.CreatedAt, j.UpdatedAt,
	)
	if err != nil {
		return wrapErr(fmt.Sprintf("create job %s", j.ID), err)
	}
	return nil
}

func (s *Store) UpdateJob(ctx context.Context, j *core.Job) error {
	return s.execOne(ctx, fmt.Sprintf("update job %s", j.ID), `
		UPDATE jobs
		SET technician_id = $2, status = $3, items = $4, fulfillment_applied = $5,
		    next_job_id = $6, started_at = $7, ended_at = $8, updated_at = $9
		WHERE id = $1`,
		j.ID, j.TechnicianID, string(j.Status), itemsOrEmpty(j.Items), j.FulfillmentApplied,
		j.NextJobID, j.StartedAt, j.EndedAt, j.UpdatedAt,
	)
}
