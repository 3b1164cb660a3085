package postgres

import (
	"context"
	"fmt"

	"field-dispatch/internal/core"
)

func (s *Store) GetTechnician(ctx context.Context, id string) (*core.Technician, error) {
	var t core.Technician
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, availability, updated_at FROM technicians WHERE id = $1`, id,
	).Scan(&t.ID, &t.Name, &t.Availability, &t.UpdatedAt)
	if err != nil {
		return nil, wrapErr(fmt.Sprintf("get technician %s", id), err)
	}
	return &t, nil
}

func (s *Store) ListTechnicians(ctx context.Context) ([]core.Technician, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name, availability, updated_at FROM technicians ORDER BY id`)
	if err != nil {
		return nil, wrapErr("list technicians", err)
	}
	defer rows.Close()

	var techs []core.Technician
	for rows.Next() {
		var t core.Technician
		if err := rows.Scan(&t.ID, &t.Name, &t.Availability, &t.UpdatedAt); err != nil {
			return nil, wrapErr("scan technician", err)
		}
		techs = append(techs, t)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("list technicians", err)
	}
	return techs, nil
}

func (s *Store) CreateTechnician(ctx context.Context, t *core.Technician) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO technicians (id, name, availability, updated_at)
		VALUES ($1, $2, $3, now())`,
		t.ID, t.Name, string(t.Availability),
	)
	if err != nil {
		return wrapErr(fmt.Sprintf("create technician %s", t.ID), err)
	}
	return nil
}

func (s *Store) UpdateTechnician(ctx context.Context, t *core.Technician) error {
	return s.execOne(ctx, fmt.Sprintf("update technician %s", t.ID), `
		UPDATE technicians SET name = $2, availability = $3, updated_at = $4 WHERE id = $1`,
		t.ID, t.Name, string(t.Availability), t.UpdatedAt,
	)
}
