package postgres

import (
	"context"
	"fmt"

	"field-dispatch/internal/core"

	"github.com/jackc/pgx/v5"
)

func (s *Store) GetSupplier(ctx context.Context, id string) (*core.Supplier, error) {
	var (
		sup   core.Supplier
		email *string
	)
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, email, created_at FROM suppliers WHERE id = $1`, id,
	).Scan(&sup.ID, &sup.Name, &email, &sup.CreatedAt)
	if err != nil {
		return nil, wrapErr(fmt.Sprintf("get supplier %s", id), err)
	}
	if email != nil {
		sup.Email = *email
	}
	return &sup, nil
}

func (s *Store) CreateSupplier(ctx context.Context, sup *core.Supplier) error {
	var email *string
	if sup.Email != "" {
		email = &sup.Email
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO suppliers (id, name, email, created_at) VALUES ($1, $2, $3, now())`,
		sup.ID, sup.Name, email,
	)
	if err != nil {
		return wrapErr(fmt.Sprintf("create supplier %s", sup.ID), err)
	}
	return nil
}

const orderColumns = `id, supplier_id, status, lines, total_cost, notes, reorder_keys, created_at, updated_at`

func scanOrder(row pgx.Row) (*core.SupplierOrder, error) {
	var o core.SupplierOrder
	if err := row.Scan(
		&o.ID, &o.SupplierID, &o.Status, &o.Lines, &o.TotalCost, &o.Notes, &o.ReorderKeys, &o.CreatedAt, &o.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &o, nil
}

func linesOrEmpty(lines []core.SupplierOrderLine) []core.SupplierOrderLine {
	if lines == nil {
		return []core.SupplierOrderLine{}
	}
	return lines
}

func keysOrEmpty(keys []string) []string {
	if keys == nil {
		return []string{}
	}
	return keys
}

func (s *Store) GetSupplierOrder(ctx context.Context, id string) (*core.SupplierOrder, error) {
	o, err := scanOrder(s.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM supplier_orders WHERE id = $1`, id))
	if err != nil {
		return nil, wrapErr(fmt.Sprintf("get supplier order %s", id), err)
	}
	return o, nil
}

func (s *Store) ListSupplierOrders(ctx context.Context, supplierID string, status core.SupplierOrderStatus) ([]core.SupplierOrder, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+orderColumns+`
		FROM supplier_orders
		WHERE ($1 = '' OR supplier_id = $1) AND ($2 = '' OR status = $2)
		ORDER BY created_at, id`,
		supplierID, string(status),
	)
	if err != nil {
		return nil, wrapErr("list supplier orders", err)
	}
	defer rows.Close()

	var orders []core.SupplierOrder
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, wrapErr("scan supplier order", err)
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("list supplier orders", err)
	}
	return orders, nil
}

// CreateSupplierOrder relies on uq_supplier_orders_one_draft to reject a second
// draft for the same supplier.
func (s *Store) CreateSupplierOrder(ctx context.Context, o *core.SupplierOrder) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO supplier_orders (`+orderColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		o.ID, o.SupplierID, string(o.Status), linesOrEmpty(o.Lines), o.TotalCost, o.Notes, keysOrEmpty(o.ReorderKeys), o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return wrapErr(fmt.Sprintf("create supplier order %s", o.ID), err)
	}
	return nil
}

func (s *Store) UpdateSupplierOrder(ctx context.Context, o *core.SupplierOrder) error {
	return s.execOne(ctx, fmt.Sprintf("update supplier order %s", o.ID), `
		UPDATE supplier_orders
		SET status = $2, lines = $3, total_cost = $4, notes = $5, reorder_keys = $6, updated_at = $7
		WHERE id = $1`,
		o.ID, string(o.Status), linesOrEmpty(o.Lines), o.TotalCost, o.Notes, keysOrEmpty(o.ReorderKeys), o.UpdatedAt,
	)
}
