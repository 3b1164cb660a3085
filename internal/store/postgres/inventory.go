package postgres

import (
	"context"
	"fmt"

	"field-dispatch/internal/core"

	"github.com/jackc/pgx/v5"
)

const itemColumns = `sku, name, on_hand, reorder_point, reorder_qty, unit_cost, supplier_id, updated_at`

func scanItem(row pgx.Row) (*core.InventoryItem, error) {
	var it core.InventoryItem
	if err := row.Scan(
		&it.SKU, &it.Name, &it.OnHand, &it.ReorderPoint, &it.ReorderQty,
		&it.UnitCost, &it.SupplierID, &it.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &it, nil
}

func (s *Store) GetInventoryItem(ctx context.Context, sku string) (*core.InventoryItem, error) {
	it, err := scanItem(s.pool.QueryRow(ctx, `SELECT `+itemColumns+` FROM inventory_items WHERE sku = $1`, sku))
	if err != nil {
		return nil, wrapErr(fmt.Sprintf("get inventory item %s", sku), err)
	}
	return it, nil
}

func (s *Store) ListInventoryItems(ctx context.Context) ([]core.InventoryItem, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+itemColumns+` FROM inventory_items ORDER BY sku`)
	if err != nil {
		return nil, wrapErr("list inventory items", err)
	}
	defer rows.Close()

	var items []core.InventoryItem
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, wrapErr("scan inventory item", err)
		}
		items = append(items, *it)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("list inventory items", err)
	}
	return items, nil
}

func (s *Store) CreateInventoryItem(ctx context.Context, it *core.InventoryItem) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO inventory_items (`+itemColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())`,
		it.SKU, it.Name, it.OnHand, it.ReorderPoint, it.ReorderQty, it.UnitCost, it.SupplierID,
	)
	if err != nil {
		return wrapErr(fmt.Sprintf("create inventory item %s", it.SKU), err)
	}
	return nil
}

func (s *Store) UpdateInventoryItem(ctx context.Context, it *core.InventoryItem) error {
	return s.execOne(ctx, fmt.Sprintf("update inventory item %s", it.SKU), `
		UPDATE inventory_items
		SET name = $2, on_hand = $3, reorder_point = $4, reorder_qty = $5,
		    unit_cost = $6, supplier_id = $7, updated_at = $8
		WHERE sku = $1`,
		it.SKU, it.Name, it.OnHand, it.ReorderPoint, it.ReorderQty, it.UnitCost, it.SupplierID, it.UpdatedAt,
	)
}

const movementColumns = `id, sku, delta, movement_type, ref_type, ref_id, actor, note, idempotency_key, quantity_after, created_at`

func scanMovement(row pgx.Row) (*core.StockMovement, error) {
	var m core.StockMovement
	if err := row.Scan(
		&m.ID, &m.SKU, &m.Delta, &m.Type, &m.RefType, &m.RefID, &m.Actor, &m.Note,
		&m.IdempotencyKey, &m.QuantityAfter, &m.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *Store) CreateStockMovement(ctx context.Context, m *core.StockMovement) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO stock_movements (`+movementColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		m.ID, m.SKU, m.Delta, string(m.Type), string(m.RefType), m.RefID, m.Actor, m.Note,
		m.IdempotencyKey, m.QuantityAfter, m.CreatedAt,
	)
	if err != nil {
		return wrapErr(fmt.Sprintf("append stock movement %s", m.IdempotencyKey), err)
	}
	return nil
}

func (s *Store) FindStockMovement(ctx context.Context, key string) (*core.StockMovement, error) {
	m, err := scanMovement(s.pool.QueryRow(ctx,
		`SELECT `+movementColumns+` FROM stock_movements WHERE idempotency_key = $1`, key))
	if err != nil {
		return nil, wrapErr(fmt.Sprintf("find stock movement %s", key), err)
	}
	return m, nil
}

func (s *Store) ListStockMovements(ctx context.Context, sku string) ([]core.StockMovement, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+movementColumns+`
		FROM stock_movements
		WHERE $1 = '' OR sku = $1
		ORDER BY created_at, id`,
		sku,
	)
	if err != nil {
		return nil, wrapErr("list stock movements", err)
	}
	defer rows.Close()

	var out []core.StockMovement
	for rows.Next() {
		m, err := scanMovement(rows)
		if err != nil {
			return nil, wrapErr("scan stock movement", err)
		}
		out = append(out, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("list stock movements", err)
	}
	return out, nil
}
