package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// InventoryLedger owns stock quantities per SKU and the append-only movement log.
// Every quantity change for a SKU runs under that SKU's lock, so concurrent
// deductions never lose updates.
type InventoryLedger interface {
	// Deduct removes stock consumed by a job. Unknown SKUs return ErrUnknownItem and
	// leave no movement. A repeated call with the same (RefType, RefID, SKU) is a replay.
	Deduct(ctx context.Context, change StockChange) (*StockResult, error)
	// Restore is the inverse of Deduct, used by the cancellation flow.
	Restore(ctx context.Context, change StockChange) (*StockResult, error)

	GetItem(ctx context.Context, sku string) (*InventoryItem, error)
	GetStockLevels(ctx context.Context) ([]StockLevel, error)
	GetMovements(ctx context.Context, sku string) ([]StockMovement, error)
}

type inventoryLedger struct {
	store  Store
	locker Locker
	log    logrus.FieldLogger
}

func NewInventoryLedger(store Store, locker Locker, log logrus.FieldLogger) InventoryLedger {
	return &inventoryLedger{store: store, locker: locker, log: log.WithField("module", "inventory")}
}

func (l *inventoryLedger) Deduct(ctx context.Context, change StockChange) (*StockResult, error) {
	if change.Quantity <= 0 {
		return nil, fmt.Errorf("deduct quantity must be positive, got %d", change.Quantity)
	}
	return l.apply(ctx, change, MovementOutflow)
}

func (l *inventoryLedger) Restore(ctx context.Context, change StockChange) (*StockResult, error) {
	if change.Quantity <= 0 {
		return nil, fmt.Errorf("restore quantity must be positive, got %d", change.Quantity)
	}
	return l.apply(ctx, change, MovementInflow)
}

func (l *inventoryLedger) apply(ctx context.Context, change StockChange, typ MovementType) (*StockResult, error) {
	if change.SKU == "" {
		return nil, fmt.Errorf("sku is required: %w", ErrUnknownItem)
	}
	if change.RefID == "" {
		return nil, fmt.Errorf("stock change for %s has no reference id", change.SKU)
	}
	fields := logrus.Fields{"sku": change.SKU, "ref_type": change.RefType, "ref_id": change.RefID}

	release, err := l.locker.Acquire(ctx, lockKey("sku", change.SKU))
	if err != nil {
		return nil, fmt.Errorf("lock sku %s: %w", change.SKU, err)
	}
	defer release()

	item, err := l.store.GetInventoryItem(ctx, change.SKU)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			l.log.WithFields(fields).Warn("no inventory record for sku, skipping")
			return nil, fmt.Errorf("sku %s: %w", change.SKU, ErrUnknownItem)
		}
		return nil, fmt.Errorf("load inventory item %s: %w", change.SKU, err)
	}

	key := idempotencyKey(change.RefType, change.RefID, change.SKU)
	existing, err := l.store.FindStockMovement(ctx, key)
	switch {
	case err == nil:
		l.log.WithFields(fields).Info("stock movement already applied, skipping")
		res := &StockResult{Item: *item, NewQuantity: item.OnHand, Replayed: true, Movement: existing}
		if existing.Type == MovementOutflow {
			previous := existing.QuantityAfter - existing.Delta
			res.CrossedReorderPoint = previous > item.ReorderPoint && existing.QuantityAfter <= item.ReorderPoint
		}
		return res, nil
	case !errors.Is(err, ErrNotFound):
		return nil, fmt.Errorf("check movement %s: %w", key, err)
	}

	delta := change.Quantity
	if typ == MovementOutflow {
		delta = -delta
	}
	previous := item.OnHand
	now := time.Now().UTC()

	item.OnHand = previous + delta
	item.UpdatedAt = now
	if err := l.store.UpdateInventoryItem(ctx, item); err != nil {
		return nil, fmt.Errorf("update stock for %s: %w", change.SKU, err)
	}

	movement := &StockMovement{
		ID:             newID(),
		SKU:            change.SKU,
		Delta:          delta,
		Type:           typ,
		RefType:        change.RefType,
		RefID:          change.RefID,
		Actor:          change.Actor,
		Note:           change.Note,
		IdempotencyKey: key,
		QuantityAfter:  item.OnHand,
		CreatedAt:      now,
	}
	if err := l.store.CreateStockMovement(ctx, movement); err != nil {
		// Without the movement a retry would apply the change twice, so put the
		// quantity back. We still hold the SKU lock.
		item.OnHand = previous
		if rbErr := l.store.UpdateInventoryItem(ctx, item); rbErr != nil {
			l.log.WithFields(fields).WithFields(logrus.Fields{
				"expected_on_hand": previous,
				"recorded_on_hand": previous + delta,
				"rollback_error":   rbErr.Error(),
			}).Error("stock changed without a movement; reconcile manually")
		}
		return nil, fmt.Errorf("append movement for %s: %w", change.SKU, err)
	}

	result := &StockResult{
		Item:        *item,
		NewQuantity: item.OnHand,
		Movement:    movement,
	}
	if typ == MovementOutflow {
		result.CrossedReorderPoint = previous > item.ReorderPoint && item.OnHand <= item.ReorderPoint
	}
	if item.Backordered() {
		l.log.WithFields(fields).WithField("on_hand", item.OnHand).Warn("stock is backordered")
	}
	return result, nil
}

func (l *inventoryLedger) GetItem(ctx context.Context, sku string) (*InventoryItem, error) {
	item, err := l.store.GetInventoryItem(ctx, sku)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("sku %s: %w", sku, ErrUnknownItem)
		}
		return nil, fmt.Errorf("load inventory item %s: %w", sku, err)
	}
	return item, nil
}

func (l *inventoryLedger) GetStockLevels(ctx context.Context) ([]StockLevel, error) {
	items, err := l.store.ListInventoryItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list inventory items: %w", err)
	}
	levels := make([]StockLevel, 0, len(items))
	for i := range items {
		it := &items[i]
		levels = append(levels, StockLevel{
			SKU:          it.SKU,
			Name:         it.Name,
			OnHand:       it.OnHand,
			ReorderPoint: it.ReorderPoint,
			UnitCost:     it.UnitCost,
			SupplierID:   it.SupplierID,
			BelowReorder: it.OnHand <= it.ReorderPoint,
			Backordered:  it.Backordered(),
		})
	}
	return levels, nil
}

func (l *inventoryLedger) GetMovements(ctx context.Context, sku string) ([]StockMovement, error) {
	movements, err := l.store.ListStockMovements(ctx, sku)
	if err != nil {
		return nil, fmt.Errorf("failed to list movements for %s: %w", sku, err)
	}
	return movements, nil
}
