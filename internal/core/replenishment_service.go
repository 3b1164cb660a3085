package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
)

// ReplenishmentPlanner turns reorder-point crossings into draft supplier orders.
type ReplenishmentPlanner interface {
	// MaybeReorder merges item.ReorderQty of item into its supplier's draft order,
	// creating the draft if none exists. Items without a supplier are a logged no-op
	// and return (nil, nil). A failed supplier lookup returns ErrSupplierLookupFailed.
	// A non-empty key makes the call idempotent: if any order of the supplier already
	// carries the key, that order is returned unchanged.
	MaybeReorder(ctx context.Context, item InventoryItem, key string) (*SupplierOrder, error)

	// GetOrders returns supplier orders, optionally filtered by supplier and status.
	GetOrders(ctx context.Context, supplierID string, status SupplierOrderStatus) ([]SupplierOrder, error)
}

type replenishmentPlanner struct {
	store     Store
	locker    Locker
	publisher EventPublisher
	log       logrus.FieldLogger
}

func NewReplenishmentPlanner(store Store, locker Locker, publisher EventPublisher, log logrus.FieldLogger) ReplenishmentPlanner {
	if publisher == nil {
		publisher = nopPublisher{}
	}
	return &replenishmentPlanner{
		store:     store,
		locker:    locker,
		publisher: publisher,
		log:       log.WithField("module", "replenishment"),
	}
}

func (p *replenishmentPlanner) MaybeReorder(ctx context.Context, item InventoryItem, key string) (*SupplierOrder, error) {
	fields := logrus.Fields{"sku": item.SKU}
	if item.SupplierID == nil || *item.SupplierID == "" {
		p.log.WithFields(fields).Info("no supplier configured, skipping reorder")
		return nil, nil
	}
	if item.ReorderQty <= 0 {
		p.log.WithFields(fields).Info("reorder quantity not set, skipping reorder")
		return nil, nil
	}
	supplierID := *item.SupplierID
	fields["supplier_id"] = supplierID

	if _, err := p.store.GetSupplier(ctx, supplierID); err != nil {
		return nil, fmt.Errorf("%w: supplier %s for %s: %v", ErrSupplierLookupFailed, supplierID, item.SKU, err)
	}

	release, err := p.locker.Acquire(ctx, lockKey("supplier", supplierID))
	if err != nil {
		return nil, fmt.Errorf("lock supplier %s: %w", supplierID, err)
	}
	defer release()

	orders, err := p.store.ListSupplierOrders(ctx, supplierID, "")
	if err != nil {
		return nil, fmt.Errorf("list orders for supplier %s: %w", supplierID, err)
	}
	var drafts []SupplierOrder
	for i := range orders {
		if key != "" && orders[i].HasReorderKey(key) {
			p.log.WithFields(fields).WithFields(logrus.Fields{"order_id": orders[i].ID, "reorder_key": key}).
				Info("reorder already applied, skipping")
			return &orders[i], nil
		}
		if orders[i].Status == SupplierOrderDraft {
			drafts = append(drafts, orders[i])
		}
	}

	now := time.Now().UTC()
	var order *SupplierOrder
	if len(drafts) > 0 {
		if len(drafts) > 1 {
			p.log.WithFields(fields).WithField("drafts", len(drafts)).Warn("supplier has more than one draft order, merging into the oldest")
		}
		sort.Slice(drafts, func(i, j int) bool { return drafts[i].CreatedAt.Before(drafts[j].CreatedAt) })
		order = &drafts[0]
		order.Merge(item.SKU, item.ReorderQty, item.UnitCost)
		order.addReorderKey(key)
		order.UpdatedAt = now
		if err := p.store.UpdateSupplierOrder(ctx, order); err != nil {
			return nil, fmt.Errorf("update draft order %s: %w", order.ID, err)
		}
	} else {
		order = &SupplierOrder{
			ID:         newID(),
			SupplierID: supplierID,
			Status:     SupplierOrderDraft,
			Notes:      "Automatic replenishment",
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		order.Merge(item.SKU, item.ReorderQty, item.UnitCost)
		order.addReorderKey(key)
		if err := p.store.CreateSupplierOrder(ctx, order); err != nil {
			return nil, fmt.Errorf("create draft order for supplier %s: %w", supplierID, err)
		}
	}

	p.log.WithFields(fields).WithFields(logrus.Fields{
		"order_id":   order.ID,
		"lines":      len(order.Lines),
		"total_cost": order.TotalCost.StringFixed(2),
	}).Info("draft supplier order updated")

	if err := p.publisher.Publish(ctx, Event{
		Type:       EventSupplierOrderUpdated,
		Key:        order.ID,
		Attributes: map[string]string{"supplier_id": supplierID, "sku": item.SKU},
		Payload:    order,
		OccurredAt: now,
	}); err != nil {
		p.log.WithFields(fields).WithError(err).Warn("failed to publish supplier order event")
	}
	return order, nil
}

func (p *replenishmentPlanner) GetOrders(ctx context.Context, supplierID string, status SupplierOrderStatus) ([]SupplierOrder, error) {
	orders, err := p.store.ListSupplierOrders(ctx, supplierID, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list supplier orders: %w", err)
	}
	return orders, nil
}

// reorderKey identifies the reorder triggered by one job consuming one SKU.
func reorderKey(jobID, sku string) string {
	return "reorder:" + idempotencyKey(ReferenceJob, jobID, sku)
}

// isBestEffort reports errors that skip a pipeline step without failing it.
func isBestEffort(err error) bool {
	return errors.Is(err, ErrSupplierLookupFailed) ||
		errors.Is(err, ErrUnknownItem) ||
		errors.Is(err, ErrUnknownTechnician)
}
