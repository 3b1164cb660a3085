package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// InventoryItem is the stock record for one SKU. OnHand may go negative: a negative
// quantity is a backorder, not an error.
type InventoryItem struct {
	SKU          string          `json:"sku"`
	Name         string          `json:"name"`
	OnHand       int             `json:"on_hand"`
	ReorderPoint int             `json:"reorder_point"`
	ReorderQty   int             `json:"reorder_qty"`
	UnitCost     decimal.Decimal `json:"unit_cost"`
	SupplierID   *string         `json:"supplier_id,omitempty"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Backordered reports whether more units were consumed than were on hand.
func (i *InventoryItem) Backordered() bool {
	return i.OnHand < 0
}

type MovementType string

const (
	MovementOutflow MovementType = "outflow"
	MovementInflow  MovementType = "inflow"
)

type ReferenceType string

const (
	ReferenceJob          ReferenceType = "job"
	ReferenceCancellation ReferenceType = "cancellation"
)

// StockMovement is an immutable ledger entry. IdempotencyKey is unique across the log.
type StockMovement struct {
	ID             string        `json:"id"`
	SKU            string        `json:"sku"`
	Delta          int           `json:"delta"`
	Type           MovementType  `json:"type"`
	RefType        ReferenceType `json:"ref_type"`
	RefID          string        `json:"ref_id"`
	Actor          string        `json:"actor"`
	Note           string        `json:"note"`
	IdempotencyKey string        `json:"idempotency_key"`
	QuantityAfter  int           `json:"quantity_after"`
	CreatedAt      time.Time     `json:"created_at"`
}

// StockChange is the input to InventoryLedger.Deduct and Restore.
type StockChange struct {
	SKU      string
	Quantity int
	RefType  ReferenceType
	RefID    string
	Actor    string
	Note     string
}

// StockResult reports the outcome of a Deduct or Restore.
// Replayed is true when the movement for this idempotency key already existed and
// nothing was changed.
type StockResult struct {
	Item                InventoryItem
	NewQuantity         int
	CrossedReorderPoint bool
	Replayed            bool
	Movement            *StockMovement
}

// StockLevel is a read view of an inventory item for reporting.
type StockLevel struct {
	SKU          string          `json:"sku"`
	Name         string          `json:"name"`
	OnHand       int             `json:"on_hand"`
	ReorderPoint int             `json:"reorder_point"`
	UnitCost     decimal.Decimal `json:"unit_cost"`
	SupplierID   *string         `json:"supplier_id,omitempty"`
	BelowReorder bool            `json:"below_reorder"`
	Backordered  bool            `json:"backordered"`
}

func idempotencyKey(ref ReferenceType, refID, sku string) string {
	return string(ref) + ":" + refID + ":" + sku
}
