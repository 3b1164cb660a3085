package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// Supplier is a vendor that replenishes inventory items.
type Supplier struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type SupplierOrderStatus string

const (
	SupplierOrderDraft     SupplierOrderStatus = "draft"
	SupplierOrderSubmitted SupplierOrderStatus = "submitted"
)

// SupplierOrder is a purchase order to a supplier. A supplier has at most one
// draft at a time; reorder needs are merged into it.
type SupplierOrder struct {
	ID         string              `json:"id"`
	SupplierID string              `json:"supplier_id"`
	Status     SupplierOrderStatus `json:"status"`
	Lines      []SupplierOrderLine `json:"lines"`
	TotalCost  decimal.Decimal     `json:"total_cost"`
	Notes      string              `json:"notes,omitempty"`
	// ReorderKeys lists the reorder requests already merged into this order.
	ReorderKeys []string  `json:"reorder_keys,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type SupplierOrderLine struct {
	SKU      string          `json:"sku"`
	Quantity int             `json:"quantity"`
	UnitCost decimal.Decimal `json:"unit_cost"`
}

// Merge adds qty of sku to the order: summed into a matching line, otherwise
// appended as a new line. TotalCost is recomputed.
func (o *SupplierOrder) Merge(sku string, qty int, unitCost decimal.Decimal) {
	merged := false
	for i := range o.Lines {
		if o.Lines[i].SKU == sku {
			o.Lines[i].Quantity += qty
			merged = true
			break
		}
	}
	if !merged {
		o.Lines = append(o.Lines, SupplierOrderLine{SKU: sku, Quantity: qty, UnitCost: unitCost})
	}
	o.RecomputeTotal()
}

// RecomputeTotal sets TotalCost = Σ quantity × unit cost.
func (o *SupplierOrder) RecomputeTotal() {
	total := decimal.Zero
	for _, l := range o.Lines {
		total = total.Add(l.UnitCost.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	o.TotalCost = total
}

// HasReorderKey reports whether the reorder identified by key was merged into o.
func (o *SupplierOrder) HasReorderKey(key string) bool {
	for _, k := range o.ReorderKeys {
		if k == key {
			return true
		}
	}
	return false
}

func (o *SupplierOrder) addReorderKey(key string) {
	if key != "" && !o.HasReorderKey(key) {
		o.ReorderKeys = append(o.ReorderKeys, key)
	}
}
