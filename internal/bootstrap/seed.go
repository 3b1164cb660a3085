package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"field-dispatch/internal/core"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type seedItem struct {
	sku          string
	name         string
	onHand       int
	reorderPoint int
	reorderQty   int
	unitCost     string
	supplierID   string
}

var (
	demoSuppliers = []core.Supplier{
		{ID: "ACME", Name: "Acme Filtration Supply", Email: "orders@acme.example.com"},
		{ID: "NORTHWIND", Name: "Northwind Fasteners", Email: "sales@northwind.example.com"},
	}
	demoItems = []seedItem{
		{"FILTER-X", "HVAC filter 20x25", 5, 3, 10, "2.50", "ACME"},
		{"CLIP-Y", "Retaining clip", 6, 5, 50, "0.40", "ACME"},
		{"HINGE-W", "Cabinet hinge", 12, 4, 20, "3.10", "NORTHWIND"},
		{"GASKET-Z", "Door gasket", 8, 2, 6, "4.75", ""},
	}
	demoTechnicians = []core.Technician{
		{ID: "T-100", Name: "Dana Ruiz", Availability: core.AvailabilityAvailable},
		{ID: "T-200", Name: "Lee Okafor", Availability: core.AvailabilityAvailable},
	}
)

// SeedDemo loads a small demo data set: suppliers, stock, technicians, one job for
// T-100 and two waiting requests. Records that already exist are left untouched.
func SeedDemo(ctx context.Context, rt *Runtime, log logrus.FieldLogger) error {
	store := rt.Store

	for _, s := range demoSuppliers {
		sup := s
		if _, err := store.GetSupplier(ctx, sup.ID); err == nil {
			continue
		} else if !errors.Is(err, core.ErrNotFound) {
			return fmt.Errorf("check supplier %s: %w", sup.ID, err)
		}
		if err := store.CreateSupplier(ctx, &sup); err != nil {
			return fmt.Errorf("create supplier %s: %w", sup.ID, err)
		}
		log.WithField("supplier_id", sup.ID).Info("seeded supplier")
	}

	now := time.Now().UTC()
	for _, it := range demoItems {
		if _, err := store.GetInventoryItem(ctx, it.sku); err == nil {
			continue
		} else if !errors.Is(err, core.ErrNotFound) {
			return fmt.Errorf("check item %s: %w", it.sku, err)
		}
		item := &core.InventoryItem{
			SKU:          it.sku,
			Name:         it.name,
			OnHand:       it.onHand,
			ReorderPoint: it.reorderPoint,
			ReorderQty:   it.reorderQty,
			UnitCost:     decimal.RequireFromString(it.unitCost),
			UpdatedAt:    now,
		}
		if it.supplierID != "" {
			supplierID := it.supplierID
			item.SupplierID = &supplierID
		}
		if err := store.CreateInventoryItem(ctx, item); err != nil {
			return fmt.Errorf("create item %s: %w", it.sku, err)
		}
		log.WithField("sku", it.sku).Info("seeded inventory item")
	}

	freshTechnicians := 0
	for _, t := range demoTechnicians {
		tech := t
		if _, err := store.GetTechnician(ctx, tech.ID); err == nil {
			continue
		} else if !errors.Is(err, core.ErrNotFound) {
			return fmt.Errorf("check technician %s: %w", tech.ID, err)
		}
		tech.UpdatedAt = now
		if err := store.CreateTechnician(ctx, &tech); err != nil {
			return fmt.Errorf("create technician %s: %w", tech.ID, err)
		}
		freshTechnicians++
		log.WithField("technician_id", tech.ID).Info("seeded technician")
	}
	if freshTechnicians == 0 {
		log.Info("demo data already present, skipping requests")
		return nil
	}

	requests := []core.ServiceRequest{
		{CustomerID: "CUST-1", ServiceType: "filter replacement", Address: "14 Harbor Rd",
			Items: []core.LineItem{{SKU: "FILTER-X", Quantity: 3, UnitPrice: decimal.RequireFromString("12.00")}}},
		{CustomerID: "CUST-2", ServiceType: "door repair", Address: "7 Mill Lane",
			Items: []core.LineItem{
				{SKU: "GASKET-Z", Quantity: 1, UnitPrice: decimal.RequireFromString("19.50")},
				{SKU: "CLIP-Y", Quantity: 1, UnitPrice: decimal.RequireFromString("1.25")},
			}},
		{CustomerID: "CUST-3", ServiceType: "filter replacement", Address: "201 Orchard Ave",
			Items: []core.LineItem{{SKU: "FILTER-X", Quantity: 2, UnitPrice: decimal.RequireFromString("12.00")}}},
	}
	var first *core.ServiceRequest
	for i, r := range requests {
		r.CreatedAt = now.Add(time.Duration(i) * time.Second)
		created, err := rt.Engine.Queue.Push(ctx, r)
		if err != nil {
			return fmt.Errorf("enqueue demo request: %w", err)
		}
		if first == nil {
			first = created
		}
	}

	job, err := rt.Engine.Jobs.AcceptRequest(ctx, first.ID, "T-100")
	if err != nil {
		return fmt.Errorf("accept demo request: %w", err)
	}
	log.WithFields(logrus.Fields{"job_id": job.ID, "technician_id": job.TechnicianID}).Info("seeded open job")
	return nil
}
