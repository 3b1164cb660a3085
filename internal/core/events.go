package core

import (
	"context"
	"time"
)

type EventType string

const (
	EventJobCompleted         EventType = "job.completed"
	EventJobDispatched        EventType = "job.dispatched"
	EventTechnicianReleased   EventType = "technician.released"
	EventSupplierOrderUpdated EventType = "supplier_order.draft_updated"
	EventStockBackordered     EventType = "inventory.backordered"
)

// Event is a domain notification emitted after a state change has been persisted.
type Event struct {
	Type       EventType         `json:"type"`
	Key        string            `json:"key"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Payload    any               `json:"payload,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}

type actorKey struct{}

// ContextWithActor records who triggered the operation; it ends up on stock movements.
func ContextWithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFromContext returns the actor stored by ContextWithActor, or fallback.
func ActorFromContext(ctx context.Context, fallback string) string {
	if v, ok := ctx.Value(actorKey{}).(string); ok && v != "" {
		return v
	}
	return fallback
}

// nopPublisher drops every event.
type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, Event) error { return nil }
