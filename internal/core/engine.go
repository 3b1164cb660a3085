package core

import (
	"github.com/sirupsen/logrus"
)

// Engine bundles the components that share one store, locker and publisher.
type Engine struct {
	Ledger   InventoryLedger
	Planner  ReplenishmentPlanner
	Registry TechnicianRegistry
	Queue    DispatchQueue
	Jobs     JobService
}

func NewEngine(store Store, locker Locker, publisher EventPublisher, log logrus.FieldLogger, defaultActor string) *Engine {
	if publisher == nil {
		publisher = nopPublisher{}
	}
	ledger := NewInventoryLedger(store, locker, log)
	planner := NewReplenishmentPlanner(store, locker, publisher, log)
	registry := NewTechnicianRegistry(store, locker, log)
	queue := NewDispatchQueue(store, locker, log)
	jobs := NewJobService(JobServiceConfig{
		Store:        store,
		Locker:       locker,
		Ledger:       ledger,
		Planner:      planner,
		Registry:     registry,
		Queue:        queue,
		Publisher:    publisher,
		Logger:       log,
		DefaultActor: defaultActor,
	})
	return &Engine{
		Ledger:   ledger,
		Planner:  planner,
		Registry: registry,
		Queue:    queue,
		Jobs:     jobs,
	}
}
