package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// TechnicianRegistry tracks technician availability. Changes to a single technician
// are serialized; different technicians never contend.
type TechnicianRegistry interface {
	// Acquire marks the technician on_job.
	Acquire(ctx context.Context, techID string) (*Technician, error)
	// Assign marks the technician assigned (dispatched to an open job, not yet travelling).
	Assign(ctx context.Context, techID string) (*Technician, error)
	// Release marks the technician available when no non-terminal job other than
	// completingJobID still references them. It reports whether the state changed.
	Release(ctx context.Context, techID, completingJobID string) (bool, error)

	GetTechnicians(ctx context.Context) ([]Technician, error)
}

type technicianRegistry struct {
	store  Store
	locker Locker
	log    logrus.FieldLogger
}

func NewTechnicianRegistry(store Store, locker Locker, log logrus.FieldLogger) TechnicianRegistry {
	return &technicianRegistry{store: store, locker: locker, log: log.WithField("module", "technicians")}
}

func (r *technicianRegistry) Acquire(ctx context.Context, techID string) (*Technician, error) {
	return r.set(ctx, techID, AvailabilityOnJob)
}

func (r *technicianRegistry) Assign(ctx context.Context, techID string) (*Technician, error) {
	return r.set(ctx, techID, AvailabilityAssigned)
}

func (r *technicianRegistry) set(ctx context.Context, techID string, availability Availability) (*Technician, error) {
	release, err := r.locker.Acquire(ctx, lockKey("technician", techID))
	if err != nil {
		return nil, fmt.Errorf("lock technician %s: %w", techID, err)
	}
	defer release()

	tech, err := r.load(ctx, techID)
	if err != nil {
		return nil, err
	}
	if tech.Availability == availability {
		return tech, nil
	}
	tech.Availability = availability
	tech.UpdatedAt = time.Now().UTC()
	if err := r.store.UpdateTechnician(ctx, tech); err != nil {
		return nil, fmt.Errorf("update technician %s: %w", techID, err)
	}
	r.log.WithFields(logrus.Fields{"technician_id": techID, "availability": availability}).Debug("technician availability changed")
	return tech, nil
}

func (r *technicianRegistry) Release(ctx context.Context, techID, completingJobID string) (bool, error) {
	release, err := r.locker.Acquire(ctx, lockKey("technician", techID))
	if err != nil {
		return false, fmt.Errorf("lock technician %s: %w", techID, err)
	}
	defer release()

	tech, err := r.load(ctx, techID)
	if err != nil {
		return false, err
	}

	active, err := r.store.ListJobs(ctx, JobFilter{TechnicianID: techID, NonTerminal: true})
	if err != nil {
		return false, fmt.Errorf("list active jobs for technician %s: %w", techID, err)
	}
	for _, j := range active {
		if j.ID != completingJobID {
			r.log.WithFields(logrus.Fields{"technician_id": techID, "job_id": j.ID}).
				Info("technician still has an active job, not releasing")
			return false, nil
		}
	}

	if tech.Availability == AvailabilityAvailable {
		return false, nil
	}
	tech.Availability = AvailabilityAvailable
	tech.UpdatedAt = time.Now().UTC()
	if err := r.store.UpdateTechnician(ctx, tech); err != nil {
		return false, fmt.Errorf("release technician %s: %w", techID, err)
	}
	return true, nil
}

func (r *technicianRegistry) GetTechnicians(ctx context.Context) ([]Technician, error) {
	techs, err := r.store.ListTechnicians(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list technicians: %w", err)
	}
	return techs, nil
}

func (r *technicianRegistry) load(ctx context.Context, techID string) (*Technician, error) {
	if techID == "" {
		return nil, fmt.Errorf("empty technician id: %w", ErrUnknownTechnician)
	}
	tech, err := r.store.GetTechnician(ctx, techID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("technician %s: %w", techID, ErrUnknownTechnician)
		}
		return nil, fmt.Errorf("load technician %s: %w", techID, err)
	}
	return tech, nil
}
