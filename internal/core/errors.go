package core

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTransition is returned when the requested job status is not reachable
	// from the current one. No side effects have been applied.
	ErrInvalidTransition = errors.New("invalid job transition")

	// ErrUnknownTechnician and ErrUnknownItem are logged and skipped by the completion
	// pipeline; they never abort it.
	ErrUnknownTechnician = errors.New("unknown technician")
	ErrUnknownItem       = errors.New("unknown inventory item")

	// ErrSupplierLookupFailed skips replenishment; the job still completes.
	ErrSupplierLookupFailed = errors.New("supplier lookup failed")

	// ErrStorageUnavailable is returned by store implementations when the backing
	// store cannot be reached. It is always propagated to the caller.
	ErrStorageUnavailable = errors.New("storage unavailable")

	ErrNotFound = errors.New("not found")

	// ErrLockUnavailable is returned when a per-key lock could not be obtained in time.
	ErrLockUnavailable = errors.New("lock unavailable")

	// ErrRequestUnavailable is returned when a service request is no longer open for
	// acceptance, either by status or because another caller claimed it first.
	ErrRequestUnavailable = errors.New("service request unavailable")
)

// TransitionError carries the rejected transition. It matches ErrInvalidTransition.
type TransitionError struct {
	JobID string
	From  JobStatus
	To    JobStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("job %s: cannot transition from %s to %s", e.JobID, e.From, e.To)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// PipelineError reports a completion pipeline that stopped after some of its writes
// were applied. Retrying TransitionJob(jobID, completed) resumes it.
type PipelineError struct {
	JobID string
	Step  string
	Err   error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("job %s: completion partially applied, stopped at %s: %v", e.JobID, e.Step, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}
