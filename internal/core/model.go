package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type JobStatus string

const (
	JobStatusOpen      JobStatus = "open"
	JobStatusEnRoute   JobStatus = "en_route"
	JobStatusCompleted JobStatus = "completed"
	JobStatusRejected  JobStatus = "rejected"
)

// IsTerminal reports whether no further transitions are allowed out of s.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusRejected
}

// ParseJobStatus accepts the canonical values plus the dispatch verbs the UI sends
// ("en route", "complete", "done", "reject").
func ParseJobStatus(s string) (JobStatus, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "open":
		return JobStatusOpen, nil
	case "en_route", "en route", "enroute", "en-route":
		return JobStatusEnRoute, nil
	case "completed", "complete", "done":
		return JobStatusCompleted, nil
	case "rejected", "reject":
		return JobStatusRejected, nil
	}
	return "", fmt.Errorf("unknown job status %q", s)
}

type RequestStatus string

const (
	RequestStatusNew        RequestStatus = "new"
	RequestStatusWaiting    RequestStatus = "waiting"
	RequestStatusInProgress RequestStatus = "in_progress"
	RequestStatusEnRoute    RequestStatus = "en_route"
	RequestStatusCompleted  RequestStatus = "completed"
)

type Availability string

const (
	AvailabilityAvailable Availability = "available"
	AvailabilityAssigned  Availability = "assigned"
	AvailabilityOnJob     Availability = "on_job"
)

// LineItem is one consumed product on a job or requested on a service request.
// Custom items are ad-hoc products with no inventory record.
type LineItem struct {
	SKU       string          `json:"sku"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	PriceNote string          `json:"price_note,omitempty"`
	IsCustom  bool            `json:"is_custom,omitempty"`
}

// Job is one field visit by a technician.
// Status progresses through the state machine:
//
//	open → en_route → completed
//	open | en_route → rejected
//
// FulfillmentApplied flips false→true once, when the completion pipeline finishes.
type Job struct {
	ID                 string     `json:"id"`
	CustomerID         string     `json:"customer_id"`
	RequestID          *string    `json:"request_id,omitempty"`
	ServiceType        string     `json:"service_type"`
	Address            string     `json:"address"`
	TechnicianID       string     `json:"technician_id"`
	Status             JobStatus  `json:"status"`
	Items              []LineItem `json:"items"`
	FulfillmentApplied bool       `json:"fulfillment_applied"`
	SpawnedFromJobID   *string    `json:"spawned_from_job_id,omitempty"`
	NextJobID          *string    `json:"next_job_id,omitempty"`
	StartedAt          *time.Time `json:"started_at,omitempty"`
	EndedAt            *time.Time `json:"ended_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// Total returns Σ quantity × unit price over the job's line items.
func (j *Job) Total() decimal.Decimal {
	total := decimal.Zero
	for _, it := range j.Items {
		total = total.Add(it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return total
}

// ServiceRequest is the customer-facing request (a "lead") that a Job fulfills.
type ServiceRequest struct {
	ID           string        `json:"id"`
	CustomerID   string        `json:"customer_id"`
	Status       RequestStatus `json:"status"`
	ServiceType  string        `json:"service_type"`
	Address      string        `json:"address"`
	Items        []LineItem    `json:"items"`
	TechnicianID *string       `json:"technician_id,omitempty"`
	JobID        *string       `json:"job_id,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

type Technician struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Availability Availability `json:"availability"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// JobFilter narrows ListJobs. Zero values match everything.
type JobFilter struct {
	Status           []JobStatus
	TechnicianID     string
	SpawnedFromJobID string
	NonTerminal      bool
}

// Matches reports whether j satisfies every set criterion of f.
func (f JobFilter) Matches(j *Job) bool {
	if f.TechnicianID != "" && j.TechnicianID != f.TechnicianID {
		return false
	}
	if f.SpawnedFromJobID != "" && (j.SpawnedFromJobID == nil || *j.SpawnedFromJobID != f.SpawnedFromJobID) {
		return false
	}
	if f.NonTerminal && j.Status.IsTerminal() {
		return false
	}
	if len(f.Status) > 0 {
		for _, s := range f.Status {
			if j.Status == s {
				return true
			}
		}
		return false
	}
	return true
}

func newID() string {
	return uuid.NewString()
}

func strPtr(s string) *string {
	return &s
}
