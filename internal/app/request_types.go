package app

import (
	"github.com/shopspring/decimal"
)

// TransitionJobRequest is the input for TransitionJob. Status accepts the canonical
// values and the dispatch verbs ("en route", "complete", "reject").
type TransitionJobRequest struct {
	JobID  string `json:"job_id" validate:"required"`
	Status string `json:"status" validate:"required"`
	Actor  string `json:"actor"`
}

// AcceptRequestRequest is the input for AcceptRequest.
type AcceptRequestRequest struct {
	RequestID    string `json:"request_id" validate:"required"`
	TechnicianID string `json:"technician_id" validate:"required"`
}

// SubmitServiceRequestRequest is the input for SubmitServiceRequest.
type SubmitServiceRequestRequest struct {
	CustomerID  string          `json:"customer_id" validate:"required"`
	ServiceType string          `json:"service_type" validate:"required"`
	Address     string          `json:"address" validate:"required"`
	Items       []LineItemInput `json:"items" validate:"dive"`
}

// LineItemInput is a single product on a SubmitServiceRequestRequest.
type LineItemInput struct {
	SKU       string          `json:"sku" validate:"required"`
	Quantity  int             `json:"quantity" validate:"gt=0"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	PriceNote string          `json:"price_note"`
	IsCustom  bool            `json:"is_custom"`
}

// RestoreStockRequest is the input for RestoreStock.
type RestoreStockRequest struct {
	SKU         string `json:"sku" validate:"required"`
	Quantity    int    `json:"quantity" validate:"gt=0"`
	ReferenceID string `json:"reference_id" validate:"required"`
	Note        string `json:"note"`
	Actor       string `json:"actor"`
}
