package storefrontapi

import (
	"github.com/rafaeljc/gefjon/internal/selection"
)

// SelectionResponse is the body of GET /api/v1/selection. Prompt is absent
// while no selection is open.
type SelectionResponse struct {
	Phase  selection.Phase   `json:"phase"`
	Prompt *selection.Prompt `json:"prompt,omitempty"`
}

// ConfirmSelectionRequest carries the variants the shopper picked.
type ConfirmSelectionRequest struct {
	VariantIDs []int64 `json:"variantIds" validate:"required,min=1,dive,gt=0"`
}

// CartEventRequest notifies the engine of a cart mutation made outside it
// (theme drawer, quick add, another tab).
type CartEventRequest struct {
	Action string `json:"action" validate:"required,oneof=add change update clear"`
}

// StatusResponse acknowledges a command.
type StatusResponse struct {
	Status string `json:"status"`
}

// ErrorResponse represents a standard structured API error.
type ErrorResponse struct {
	// Code is a machine-readable error code (e.g., "ERR_INVALID_INPUT").
	Code string `json:"code"`

	// Message is a human-readable description of the error.
	Message string `json:"message"`

	// Details provides optional granular validation errors.
	Details []ErrorDetail `json:"details,omitempty"`
}

// ErrorDetail provides context about specific field validation failures.
type ErrorDetail struct {
	Field string `json:"field"`
	Issue string `json:"issue"`
}
