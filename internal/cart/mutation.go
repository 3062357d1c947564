package cart

import (
	"context"
	"errors"
	"fmt"
)

// Action selects the cart endpoint a mutation goes to.
type Action string

const (
	// ActionAdd creates a line (or merges into an identical one). Payload id is the variant.
	ActionAdd Action = "add"
	// ActionChange sets the quantity of an existing line. Payload id is the line key.
	ActionChange Action = "change"
)

// ErrInvalidMutation is returned for mutations that violate the add/change contract.
var ErrInvalidMutation = errors.New("invalid cart mutation")

// Mutation is a single add or change request.
type Mutation struct {
	Action     Action      `json:"action"`
	VariantID  int64       `json:"variant_id,omitempty"`
	Key        string      `json:"key,omitempty"`
	Quantity   int         `json:"quantity"`
	Properties *Properties `json:"properties,omitempty"`
}

// Add builds an add mutation for a variant.
func Add(variantID int64, quantity int, props Properties) Mutation {
	return Mutation{Action: ActionAdd, VariantID: variantID, Quantity: quantity, Properties: &props}
}

// Change builds a change mutation for an existing line.
func Change(key string, quantity int) Mutation {
	return Mutation{Action: ActionChange, Key: key, Quantity: quantity}
}

// Remove is a change to quantity 0.
func Remove(key string) Mutation {
	return Change(key, 0)
}

// IsRemoval reports whether the mutation deletes a line.
func (m Mutation) IsRemoval() bool {
	return m.Action == ActionChange && m.Quantity == 0
}

// Validate checks the mutation against the storefront contract.
func (m Mutation) Validate() error {
	switch m.Action {
	case ActionAdd:
		if m.VariantID <= 0 {
			return fmt.Errorf("%w: add requires a variant id", ErrInvalidMutation)
		}
		if m.Quantity <= 0 {
			return fmt.Errorf("%w: add quantity must be positive, got %d", ErrInvalidMutation, m.Quantity)
		}
	case ActionChange:
		if m.Key == "" {
			return fmt.Errorf("%w: change requires a line key", ErrInvalidMutation)
		}
		if m.Quantity < 0 {
			return fmt.Errorf("%w: change quantity cannot be negative, got %d", ErrInvalidMutation, m.Quantity)
		}
	default:
		return fmt.Errorf("%w: unknown action %q", ErrInvalidMutation, m.Action)
	}
	return nil
}

// Payload renders the request body for /cart/{action}.js.
func (m Mutation) Payload() map[string]any {
	body := map[string]any{"quantity": m.Quantity}
	switch m.Action {
	case ActionAdd:
		body["id"] = m.VariantID
		if m.Properties != nil {
			body["properties"] = *m.Properties
		}
	case ActionChange:
		body["id"] = m.Key
	}
	return body
}

// String is used in logs.
func (m Mutation) String() string {
	if m.Action == ActionAdd {
		return fmt.Sprintf("add variant=%d qty=%d", m.VariantID, m.Quantity)
	}
	return fmt.Sprintf("change key=%s qty=%d", m.Key, m.Quantity)
}

// Client is the authoritative cart service.
type Client interface {
	// Fetch returns the current cart.
	Fetch(ctx context.Context) (*Snapshot, error)
	// Mutate applies one add or change.
	Mutate(ctx context.Context, m Mutation) error
}
