package cart

import (
	"context"
	"fmt"
	"strconv"

	"golang.org/x/sync/singleflight"

	"github.com/rafaeljc/gefjon/internal/observability"
)

// Accessor coalesces concurrent snapshot reads into one in-flight request.
// Callers arriving while a fetch is running wait for it and share its result.
type Accessor struct {
	client Client
	group  singleflight.Group
}

// NewAccessor wraps a cart client.
func NewAccessor(client Client) *Accessor {
	if client == nil {
		panic("cart: client cannot be nil")
	}
	return &Accessor{client: client}
}

// Snapshot fetches the cart. The request runs under the context of the caller
// that started it; joiners cannot cancel it.
func (a *Accessor) Snapshot(ctx context.Context) (*Snapshot, error) {
	v, err, shared := a.group.Do("cart", func() (any, error) {
		return a.client.Fetch(ctx)
	})

	status := "success"
	if err != nil {
		status = "error"
	}
	observability.CartFetchTotal.WithLabelValues(status, strconv.FormatBool(shared)).Inc()

	if err != nil {
		return nil, fmt.Errorf("failed to fetch cart: %w", err)
	}
	return v.(*Snapshot), nil
}
