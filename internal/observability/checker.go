package observability

import "context"

// Checker is a dependency the readiness probe verifies: the storefront cart
// service, the metafield database or the shared document cache.
type Checker interface {
	Name() string
	// Check returns nil when the dependency answers within ctx.
	Check(ctx context.Context) error
}
