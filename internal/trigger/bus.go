// Package trigger turns cart mutations into debounced reconciliation passes.
//
// Every component that mutates the cart publishes a CartMutated event on the
// Bus. The Scheduler collapses bursts of events into one trailing pass and
// enforces a floor between passes, which bounds the feedback loop created by
// the engine's own mutations.
package trigger

import (
	"sync"
	"time"

	"github.com/rafaeljc/gefjon/internal/cart"
	"github.com/rafaeljc/gefjon/internal/observability"
)

// Event sources.
const (
	SourceEngine     = "engine"
	SourceSelection  = "selection"
	SourceStorefront = "storefront"
	SourcePeriodic   = "periodic"
)

// CartMutated describes one observed cart mutation.
type CartMutated struct {
	Source string    `json:"source"`
	Action string    `json:"action"`
	At     time.Time `json:"at"`
}

// Bus is an in-process publish/subscribe dispatcher for cart mutations.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]func(CartMutated)
}

// NewBus creates a bus without subscribers.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]func(CartMutated))}
}

// Subscribe registers fn. The returned func unsubscribes.
func (b *Bus) Subscribe(fn func(CartMutated)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	b.subs[id] = fn

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs, id)
	}
}

// Publish delivers e to every subscriber on the caller's goroutine.
func (b *Bus) Publish(e CartMutated) {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	observability.TriggerEventsTotal.WithLabelValues(e.Source).Inc()

	b.mu.RLock()
	subs := make([]func(CartMutated), 0, len(b.subs))
	for _, fn := range b.subs {
		subs = append(subs, fn)
	}
	b.mu.RUnlock()

	for _, fn := range subs {
		fn(e)
	}
}

// MutationObserver bridges a cart.Mutator to the bus: every attempted
// mutation is published, and its latency is handed to latency (usually
// Scheduler.ObserveLatency) when set.
func MutationObserver(bus *Bus, latency func(time.Duration)) cart.Observer {
	return func(r cart.Result) {
		if latency != nil {
			latency(r.Latency)
		}
		bus.Publish(CartMutated{Source: r.Source, Action: string(r.Mutation.Action)})
	}
}
