package cart

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rafaeljc/gefjon/internal/logger"
	"github.com/rafaeljc/gefjon/internal/observability"
)

// Result describes one finished mutation. Observers use it to publish
// cart-mutated events and to detect slow networks.
type Result struct {
	Source   string
	Mutation Mutation
	Latency  time.Duration
	Err      error
}

// Observer is notified after every mutation attempt.
type Observer func(Result)

// Mutator is the only path through which engine components mutate the cart.
type Mutator struct {
	client Client

	mu        sync.RWMutex
	observers []Observer
}

// NewMutator wraps a cart client.
func NewMutator(client Client) *Mutator {
	if client == nil {
		panic("cart: client cannot be nil")
	}
	return &Mutator{client: client}
}

// Observe registers fn for every subsequent mutation.
func (m *Mutator) Observe(fn Observer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = append(m.observers, fn)
}

// Apply validates and sends one mutation on behalf of source.
func (m *Mutator) Apply(ctx context.Context, source string, mut Mutation) error {
	if err := mut.Validate(); err != nil {
		return err
	}

	start := time.Now()
	err := m.client.Mutate(ctx, mut)
	latency := time.Since(start)

	status := "success"
	if err != nil {
		status = "error"
		err = fmt.Errorf("cart %s failed: %w", mut.Action, err)
	}
	observability.CartMutationsTotal.WithLabelValues(string(mut.Action), status).Inc()
	observability.CartMutationDuration.WithLabelValues(string(mut.Action)).Observe(latency.Seconds())

	m.notify(Result{Source: source, Mutation: mut, Latency: latency, Err: err})
	return err
}

// ApplyBatch issues every mutation concurrently and waits for all of them.
// A failure never cancels its siblings and nothing is rolled back; the joined
// error lists every failed mutation.
func (m *Mutator) ApplyBatch(ctx context.Context, source string, muts []Mutation) error {
	if len(muts) == 0 {
		return nil
	}

	errs := make([]error, len(muts))
	var wg sync.WaitGroup
	for i, mut := range muts {
		wg.Add(1)
		go func(i int, mut Mutation) {
			defer wg.Done()
			if err := m.Apply(ctx, source, mut); err != nil {
				errs[i] = fmt.Errorf("%s: %w", mut, err)
			}
		}(i, mut)
	}
	wg.Wait()

	err := errors.Join(errs...)
	if err != nil {
		logger.FromContext(ctx).Warn("cart batch partially failed",
			slog.String("source", source),
			slog.Int("mutations", len(muts)),
			slog.String("error", err.Error()),
		)
	}
	return err
}

func (m *Mutator) notify(r Result) {
	m.mu.RLock()
	observers := m.observers
	m.mu.RUnlock()

	for _, fn := range observers {
		fn(r)
	}
}
