package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/spaolacci/murmur3"
)

// ErrLineNotFound is returned by change mutations that reference an unknown key.
var ErrLineNotFound = errors.New("cart line not found")

// Variant is catalogue data used when a MemoryCart adds a line.
type Variant struct {
	ProductID int64  `json:"product_id" yaml:"product_id"`
	Title     string `json:"title" yaml:"title"`
	Price     int64  `json:"price" yaml:"price"`
}

// MemoryCart is an in-process cart service with storefront semantics: adds
// merge into a line with the same variant and properties, and a change to
// quantity 0 deletes the line. It backs the CLI simulator and tests.
type MemoryCart struct {
	mu        sync.Mutex
	token     string
	lines     []Line
	catalog   map[int64]Variant
	mutations []Mutation
	fetches   int

	// Fault, when set, can fail a mutation before it is applied.
	Fault func(Mutation) error
}

// NewMemoryCart creates a cart holding lines. Keys are derived when missing.
func NewMemoryCart(catalog map[int64]Variant, lines ...Line) *MemoryCart {
	c := &MemoryCart{token: "memory", catalog: make(map[int64]Variant, len(catalog))}
	for id, v := range catalog {
		c.catalog[id] = v
	}
	for _, l := range lines {
		if l.Key == "" {
			l.Key = LineKey(l.VariantID, l.Properties)
		}
		l.FinalLinePrice = l.UnitPrice * int64(l.Quantity)
		c.lines = append(c.lines, l)
	}
	return c
}

// LineKey derives the storefront style "variant:hash(properties)" key.
func LineKey(variantID int64, props Properties) string {
	raw, _ := json.Marshal(props) // map keys are sorted by encoding/json
	return fmt.Sprintf("%d:%08x", variantID, murmur3.Sum32(raw))
}

// Fetch returns a copy of the current lines.
func (c *MemoryCart) Fetch(ctx context.Context) (*Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.fetches++
	return &Snapshot{Token: c.token, Lines: slices.Clone(c.lines)}, nil
}

// Mutate applies an add or change.
func (c *MemoryCart) Mutate(ctx context.Context, m Mutation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := m.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.Fault != nil {
		if err := c.Fault(m); err != nil {
			return err
		}
	}

	switch m.Action {
	case ActionAdd:
		c.add(m)
	case ActionChange:
		if err := c.change(m.Key, m.Quantity); err != nil {
			return err
		}
	}

	c.mutations = append(c.mutations, m)
	return nil
}

func (c *MemoryCart) add(m Mutation) {
	var props Properties
	if m.Properties != nil {
		props = *m.Properties
	}
	key := LineKey(m.VariantID, props)

	for i := range c.lines {
		if c.lines[i].Key == key {
			c.lines[i].Quantity += m.Quantity
			c.lines[i].FinalLinePrice = c.lines[i].UnitPrice * int64(c.lines[i].Quantity)
			return
		}
	}

	v := c.catalog[m.VariantID]
	c.lines = append(c.lines, Line{
		Key:            key,
		VariantID:      m.VariantID,
		ProductID:      v.ProductID,
		Title:          v.Title,
		Quantity:       m.Quantity,
		UnitPrice:      v.Price,
		FinalLinePrice: v.Price * int64(m.Quantity),
		Properties:     props,
	})
}

func (c *MemoryCart) change(key string, qty int) error {
	idx := slices.IndexFunc(c.lines, func(l Line) bool { return l.Key == key })
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrLineNotFound, key)
	}
	if qty == 0 {
		c.lines = slices.Delete(c.lines, idx, idx+1)
		return nil
	}
	c.lines[idx].Quantity = qty
	c.lines[idx].FinalLinePrice = c.lines[idx].UnitPrice * int64(qty)
	return nil
}

// Mutations returns every successfully applied mutation, in order.
func (c *MemoryCart) Mutations() []Mutation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.mutations)
}

// ResetMutations clears the mutation log.
func (c *MemoryCart) ResetMutations() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mutations = nil
}

// Fetches returns how many times Fetch was called.
func (c *MemoryCart) Fetches() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fetches
}
