// Package campaign holds the parsed campaign definitions and the store that
// keeps them fresh.
package campaign

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/rafaeljc/gefjon/internal/ruleengine"
)

// Type is the campaign family.
type Type string

const (
	TypeBXGY   Type = "bxgy"
	TypeTiered Type = "tiered"
)

// StatusActive is the only status the engine acts on.
const StatusActive = "active"

var (
	// ErrNoGoal is returned when a campaign has no goal the engine can reconcile.
	ErrNoGoal = errors.New("campaign has no reconcilable goal")

	// ErrNoRewards is returned when a reward goal lists no usable products.
	ErrNoRewards = errors.New("goal has no reward products")
)

// Product is a reward or buy product as published by the admin app.
type Product struct {
	GID       string `json:"id"`
	VariantID int64  `json:"variantId"`
	Title     string `json:"title,omitempty"`
	ImageURL  string `json:"imageUrl,omitempty"`
}

// Campaign is an immutable, parsed campaign.
type Campaign struct {
	ID    string
	Name  string
	Type  Type
	Track ruleengine.Track
	Goals []Goal
}

// Goal is one condition + reward rule. Only the types in this package implement it.
type Goal interface {
	GoalID() string
	isGoal()
}

// BXGYGoal grants GetQty units of a reward once its condition holds.
type BXGYGoal struct {
	ID            string
	Condition     ruleengine.Condition
	GetQty        int
	Rewards       []Product
	DiscountType  string
	DiscountValue decimal.Decimal
}

// FreeProductGoal grants one gift once the tier is reached.
type FreeProductGoal struct {
	ID        string
	Condition ruleengine.TieredCondition
	GiftQty   int
	Rewards   []Product
}

// OrderDiscountGoal discounts the order at checkout. It is never reconciled against cart lines.
type OrderDiscountGoal struct {
	ID            string
	Condition     ruleengine.TieredCondition
	DiscountType  string
	DiscountValue decimal.Decimal
}

// FreeShippingGoal waives shipping at checkout. It is never reconciled against cart lines.
type FreeShippingGoal struct {
	ID        string
	Condition ruleengine.TieredCondition
}

func (g BXGYGoal) GoalID() string          { return g.ID }
func (g FreeProductGoal) GoalID() string   { return g.ID }
func (g OrderDiscountGoal) GoalID() string { return g.ID }
func (g FreeShippingGoal) GoalID() string  { return g.ID }

func (BXGYGoal) isGoal()          {}
func (FreeProductGoal) isGoal()   {}
func (OrderDiscountGoal) isGoal() {}
func (FreeShippingGoal) isGoal()  {}

// BXGY returns the goal the engine reconciles for a BXGY campaign: goals[0].
func (c Campaign) BXGY() (BXGYGoal, error) {
	if c.Type != TypeBXGY || len(c.Goals) == 0 {
		return BXGYGoal{}, ErrNoGoal
	}
	g, ok := c.Goals[0].(BXGYGoal)
	if !ok {
		return BXGYGoal{}, ErrNoGoal
	}
	if len(g.Rewards) == 0 {
		return BXGYGoal{}, ErrNoRewards
	}
	return g, nil
}

// FreeProductGoals returns the tiered free-product goals in document order.
func (c Campaign) FreeProductGoals() []FreeProductGoal {
	var out []FreeProductGoal
	for _, g := range c.Goals {
		if fp, ok := g.(FreeProductGoal); ok {
			out = append(out, fp)
		}
	}
	return out
}

// VariantIDs lists the variant ids of products, in order.
func VariantIDs(products []Product) []int64 {
	ids := make([]int64, 0, len(products))
	for _, p := range products {
		ids = append(ids, p.VariantID)
	}
	return ids
}

// FilterType returns the campaigns of one family, preserving order.
func FilterType(campaigns []Campaign, t Type) []Campaign {
	var out []Campaign
	for _, c := range campaigns {
		if c.Type == t {
			out = append(out, c)
		}
	}
	return out
}
