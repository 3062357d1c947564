// Package ruleengine evaluates campaign goal conditions against a cart.
// Conditions are a closed set of compiled types; the Engine dispatches on them
// with an exhaustive type switch and returns a Verdict with the metric behind it.
package ruleengine

import (
	"github.com/shopspring/decimal"

	"github.com/rafaeljc/gefjon/internal/cart"
	"github.com/rafaeljc/gefjon/internal/collection"
)

// BXGY condition modes as they appear in the campaign document ("bxgyMode").
const (
	ModeProduct            = "product"
	ModeCollection         = "collection"
	ModeSpendAnyCollection = "spend_any_collection"
	ModeAll                = "all"
)

// Track selects the metric of a tiered campaign.
type Track string

const (
	// TrackCart sums the final line price of non-gift lines (major units).
	TrackCart Track = "cart"
	// TrackQuantity sums the quantity of non-gift lines.
	TrackQuantity Track = "quantity"
)

// Condition is a compiled goal condition. Only the types in this package implement it.
type Condition interface {
	isCondition()
}

// ProductCondition counts units of specific variants.
type ProductCondition struct {
	BuyQty      int
	BuyVariants map[int64]struct{}
}

// CollectionCondition counts units of any product in the collections.
type CollectionCondition struct {
	BuyQty  int
	Handles []string
}

// CollectionSpendCondition sums the spend on products in the collections.
type CollectionSpendCondition struct {
	SpendAmount decimal.Decimal
	Handles     []string
}

// StorewideCondition counts every non-gift unit.
type StorewideCondition struct {
	BuyQty int
}

// TieredCondition compares the cart subtotal or unit count to a target.
type TieredCondition struct {
	Track  Track
	Target decimal.Decimal
}

func (ProductCondition) isCondition()         {}
func (CollectionCondition) isCondition()      {}
func (CollectionSpendCondition) isCondition() {}
func (StorewideCondition) isCondition()       {}
func (TieredCondition) isCondition()          {}

// Verdict is the outcome of one evaluation.
type Verdict struct {
	Eligible bool            `json:"eligible"`
	Metric   decimal.Decimal `json:"metric"`
	Target   decimal.Decimal `json:"target"`
}

// Input is the cart side of an evaluation.
type Input struct {
	// Lines may include gift lines; the engine excludes them before measuring.
	Lines []cart.Line

	// Collections resolves handles for the collection modes. Wrap it in a
	// collection.PassCache so a pass resolves each handle once.
	Collections collection.Resolver
}
