package ruleengine

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrUnknownMode is returned for a bxgyMode or trackType this engine does not implement.
	ErrUnknownMode = errors.New("unknown condition mode")

	// ErrInvalidCondition is returned for out-of-range thresholds.
	ErrInvalidCondition = errors.New("invalid condition")
)

// BXGYParams carries the raw goal fields a BXGY condition is compiled from.
type BXGYParams struct {
	Mode        string
	BuyQty      int
	BuyVariants []int64
	Handles     []string
	SpendAmount decimal.Decimal
}

// CompileBXGY builds the condition for a BXGY goal. An empty mode means "product".
// A missing (zero) buy quantity defaults to 1.
func CompileBXGY(p BXGYParams) (Condition, error) {
	if p.BuyQty < 0 {
		return nil, fmt.Errorf("%w: buyQty cannot be negative, got %d", ErrInvalidCondition, p.BuyQty)
	}
	buyQty := p.BuyQty
	if buyQty == 0 {
		buyQty = 1
	}

	switch p.Mode {
	case ModeProduct, "":
		variants := make(map[int64]struct{}, len(p.BuyVariants))
		for _, id := range p.BuyVariants {
			variants[id] = struct{}{}
		}
		return ProductCondition{BuyQty: buyQty, BuyVariants: variants}, nil

	case ModeCollection:
		return CollectionCondition{BuyQty: buyQty, Handles: p.Handles}, nil

	case ModeSpendAnyCollection:
		// A zero amount would unlock on any purchase, in or out of the collections.
		if !p.SpendAmount.IsPositive() {
			return nil, fmt.Errorf("%w: spendAmount must be positive, got %s", ErrInvalidCondition, p.SpendAmount)
		}
		return CollectionSpendCondition{SpendAmount: p.SpendAmount, Handles: p.Handles}, nil

	case ModeAll:
		return StorewideCondition{BuyQty: buyQty}, nil

	default:
		return nil, fmt.Errorf("%w: bxgyMode %q", ErrUnknownMode, p.Mode)
	}
}

// CompileTiered builds the condition for a tiered free-product goal.
// An empty track means "cart".
func CompileTiered(track string, target decimal.Decimal) (Condition, error) {
	if target.IsNegative() {
		return nil, fmt.Errorf("%w: target cannot be negative, got %s", ErrInvalidCondition, target)
	}

	switch Track(track) {
	case TrackCart, "":
		return TieredCondition{Track: TrackCart, Target: target}, nil
	case TrackQuantity:
		return TieredCondition{Track: TrackQuantity, Target: target}, nil
	default:
		return nil, fmt.Errorf("%w: trackType %q", ErrUnknownMode, track)
	}
}
