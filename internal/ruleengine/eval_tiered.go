package ruleengine

import (
	"github.com/shopspring/decimal"

	"github.com/rafaeljc/gefjon/internal/cart"
)

// evalTiered measures the purchased subtotal (cart track) or unit count (quantity track).
// The subtotal uses final line prices, so line-level discounts already applied
// by the storefront are honoured.
func evalTiered(c TieredCondition, lines []cart.Line) Verdict {
	if c.Track == TrackQuantity {
		return Verdict{Metric: sumQuantity(lines, allLines), Target: c.Target}
	}

	var minor int64
	for _, l := range lines {
		minor += l.FinalLinePrice
	}
	return Verdict{Metric: decimal.NewFromInt(minor).Div(hundred), Target: c.Target}
}
