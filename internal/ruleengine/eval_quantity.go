package ruleengine

import (
	"github.com/shopspring/decimal"

	"github.com/rafaeljc/gefjon/internal/cart"
)

// evalProduct counts units whose variant is one of the buy variants.
func evalProduct(c ProductCondition, lines []cart.Line) Verdict {
	metric := sumQuantity(lines, func(l cart.Line) bool {
		_, ok := c.BuyVariants[l.VariantID]
		return ok
	})
	return Verdict{Metric: metric, Target: decimal.NewFromInt(int64(c.BuyQty))}
}

// evalStorewide counts every purchased unit.
func evalStorewide(c StorewideCondition, lines []cart.Line) Verdict {
	return Verdict{Metric: sumQuantity(lines, allLines), Target: decimal.NewFromInt(int64(c.BuyQty))}
}
