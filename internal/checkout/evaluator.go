// Package checkout computes the discounts the checkout applies to a finished
// order: free or reduced gift lines for BXGY campaigns and order-level
// discounts for tiered campaigns. It is a single pure pass over an order
// snapshot; it never mutates the cart.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/rafaeljc/gefjon/internal/campaign"
	"github.com/rafaeljc/gefjon/internal/cart"
	"github.com/rafaeljc/gefjon/internal/collection"
	"github.com/rafaeljc/gefjon/internal/ruleengine"
)

// ErrNoCartLines is returned for an order without lines.
var ErrNoCartLines = errors.New("no cart lines found")

// Discount types as published in the campaign document.
const (
	DiscountFreeProduct = "free_product"
	DiscountPercentage  = "percentage"
	DiscountFixed       = "fixed"
)

// ValueKind is how a candidate reduces the price.
type ValueKind string

const (
	ValuePercentage  ValueKind = "percentage"
	ValueFixedAmount ValueKind = "fixed_amount"
)

// Value is a percentage (0-100) or a fixed amount in major units.
type Value struct {
	Kind   ValueKind       `json:"kind"`
	Amount decimal.Decimal `json:"amount"`
}

// ProductCandidate discounts one order line.
type ProductCandidate struct {
	CampaignID string `json:"campaignId"`
	Message    string `json:"message"`
	LineKey    string `json:"cartLine"`
	Value      Value  `json:"value"`
}

// OrderCandidate discounts the order subtotal.
type OrderCandidate struct {
	CampaignID string `json:"campaignId"`
	Message    string `json:"message"`
	Value      Value  `json:"value"`
}

// Result lists every candidate. All product candidates apply; only the
// first order candidate does.
type Result struct {
	Products []ProductCandidate `json:"productDiscounts"`
	Orders   []OrderCandidate   `json:"orderDiscounts"`
}

// Evaluator turns campaigns and an order into discount candidates.
type Evaluator struct {
	logger      *slog.Logger
	rules       *ruleengine.Engine
	collections collection.Resolver
}

// NewEvaluator creates an Evaluator. collections may be nil when no campaign
// uses a collection mode; such campaigns are then skipped.
func NewEvaluator(logger *slog.Logger, collections collection.Resolver) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{
		logger:      logger,
		rules:       ruleengine.New(logger),
		collections: collections,
	}
}

// Evaluate returns the candidates for the order. A campaign whose condition
// cannot be evaluated is logged and skipped.
func (e *Evaluator) Evaluate(ctx context.Context, lines []cart.Line, campaigns []campaign.Campaign) (Result, error) {
	if len(lines) == 0 {
		return Result{}, ErrNoCartLines
	}

	in := ruleengine.Input{Lines: lines}
	if e.collections != nil {
		in.Collections = collection.NewPassCache(e.collections)
	}

	var res Result
	for _, c := range campaigns {
		for _, g := range c.Goals {
			switch goal := g.(type) {
			case campaign.BXGYGoal:
				v, ok := e.verdict(ctx, c, goal.ID, goal.Condition, in)
				if !ok || !v.Eligible {
					continue
				}
				res.Products = append(res.Products, productCandidates(c, goal, lines)...)

			case campaign.OrderDiscountGoal:
				v, ok := e.verdict(ctx, c, goal.ID, goal.Condition, in)
				if !ok || !v.Eligible {
					continue
				}
				if cand, ok := orderCandidate(c, goal); ok {
					res.Orders = append(res.Orders, cand)
				}

			case campaign.FreeProductGoal, campaign.FreeShippingGoal:
				// Tiered gifts are discounted through their line price; shipping is out of scope.
			}
		}
	}

	e.logger.Debug("checkout discounts evaluated",
		slog.Int("lines", len(lines)),
		slog.Int("campaigns", len(campaigns)),
		slog.Int("product_candidates", len(res.Products)),
		slog.Int("order_candidates", len(res.Orders)),
	)
	return res, nil
}

func (e *Evaluator) verdict(ctx context.Context, c campaign.Campaign, goalID string, cond ruleengine.Condition, in ruleengine.Input) (ruleengine.Verdict, bool) {
	v, err := e.rules.Evaluate(ctx, cond, in)
	if err != nil {
		e.logger.Warn("checkout condition skipped",
			slog.String("campaign_id", c.ID),
			slog.String("goal_id", goalID),
			slog.String("error", err.Error()),
		)
		return ruleengine.Verdict{}, false
	}
	return v, true
}

// productCandidates targets every line holding one of the goal's rewards.
func productCandidates(c campaign.Campaign, g campaign.BXGYGoal, lines []cart.Line) []ProductCandidate {
	value, ok := discountValue(g.DiscountType, g.DiscountValue)
	if !ok {
		return nil
	}

	rewards := make(map[int64]struct{}, len(g.Rewards))
	for _, p := range g.Rewards {
		rewards[p.VariantID] = struct{}{}
	}

	var out []ProductCandidate
	for _, l := range lines {
		if _, ok := rewards[l.VariantID]; !ok {
			continue
		}
		out = append(out, ProductCandidate{
			CampaignID: c.ID,
			Message:    message(c.Name, value),
			LineKey:    l.Key,
			Value:      value,
		})
	}
	return out
}

func orderCandidate(c campaign.Campaign, g campaign.OrderDiscountGoal) (OrderCandidate, bool) {
	value, ok := discountValue(g.DiscountType, g.DiscountValue)
	if !ok {
		return OrderCandidate{}, false
	}
	return OrderCandidate{CampaignID: c.ID, Message: message(c.Name, value), Value: value}, true
}

var hundred = decimal.NewFromInt(100)

// discountValue maps a document discount to a candidate value. An empty type
// means a free product.
func discountValue(kind string, amount decimal.Decimal) (Value, bool) {
	switch kind {
	case DiscountFreeProduct, "":
		return Value{Kind: ValuePercentage, Amount: hundred}, true
	case DiscountPercentage:
		if !amount.IsPositive() {
			return Value{}, false
		}
		return Value{Kind: ValuePercentage, Amount: decimal.Min(amount, hundred)}, true
	case DiscountFixed:
		if !amount.IsPositive() {
			return Value{}, false
		}
		return Value{Kind: ValueFixedAmount, Amount: amount}, true
	default:
		return Value{}, false
	}
}

func message(campaignName string, v Value) string {
	switch {
	case v.Kind == ValuePercentage && v.Amount.Equal(hundred):
		return "Free Gift – " + campaignName
	case v.Kind == ValuePercentage:
		return fmt.Sprintf("%s%% off – %s", v.Amount.String(), campaignName)
	default:
		return fmt.Sprintf("%s off – %s", v.Amount.StringFixed(2), campaignName)
	}
}
