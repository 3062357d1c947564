package ruleengine

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/rafaeljc/gefjon/internal/cart"
	"github.com/rafaeljc/gefjon/internal/collection"
)

// evalCollection counts units whose product belongs to any of the collections.
func evalCollection(ctx context.Context, c CollectionCondition, lines []cart.Line, r collection.Resolver) (Verdict, error) {
	products, err := resolveProducts(ctx, r, c.Handles)
	if err != nil {
		return Verdict{}, err
	}

	metric := sumQuantity(lines, inProducts(products))
	return Verdict{Metric: metric, Target: decimal.NewFromInt(int64(c.BuyQty))}, nil
}

// evalCollectionSpend sums unit price × quantity (major units) over matching lines.
func evalCollectionSpend(ctx context.Context, c CollectionSpendCondition, lines []cart.Line, r collection.Resolver) (Verdict, error) {
	products, err := resolveProducts(ctx, r, c.Handles)
	if err != nil {
		return Verdict{}, err
	}

	match := inProducts(products)
	var minor int64
	for _, l := range lines {
		if match(l) {
			minor += l.UnitPrice * int64(l.Quantity)
		}
	}

	return Verdict{Metric: decimal.NewFromInt(minor).Div(hundred), Target: c.SpendAmount}, nil
}

func resolveProducts(ctx context.Context, r collection.Resolver, handles []string) (map[int64]struct{}, error) {
	if len(handles) == 0 {
		return nil, nil
	}
	if r == nil {
		return nil, ErrNoResolver
	}
	products, err := collection.ResolveAll(ctx, r, handles)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve collections: %w", err)
	}
	return products, nil
}

func inProducts(products map[int64]struct{}) func(cart.Line) bool {
	return func(l cart.Line) bool {
		_, ok := products[l.ProductID]
		return ok
	}
}
