package ruleengine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/rafaeljc/gefjon/internal/cart"
)

var (
	// ErrUnsupportedCondition is returned for a nil or foreign Condition.
	ErrUnsupportedCondition = errors.New("unsupported condition")

	// ErrNoResolver is returned when a collection mode is evaluated without a resolver.
	ErrNoResolver = errors.New("collection resolver not configured")
)

// hundred converts minor currency units to major units.
var hundred = decimal.NewFromInt(100)

// Engine evaluates compiled conditions.
type Engine struct {
	logger *slog.Logger // Dedicated logger instance (DI)
}

// New creates a new Engine. If logger is nil, it defaults to slog.Default().
func New(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{logger: logger}
}

// Evaluate measures the cart against cond.
//
// Gift lines never count toward a condition, and a cart without any non-gift
// line is never eligible, whatever the metric says. Equality with the target
// is eligible.
//
// An error means the verdict could not be computed (e.g. a collection lookup
// failed); callers skip the campaign for the pass.
func (e *Engine) Evaluate(ctx context.Context, cond Condition, in Input) (Verdict, error) {
	lines := purchasedLines(in.Lines)

	var (
		v   Verdict
		err error
	)
	switch c := cond.(type) {
	case ProductCondition:
		v = evalProduct(c, lines)
	case CollectionCondition:
		v, err = evalCollection(ctx, c, lines, in.Collections)
	case CollectionSpendCondition:
		v, err = evalCollectionSpend(ctx, c, lines, in.Collections)
	case StorewideCondition:
		v = evalStorewide(c, lines)
	case TieredCondition:
		v = evalTiered(c, lines)
	default:
		return Verdict{}, fmt.Errorf("%w: %T", ErrUnsupportedCondition, cond)
	}
	if err != nil {
		return Verdict{}, err
	}

	v.Eligible = len(lines) > 0 && v.Metric.GreaterThanOrEqual(v.Target)

	e.logger.Debug("condition evaluated",
		slog.String("condition", fmt.Sprintf("%T", cond)),
		slog.String("metric", v.Metric.String()),
		slog.String("target", v.Target.String()),
		slog.Bool("eligible", v.Eligible),
	)
	return v, nil
}

// purchasedLines drops gift lines so rewards never unlock themselves.
func purchasedLines(lines []cart.Line) []cart.Line {
	out := make([]cart.Line, 0, len(lines))
	for _, l := range lines {
		if !l.IsGift() {
			out = append(out, l)
		}
	}
	return out
}

// sumQuantity adds the quantities of lines accepted by match.
func sumQuantity(lines []cart.Line, match func(cart.Line) bool) decimal.Decimal {
	var total int64
	for _, l := range lines {
		if match(l) {
			total += int64(l.Quantity)
		}
	}
	return decimal.NewFromInt(total)
}

func allLines(cart.Line) bool { return true }
