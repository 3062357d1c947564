//go:build property

package engine

import (
	"context"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/rafaeljc/gefjon/internal/campaign"
	"github.com/rafaeljc/gefjon/internal/cart"
	"github.com/rafaeljc/gefjon/internal/reconciler"
)

// TestReconciliationConverges starts from arbitrary carts, including stale or
// oversized gift lines, and checks that passes reach a fixed point where every
// campaign holds exactly the gift quantity its condition allows.
// Property: after at most 3 passes, a pass issues no mutation.
func TestReconciliationConverges(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 150
	properties := gopter.NewProperties(parameters)

	doc := document(
		bxgyCampaign("10", 2, 100, 2, 900),
		tieredCampaign("20", "500", 950),
	)

	properties.Property("passes converge to the allowed gift quantities", prop.ForAll(
		func(buyQty, otherQty, bxgyGiftQty, tieredGiftQty int, strayCampaign bool) bool {
			var lines []cart.Line
			if buyQty > 0 {
				lines = append(lines, purchase(100, buyQty, 10000))
			}
			if otherQty > 0 {
				lines = append(lines, purchase(200, otherQty, 25000))
			}
			if bxgyGiftQty > 0 {
				owner := "10"
				if strayCampaign {
					owner = "77"
				}
				lines = append(lines, cart.Line{
					VariantID:  900,
					Quantity:   bxgyGiftQty,
					Properties: reconciler.GiftProperties(campaign.TypeBXGY, owner),
				})
			}
			if tieredGiftQty > 0 {
				lines = append(lines, cart.Line{
					VariantID:  950,
					Quantity:   tieredGiftQty,
					Properties: reconciler.GiftProperties(campaign.TypeTiered, ""),
				})
			}

			h := newHarness(t, doc, lines...)

			converged := false
			for range 3 {
				h.cart.ResetMutations()
				report, ok := h.engine.RunPass(context.Background())
				if !ok {
					return false
				}
				if report.Mutations == 0 {
					converged = true
					break
				}
			}
			if !converged {
				return false
			}

			snap, err := h.cart.Fetch(context.Background())
			if err != nil {
				return false
			}

			wantBXGY := 0
			if buyQty >= 2 {
				wantBXGY = 2
			}
			wantTiered := 0
			if buyQty*100+otherQty*250 >= 500 {
				wantTiered = 1
			}

			var gotBXGY, gotTiered, stray int
			for _, l := range snap.Lines {
				switch {
				case l.Properties.BXGYGift && l.Properties.BXGYCampaignID == "10":
					gotBXGY += l.Quantity
				case l.Properties.BXGYGift:
					stray += l.Quantity
				case l.Properties.FreeGift:
					gotTiered += l.Quantity
				}
			}
			return gotBXGY == wantBXGY && gotTiered == wantTiered && stray == 0
		},
		gen.IntRange(0, 5),
		gen.IntRange(0, 3),
		gen.IntRange(0, 4),
		gen.IntRange(0, 3),
		gen.Bool(),
	))

	properties.TestingRun(t)
}
