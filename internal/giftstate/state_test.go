package giftstate

import (
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafaeljc/gefjon/internal/campaign"
	"github.com/rafaeljc/gefjon/internal/cart"
	"github.com/rafaeljc/gefjon/internal/reconciler"
	"github.com/rafaeljc/gefjon/internal/ruleengine"
)

func eval(typ campaign.Type, eligible bool, maxQty int, rewards ...int64) reconciler.Evaluation {
	e := reconciler.Evaluation{
		Campaign: campaign.Campaign{ID: "1", Name: "Gift", Type: typ},
		Verdict: ruleengine.Verdict{
			Eligible: eligible,
			Metric:   decimal.NewFromInt(3),
			Target:   decimal.NewFromInt(3),
		},
		AutoQty: maxQty,
		MaxQty:  maxQty,
	}
	for _, r := range rewards {
		e.Rewards = append(e.Rewards, campaign.Product{VariantID: r})
	}
	return e
}

func gift(vid int64, qty int, props cart.Properties) cart.Line {
	return cart.Line{Key: cart.LineKey(vid, props), VariantID: vid, Quantity: qty, Properties: props}
}

func TestProject(t *testing.T) {
	bxgy := cart.Properties{BXGYGift: true, BXGYCampaignID: "1"}
	free := cart.Properties{FreeGift: true}

	tests := []struct {
		name       string
		eval       reconciler.Evaluation
		lines      []cart.Line
		want       State
		wantFul    Fulfillment
		wantChange bool
		wantSel    []int64
	}{
		{
			name:    "Should be locked when not eligible",
			eval:    eval(campaign.TypeBXGY, false, 1, 500),
			want:    StateLocked,
			wantFul: FulfillmentNone,
			wantSel: []int64{},
		},
		{
			name:    "Should be unlocked and auto with the single reward present",
			eval:    eval(campaign.TypeBXGY, true, 1, 500),
			lines:   []cart.Line{gift(500, 1, bxgy)},
			want:    StateUnlocked,
			wantFul: FulfillmentAuto,
			wantSel: []int64{500},
		},
		{
			name:    "Should count units for a getQty above one",
			eval:    eval(campaign.TypeBXGY, true, 2, 500),
			lines:   []cart.Line{gift(500, 2, bxgy)},
			want:    StateUnlocked,
			wantFul: FulfillmentAuto,
			wantSel: []int64{500},
		},
		{
			name:    "Should be eligible while the choice is pending",
			eval:    eval(campaign.TypeBXGY, true, 1, 500, 501),
			want:    StateEligible,
			wantFul: FulfillmentNone,
			wantSel: []int64{},
		},
		{
			name:       "Should allow changing a chosen gift",
			eval:       eval(campaign.TypeBXGY, true, 1, 500, 501),
			lines:      []cart.Line{gift(501, 1, bxgy)},
			want:       StateUnlocked,
			wantFul:    FulfillmentChoice,
			wantChange: true,
			wantSel:    []int64{501},
		},
		{
			name:    "Should ignore gifts of other campaigns",
			eval:    eval(campaign.TypeBXGY, true, 1, 500),
			lines:   []cart.Line{gift(500, 1, cart.Properties{BXGYGift: true, BXGYCampaignID: "2"})},
			want:    StateEligible,
			wantFul: FulfillmentNone,
			wantSel: []int64{},
		},
		{
			name:    "Should read tiered gifts from free gift lines",
			eval:    eval(campaign.TypeTiered, true, 1, 77),
			lines:   []cart.Line{gift(77, 1, free)},
			want:    StateUnlocked,
			wantFul: FulfillmentAuto,
			wantSel: []int64{77},
		},
		{
			name: "Should be locked after an evaluation error",
			eval: func() reconciler.Evaluation {
				e := eval(campaign.TypeTiered, true, 1, 77)
				e.Err = assert.AnError
				return e
			}(),
			lines:   []cart.Line{gift(77, 1, free)},
			want:    StateLocked,
			wantFul: FulfillmentAuto,
			wantSel: []int64{77},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := Project(tt.eval, &cart.Snapshot{Lines: tt.lines})

			assert.Equal(t, tt.want, got.State)
			assert.Equal(t, tt.wantFul, got.Fulfillment)
			assert.Equal(t, tt.wantChange, got.CanChangeGift)
			assert.Equal(t, tt.wantSel, got.Gifts.Selected)
			assert.Equal(t, campaign.VariantIDs(tt.eval.Rewards), got.Gifts.Eligible)
			assert.True(t, decimal.NewFromInt(3).Equal(got.Metric))
		})
	}
}

func TestPublisher(t *testing.T) {
	t.Run("Should have no report before the first pass", func(t *testing.T) {
		_, ok := NewPublisher(nil).Latest()
		assert.False(t, ok)
	})

	t.Run("Should keep the latest report and fan out", func(t *testing.T) {
		p := NewPublisher(nil)

		var mu sync.Mutex
		var got []string
		unsubscribe := p.Subscribe(func(r Report) {
			mu.Lock()
			defer mu.Unlock()
			got = append(got, r.PassID)
		})

		p.Publish(Report{PassID: "a", CompletedAt: time.Now()})
		unsubscribe()
		p.Publish(Report{PassID: "b", CompletedAt: time.Now()})

		latest, ok := p.Latest()
		require.True(t, ok)
		assert.Equal(t, "b", latest.PassID)
		assert.Equal(t, []string{"a"}, got)
	})
}
