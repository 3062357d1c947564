package reconciler

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafaeljc/gefjon/internal/campaign"
	"github.com/rafaeljc/gefjon/internal/cart"
	"github.com/rafaeljc/gefjon/internal/ruleengine"
)

type pausedSet map[string]bool

func (p pausedSet) Paused(id string) bool { return p[id] }

func product(vid int64) campaign.Product {
	return campaign.Product{VariantID: vid}
}

func bxgyEval(id string, eligible bool, getQty int, rewards ...int64) Evaluation {
	e := Evaluation{
		Campaign: campaign.Campaign{ID: id, Name: "Campaign " + id, Type: campaign.TypeBXGY},
		Verdict:  ruleengine.Verdict{Eligible: eligible, Metric: decimal.Zero, Target: decimal.NewFromInt(1)},
		AutoQty:  getQty,
		MaxQty:   getQty,
	}
	for _, r := range rewards {
		e.Rewards = append(e.Rewards, product(r))
	}
	return e
}

func tieredEval(id string, eligible bool, maxQty int, rewards ...int64) Evaluation {
	e := bxgyEval(id, eligible, 1, rewards...)
	e.Campaign.Type = campaign.TypeTiered
	e.MaxQty = maxQty
	return e
}

func purchase(vid int64, qty int) cart.Line {
	return cart.Line{Key: cart.LineKey(vid, cart.Properties{}), VariantID: vid, Quantity: qty, UnitPrice: 1000}
}

func bxgyGift(vid int64, qty int, campaignID string) cart.Line {
	props := cart.Properties{BXGYGift: true, BXGYCampaignID: campaignID}
	return cart.Line{Key: cart.LineKey(vid, props), VariantID: vid, Quantity: qty, Properties: props}
}

func freeGift(vid int64, qty int) cart.Line {
	props := cart.Properties{FreeGift: true}
	return cart.Line{Key: cart.LineKey(vid, props), VariantID: vid, Quantity: qty, Properties: props}
}

func snapshot(lines ...cart.Line) *cart.Snapshot {
	return &cart.Snapshot{Token: "t", Lines: lines}
}

func TestPlanBXGY(t *testing.T) {
	tests := []struct {
		name         string
		evals        []Evaluation
		snap         *cart.Snapshot
		paused       pausedSet
		wantMuts     []cart.Mutation
		wantPrompts  []string
		wantWithdraw []string
	}{
		{
			name:     "Should add the single reward at getQty when eligible",
			evals:    []Evaluation{bxgyEval("1", true, 1, 500)},
			snap:     snapshot(purchase(10, 3)),
			wantMuts: []cart.Mutation{cart.Add(500, 1, GiftProperties(campaign.TypeBXGY, "1"))},
		},
		{
			name:  "Should do nothing when the single reward is already correct",
			evals: []Evaluation{bxgyEval("1", true, 2, 500)},
			snap:  snapshot(purchase(10, 3), bxgyGift(500, 2, "1")),
		},
		{
			name:     "Should resize a single reward with the wrong quantity",
			evals:    []Evaluation{bxgyEval("1", true, 2, 500)},
			snap:     snapshot(purchase(10, 3), bxgyGift(500, 5, "1")),
			wantMuts: []cart.Mutation{cart.Change(bxgyGift(500, 5, "1").Key, 2)},
		},
		{
			name:  "Should swap an outdated reward variant",
			evals: []Evaluation{bxgyEval("1", true, 1, 500)},
			snap:  snapshot(purchase(10, 3), bxgyGift(400, 1, "1")),
			wantMuts: []cart.Mutation{
				cart.Remove(bxgyGift(400, 1, "1").Key),
				cart.Add(500, 1, GiftProperties(campaign.TypeBXGY, "1")),
			},
		},
		{
			name:     "Should remove owned gifts when no longer eligible",
			evals:    []Evaluation{bxgyEval("1", false, 1, 500)},
			snap:     snapshot(purchase(10, 2), bxgyGift(500, 1, "1")),
			wantMuts: []cart.Mutation{cart.Remove(bxgyGift(500, 1, "1").Key)},
		},
		{
			name:        "Should prompt instead of adding when several rewards are offered",
			evals:       []Evaluation{bxgyEval("1", true, 1, 500, 501)},
			snap:        snapshot(purchase(10, 3)),
			wantPrompts: []string{"1"},
		},
		{
			name:  "Should keep an existing choice without prompting",
			evals: []Evaluation{bxgyEval("1", true, 1, 500, 501)},
			snap:  snapshot(purchase(10, 3), bxgyGift(501, 1, "1")),
		},
		{
			name:  "Should trim chosen gifts beyond maxQty",
			evals: []Evaluation{bxgyEval("1", true, 2, 500, 501, 502)},
			snap:  snapshot(bxgyGift(500, 3, "1"), bxgyGift(501, 1, "1"), bxgyGift(502, 1, "1"), bxgyGift(999, 1, "1")),
			wantMuts: []cart.Mutation{
				cart.Change(bxgyGift(500, 3, "1").Key, 1),
				cart.Remove(bxgyGift(502, 1, "1").Key),
				cart.Remove(bxgyGift(999, 1, "1").Key),
			},
		},
		{
			name:     "Should remove gifts of campaigns missing from the round",
			evals:    []Evaluation{bxgyEval("1", true, 1, 500)},
			snap:     snapshot(purchase(10, 3), bxgyGift(500, 1, "1"), bxgyGift(700, 1, "gone")),
			wantMuts: []cart.Mutation{cart.Remove(bxgyGift(700, 1, "gone").Key)},
		},
		{
			name:   "Should leave a paused campaign alone",
			evals:  []Evaluation{bxgyEval("1", true, 1, 500, 501)},
			snap:   snapshot(purchase(10, 3), bxgyGift(500, 4, "1"), bxgyGift(999, 1, "1")),
			paused: pausedSet{"1": true},
		},
		{
			name:         "Should withdraw the prompt of a campaign that lost eligibility",
			evals:        []Evaluation{bxgyEval("1", false, 1, 500, 501)},
			snap:         snapshot(purchase(10, 1)),
			paused:       pausedSet{"1": true},
			wantWithdraw: []string{"1"},
		},
		{
			name: "Should protect the lines of a campaign that failed to evaluate",
			evals: []Evaluation{func() Evaluation {
				e := bxgyEval("1", true, 1, 500)
				e.Err = errors.New("collection lookup timed out")
				return e
			}()},
			snap: snapshot(purchase(10, 3), bxgyGift(500, 9, "1")),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			plan := PlanBXGY(tt.evals, tt.snap, tt.paused, nil)

			assert.Equal(t, campaign.TypeBXGY, plan.Family)
			assert.Equal(t, tt.wantMuts, plan.Mutations)
			var prompted []string
			for _, p := range plan.Prompts {
				prompted = append(prompted, p.CampaignID)
			}
			assert.Equal(t, tt.wantPrompts, prompted)
			assert.Equal(t, tt.wantWithdraw, plan.Withdraw)
		})
	}
}

func TestPlanBXGY_Prompt(t *testing.T) {
	plan := PlanBXGY([]Evaluation{bxgyEval("5", true, 2, 500, 501)}, snapshot(purchase(1, 1)), nil, nil)

	require.Len(t, plan.Prompts, 1)
	p := plan.Prompts[0]
	assert.Equal(t, "5", p.CampaignID)
	assert.Equal(t, "bxgy", p.Family)
	assert.Equal(t, 2, p.MaxQty)
	assert.Equal(t, []int64{500, 501}, campaign.VariantIDs(p.Gifts))
	assert.Equal(t, cart.Properties{BXGYGift: true, BXGYCampaignID: "5"}, p.Properties)
}

func TestPlanBXGY_OwnershipIsolation(t *testing.T) {
	// B offers A's gift variant; A's line must survive B's reconciliation.
	a := bxgyEval("1", true, 1, 500)
	b := bxgyEval("2", false, 1, 500)
	snap := snapshot(purchase(10, 3), bxgyGift(500, 1, "1"), bxgyGift(500, 1, "2"))

	plan := PlanBXGY([]Evaluation{b, a}, snap, nil, nil)

	assert.Equal(t, []cart.Mutation{cart.Remove(bxgyGift(500, 1, "2").Key)}, plan.Mutations)
}

func TestPlanBXGY_IndependentCampaigns(t *testing.T) {
	t.Run("Should give each eligible campaign its own tagged gift", func(t *testing.T) {
		plan := PlanBXGY([]Evaluation{bxgyEval("1", true, 1, 500), bxgyEval("2", true, 1, 600)}, snapshot(purchase(10, 3)), nil, nil)

		assert.ElementsMatch(t, []cart.Mutation{
			cart.Add(500, 1, GiftProperties(campaign.TypeBXGY, "1")),
			cart.Add(600, 1, GiftProperties(campaign.TypeBXGY, "2")),
		}, plan.Mutations)
	})

	t.Run("Should leave the other campaign untouched when one loses eligibility", func(t *testing.T) {
		snap := snapshot(purchase(10, 3), bxgyGift(500, 1, "1"), bxgyGift(600, 1, "2"))
		plan := PlanBXGY([]Evaluation{bxgyEval("1", false, 1, 500), bxgyEval("2", true, 1, 600)}, snap, nil, nil)

		assert.Equal(t, []cart.Mutation{cart.Remove(bxgyGift(500, 1, "1").Key)}, plan.Mutations)
	})
}

func TestPlanBXGY_Collisions(t *testing.T) {
	t.Run("Should let the lowest campaign id claim a shared single reward", func(t *testing.T) {
		var logs bytes.Buffer
		log := slog.New(slog.NewTextHandler(&logs, nil))

		plan := PlanBXGY([]Evaluation{bxgyEval("10", true, 1, 500), bxgyEval("9", true, 1, 500)}, snapshot(purchase(1, 5)), nil, log)

		assert.Equal(t, []cart.Mutation{cart.Add(500, 1, GiftProperties(campaign.TypeBXGY, "9"))}, plan.Mutations)
		assert.Contains(t, logs.String(), "reward already claimed by another campaign")
		assert.Contains(t, logs.String(), "claimed_by=9")
	})

	t.Run("Should drop claimed variants from a later choice set", func(t *testing.T) {
		plan := PlanBXGY([]Evaluation{bxgyEval("1", true, 1, 500), bxgyEval("2", true, 1, 500, 501)}, snapshot(purchase(1, 5)), nil, nil)

		require.Len(t, plan.Prompts, 1)
		assert.Equal(t, []int64{501}, campaign.VariantIDs(plan.Prompts[0].Gifts))
		assert.Equal(t, 1, plan.Prompts[0].MaxQty)
	})
}

func TestPlanBXGY_Idempotent(t *testing.T) {
	c := cart.NewMemoryCart(nil, purchase(10, 3))
	evals := []Evaluation{bxgyEval("1", true, 2, 500), bxgyEval("2", true, 1, 600)}

	first, err := c.Fetch(t.Context())
	require.NoError(t, err)
	plan := PlanBXGY(evals, first, nil, nil)
	require.Len(t, plan.Mutations, 2)
	for _, m := range plan.Mutations {
		require.NoError(t, c.Mutate(t.Context(), m))
	}

	second, err := c.Fetch(t.Context())
	require.NoError(t, err)
	assert.True(t, PlanBXGY(evals, second, nil, nil).Empty())
}

func TestPlanTiered(t *testing.T) {
	tests := []struct {
		name        string
		evals       []Evaluation
		snap        *cart.Snapshot
		wantMuts    []cart.Mutation
		wantPrompts int
	}{
		{
			name:     "Should add the free gift at quantity 1",
			evals:    []Evaluation{tieredEval("1", true, 1, 77)},
			snap:     snapshot(purchase(10, 1)),
			wantMuts: []cart.Mutation{cart.Add(77, 1, cart.Properties{FreeGift: true})},
		},
		{
			name:     "Should pin the free gift to quantity 1",
			evals:    []Evaluation{tieredEval("1", true, 1, 77)},
			snap:     snapshot(purchase(10, 1), freeGift(77, 3)),
			wantMuts: []cart.Mutation{cart.Change(freeGift(77, 3).Key, 1)},
		},
		{
			name:  "Should not mutate below the target",
			evals: []Evaluation{tieredEval("1", false, 1, 77)},
			snap:  snapshot(purchase(10, 1)),
		},
		{
			name:     "Should remove free gifts when no tiered campaign is active",
			evals:    nil,
			snap:     snapshot(purchase(10, 1), freeGift(77, 1)),
			wantMuts: []cart.Mutation{cart.Remove(freeGift(77, 1).Key)},
		},
		{
			name:  "Should swap the gift when a higher tier is reached",
			evals: []Evaluation{tieredEval("1", true, 1, 88)},
			snap:  snapshot(purchase(10, 1), freeGift(77, 1)),
			wantMuts: []cart.Mutation{
				cart.Remove(freeGift(77, 1).Key),
				cart.Add(88, 1, cart.Properties{FreeGift: true}),
			},
		},
		{
			name:        "Should prompt for a multi-product tier",
			evals:       []Evaluation{tieredEval("1", true, 1, 77, 78)},
			snap:        snapshot(purchase(10, 1)),
			wantPrompts: 1,
		},
		{
			name:     "Should reconcile only the lowest tiered campaign",
			evals:    []Evaluation{tieredEval("9", true, 1, 99), tieredEval("3", false, 1, 33)},
			snap:     snapshot(purchase(10, 1), freeGift(99, 1)),
			wantMuts: []cart.Mutation{cart.Remove(freeGift(99, 1).Key)},
		},
		{
			name:  "Should leave BXGY gifts alone",
			evals: []Evaluation{tieredEval("1", false, 1, 77)},
			snap:  snapshot(purchase(10, 1), bxgyGift(500, 1, "4")),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			plan := PlanTiered(tt.evals, tt.snap, nil, nil)

			assert.Equal(t, campaign.TypeTiered, plan.Family)
			assert.Equal(t, tt.wantMuts, plan.Mutations)
			assert.Len(t, plan.Prompts, tt.wantPrompts)
		})
	}
}

func TestClaims(t *testing.T) {
	c := NewClaims()

	assert.True(t, c.Claim(1, "a"))
	assert.True(t, c.Claim(1, "a"), "claiming twice is idempotent")
	assert.False(t, c.Claim(1, "b"))
	assert.True(t, c.ClaimedByOther(1, "b"))
	assert.False(t, c.ClaimedByOther(1, "a"))

	owner, ok := c.Owner(1)
	assert.True(t, ok)
	assert.Equal(t, "a", owner)
}
