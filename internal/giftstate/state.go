// Package giftstate derives the per-campaign UI state from a reconciled cart
// and publishes one report per completed pass.
package giftstate

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/rafaeljc/gefjon/internal/campaign"
	"github.com/rafaeljc/gefjon/internal/cart"
	"github.com/rafaeljc/gefjon/internal/reconciler"
)

// State is the lock state of a campaign.
type State string

const (
	StateLocked   State = "locked"
	StateEligible State = "eligible"
	StateUnlocked State = "unlocked"
)

// Fulfillment tells how the gift was (or will be) chosen.
type Fulfillment string

const (
	FulfillmentNone   Fulfillment = "none"
	FulfillmentAuto   Fulfillment = "auto"
	FulfillmentChoice Fulfillment = "choice"
)

// Gifts lists the offered and the selected reward variants.
type Gifts struct {
	Eligible []int64 `json:"eligible"`
	Selected []int64 `json:"selected"`
}

// CampaignState is rebuilt on every pass; it is never diffed.
type CampaignState struct {
	ID            string          `json:"id"`
	Name          string          `json:"name,omitempty"`
	Type          campaign.Type   `json:"type"`
	State         State           `json:"state"`
	Fulfillment   Fulfillment     `json:"fulfillment"`
	MaxQty        int             `json:"maxQty"`
	Gifts         Gifts           `json:"gifts"`
	CanChangeGift bool            `json:"canChangeGift"`
	Metric        decimal.Decimal `json:"metric"`
	Target        decimal.Decimal `json:"target"`
}

// Report is emitted once per completed pass.
type Report struct {
	PassID          string                   `json:"passId"`
	CompletedAt     time.Time                `json:"completedAt"`
	CartFingerprint string                   `json:"cartFingerprint"`
	Mutations       int                      `json:"mutations"`
	Campaigns       map[string]CampaignState `json:"campaigns"`
}

// Project computes the state of one campaign from its verdict and the cart
// as it looks after reconciliation.
func Project(e reconciler.Evaluation, snap *cart.Snapshot) CampaignState {
	st := CampaignState{
		ID:     e.Campaign.ID,
		Name:   e.Campaign.Name,
		Type:   e.Campaign.Type,
		MaxQty: e.MaxQty,
		Gifts: Gifts{
			Eligible: campaign.VariantIDs(e.Rewards),
			Selected: []int64{},
		},
		Metric: e.Verdict.Metric,
		Target: e.Verdict.Target,
	}

	units := 0
	for _, l := range giftLines(e, snap) {
		if units >= e.MaxQty {
			break
		}
		st.Gifts.Selected = append(st.Gifts.Selected, l.VariantID)
		units += l.Quantity
	}

	fulfilled := e.MaxQty > 0 && units >= e.MaxQty
	switch {
	case !e.Eligible():
		st.State = StateLocked
	case fulfilled:
		st.State = StateUnlocked
	default:
		st.State = StateEligible
	}

	switch {
	case !fulfilled:
		st.Fulfillment = FulfillmentNone
	case e.HasChoice():
		st.Fulfillment = FulfillmentChoice
	default:
		st.Fulfillment = FulfillmentAuto
	}

	st.CanChangeGift = st.State == StateUnlocked && st.Fulfillment == FulfillmentChoice
	return st
}

func giftLines(e reconciler.Evaluation, snap *cart.Snapshot) []cart.Line {
	if e.Campaign.Type == campaign.TypeBXGY {
		return snap.OwnedBy(e.Campaign.ID)
	}
	return snap.FreeGiftLines()
}
