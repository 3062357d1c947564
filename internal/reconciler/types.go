// Package reconciler computes the cart mutations that move the gift lines of
// one campaign family to the state implied by the current verdicts.
//
// Planning is pure: it reads a snapshot and returns a Plan. Applying the plan
// is the caller's job (see engine.Engine).
package reconciler

import (
	"github.com/rafaeljc/gefjon/internal/campaign"
	"github.com/rafaeljc/gefjon/internal/cart"
	"github.com/rafaeljc/gefjon/internal/ruleengine"
	"github.com/rafaeljc/gefjon/internal/selection"
)

// Evaluation is the verdict of one campaign for one pass.
type Evaluation struct {
	Campaign campaign.Campaign
	GoalID   string
	Verdict  ruleengine.Verdict
	Rewards  []campaign.Product

	// AutoQty is the quantity of a single-reward gift line (getQty for BXGY, 1 for tiered).
	AutoQty int
	// MaxQty caps the gift units of the campaign.
	MaxQty int

	// Err is a transient evaluation failure (e.g. a collection lookup). The
	// campaign is skipped and its gift lines are left as they are.
	Err error
}

// Eligible reports whether the campaign should hold gifts this pass.
func (e Evaluation) Eligible() bool {
	return e.Err == nil && e.Verdict.Eligible
}

// HasChoice reports whether the user picks among several rewards.
func (e Evaluation) HasChoice() bool {
	return len(e.Rewards) > 1
}

// Pauser reports campaigns whose gift lines belong to an open selection.
type Pauser interface {
	Paused(campaignID string) bool
}

// Plan is the outcome of planning one family.
type Plan struct {
	Family    campaign.Type
	Mutations []cart.Mutation
	// Prompts are campaigns that need the user to choose a gift.
	Prompts []selection.Prompt
	// Withdraw lists campaigns with an open prompt that are no longer eligible.
	Withdraw []string
}

// Empty reports whether the plan asks for nothing.
func (p Plan) Empty() bool {
	return len(p.Mutations) == 0 && len(p.Prompts) == 0 && len(p.Withdraw) == 0
}

// GiftProperties returns the line properties a family tags its gifts with.
func GiftProperties(family campaign.Type, campaignID string) cart.Properties {
	if family == campaign.TypeBXGY {
		return cart.Properties{BXGYGift: true, BXGYCampaignID: campaignID}
	}
	return cart.Properties{FreeGift: true}
}

// Claims records which campaign took a reward variant during a pass.
// The first campaign to claim a variant keeps it; campaigns are visited in
// ascending id order, so the lowest id wins a collision.
type Claims struct {
	owners map[int64]string
}

// NewClaims returns an empty registry.
func NewClaims() *Claims {
	return &Claims{owners: make(map[int64]string)}
}

// Claim assigns variant to campaignID unless another campaign holds it.
func (c *Claims) Claim(variant int64, campaignID string) bool {
	owner, ok := c.owners[variant]
	if ok && owner != campaignID {
		return false
	}
	c.owners[variant] = campaignID
	return true
}

// Owner returns the campaign holding variant.
func (c *Claims) Owner(variant int64) (string, bool) {
	owner, ok := c.owners[variant]
	return owner, ok
}

// ClaimedByOther reports whether a campaign other than campaignID holds variant.
func (c *Claims) ClaimedByOther(variant int64, campaignID string) bool {
	owner, ok := c.owners[variant]
	return ok && owner != campaignID
}
