package reconciler

import (
	"log/slog"
	"slices"

	"github.com/rafaeljc/gefjon/internal/campaign"
	"github.com/rafaeljc/gefjon/internal/cart"
	"github.com/rafaeljc/gefjon/internal/selection"
)

// PlanBXGY plans every BXGY campaign against snap. Each campaign manages only
// the lines tagged with its id; tagged lines of campaigns that are neither
// eligible nor protected this pass are removed by hygiene.
func PlanBXGY(evals []Evaluation, snap *cart.Snapshot, paused Pauser, log *slog.Logger) Plan {
	p := newPlanner(campaign.TypeBXGY, paused, log)

	for _, e := range sortedByID(evals) {
		p.reconcile(e, snap.OwnedBy(e.Campaign.ID))
	}

	for _, l := range snap.BXGYGiftLines() {
		if _, ok := p.active[l.Properties.BXGYCampaignID]; ok {
			continue
		}
		p.log.Debug("removing orphan gift line",
			slog.String("key", l.Key),
			slog.String("campaign_id", l.Properties.BXGYCampaignID),
		)
		p.remove(l)
	}

	return p.plan
}

// PlanTiered plans the single tiered gift slot. The slot belongs to the first
// tiered campaign by id; without one, every free gift line is removed.
func PlanTiered(evals []Evaluation, snap *cart.Snapshot, paused Pauser, log *slog.Logger) Plan {
	p := newPlanner(campaign.TypeTiered, paused, log)
	owned := snap.FreeGiftLines()

	sorted := sortedByID(evals)
	if len(sorted) == 0 {
		for _, l := range owned {
			p.remove(l)
		}
		return p.plan
	}

	if len(sorted) > 1 {
		p.log.Debug("only the first tiered campaign holds the gift slot",
			slog.String("campaign_id", sorted[0].Campaign.ID),
			slog.Int("ignored", len(sorted)-1),
		)
	}
	p.reconcile(sorted[0], owned)
	return p.plan
}

type planner struct {
	family campaign.Type
	paused Pauser
	log    *slog.Logger
	claims *Claims

	plan    Plan
	touched map[string]struct{}
	// active holds campaigns whose lines must survive hygiene: eligible or protected.
	active map[string]struct{}
}

func newPlanner(family campaign.Type, paused Pauser, log *slog.Logger) *planner {
	if log == nil {
		log = slog.Default()
	}
	return &planner{
		family:  family,
		paused:  paused,
		log:     log.With(slog.String("family", string(family))),
		claims:  NewClaims(),
		plan:    Plan{Family: family},
		touched: make(map[string]struct{}),
		active:  make(map[string]struct{}),
	}
}

func (p *planner) isPaused(id string) bool {
	return p.paused != nil && p.paused.Paused(id)
}

func (p *planner) reconcile(e Evaluation, owned []cart.Line) {
	id := e.Campaign.ID

	switch {
	case e.Err != nil:
		p.log.Warn("campaign skipped, keeping its gift lines",
			slog.String("campaign_id", id),
			slog.String("error", e.Err.Error()),
		)
		p.protect(id, owned)
		return

	case !e.Verdict.Eligible:
		if p.isPaused(id) {
			p.plan.Withdraw = append(p.plan.Withdraw, id)
		}
		for _, l := range owned {
			p.remove(l)
		}
		return

	case p.isPaused(id):
		p.protect(id, owned)
		return
	}

	p.active[id] = struct{}{}
	if len(e.Rewards) == 1 {
		p.single(e, owned)
		return
	}
	p.choice(e, owned)
}

// single keeps exactly one line of the reward at AutoQty.
func (p *planner) single(e Evaluation, owned []cart.Line) {
	id := e.Campaign.ID
	vid := e.Rewards[0].VariantID
	claimed := p.claims.Claim(vid, id)

	kept := false
	for _, l := range owned {
		if l.VariantID != vid || kept {
			p.remove(l)
			continue
		}
		kept = true
		if l.Quantity != e.AutoQty {
			p.change(l, e.AutoQty)
		}
	}
	if kept {
		return
	}

	if !claimed {
		owner, _ := p.claims.Owner(vid)
		p.log.Info("reward already claimed by another campaign",
			slog.String("campaign_id", id),
			slog.Int64("variant_id", vid),
			slog.String("claimed_by", owner),
		)
		return
	}
	p.add(vid, e.AutoQty, GiftProperties(p.family, id))
}

// choice keeps the user's existing selection within MaxQty units, or asks for one.
func (p *planner) choice(e Evaluation, owned []cart.Line) {
	id := e.Campaign.ID
	rewards := make(map[int64]struct{}, len(e.Rewards))
	for _, r := range e.Rewards {
		rewards[r.VariantID] = struct{}{}
	}

	budget := e.MaxQty
	for _, l := range owned {
		if _, ok := rewards[l.VariantID]; !ok || budget == 0 {
			p.remove(l)
			continue
		}
		budget--
		p.claims.Claim(l.VariantID, id)
		// Chosen gifts are one unit per line.
		if l.Quantity != 1 {
			p.change(l, 1)
		}
	}
	if budget < e.MaxQty {
		return
	}

	var available []campaign.Product
	for _, r := range e.Rewards {
		if !p.claims.ClaimedByOther(r.VariantID, id) {
			available = append(available, r)
		}
	}
	if len(available) == 0 {
		p.log.Info("every reward already claimed by another campaign", slog.String("campaign_id", id))
		return
	}

	p.plan.Prompts = append(p.plan.Prompts, selection.Prompt{
		CampaignID:   id,
		CampaignName: e.Campaign.Name,
		Family:       string(p.family),
		Gifts:        available,
		MaxQty:       min(e.MaxQty, len(available)),
		Properties:   GiftProperties(p.family, id),
	})
}

func (p *planner) protect(id string, owned []cart.Line) {
	p.active[id] = struct{}{}
	for _, l := range owned {
		p.touched[l.Key] = struct{}{}
		p.claims.Claim(l.VariantID, id)
	}
}

func (p *planner) remove(l cart.Line) {
	if _, done := p.touched[l.Key]; done {
		return
	}
	p.touched[l.Key] = struct{}{}
	p.plan.Mutations = append(p.plan.Mutations, cart.Remove(l.Key))
}

func (p *planner) change(l cart.Line, qty int) {
	if _, done := p.touched[l.Key]; done {
		return
	}
	p.touched[l.Key] = struct{}{}
	p.plan.Mutations = append(p.plan.Mutations, cart.Change(l.Key, qty))
}

func (p *planner) add(vid int64, qty int, props cart.Properties) {
	p.plan.Mutations = append(p.plan.Mutations, cart.Add(vid, qty, props))
}

func sortedByID(evals []Evaluation) []Evaluation {
	out := slices.Clone(evals)
	slices.SortStableFunc(out, func(a, b Evaluation) int {
		return campaign.CompareIDs(a.Campaign.ID, b.Campaign.ID)
	})
	return out
}
