// Package engine runs reconciliation passes: BXGY first, then the tiered
// gift slot, each family behind its own guard, then publishes the derived
// campaign state.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/rafaeljc/gefjon/internal/campaign"
	"github.com/rafaeljc/gefjon/internal/cart"
	"github.com/rafaeljc/gefjon/internal/collection"
	"github.com/rafaeljc/gefjon/internal/giftstate"
	"github.com/rafaeljc/gefjon/internal/logger"
	"github.com/rafaeljc/gefjon/internal/observability"
	"github.com/rafaeljc/gefjon/internal/reconciler"
	"github.com/rafaeljc/gefjon/internal/ruleengine"
	"github.com/rafaeljc/gefjon/internal/selection"
	"github.com/rafaeljc/gefjon/internal/trigger"
	"github.com/rafaeljc/gefjon/internal/validation"
)

// CampaignSource serves the active campaigns. *campaign.Store implements it.
type CampaignSource interface {
	Active(ctx context.Context) []campaign.Campaign
}

// CartReader returns a fresh snapshot. *cart.Accessor implements it.
type CartReader interface {
	Snapshot(ctx context.Context) (*cart.Snapshot, error)
}

// Applier issues mutation batches. *cart.Mutator implements it.
type Applier interface {
	ApplyBatch(ctx context.Context, source string, muts []cart.Mutation) error
}

// Selector is the part of the selection coordinator the engine drives.
type Selector interface {
	reconciler.Pauser
	Request(p selection.Prompt) bool
	Withdraw(campaignID string) bool
}

// Publisher receives the report of every completed pass.
type Publisher interface {
	Publish(r giftstate.Report)
}

// Deps are the collaborators of an Engine. All are required.
type Deps struct {
	Campaigns   CampaignSource
	Cart        CartReader
	Mutator     Applier
	Collections collection.Resolver
	Selection   Selector
	Publisher   Publisher
}

// Engine owns the per-family guards.
type Engine struct {
	logger *slog.Logger
	deps   Deps
	rules  *ruleengine.Engine

	bxgy   Guard
	tiered Guard
}

// New creates an Engine.
func New(log *slog.Logger, deps Deps) *Engine {
	if log == nil {
		log = slog.Default()
	}
	validation.AssertDependency(deps.Campaigns, "campaign source")
	validation.AssertDependency(deps.Cart, "cart reader")
	validation.AssertDependency(deps.Mutator, "cart mutator")
	validation.AssertDependency(deps.Collections, "collection resolver")
	validation.AssertDependency(deps.Selection, "selection coordinator")
	validation.AssertDependency(deps.Publisher, "state publisher")

	return &Engine{logger: log, deps: deps, rules: ruleengine.New(log)}
}

// Run adapts RunPass to the scheduler callback.
func (e *Engine) Run(ctx context.Context) {
	e.RunPass(ctx)
}

// RunPass runs one master pass: BXGY, then tiered on the snapshot taken after
// the BXGY mutations settled. It returns false when the pass was dropped (BXGY
// family busy) or aborted (cart unavailable); no report is published then.
func (e *Engine) RunPass(ctx context.Context) (giftstate.Report, bool) {
	passID := uuid.NewString()
	log := e.logger.With(slog.String("pass_id", passID))
	ctx = logger.WithContext(ctx, log)
	start := time.Now()

	campaigns := e.deps.Campaigns.Active(ctx)
	resolver := collection.NewPassCache(e.deps.Collections)

	var (
		snap      *cart.Snapshot
		bxgyEvals []reconciler.Evaluation
		mutations int
		err       error
	)
	ran := e.bxgy.TryRun(func() {
		snap, bxgyEvals, mutations, err = e.runFamily(ctx, log, campaign.TypeBXGY, campaigns, nil, resolver)
	})
	if !ran {
		observability.EnginePassesTotal.WithLabelValues("dropped").Inc()
		observability.EngineFamilySkipped.WithLabelValues(string(campaign.TypeBXGY)).Inc()
		observability.TriggerDroppedTotal.WithLabelValues("busy").Inc()
		log.Debug("pass dropped, bxgy family busy")
		return giftstate.Report{}, false
	}
	if err != nil {
		return e.abort(log, err)
	}

	var tieredEvals []reconciler.Evaluation
	ran = e.tiered.TryRun(func() {
		var n int
		snap, tieredEvals, n, err = e.runFamily(ctx, log, campaign.TypeTiered, campaigns, snap, resolver)
		mutations += n
	})
	if !ran {
		observability.EngineFamilySkipped.WithLabelValues(string(campaign.TypeTiered)).Inc()
		log.Debug("tiered family busy, skipped for this pass")
	}
	if err != nil {
		return e.abort(log, err)
	}

	report := giftstate.Report{
		PassID:          passID,
		CompletedAt:     time.Now().UTC(),
		CartFingerprint: snap.Fingerprint(),
		Mutations:       mutations,
		Campaigns:       make(map[string]giftstate.CampaignState, len(bxgyEvals)+len(tieredEvals)),
	}
	for _, ev := range bxgyEvals {
		report.Campaigns[ev.Campaign.ID] = giftstate.Project(ev, snap)
	}
	for _, ev := range tieredEvals {
		report.Campaigns[ev.Campaign.ID] = giftstate.Project(ev, snap)
	}

	observability.EnginePassesTotal.WithLabelValues("completed").Inc()
	observability.EnginePassDuration.Observe(time.Since(start).Seconds())

	e.deps.Publisher.Publish(report)
	log.Info("pass completed",
		slog.Int("mutations", report.Mutations),
		slog.Int("campaigns", len(report.Campaigns)),
		slog.String("cart", report.CartFingerprint),
		slog.Duration("duration", time.Since(start)),
	)
	return report, true
}

func (e *Engine) abort(log *slog.Logger, err error) (giftstate.Report, bool) {
	observability.EnginePassesTotal.WithLabelValues("error").Inc()
	log.Warn("pass aborted", slog.String("error", err.Error()))
	return giftstate.Report{}, false
}

// runFamily evaluates, plans and applies one family. snap is reused when
// non-nil; otherwise a fresh snapshot is fetched.
func (e *Engine) runFamily(ctx context.Context, log *slog.Logger, family campaign.Type, campaigns []campaign.Campaign, snap *cart.Snapshot, resolver collection.Resolver) (*cart.Snapshot, []reconciler.Evaluation, int, error) {
	if snap == nil {
		var err error
		if snap, err = e.deps.Cart.Snapshot(ctx); err != nil {
			return nil, nil, 0, err
		}
	}

	members := campaign.FilterType(campaigns, family)
	var (
		evals []reconciler.Evaluation
		plan  reconciler.Plan
	)
	switch family {
	case campaign.TypeBXGY:
		evals = e.evaluateBXGY(ctx, log, members, snap, resolver)
		plan = reconciler.PlanBXGY(evals, snap, e.deps.Selection, log)
	case campaign.TypeTiered:
		evals = e.evaluateTiered(ctx, log, members, snap, resolver)
		plan = reconciler.PlanTiered(evals, snap, e.deps.Selection, log)
	}

	next, err := e.apply(ctx, log, plan, snap)
	return next, evals, len(plan.Mutations), err
}

// apply issues a plan and returns the snapshot to continue with: a fresh one
// if anything was mutated, snap otherwise.
func (e *Engine) apply(ctx context.Context, log *slog.Logger, plan reconciler.Plan, snap *cart.Snapshot) (*cart.Snapshot, error) {
	for _, id := range plan.Withdraw {
		if e.deps.Selection.Withdraw(id) {
			log.Info("gift selection withdrawn, campaign no longer eligible", slog.String("campaign_id", id))
		}
	}

	if len(plan.Mutations) > 0 {
		// Partial failure is fine: the next pass reconciles whatever did not land.
		if err := e.deps.Mutator.ApplyBatch(ctx, trigger.SourceEngine, plan.Mutations); err != nil {
			log.Warn("some gift mutations failed",
				slog.String("family", string(plan.Family)),
				slog.String("error", err.Error()),
			)
		}
	}

	for _, p := range plan.Prompts {
		e.deps.Selection.Request(p)
	}

	if len(plan.Mutations) == 0 {
		return snap, nil
	}
	return e.deps.Cart.Snapshot(ctx)
}

func (e *Engine) evaluateBXGY(ctx context.Context, log *slog.Logger, campaigns []campaign.Campaign, snap *cart.Snapshot, resolver collection.Resolver) []reconciler.Evaluation {
	evals := make([]reconciler.Evaluation, 0, len(campaigns))
	for _, c := range campaigns {
		goal, err := c.BXGY()
		if err != nil {
			// Definition problem: the campaign sits out and hygiene clears its lines.
			observability.EngineEvaluationErrors.WithLabelValues(string(campaign.TypeBXGY)).Inc()
			log.Warn("bxgy campaign skipped", slog.String("campaign_id", c.ID), slog.String("error", err.Error()))
			continue
		}

		verdict, err := e.rules.Evaluate(ctx, goal.Condition, ruleengine.Input{Lines: snap.Lines, Collections: resolver})
		if err != nil {
			observability.EngineEvaluationErrors.WithLabelValues(string(campaign.TypeBXGY)).Inc()
		}

		evals = append(evals, reconciler.Evaluation{
			Campaign: c,
			GoalID:   goal.ID,
			Verdict:  verdict,
			Rewards:  goal.Rewards,
			AutoQty:  goal.GetQty,
			MaxQty:   goal.GetQty,
			Err:      err,
		})
	}
	return evals
}

// evaluateTiered returns at most one evaluation: the first tiered campaign
// with a usable free product goal owns the single gift slot.
func (e *Engine) evaluateTiered(ctx context.Context, log *slog.Logger, campaigns []campaign.Campaign, snap *cart.Snapshot, resolver collection.Resolver) []reconciler.Evaluation {
	for _, c := range campaigns {
		ev, err := e.evaluateTieredCampaign(ctx, c, snap, resolver)
		if err != nil {
			observability.EngineEvaluationErrors.WithLabelValues(string(campaign.TypeTiered)).Inc()
			log.Warn("tiered campaign skipped", slog.String("campaign_id", c.ID), slog.String("error", err.Error()))
			continue
		}
		return []reconciler.Evaluation{ev}
	}
	return nil
}

// evaluateTieredCampaign selects the first free product goal that holds, or
// the first one when none does.
func (e *Engine) evaluateTieredCampaign(ctx context.Context, c campaign.Campaign, snap *cart.Snapshot, resolver collection.Resolver) (reconciler.Evaluation, error) {
	goals := c.FreeProductGoals()
	if len(goals) == 0 {
		return reconciler.Evaluation{}, campaign.ErrNoGoal
	}

	chosen := goals[0]
	var verdict ruleengine.Verdict
	var evalErr error
	for i, g := range goals {
		v, err := e.rules.Evaluate(ctx, g.Condition, ruleengine.Input{Lines: snap.Lines, Collections: resolver})
		if err != nil {
			evalErr = err
			break
		}
		if i == 0 {
			verdict = v
		}
		if v.Eligible {
			chosen, verdict = g, v
			break
		}
	}
	if len(chosen.Rewards) == 0 {
		return reconciler.Evaluation{}, errors.Join(campaign.ErrNoRewards, evalErr)
	}

	maxQty := 1
	if len(chosen.Rewards) > 1 {
		maxQty = chosen.GiftQty
	}
	return reconciler.Evaluation{
		Campaign: c,
		GoalID:   chosen.ID,
		Verdict:  verdict,
		Rewards:  chosen.Rewards,
		AutoQty:  1,
		MaxQty:   maxQty,
		Err:      evalErr,
	}, nil
}
