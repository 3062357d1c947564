package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/rafaeljc/gefjon/internal/cache"
	"github.com/rafaeljc/gefjon/internal/campaign"
	"github.com/rafaeljc/gefjon/internal/cart"
	"github.com/rafaeljc/gefjon/internal/collection"
	"github.com/rafaeljc/gefjon/internal/engine"
	"github.com/rafaeljc/gefjon/internal/giftstate"
	"github.com/rafaeljc/gefjon/internal/selection"
)

// EvaluateOptions holds the flags of the evaluate command.
type EvaluateOptions struct {
	MaxPasses int
}

// EvaluateResult is the outcome of running the engine to a fixed point.
type EvaluateResult struct {
	Converged bool                               `json:"converged"`
	Passes    int                                `json:"passes"`
	Mutations []cart.Mutation                    `json:"mutations"`
	Cart      []cart.Line                        `json:"cart"`
	Campaigns map[string]giftstate.CampaignState `json:"campaigns"`
	// Prompt is a gift choice the scenario did not answer.
	Prompt *selection.Prompt `json:"prompt,omitempty"`
}

// NewEvaluateCommand creates the evaluate command.
func NewEvaluateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EvaluateOptions{}

	cmd := &cobra.Command{
		Use:   "evaluate <campaigns-file> <scenario-file>",
		Short: "Reconcile a cart offline until it stops changing",
		Long: `Run reconciliation passes against an in-memory cart built from the scenario
file until a pass issues no mutation. Gift choices are answered from the
scenario's "selections" map; an unanswered choice is reported.

Both files may be JSON or YAML.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEvaluate(cmd.Context(), rootOpts, opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().IntVar(&opts.MaxPasses, "max-passes", 10, "give up after this many passes")

	return cmd
}

func runEvaluate(ctx context.Context, rootOpts *RootOptions, opts *EvaluateOptions, campaignsPath, scenarioPath string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	out := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
	log := newLogger(rootOpts, cmd.ErrOrStderr())

	_, doc, err := loadCampaigns(campaignsPath, log)
	if err != nil {
		return out.Error(ExitCommandError, ErrCodeInput, err)
	}
	sc, err := loadScenario(scenarioPath)
	if err != nil {
		return out.Error(ExitCommandError, ErrCodeInput, err)
	}

	res, err := simulate(ctx, log, doc, sc, opts.MaxPasses)
	if err != nil {
		return out.Error(ExitCommandError, ErrCodeInput, err)
	}
	if err := out.Success(res); err != nil {
		return err
	}
	if !res.Converged {
		return WrapExitError(ExitFailure, ErrCodeNotConverged,
			fmt.Errorf("cart still changing after %d passes", res.Passes))
	}
	return nil
}

// simulate wires an engine around a MemoryCart and runs it to a fixed point.
func simulate(ctx context.Context, log *slog.Logger, doc []byte, sc *Scenario, maxPasses int) (*EvaluateResult, error) {
	if maxPasses < 1 {
		maxPasses = 1
	}

	l1, err := cache.NewMemoryCache[string, []campaign.Campaign]("cli", 1, time.Hour)
	if err != nil {
		return nil, err
	}
	defer l1.Close()

	collections := collection.Static(sc.Collections)
	if collections == nil {
		collections = collection.Static{}
	}

	mc := cart.NewMemoryCart(sc.Catalog, sc.Cart...)
	mut := cart.NewMutator(mc)
	coord := selection.NewCoordinator(log, mut)
	state := giftstate.NewPublisher(log)

	eng := engine.New(log, engine.Deps{
		Campaigns:   campaign.NewStore(log, campaign.StaticSource(doc), l1),
		Cart:        cart.NewAccessor(mc),
		Mutator:     mut,
		Collections: collections,
		Selection:   coord,
		Publisher:   state,
	})

	res := &EvaluateResult{}
	for res.Passes < maxPasses {
		report, ok := eng.RunPass(ctx)
		res.Passes++
		if !ok {
			return nil, fmt.Errorf("pass %d did not complete", res.Passes)
		}
		res.Campaigns = report.Campaigns

		answered := false
		if p, phase, open := coord.Pending(); open && phase == selection.PhasePrompting {
			if choice, ok := sc.Selections[p.CampaignID]; ok {
				if err := coord.Confirm(ctx, p.CampaignID, choice); err != nil {
					return nil, fmt.Errorf("selection for campaign %s: %w", p.CampaignID, err)
				}
				answered = true
			}
		}

		if report.Mutations == 0 && !answered {
			res.Converged = true
			break
		}
	}

	if p, _, open := coord.Pending(); open {
		res.Prompt = &p
	}

	snap, err := mc.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	res.Cart = snap.Lines
	res.Mutations = mc.Mutations()
	return res, nil
}

func (r *EvaluateResult) renderText(w io.Writer) {
	status := "converged"
	if !r.Converged {
		status = "NOT converged"
	}
	fmt.Fprintf(w, "%s after %d pass(es), %d mutation(s)\n\n", status, r.Passes, len(r.Mutations))

	fmt.Fprintln(w, "Cart:")
	for _, l := range r.Cart {
		tag := ""
		switch {
		case l.Properties.BXGYGift:
			tag = " [bxgy gift, campaign " + l.Properties.BXGYCampaignID + "]"
		case l.Properties.FreeGift:
			tag = " [tiered gift]"
		}
		fmt.Fprintf(w, "  %-20s variant=%d qty=%d%s\n", l.Key, l.VariantID, l.Quantity, tag)
	}

	fmt.Fprintln(w, "\nCampaigns:")
	ids := make([]string, 0, len(r.Campaigns))
	for id := range r.Campaigns {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, campaign.CompareIDs)
	for _, id := range ids {
		st := r.Campaigns[id]
		fmt.Fprintf(w, "  %-6s %-7s %-9s fulfillment=%s progress=%s/%s selected=%v\n",
			id, st.Type, st.State, st.Fulfillment, st.Metric, st.Target, st.Gifts.Selected)
	}

	if r.Prompt != nil {
		fmt.Fprintf(w, "\nWaiting for a gift choice in campaign %s (max %d):", r.Prompt.CampaignID, r.Prompt.MaxQty)
		for _, g := range r.Prompt.Gifts {
			fmt.Fprintf(w, " %d", g.VariantID)
		}
		fmt.Fprintln(w)
	}
}
