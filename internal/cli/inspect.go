package cli

import (
	"fmt"
	"io"
	"maps"
	"slices"

	"github.com/spf13/cobra"

	"github.com/rafaeljc/gefjon/internal/campaign"
	"github.com/rafaeljc/gefjon/internal/ruleengine"
)

// GoalSummary describes one compiled goal.
type GoalSummary struct {
	ID        string  `json:"id"`
	Kind      string  `json:"kind"`
	Condition string  `json:"condition"`
	Quantity  int     `json:"quantity,omitempty"`
	Rewards   []int64 `json:"rewards,omitempty"`
}

// CampaignSummary describes one active campaign as the engine sees it.
type CampaignSummary struct {
	ID    string        `json:"id"`
	Name  string        `json:"name"`
	Type  campaign.Type `json:"type"`
	Goals []GoalSummary `json:"goals"`
}

// InspectResult lists the campaigns that survived parsing.
type InspectResult struct {
	Campaigns []CampaignSummary `json:"campaigns"`
}

// NewInspectCommand creates the inspect command.
func NewInspectCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <campaigns-file>",
		Short: "Show the active campaigns of a document as the engine compiles them",
		Long: `Parse a campaign document (JSON or YAML) and list the active campaigns with
their compiled conditions. Inactive and uncompilable campaigns are left out;
run with --verbose to see why a campaign was skipped.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			log := newLogger(rootOpts, cmd.ErrOrStderr())

			campaigns, _, err := loadCampaigns(args[0], log)
			if err != nil {
				return out.Error(ExitCommandError, ErrCodeInput, err)
			}
			return out.Success(summarize(campaigns))
		},
	}
}

func summarize(campaigns []campaign.Campaign) *InspectResult {
	res := &InspectResult{Campaigns: make([]CampaignSummary, 0, len(campaigns))}
	for _, c := range campaigns {
		cs := CampaignSummary{ID: c.ID, Name: c.Name, Type: c.Type}
		for _, g := range c.Goals {
			cs.Goals = append(cs.Goals, summarizeGoal(g))
		}
		res.Campaigns = append(res.Campaigns, cs)
	}
	return res
}

func summarizeGoal(g campaign.Goal) GoalSummary {
	switch goal := g.(type) {
	case campaign.BXGYGoal:
		return GoalSummary{
			ID:        goal.ID,
			Kind:      "bxgy",
			Condition: describeCondition(goal.Condition),
			Quantity:  goal.GetQty,
			Rewards:   campaign.VariantIDs(goal.Rewards),
		}
	case campaign.FreeProductGoal:
		return GoalSummary{
			ID:        goal.ID,
			Kind:      "free_product",
			Condition: describeCondition(goal.Condition),
			Quantity:  goal.GiftQty,
			Rewards:   campaign.VariantIDs(goal.Rewards),
		}
	case campaign.OrderDiscountGoal:
		return GoalSummary{ID: goal.ID, Kind: "order_discount", Condition: describeCondition(goal.Condition)}
	case campaign.FreeShippingGoal:
		return GoalSummary{ID: goal.ID, Kind: "free_shipping", Condition: describeCondition(goal.Condition)}
	default:
		return GoalSummary{ID: g.GoalID(), Kind: fmt.Sprintf("%T", g)}
	}
}

func describeCondition(c ruleengine.Condition) string {
	switch cond := c.(type) {
	case ruleengine.ProductCondition:
		ids := slices.Sorted(maps.Keys(cond.BuyVariants))
		return fmt.Sprintf("buy %d of variants %v", cond.BuyQty, ids)
	case ruleengine.CollectionCondition:
		return fmt.Sprintf("buy %d from collections %v", cond.BuyQty, cond.Handles)
	case ruleengine.CollectionSpendCondition:
		return fmt.Sprintf("spend %s on collections %v", cond.SpendAmount, cond.Handles)
	case ruleengine.StorewideCondition:
		return fmt.Sprintf("buy %d of anything", cond.BuyQty)
	case ruleengine.TieredCondition:
		if cond.Track == ruleengine.TrackQuantity {
			return fmt.Sprintf("cart holds %s units", cond.Target)
		}
		return fmt.Sprintf("cart subtotal reaches %s", cond.Target)
	default:
		return "unsupported"
	}
}

func (r *InspectResult) renderText(w io.Writer) {
	if len(r.Campaigns) == 0 {
		fmt.Fprintln(w, "No active campaigns.")
		return
	}
	for _, c := range r.Campaigns {
		fmt.Fprintf(w, "%s  %s (%s)\n", c.ID, c.Name, c.Type)
		for _, g := range c.Goals {
			fmt.Fprintf(w, "  - %s [%s] %s", g.ID, g.Kind, g.Condition)
			if len(g.Rewards) > 0 {
				fmt.Fprintf(w, " -> %d of %v", g.Quantity, g.Rewards)
			}
			fmt.Fprintln(w)
		}
	}
}
