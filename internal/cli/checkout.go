package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/rafaeljc/gefjon/internal/checkout"
	"github.com/rafaeljc/gefjon/internal/collection"
)

// CheckoutResult wraps the discount candidates for output.
type CheckoutResult struct {
	checkout.Result
}

// NewCheckoutCommand creates the checkout command.
func NewCheckoutCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "checkout <campaigns-file> <scenario-file>",
		Short: "List the discounts checkout would apply to the scenario's cart",
		Long: `Evaluate the scenario's cart as a finished order and list the product
discount candidates (all apply) and order discount candidates (the first
applies). The cart is not reconciled first; use evaluate for that.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			log := newLogger(rootOpts, cmd.ErrOrStderr())

			campaigns, _, err := loadCampaigns(args[0], log)
			if err != nil {
				return out.Error(ExitCommandError, ErrCodeInput, err)
			}
			sc, err := loadScenario(args[1])
			if err != nil {
				return out.Error(ExitCommandError, ErrCodeInput, err)
			}

			res, err := checkout.NewEvaluator(log, collection.Static(sc.Collections)).
				Evaluate(cmd.Context(), sc.Cart, campaigns)
			if errors.Is(err, checkout.ErrNoCartLines) {
				return out.Error(ExitFailure, ErrCodeNoCartLines, err)
			}
			if err != nil {
				return out.Error(ExitCommandError, ErrCodeInput, err)
			}
			return out.Success(&CheckoutResult{res})
		},
	}
}

func (r *CheckoutResult) renderText(w io.Writer) {
	if len(r.Products) == 0 && len(r.Orders) == 0 {
		fmt.Fprintln(w, "No discounts apply.")
		return
	}
	for _, p := range r.Products {
		fmt.Fprintf(w, "line %-20s %s %s  %s\n", p.LineKey, p.Value.Amount, p.Value.Kind, p.Message)
	}
	for i, o := range r.Orders {
		applied := ""
		if i == 0 {
			applied = " (applied)"
		}
		fmt.Fprintf(w, "order %s %s  %s%s\n", o.Value.Amount, o.Value.Kind, o.Message, applied)
	}
}
