// Package cli implements the gefjon command line tool: it inspects campaign
// documents and runs the reconciliation engine and the checkout evaluator
// offline against a cart described in a file.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/rafaeljc/gefjon/internal/config"
	"github.com/rafaeljc/gefjon/internal/logger"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command of the gefjon CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "gefjon",
		Short: "Gefjon gift campaign tools",
		Long:  "Inspect campaign documents and simulate gift reconciliation and checkout discounts offline.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output (debug logs on stderr)")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewInspectCommand(opts))
	cmd.AddCommand(NewEvaluateCommand(opts))
	cmd.AddCommand(NewCheckoutCommand(opts))

	return cmd
}

// newLogger sends engine logs to w: debug when verbose, warnings otherwise.
func newLogger(opts *RootOptions, w io.Writer) *slog.Logger {
	level := "warn"
	if opts.Verbose {
		level = "debug"
	}
	return logger.NewWithWriter(&config.AppConfig{
		Name:        "gefjon-cli",
		Version:     "dev",
		Environment: "development",
		LogLevel:    level,
		LogFormat:   "text",
	}, w)
}
