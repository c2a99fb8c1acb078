package main

import (
	"context"

	"github.com/spf13/cobra"
)

type opener func(ctx context.Context) (*app, error)

type rootOptions struct {
	open   opener
	asJSON bool
}

func newRootCmd(open opener) *cobra.Command {
	opts := &rootOptions{open: open}

	root := &cobra.Command{
		Use:   "riskctl",
		Short: "Inspect and drive the trading risk state",
		Long: `riskctl evaluates the current risk state and changes the demo inputs
the evaluator reads: scenario, volatility, counters, recovery mode and more.

Every input command writes to the store; a running server picks the change up
and re-evaluates on its own.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().BoolVar(&opts.asJSON, "json", false, "print machine-readable JSON")

	root.AddCommand(
		newEvalCmd(opts),
		newWatchCmd(opts),
		newScenarioCmd(opts),
		newVixCmd(opts),
		newLossStreakCmd(opts),
		newTradesCmd(opts),
		newTradeCmd(opts),
		newOverrideCmd(opts),
		newRecoveryCmd(opts),
		newCapitalCmd(opts),
		newPnLCmd(opts),
		newPersonaCmd(opts),
		newGuardrailsCmd(opts),
		newStrategyCmd(opts),
		newResetCmd(opts),
	)

	return root
}

// withApp opens the store for the duration of one command
func (o *rootOptions) withApp(run func(cmd *cobra.Command, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := o.open(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		return run(cmd, a, args)
	}
}
