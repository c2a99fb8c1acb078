package main

import (
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"tradecoach/internal/domain/riskstate"
	riskstateservice "tradecoach/internal/services/riskstate"
	"tradecoach/pkg/errors"
	"tradecoach/pkg/logger"
)

func newEvalCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "eval",
		Short: "Evaluate and print the current risk state",
		Long: `Evaluate reads every input from the store, computes the risk state,
persists it together with any new risk events, and prints it.`,
		Args: cobra.NoArgs,
		RunE: o.withApp(func(cmd *cobra.Command, a *app, args []string) error {
			state, err := a.service.Evaluate(cmd.Context())
			if err != nil {
				return err
			}
			return printState(cmd.OutOrStdout(), state, o.asJSON)
		}),
	}
}

func newWatchCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Re-evaluate and print on every store change until interrupted",
		Args:  cobra.NoArgs,
		RunE: o.withApp(func(cmd *cobra.Command, a *app, args []string) error {
			ctx := cmd.Context()
			monitor := riskstateservice.NewMonitor(a.service, a.backend, logger.Get())
			defer monitor.Close()

			snapshots := monitor.Watch(ctx)
			done := make(chan error, 1)
			go func() { done <- monitor.Run(ctx) }()

			out := cmd.OutOrStdout()
			for {
				select {
				case err := <-done:
					return err
				case snap, ok := <-snapshots:
					if !ok {
						return <-done
					}
					// the loading placeholder carries nothing worth printing
					if snap.State == nil {
						continue
					}
					if err := printState(out, snap.State, o.asJSON); err != nil {
						return err
					}
				}
			}
		}),
	}
}

func newScenarioCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:       "scenario <calm|normal|volatile|extreme>",
		Short:     "Select the market scenario",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"calm", "normal", "volatile", "extreme"},
		RunE: o.withApp(func(cmd *cobra.Command, a *app, args []string) error {
			if err := a.demo.SetScenario(cmd.Context(), args[0]); err != nil {
				return err
			}
			return done(cmd, "scenario set to %s", strings.ToLower(args[0]))
		}),
	}
}

func newVixCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "vix <value|clear|simulate>",
		Short: "Pin, clear or simulate the volatility score",
		Long: `vix <0-100> pins the volatility score over the scenario.
vix clear hands control back to the scenario.
vix simulate advances the Crypto VIX random walk and pins the result.`,
		Args: cobra.ExactArgs(1),
		RunE: o.withApp(func(cmd *cobra.Command, a *app, args []string) error {
			ctx := cmd.Context()
			switch args[0] {
			case "clear":
				if err := a.demo.ClearVolatilityOverride(ctx); err != nil {
					return err
				}
				return done(cmd, "volatility override cleared")
			case "simulate":
				reading, err := a.demo.SimulateVolatility(ctx)
				if err != nil {
					return err
				}
				return done(cmd, "Crypto VIX %.1f (%s)", reading.Value, reading.Zone)
			}

			v, err := parseFloat("vix", args[0])
			if err != nil {
				return err
			}
			if err := a.demo.SetVolatilityOverride(ctx, v); err != nil {
				return err
			}
			return done(cmd, "volatility pinned at %s", args[0])
		}),
	}
}

func newLossStreakCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "loss-streak <n>",
		Short: "Set today's consecutive losses",
		Args:  cobra.ExactArgs(1),
		RunE: o.withApp(func(cmd *cobra.Command, a *app, args []string) error {
			n, err := parseInt("loss-streak", args[0])
			if err != nil {
				return err
			}
			if err := a.demo.SetLossStreak(cmd.Context(), n); err != nil {
				return err
			}
			return done(cmd, "loss streak set to %d", n)
		}),
	}
}

func newTradesCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "trades <n>",
		Short: "Set today's executed trade count",
		Args:  cobra.ExactArgs(1),
		RunE: o.withApp(func(cmd *cobra.Command, a *app, args []string) error {
			n, err := parseInt("trades", args[0])
			if err != nil {
				return err
			}
			if err := a.demo.SetTradesExecuted(cmd.Context(), n); err != nil {
				return err
			}
			return done(cmd, "trades executed set to %d", n)
		}),
	}
}

func newTradeCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "trade <pnl>",
		Short: "Record a closed trade; a negative P&L extends the loss streak",
		Args:  cobra.ExactArgs(1),
		RunE: o.withApp(func(cmd *cobra.Command, a *app, args []string) error {
			pnl, err := parseFloat("pnl", args[0])
			if err != nil {
				return err
			}
			if err := a.demo.RecordTrade(cmd.Context(), pnl); err != nil {
				return err
			}
			return done(cmd, "trade recorded (%s)", formatMoney(pnl))
		}),
	}
}

func newOverrideCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "override",
		Short: "Use a risk override; the next evaluation logs it",
		Args:  cobra.NoArgs,
		RunE: o.withApp(func(cmd *cobra.Command, a *app, args []string) error {
			if err := a.demo.RecordOverride(cmd.Context()); err != nil {
				return err
			}
			return done(cmd, "override recorded")
		}),
	}
}

func newRecoveryCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:       "recovery <on|off>",
		Short:     "Toggle recovery mode",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"on", "off"},
		RunE: o.withApp(func(cmd *cobra.Command, a *app, args []string) error {
			on, err := parseSwitch("recovery", args[0])
			if err != nil {
				return err
			}
			if err := a.demo.SetRecoveryMode(cmd.Context(), on); err != nil {
				return err
			}
			return done(cmd, "recovery mode %s", args[0])
		}),
	}
}

func newCapitalCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "capital <amount>",
		Short: "Set the account capital",
		Args:  cobra.ExactArgs(1),
		RunE: o.withApp(func(cmd *cobra.Command, a *app, args []string) error {
			v, err := parseFloat("capital", args[0])
			if err != nil {
				return err
			}
			if err := a.demo.SetCapital(cmd.Context(), v); err != nil {
				return err
			}
			return done(cmd, "capital set to %s", formatMoney(v))
		}),
	}
}

func newPnLCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "pnl <amount>",
		Short: "Set today's simulated P&L",
		Args:  cobra.ExactArgs(1),
		RunE: o.withApp(func(cmd *cobra.Command, a *app, args []string) error {
			v, err := parseFloat("pnl", args[0])
			if err != nil {
				return err
			}
			if err := a.demo.SetSimulatedPnL(cmd.Context(), v); err != nil {
				return err
			}
			return done(cmd, "simulated P&L set to %s", formatMoney(v))
		}),
	}
}

func newPersonaCmd(o *rootOptions) *cobra.Command {
	var p riskstate.Persona
	defaults := riskstate.DefaultParams().DefaultPersona

	cmd := &cobra.Command{
		Use:   "persona",
		Short: "Store persona quiz scores",
		Args:  cobra.NoArgs,
		RunE: o.withApp(func(cmd *cobra.Command, a *app, args []string) error {
			if err := a.demo.SetPersona(cmd.Context(), p); err != nil {
				return err
			}
			return done(cmd, "persona stored")
		}),
	}

	cmd.Flags().Float64Var(&p.Discipline, "discipline", defaults.Discipline, "discipline score 0-100")
	cmd.Flags().Float64Var(&p.Emotional, "emotional", defaults.Emotional, "emotional score 0-100")
	cmd.Flags().Float64Var(&p.Consistency, "consistency", defaults.Consistency, "consistency score 0-100")
	return cmd
}

func newGuardrailsCmd(o *rootOptions) *cobra.Command {
	var g riskstate.Guardrails

	cmd := &cobra.Command{
		Use:   "guardrails",
		Short: "Set the optional guardrails",
		Args:  cobra.NoArgs,
		RunE: o.withApp(func(cmd *cobra.Command, a *app, args []string) error {
			if err := a.demo.SetGuardrails(cmd.Context(), g); err != nil {
				return err
			}
			return done(cmd, "guardrails stored (cooldown=%t, warn-high-vix=%t)", g.CooldownAfterLosses, g.WarnOnHighVix)
		}),
	}

	cmd.Flags().BoolVar(&g.CooldownAfterLosses, "cooldown", false, "enforce a cooldown after two consecutive losses")
	cmd.Flags().BoolVar(&g.WarnOnHighVix, "warn-high-vix", false, "warn when volatility is Elevated or Extreme")
	return cmd
}

func newStrategyCmd(o *rootOptions) *cobra.Command {
	var st riskstate.Strategy
	defaults := riskstate.DefaultParams().DefaultRules

	cmd := &cobra.Command{
		Use:   "strategy",
		Short: "Create or replace a strategy and make it the active one",
		Args:  cobra.NoArgs,
		RunE: o.withApp(func(cmd *cobra.Command, a *app, args []string) error {
			if err := a.demo.SetActiveStrategy(cmd.Context(), st); err != nil {
				return err
			}
			return done(cmd, "strategy %s is active", st.ID)
		}),
	}

	f := cmd.Flags()
	f.StringVar(&st.ID, "id", "default", "strategy identifier")
	f.StringVar(&st.Name, "name", "Default", "display name")
	f.IntVar(&st.Rules.MaxDailyTrades, "max-trades", defaults.MaxDailyTrades, "maximum trades per day")
	f.Float64Var(&st.Rules.MaxDailyLossPct, "max-loss-pct", defaults.MaxDailyLossPct, "maximum daily loss, percent of capital")
	f.Float64Var(&st.Rules.RiskPerTradePct, "risk-pct", defaults.RiskPerTradePct, "risk per trade, percent of capital")
	f.Float64Var(&st.Rules.LeverageCap, "leverage", defaults.LeverageCap, "leverage cap")
	return cmd
}

func newResetCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Clear today's counters, risk events and simulated P&L",
		Args:  cobra.NoArgs,
		RunE: o.withApp(func(cmd *cobra.Command, a *app, args []string) error {
			if err := a.demo.ResetDay(cmd.Context()); err != nil {
				return err
			}
			return done(cmd, "today reset")
		}),
	}
}

func parseFloat(field, s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, errors.NewValidationError(field, "must be a number", s)
	}
	return v, nil
}

func parseInt(field, s string) (int, error) {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, errors.NewValidationError(field, "must be a whole number", s)
	}
	return v, nil
}

func parseSwitch(field, s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on", "true", "1":
		return true, nil
	case "off", "false", "0":
		return false, nil
	}
	return false, errors.NewValidationError(field, "must be on or off", s)
}
