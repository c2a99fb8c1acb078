package main

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"tradecoach/internal/domain/riskstate"
)

func done(cmd *cobra.Command, format string, args ...interface{}) error {
	_, err := fmt.Fprintf(cmd.OutOrStdout(), "✓ "+format+"\n", args...)
	return err
}

func formatMoney(v float64) string {
	sign := ""
	if v < 0 {
		sign = "-"
	}
	return sign + "$" + humanize.CommafWithDigits(math.Abs(v), 2)
}

func printState(w io.Writer, s *riskstate.RiskState, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintf(tw, "Decision:\t%s\t%s\n", strings.ToUpper(string(s.Decision.Level)), s.Decision.Message)
	for _, r := range s.Decision.Reasons {
		fmt.Fprintf(tw, "\t- %s\n", r)
	}

	m := s.MarketRisk
	fmt.Fprintf(tw, "Market:\tVIX %.0f (%s)\t%s\n", m.VixValue, m.VixZone, m.Message)

	p := s.PersonalRisk
	fmt.Fprintf(tw, "Revenge risk:\t%.0f/100 (%s)\tdiscipline %.0f, emotional %.0f, consistency %.0f\n",
		p.RevengeRiskIndex, p.RevengeRiskLevel, p.DisciplineScore, p.EmotionalScore, p.ConsistencyScore)

	l := s.TodaysLimits
	cooldown := "off"
	if l.CooldownActive {
		cooldown = "ON"
	}
	fmt.Fprintf(tw, "Limits:\ttrades %d/%d, loss streak %d, cooldown %s\trisk %s%%/trade, leverage %sx, max loss %s%%\n",
		l.TradesExecuted, l.MaxTrades, l.LossStreak, cooldown,
		humanize.Ftoa(l.RiskPerTradePct), humanize.Ftoa(l.LeverageCap), humanize.Ftoa(l.MaxDailyLossPct))
	fmt.Fprintf(tw, "Budget:\t%s left\t%d safe trades remaining\n",
		formatMoney(l.DailyBudgetRemaining), l.MaxSafeTradesRemaining)
	if l.RecoveryMode {
		fmt.Fprintf(tw, "\trecovery mode active\t\n")
	}

	if len(s.RiskEventsToday) > 0 {
		fmt.Fprintf(tw, "Events today:\t\t\n")
		for _, e := range s.RiskEventsToday {
			fmt.Fprintf(tw, "\t%s [%s]\t%s\n", e.Time, e.Level, e.Description)
		}
	}

	return tw.Flush()
}
