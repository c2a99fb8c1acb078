package riskstate

import (
	"fmt"
	"math"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

// NoRiskReason is the floor reason when no rule fired
const NoRiskReason = "No major risk factors detected."

var hundred = decimal.NewFromInt(100)

// Evaluate computes one RiskState from fully defaulted inputs.
// It is pure: the same inputs always produce the same result.
func Evaluate(in Inputs, p Params) Result {
	in = sanitize(in, p)

	// 1. volatility
	vix := ResolveVix(in, p)
	zone := ZoneFor(vix)

	// 2. revenge risk
	revenge := RevengeRiskIndex(in, zone, p.Revenge)

	state := RiskState{
		MarketRisk: MarketRisk{
			VixValue: vix,
			VixZone:  zone,
			Message:  ZoneMessage(zone),
		},
		PersonalRisk: PersonalRisk{
			DisciplineScore:  in.Persona.Discipline,
			EmotionalScore:   in.Persona.Emotional,
			ConsistencyScore: in.Persona.Consistency,
			RevengeRiskIndex: revenge,
			RevengeRiskLevel: RevengeLevelFor(revenge),
			SLMovedRate:      in.Journal.SLMovedRate,
			RiskLeakageRate:  in.Journal.RiskLeakageRate,
		},
		// 3-4. limits and budget
		TodaysLimits: ComputeLimits(in, p),
	}

	// 5-7. decision
	state.Decision = Decide(state, in, p)

	newEvents := DetectEvents(in, state)
	state.RiskEventsToday = MergeEvents(in.EventsToday, newEvents)

	return Result{
		State:            state,
		NewEvents:        newEvents,
		OverrideConsumed: in.OverrideFlag,
	}
}

// ResolveVix picks the explicit override, then the scenario constant, then the default
func ResolveVix(in Inputs, p Params) float64 {
	if in.VixOverride != nil && isFinite(*in.VixOverride) {
		return clamp(*in.VixOverride, 0, 100)
	}
	if v, ok := p.ScenarioVix[in.Scenario]; ok {
		return clamp(v, 0, 100)
	}
	return clamp(p.DefaultVix, 0, 100)
}

// RevengeRiskIndex sums the weighted contributions and clamps the total to [0,100]
func RevengeRiskIndex(in Inputs, zone VixZone, w RevengeWeights) float64 {
	index := 0.0

	streak := in.Counters.LossStreak
	if streak >= 2 {
		index += w.LossStreakTwo
	}
	if streak >= 3 {
		index += w.LossStreakThree
	}

	if in.Counters.OverridesUsed > 0 || in.OverrideFlag {
		index += w.OverrideUsed
	}

	maxTrades := in.Rules.MaxDailyTrades
	if maxTrades > 0 && in.Counters.TradesExecuted >= maxTrades-1 {
		index += w.NearTradeLimit
	}

	switch zone {
	case ZoneElevated:
		index += w.ZoneElevated
	case ZoneExtreme:
		index += w.ZoneExtreme
	}

	return clamp(index, 0, 100)
}

// ComputeLimits derives today's effective limits and the remaining risk budget
func ComputeLimits(in Inputs, p Params) TodaysLimits {
	rules := in.Rules
	maxTrades := rules.MaxDailyTrades
	maxLossPct := rules.MaxDailyLossPct
	riskPct := rules.RiskPerTradePct
	leverage := rules.LeverageCap

	if in.RecoveryMode {
		maxLossPct = math.Min(maxLossPct, p.Recovery.MaxDailyLossPct)
		riskPct = math.Min(riskPct, p.Recovery.RiskPerTradePct)
		maxTrades = min(maxTrades, p.Recovery.MaxTrades)
		leverage = math.Min(leverage, p.Recovery.LeverageCap)
	}

	cooldown := in.RecoveryMode ||
		(in.Guardrails.CooldownAfterLosses && in.Counters.LossStreak >= 2)

	remaining, safeTrades := RiskBudget(in.Capital, maxLossPct, riskPct, in.SimulatedPnLToday)

	return TodaysLimits{
		MaxTrades:              maxTrades,
		TradesExecuted:         in.Counters.TradesExecuted,
		MaxDailyLossPct:        maxLossPct,
		LossStreak:             in.Counters.LossStreak,
		CooldownActive:         cooldown,
		RiskPerTradePct:        riskPct,
		LeverageCap:            leverage,
		RecoveryMode:           in.RecoveryMode,
		DailyBudgetRemaining:   remaining,
		MaxSafeTradesRemaining: safeTrades,
	}
}

// RiskBudget returns the loss budget left today and how many full-risk trades fit in it.
// Both results are never negative, and a zero per-trade risk yields zero trades.
func RiskBudget(capital, maxDailyLossPct, riskPerTradePct, pnlToday float64) (float64, int) {
	c := decimal.NewFromFloat(capital)

	allowed := c.Mul(decimal.NewFromFloat(maxDailyLossPct)).Div(hundred)
	lost := decimal.Min(decimal.Zero, decimal.NewFromFloat(pnlToday)).Abs()
	remaining := decimal.Max(decimal.Zero, allowed.Sub(lost))

	trades := 0
	perTrade := c.Mul(decimal.NewFromFloat(riskPerTradePct)).Div(hundred)
	if perTrade.IsPositive() {
		q := remaining.Div(perTrade).Floor()
		if q.GreaterThan(decimal.NewFromInt(math.MaxInt32)) {
			trades = math.MaxInt32
		} else {
			trades = int(q.IntPart())
		}
	}

	rem, _ := remaining.Float64()
	return rem, trades
}

// Decide walks the ordered rule list. Each rule may only escalate the level.
func Decide(state RiskState, in Inputs, p Params) Decision {
	level := LevelGreen
	reasons := make([]string, 0, 4)

	fire := func(l Level, reason string) {
		level = level.Escalate(l)
		reasons = append(reasons, reason)
	}

	lim := state.TodaysLimits
	market := state.MarketRisk
	personal := state.PersonalRisk

	if lim.RecoveryMode {
		fire(LevelYellow, fmt.Sprintf(
			"Recovery mode active: limits tightened to %d trades, %s%% risk per trade and %sx leverage.",
			lim.MaxTrades, formatNum(lim.RiskPerTradePct), formatNum(lim.LeverageCap)))
	}

	if lim.CooldownActive {
		if in.Guardrails.CooldownAfterLosses && lim.LossStreak >= 2 {
			fire(LevelRed, fmt.Sprintf(
				"Cooldown active after %d consecutive losses. Step away before the next trade.", lim.LossStreak))
		} else {
			fire(LevelRed, "Cooldown active while recovery mode is on.")
		}
	}

	if lim.DailyBudgetRemaining <= 0 {
		allowed := in.Capital * lim.MaxDailyLossPct / 100
		fire(LevelRed, fmt.Sprintf(
			"Daily loss budget exhausted: $%s of $%s allowed loss used.",
			humanize.Commaf(round2(math.Abs(math.Min(0, in.SimulatedPnLToday)))), humanize.Commaf(round2(allowed))))
	}

	if market.VixZone == ZoneExtreme {
		fire(LevelRed, fmt.Sprintf(
			"Extreme volatility (VIX %.0f). Avoid opening new positions.", market.VixValue))
	}

	switch personal.RevengeRiskLevel {
	case RevengeCritical:
		fire(LevelRed, fmt.Sprintf(
			"Critical revenge-trading risk (index %.0f/100). Do not chase losses.", personal.RevengeRiskIndex))
	case RevengeHigh:
		fire(LevelYellow, fmt.Sprintf(
			"High revenge-trading risk (index %.0f/100).", personal.RevengeRiskIndex))
	}

	if personal.DisciplineScore < p.DisciplineThreshold {
		fire(LevelYellow, fmt.Sprintf(
			"Discipline score %.0f is below the %.0f threshold.", personal.DisciplineScore, p.DisciplineThreshold))
	}

	highVol := market.VixZone == ZoneElevated || market.VixZone == ZoneExtreme

	if in.Guardrails.WarnOnHighVix && highVol {
		fire(LevelYellow, fmt.Sprintf(
			"High-VIX guardrail: volatility is %s (VIX %.0f).", market.VixZone, market.VixValue))
	}

	maxLev := maxLeverage(in.OpenPositions)
	if maxLev > lim.LeverageCap {
		fire(LevelRed, fmt.Sprintf(
			"Open position leverage %sx exceeds the %sx cap.", formatNum(maxLev), formatNum(lim.LeverageCap)))
	}
	if maxLev >= p.HighLeverageThreshold && highVol {
		fire(LevelYellow, fmt.Sprintf(
			"High leverage (%sx) during %s volatility.", formatNum(maxLev), market.VixZone))
	}

	if len(reasons) == 0 {
		reasons = append(reasons, NoRiskReason)
	}

	return Decision{
		Level:   level,
		Message: DecisionMessage(level),
		Reasons: reasons,
	}
}

// sanitize replaces non-finite numbers with defaults and negative counters with zero
func sanitize(in Inputs, p Params) Inputs {
	in.Persona.Discipline = clamp(finiteOr(in.Persona.Discipline, p.DefaultPersona.Discipline), 0, 100)
	in.Persona.Emotional = clamp(finiteOr(in.Persona.Emotional, p.DefaultPersona.Emotional), 0, 100)
	in.Persona.Consistency = clamp(finiteOr(in.Persona.Consistency, p.DefaultPersona.Consistency), 0, 100)
	in.Journal.SLMovedRate = finiteOr(in.Journal.SLMovedRate, p.DefaultJournal.SLMovedRate)
	in.Journal.RiskLeakageRate = finiteOr(in.Journal.RiskLeakageRate, p.DefaultJournal.RiskLeakageRate)

	in.Counters.LossStreak = max(0, in.Counters.LossStreak)
	in.Counters.TradesExecuted = max(0, in.Counters.TradesExecuted)
	in.Counters.OverridesUsed = max(0, in.Counters.OverridesUsed)

	in.Rules.MaxDailyTrades = max(0, in.Rules.MaxDailyTrades)
	in.Rules.MaxDailyLossPct = math.Max(0, finiteOr(in.Rules.MaxDailyLossPct, p.DefaultRules.MaxDailyLossPct))
	in.Rules.RiskPerTradePct = math.Max(0, finiteOr(in.Rules.RiskPerTradePct, p.DefaultRules.RiskPerTradePct))
	in.Rules.LeverageCap = math.Max(0, finiteOr(in.Rules.LeverageCap, p.DefaultRules.LeverageCap))

	in.Capital = finiteOr(in.Capital, p.DefaultCapital)
	in.SimulatedPnLToday = finiteOr(in.SimulatedPnLToday, 0)

	if in.EventsToday == nil {
		in.EventsToday = []RiskEvent{}
	}
	return in
}

func maxLeverage(positions []Position) float64 {
	m := 0.0
	for _, pos := range positions {
		if isFinite(pos.Leverage) && pos.Leverage > m {
			m = pos.Leverage
		}
	}
	return m
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func finiteOr(v, def float64) float64 {
	if isFinite(v) {
		return v
	}
	return def
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func formatNum(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
