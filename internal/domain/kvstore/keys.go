package kvstore

// Well-known keys. Values are JSON.
const (
	KeyScenario     = "demo_scenario"       // string
	KeyPersona      = "persona_scores"      // {discipline, emotional, consistency}
	KeyDailyCounter = "daily_counters"      // {"2026-10-19": {lossStreak, tradesExecuted, overridesUsed}}
	KeyStrategies   = "strategies"          // [{id, name, active, rules}]
	KeyRecoveryMode = "recovery_mode"       // bool
	KeyGuardrails   = "guardrails"          // {cooldownAfterLosses, warnOnHighVix}
	KeyCapital      = "assumed_capital"     // number
	KeyVixOverride  = "vix_override"        // number
	KeySimulatedPnL = "simulated_pnl_today" // number
	KeyOverrideUsed = "override_used"       // bool, one-shot
	KeyJournalStats = "journal_stats"       // {slMovedRate, riskLeakageRate}

	KeyRiskState  = "risk_state"  // last snapshot
	KeyRiskEvents = "risk_events" // {"2026-10-19": [event...]}

	// KeyAll is emitted by notifiers that lost track of what changed
	KeyAll = "*"
)

var trackedKeys = []string{
	KeyScenario,
	KeyPersona,
	KeyDailyCounter,
	KeyStrategies,
	KeyRecoveryMode,
	KeyGuardrails,
	KeyCapital,
	KeyVixOverride,
	KeySimulatedPnL,
	KeyOverrideUsed,
	KeyJournalStats,
}

// TrackedKeys returns the input keys whose changes require re-evaluation
func TrackedKeys() []string {
	out := make([]string, len(trackedKeys))
	copy(out, trackedKeys)
	return out
}

// IsTracked reports whether a change to key should trigger re-evaluation.
// Output keys are excluded so the evaluator's own writes do not loop.
func IsTracked(key string) bool {
	if key == KeyAll {
		return true
	}
	for _, k := range trackedKeys {
		if k == key {
			return true
		}
	}
	return false
}
