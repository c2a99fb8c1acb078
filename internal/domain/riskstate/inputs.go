package riskstate

// Scenario is the demo scenario tag stored by the demo controls
type Scenario string

const (
	ScenarioCalm     Scenario = "calm"
	ScenarioNormal   Scenario = "normal"
	ScenarioVolatile Scenario = "volatile"
	ScenarioExtreme  Scenario = "extreme"
)

// Scenarios lists the tags the evaluator knows a volatility for
func Scenarios() []Scenario {
	return []Scenario{ScenarioCalm, ScenarioNormal, ScenarioVolatile, ScenarioExtreme}
}

// Persona holds the persona quiz scores
type Persona struct {
	Discipline  float64 `json:"discipline"`
	Emotional   float64 `json:"emotional"`
	Consistency float64 `json:"consistency"`
}

// JournalStats holds behaviour rates derived from the trade journal
type JournalStats struct {
	SLMovedRate     float64 `json:"slMovedRate"`
	RiskLeakageRate float64 `json:"riskLeakageRate"`
}

// DailyCounters are today's activity counters, stored per ISO date
type DailyCounters struct {
	LossStreak     int `json:"lossStreak"`
	TradesExecuted int `json:"tradesExecuted"`
	OverridesUsed  int `json:"overridesUsed"`
}

// RuleSet is the risk rule set of a strategy
type RuleSet struct {
	MaxDailyTrades  int     `json:"maxDailyTrades"`
	MaxDailyLossPct float64 `json:"maxDailyLossPct"`
	RiskPerTradePct float64 `json:"riskPerTradePct"`
	LeverageCap     float64 `json:"leverageCap"`
}

// Strategy is a stored trading strategy. At most one is active.
type Strategy struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Active bool    `json:"active"`
	Rules  RuleSet `json:"rules"`
}

// Guardrails are the optional warning toggles
type Guardrails struct {
	CooldownAfterLosses bool `json:"cooldownAfterLosses"`
	WarnOnHighVix       bool `json:"warnOnHighVix"`
}

// Position is a simulated open position
type Position struct {
	Symbol   string  `json:"symbol"`
	Leverage float64 `json:"leverage"`
}

// Inputs is everything the evaluator reads, already defaulted
type Inputs struct {
	Date  string // ISO date of the trading day, e.g. 2026-10-19
	Clock string // HH:MM stamped on new events

	Scenario    Scenario
	VixOverride *float64

	Persona  Persona
	Journal  JournalStats
	Counters DailyCounters
	Rules    RuleSet

	RecoveryMode      bool
	Guardrails        Guardrails
	Capital           float64
	SimulatedPnLToday float64
	OverrideFlag      bool

	OpenPositions []Position
	EventsToday   []RiskEvent
}
