package riskstate

// Params is the single table of defaults and thresholds used by the evaluator.
// Every constant the algorithm depends on lives here.
type Params struct {
	DefaultVix  float64
	ScenarioVix map[Scenario]float64

	DefaultPersona    Persona
	DefaultJournal    JournalStats
	DefaultRules      RuleSet
	DefaultGuardrails Guardrails
	DefaultCapital    float64

	Recovery RecoveryLimits
	Revenge  RevengeWeights

	// Fixed mock list, not user-editable
	OpenPositions []Position

	DisciplineThreshold   float64
	HighLeverageThreshold float64
}

// RecoveryLimits are the safety ceilings applied in recovery mode
type RecoveryLimits struct {
	MaxDailyLossPct float64
	RiskPerTradePct float64
	MaxTrades       int
	LeverageCap     float64
}

// RevengeWeights are the additive contributions to the revenge risk index
type RevengeWeights struct {
	LossStreakTwo   float64 // loss streak >= 2
	LossStreakThree float64 // additional, loss streak >= 3
	OverrideUsed    float64
	NearTradeLimit  float64 // trades executed at or one below the max
	ZoneElevated    float64
	ZoneExtreme     float64
}

// DefaultParams returns the production defaults
func DefaultParams() Params {
	return Params{
		DefaultVix: 45,
		ScenarioVix: map[Scenario]float64{
			ScenarioCalm:     18,
			ScenarioNormal:   45,
			ScenarioVolatile: 68,
			ScenarioExtreme:  88,
		},
		DefaultPersona: Persona{
			Discipline:  65,
			Emotional:   60,
			Consistency: 70,
		},
		DefaultJournal: JournalStats{},
		DefaultRules: RuleSet{
			MaxDailyTrades:  5,
			MaxDailyLossPct: 3,
			RiskPerTradePct: 1,
			LeverageCap:     10,
		},
		DefaultGuardrails: Guardrails{
			CooldownAfterLosses: true,
			WarnOnHighVix:       false,
		},
		DefaultCapital: 10000,
		Recovery: RecoveryLimits{
			MaxDailyLossPct: 2,
			RiskPerTradePct: 0.5,
			MaxTrades:       2,
			LeverageCap:     5,
		},
		Revenge: RevengeWeights{
			LossStreakTwo:   30,
			LossStreakThree: 20,
			OverrideUsed:    25,
			NearTradeLimit:  15,
			ZoneElevated:    10,
			ZoneExtreme:     25,
		},
		OpenPositions: []Position{
			{Symbol: "BTCUSDT", Leverage: 10},
			{Symbol: "ETHUSDT", Leverage: 5},
		},
		DisciplineThreshold:   50,
		HighLeverageThreshold: 15,
	}
}

// DefaultInputs returns inputs as they are when the store is empty
func (p Params) DefaultInputs() Inputs {
	positions := make([]Position, len(p.OpenPositions))
	copy(positions, p.OpenPositions)

	return Inputs{
		Persona:       p.DefaultPersona,
		Journal:       p.DefaultJournal,
		Rules:         p.DefaultRules,
		Guardrails:    p.DefaultGuardrails,
		Capital:       p.DefaultCapital,
		OpenPositions: positions,
		EventsToday:   []RiskEvent{},
	}
}
