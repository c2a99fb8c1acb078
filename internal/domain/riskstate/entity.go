package riskstate

import (
	"github.com/google/uuid"
)

// VixZone is the 4-zone label of the 0-100 volatility score
type VixZone string

const (
	ZoneCalm     VixZone = "Calm"
	ZoneNormal   VixZone = "Normal"
	ZoneElevated VixZone = "Elevated"
	ZoneExtreme  VixZone = "Extreme"
)

// String returns string representation
func (z VixZone) String() string {
	return string(z)
}

// RevengeRiskLevel labels the revenge risk index
type RevengeRiskLevel string

const (
	RevengeLow      RevengeRiskLevel = "Low"
	RevengeMedium   RevengeRiskLevel = "Medium"
	RevengeHigh     RevengeRiskLevel = "High"
	RevengeCritical RevengeRiskLevel = "Critical"
)

// String returns string representation
func (r RevengeRiskLevel) String() string {
	return string(r)
}

// Level is the traffic-light trading permission
type Level string

const (
	LevelGreen  Level = "green"
	LevelYellow Level = "yellow"
	LevelRed    Level = "red"
)

func (l Level) severity() int {
	switch l {
	case LevelYellow:
		return 1
	case LevelRed:
		return 2
	}
	return 0
}

// Escalate returns the more severe of l and to. It never downgrades.
func (l Level) Escalate(to Level) Level {
	if to.severity() > l.severity() {
		return to
	}
	return l
}

// String returns string representation
func (l Level) String() string {
	return string(l)
}

// MarketRisk describes current market volatility
type MarketRisk struct {
	VixValue float64 `json:"vixValue"`
	VixZone  VixZone `json:"vixZone"`
	Message  string  `json:"message"`
}

// PersonalRisk describes the trader's behavioural risk profile
type PersonalRisk struct {
	DisciplineScore  float64          `json:"disciplineScore"`
	EmotionalScore   float64          `json:"emotionalScore"`
	ConsistencyScore float64          `json:"consistencyScore"`
	RevengeRiskIndex float64          `json:"revengeRiskIndex"`
	RevengeRiskLevel RevengeRiskLevel `json:"revengeRiskLevel"`
	SLMovedRate      float64          `json:"slMovedRate"`
	RiskLeakageRate  float64          `json:"riskLeakageRate"`
}

// TodaysLimits holds the effective limits for the current trading day
type TodaysLimits struct {
	MaxTrades              int     `json:"maxTrades"`
	TradesExecuted         int     `json:"tradesExecuted"`
	MaxDailyLossPct        float64 `json:"maxDailyLossPct"`
	LossStreak             int     `json:"lossStreak"`
	CooldownActive         bool    `json:"cooldownActive"`
	RiskPerTradePct        float64 `json:"riskPerTradePct"`
	LeverageCap            float64 `json:"leverageCap"`
	RecoveryMode           bool    `json:"recoveryMode"`
	DailyBudgetRemaining   float64 `json:"dailyBudgetRemaining"`
	MaxSafeTradesRemaining int     `json:"maxSafeTradesRemaining"`
}

// Decision is the single trading recommendation with its ranked reasons
type Decision struct {
	Level   Level    `json:"level"`
	Message string   `json:"message"`
	Reasons []string `json:"reasons"`
}

// EventKind classifies risk events
type EventKind string

const (
	EventVolatilityZoneEntry EventKind = "volatility_zone_entry"
	EventLossStreakCooldown  EventKind = "loss_streak_cooldown"
	EventOverrideUsed        EventKind = "override_used"
)

// RiskEvent is one entry of the day's append-only risk log
type RiskEvent struct {
	ID          uuid.UUID `json:"id"`
	Kind        EventKind `json:"kind"`
	Time        string    `json:"time"` // HH:MM local to the store's trading day
	Description string    `json:"description"`
	Level       Level     `json:"level"`
}

// RiskState is one evaluation snapshot. It is replaced, never mutated.
type RiskState struct {
	MarketRisk      MarketRisk   `json:"marketRisk"`
	PersonalRisk    PersonalRisk `json:"personalRisk"`
	TodaysLimits    TodaysLimits `json:"todaysLimits"`
	Decision        Decision     `json:"decision"`
	RiskEventsToday []RiskEvent  `json:"riskEventsToday"`
}

// Result is the output of Evaluate
type Result struct {
	State RiskState
	// NewEvents were detected in this pass and are already part of State.RiskEventsToday
	NewEvents []RiskEvent
	// OverrideConsumed tells the caller to clear the stored override-used flag
	OverrideConsumed bool
}
