package riskstate

// ZoneFor maps a volatility score to its zone: Calm <=25, Normal <=50, Elevated <=75, Extreme above.
func ZoneFor(vix float64) VixZone {
	switch {
	case vix <= 25:
		return ZoneCalm
	case vix <= 50:
		return ZoneNormal
	case vix <= 75:
		return ZoneElevated
	default:
		return ZoneExtreme
	}
}

// RevengeLevelFor maps the revenge risk index to its label
func RevengeLevelFor(index float64) RevengeRiskLevel {
	switch {
	case index >= 75:
		return RevengeCritical
	case index >= 50:
		return RevengeHigh
	case index >= 25:
		return RevengeMedium
	default:
		return RevengeLow
	}
}

var zoneMessages = map[VixZone]string{
	ZoneCalm:     "Market is calm. Standard position sizing applies.",
	ZoneNormal:   "Normal volatility. Stick to your plan.",
	ZoneElevated: "Elevated volatility. Consider reducing size and leverage.",
	ZoneExtreme:  "Extreme volatility. New positions are not advised.",
}

var decisionMessages = map[Level]string{
	LevelGreen:  "Clear to trade within your plan.",
	LevelYellow: "Trade with caution. Reduce size and follow your plan strictly.",
	LevelRed:    "Stop trading for today. Risk limits are breached.",
}

// ZoneMessage returns the fixed market message for a zone
func ZoneMessage(z VixZone) string {
	return zoneMessages[z]
}

// DecisionMessage returns the fixed message for a decision level
func DecisionMessage(l Level) string {
	return decisionMessages[l]
}
