package riskstate

import (
	"fmt"
	"strconv"

	"github.com/google/uuid"
)

var eventNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("tradecoach/risk-events"))

// DetectEvents returns the risk events this evaluation adds to today's log.
// Zone entries and cooldowns are logged once per day per description.
// An override is logged every time the one-shot override flag is set.
func DetectEvents(in Inputs, state RiskState) []RiskEvent {
	var detected []RiskEvent

	logged := func(kind EventKind, description string) bool {
		e := RiskEvent{Kind: kind, Description: description}
		return Logged(in.EventsToday, e) || Logged(detected, e)
	}

	add := func(kind EventKind, level Level, description, salt string) {
		detected = append(detected, RiskEvent{
			ID:          eventID(in.Date, kind, description, salt),
			Kind:        kind,
			Time:        in.Clock,
			Description: description,
			Level:       level,
		})
	}

	zone := state.MarketRisk.VixZone
	if zone == ZoneElevated || zone == ZoneExtreme {
		level := LevelYellow
		if zone == ZoneExtreme {
			level = LevelRed
		}
		desc := fmt.Sprintf("Volatility entered %s zone", zone)
		if !logged(EventVolatilityZoneEntry, desc) {
			add(EventVolatilityZoneEntry, level, desc, "")
		}
	}

	lim := state.TodaysLimits
	if lim.CooldownActive && lim.LossStreak >= 2 {
		desc := fmt.Sprintf("Cooldown after %d consecutive losses", lim.LossStreak)
		if !logged(EventLossStreakCooldown, desc) {
			add(EventLossStreakCooldown, LevelRed, desc, "")
		}
	}

	if in.OverrideFlag {
		salt := strconv.Itoa(in.Counters.OverridesUsed) + "@" + in.Clock + "#" + strconv.Itoa(len(in.EventsToday))
		add(EventOverrideUsed, LevelYellow, "Risk override used", salt)
	}

	return detected
}

// MergeEvents appends detected events after the existing ones, preserving order.
// An event that is already logged is skipped.
func MergeEvents(existing, detected []RiskEvent) []RiskEvent {
	merged := make([]RiskEvent, 0, len(existing)+len(detected))
	merged = append(merged, existing...)
	for _, e := range detected {
		if !Logged(merged, e) {
			merged = append(merged, e)
		}
	}
	return merged
}

// Logged reports whether e is in list: same ID, or for once-per-day kinds the same description
func Logged(list []RiskEvent, e RiskEvent) bool {
	for _, x := range list {
		if e.ID != uuid.Nil && x.ID == e.ID {
			return true
		}
		if e.Kind != EventOverrideUsed && x.Kind == e.Kind && x.Description == e.Description {
			return true
		}
	}
	return false
}

func eventID(date string, kind EventKind, description, salt string) uuid.UUID {
	return uuid.NewSHA1(eventNamespace, []byte(date+"|"+string(kind)+"|"+description+"|"+salt))
}
