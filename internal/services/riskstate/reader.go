package riskstateservice

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"tradecoach/internal/domain/kvstore"
	"tradecoach/internal/domain/riskstate"
	"tradecoach/pkg/errors"
	"tradecoach/pkg/logger"
)

// DateLayout is the ISO date used for daily buckets
const DateLayout = "2006-01-02"

// Reader loads evaluator inputs from the store.
// Every field falls back to its default on its own, so one bad value never hides the others.
type Reader struct {
	store  kvstore.Store
	params riskstate.Params
	loc    *time.Location
	log    *logger.Logger
}

// NewReader creates a reader. A nil location means UTC.
func NewReader(store kvstore.Store, params riskstate.Params, loc *time.Location, log *logger.Logger) *Reader {
	if loc == nil {
		loc = time.UTC
	}
	return &Reader{
		store:  store,
		params: params,
		loc:    loc,
		log:    log.With("component", "riskstate_reader"),
	}
}

// TradingDay returns the ISO date and HH:MM clock of now in the store's time zone
func (r *Reader) TradingDay(now time.Time) (date, clock string) {
	local := now.In(r.loc)
	return local.Format(DateLayout), local.Format("15:04")
}

// Load reads every input key. Missing keys give defaults silently, undecodable
// ones give defaults and a FieldError. Only store I/O failures return an error.
func (r *Reader) Load(ctx context.Context, now time.Time) (riskstate.Inputs, []FieldError, error) {
	in := r.params.DefaultInputs()
	in.Date, in.Clock = r.TradingDay(now)

	raw := make(map[string]json.RawMessage, 13)
	keys := append(kvstore.TrackedKeys(), kvstore.KeyRiskEvents)
	for _, key := range keys {
		v, err := r.store.Get(ctx, key)
		if err != nil {
			if errors.Is(err, errors.ErrNotFound) {
				continue
			}
			return riskstate.Inputs{}, nil, errors.Wrapf(err, "read %s", key)
		}
		raw[key] = v
	}

	f := &fields{}

	r.loadScenario(f, raw[kvstore.KeyScenario], &in)
	r.loadPersona(f, raw[kvstore.KeyPersona], &in)
	r.loadJournal(f, raw[kvstore.KeyJournalStats], &in)
	r.loadCounters(f, raw[kvstore.KeyDailyCounter], &in)
	r.loadRules(f, raw[kvstore.KeyStrategies], &in)
	r.loadGuardrails(f, raw[kvstore.KeyGuardrails], &in)
	r.loadEvents(f, raw[kvstore.KeyRiskEvents], &in)

	in.RecoveryMode = f.boolean(kvstore.KeyRecoveryMode, "", raw[kvstore.KeyRecoveryMode], false)
	in.Capital = f.positive(kvstore.KeyCapital, "", raw[kvstore.KeyCapital], r.params.DefaultCapital)
	in.SimulatedPnLToday = f.number(kvstore.KeySimulatedPnL, "", raw[kvstore.KeySimulatedPnL], 0)
	in.OverrideFlag = f.boolean(kvstore.KeyOverrideUsed, "", raw[kvstore.KeyOverrideUsed], false)

	if v := raw[kvstore.KeyVixOverride]; !isNull(v) {
		if vix, err := decodeNumber(v); err != nil {
			f.fail(kvstore.KeyVixOverride, "", err)
		} else {
			in.VixOverride = &vix
		}
	}

	for _, fe := range f.errs {
		r.log.Debugw("Stored field fell back to default", "key", fe.Key, "field", fe.Field, "error", fe.Err)
	}

	return in, f.errs, nil
}

func (r *Reader) loadScenario(f *fields, raw json.RawMessage, in *riskstate.Inputs) {
	if isNull(raw) {
		return
	}
	s, err := decodeString(raw)
	if err != nil {
		f.fail(kvstore.KeyScenario, "", err)
		return
	}
	in.Scenario = riskstate.Scenario(strings.ToLower(strings.TrimSpace(s)))
}

func (r *Reader) loadPersona(f *fields, raw json.RawMessage, in *riskstate.Inputs) {
	obj, ok := f.object(kvstore.KeyPersona, raw)
	if !ok {
		return
	}
	def := r.params.DefaultPersona
	in.Persona = riskstate.Persona{
		Discipline:  f.number(kvstore.KeyPersona, "discipline", obj["discipline"], def.Discipline),
		Emotional:   f.number(kvstore.KeyPersona, "emotional", obj["emotional"], def.Emotional),
		Consistency: f.number(kvstore.KeyPersona, "consistency", obj["consistency"], def.Consistency),
	}
}

func (r *Reader) loadJournal(f *fields, raw json.RawMessage, in *riskstate.Inputs) {
	obj, ok := f.object(kvstore.KeyJournalStats, raw)
	if !ok {
		return
	}
	def := r.params.DefaultJournal
	in.Journal = riskstate.JournalStats{
		SLMovedRate:     f.number(kvstore.KeyJournalStats, "slMovedRate", obj["slMovedRate"], def.SLMovedRate),
		RiskLeakageRate: f.number(kvstore.KeyJournalStats, "riskLeakageRate", obj["riskLeakageRate"], def.RiskLeakageRate),
	}
}

// loadCounters reads today's bucket; other days are ignored, so counters reset at midnight
func (r *Reader) loadCounters(f *fields, raw json.RawMessage, in *riskstate.Inputs) {
	days, ok := f.object(kvstore.KeyDailyCounter, raw)
	if !ok {
		return
	}
	today, ok := f.object(kvstore.KeyDailyCounter+"."+in.Date, days[in.Date])
	if !ok {
		return
	}
	key := kvstore.KeyDailyCounter
	in.Counters = riskstate.DailyCounters{
		LossStreak:     f.integer(key, "lossStreak", today["lossStreak"], 0),
		TradesExecuted: f.integer(key, "tradesExecuted", today["tradesExecuted"], 0),
		OverridesUsed:  f.integer(key, "overridesUsed", today["overridesUsed"], 0),
	}
}

// loadRules takes the rules of the first active strategy, with per-field defaults
func (r *Reader) loadRules(f *fields, raw json.RawMessage, in *riskstate.Inputs) {
	if isNull(raw) {
		return
	}
	list, err := decodeArray(raw)
	if err != nil {
		f.fail(kvstore.KeyStrategies, "", err)
		return
	}

	for i, item := range list {
		obj, err := decodeObject(item)
		if err != nil {
			f.fail(kvstore.KeyStrategies, "["+strconv.Itoa(i)+"]", err)
			continue
		}
		if !f.boolean(kvstore.KeyStrategies, "active", obj["active"], false) {
			continue
		}

		def := r.params.DefaultRules
		rules, ok := f.object(kvstore.KeyStrategies+".rules", obj["rules"])
		if !ok {
			return
		}
		key := kvstore.KeyStrategies
		in.Rules = riskstate.RuleSet{
			MaxDailyTrades:  f.integer(key, "maxDailyTrades", rules["maxDailyTrades"], def.MaxDailyTrades),
			MaxDailyLossPct: f.number(key, "maxDailyLossPct", rules["maxDailyLossPct"], def.MaxDailyLossPct),
			RiskPerTradePct: f.number(key, "riskPerTradePct", rules["riskPerTradePct"], def.RiskPerTradePct),
			LeverageCap:     f.number(key, "leverageCap", rules["leverageCap"], def.LeverageCap),
		}
		return
	}
}

func (r *Reader) loadGuardrails(f *fields, raw json.RawMessage, in *riskstate.Inputs) {
	obj, ok := f.object(kvstore.KeyGuardrails, raw)
	if !ok {
		return
	}
	def := r.params.DefaultGuardrails
	in.Guardrails = riskstate.Guardrails{
		CooldownAfterLosses: f.boolean(kvstore.KeyGuardrails, "cooldownAfterLosses", obj["cooldownAfterLosses"], def.CooldownAfterLosses),
		WarnOnHighVix:       f.boolean(kvstore.KeyGuardrails, "warnOnHighVix", obj["warnOnHighVix"], def.WarnOnHighVix),
	}
}

// loadEvents reads today's event log. A malformed entry is left out of the inputs; the writer keeps it stored.
func (r *Reader) loadEvents(f *fields, raw json.RawMessage, in *riskstate.Inputs) {
	days, ok := f.object(kvstore.KeyRiskEvents, raw)
	if !ok {
		return
	}
	if isNull(days[in.Date]) {
		return
	}
	list, err := decodeArray(days[in.Date])
	if err != nil {
		f.fail(kvstore.KeyRiskEvents, in.Date, err)
		return
	}

	events := make([]riskstate.RiskEvent, 0, len(list))
	for i, item := range list {
		var e riskstate.RiskEvent
		if err := json.Unmarshal(item, &e); err != nil {
			f.fail(kvstore.KeyRiskEvents, in.Date+"["+strconv.Itoa(i)+"]", errors.Wrap(errors.ErrMalformedValue, err.Error()))
			continue
		}
		events = append(events, e)
	}
	in.EventsToday = events
}
