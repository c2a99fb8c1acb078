package demo

import (
	"context"
	"encoding/json"
	"math"
	"strings"
	"sync"
	"time"

	"tradecoach/internal/domain/cryptovix"
	"tradecoach/internal/domain/kvstore"
	"tradecoach/internal/domain/riskstate"
	"tradecoach/internal/metrics"
	"tradecoach/pkg/errors"
	"tradecoach/pkg/logger"
)

const dateLayout = "2006-01-02"

// Service writes demo and scenario inputs to the store.
// It never evaluates: the store's change notification drives the monitor.
type Service struct {
	store kvstore.Store
	sim   *cryptovix.Simulator
	loc   *time.Location
	now   func() time.Time
	log   *logger.Logger

	// serializes read-modify-write of the counters, event log and strategy list;
	// shared with the evaluator's writer
	mu sync.Locker
}

// Option configures the Service
type Option func(*Service)

// WithLocation sets the time zone of the trading day
func WithLocation(loc *time.Location) Option {
	return func(s *Service) { s.loc = loc }
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithWriteLock shares the lock the evaluator holds while persisting
func WithWriteLock(l sync.Locker) Option {
	return func(s *Service) { s.mu = l }
}

// WithSimulator replaces the default Crypto VIX simulator
func WithSimulator(sim *cryptovix.Simulator) Option {
	return func(s *Service) { s.sim = sim }
}

// NewService creates the demo controls
func NewService(store kvstore.Store, log *logger.Logger, opts ...Option) *Service {
	s := &Service{
		store: store,
		loc:   time.UTC,
		now:   time.Now,
		log:   log.With("component", "demo_controls"),
		mu:    &sync.Mutex{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.sim == nil {
		s.sim = cryptovix.NewSimulator(s.now().UnixNano(), riskstate.DefaultParams().DefaultVix, 8)
	}
	return s
}

// SetScenario stores one of the known scenario tags
func (s *Service) SetScenario(ctx context.Context, tag string) (err error) {
	defer s.record("scenario", &err)

	scenario := riskstate.Scenario(strings.ToLower(strings.TrimSpace(tag)))
	for _, known := range riskstate.Scenarios() {
		if scenario == known {
			return s.set(ctx, kvstore.KeyScenario, scenario)
		}
	}
	return errors.NewValidationError("scenario", "must be one of calm, normal, volatile, extreme", tag)
}

// SetVolatilityOverride pins the volatility score, taking precedence over the scenario
func (s *Service) SetVolatilityOverride(ctx context.Context, vix float64) (err error) {
	defer s.record("vix", &err)

	if !finite(vix) || vix < 0 || vix > 100 {
		return errors.NewValidationError("vix", "must be between 0 and 100", vix)
	}
	return s.set(ctx, kvstore.KeyVixOverride, vix)
}

// ClearVolatilityOverride returns control to the scenario
func (s *Service) ClearVolatilityOverride(ctx context.Context) (err error) {
	defer s.record("vix_clear", &err)
	return s.store.Delete(ctx, kvstore.KeyVixOverride)
}

// SimulateVolatility advances the Crypto VIX walk and stores it as the override
func (s *Service) SimulateVolatility(ctx context.Context) (reading cryptovix.Reading, err error) {
	defer s.record("vix_simulate", &err)

	reading = s.sim.Next()
	if err := s.set(ctx, kvstore.KeyVixOverride, reading.Value); err != nil {
		return cryptovix.Reading{}, err
	}
	return reading, nil
}

// SetLossStreak sets today's consecutive losses
func (s *Service) SetLossStreak(ctx context.Context, n int) (err error) {
	defer s.record("loss_streak", &err)

	if n < 0 {
		return errors.NewValidationError("lossStreak", "must not be negative", n)
	}
	return s.updateCounters(ctx, func(c *riskstate.DailyCounters) { c.LossStreak = n })
}

// SetTradesExecuted sets today's trade count
func (s *Service) SetTradesExecuted(ctx context.Context, n int) (err error) {
	defer s.record("trades", &err)

	if n < 0 {
		return errors.NewValidationError("tradesExecuted", "must not be negative", n)
	}
	return s.updateCounters(ctx, func(c *riskstate.DailyCounters) { c.TradesExecuted = n })
}

// RecordTrade books one closed trade: it counts the trade, extends or resets
// the loss streak and adds pnl to today's simulated P&L
func (s *Service) RecordTrade(ctx context.Context, pnl float64) (err error) {
	defer s.record("trade", &err)

	if !finite(pnl) {
		return errors.NewValidationError("pnl", "must be a finite number", pnl)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var current float64
	if err := kvstore.GetJSON(ctx, s.store, kvstore.KeySimulatedPnL, &current); err != nil && !errors.Is(err, errors.ErrNotFound) {
		if !errors.Is(err, errors.ErrMalformedValue) {
			return err
		}
		current = 0
	}

	if err := s.updateCountersLocked(ctx, func(c *riskstate.DailyCounters) {
		c.TradesExecuted++
		if pnl < 0 {
			c.LossStreak++
		} else {
			c.LossStreak = 0
		}
	}); err != nil {
		return err
	}

	return s.set(ctx, kvstore.KeySimulatedPnL, round2(current+pnl))
}

// RecordOverride counts an override for today and raises the one-shot flag
func (s *Service) RecordOverride(ctx context.Context) (err error) {
	defer s.record("override", &err)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.updateCountersLocked(ctx, func(c *riskstate.DailyCounters) { c.OverridesUsed++ }); err != nil {
		return err
	}
	return s.set(ctx, kvstore.KeyOverrideUsed, true)
}

// SetRecoveryMode toggles recovery mode
func (s *Service) SetRecoveryMode(ctx context.Context, on bool) (err error) {
	defer s.record("recovery", &err)
	return s.set(ctx, kvstore.KeyRecoveryMode, on)
}

// SetGuardrails replaces the guardrail toggles
func (s *Service) SetGuardrails(ctx context.Context, g riskstate.Guardrails) (err error) {
	defer s.record("guardrails", &err)
	return s.set(ctx, kvstore.KeyGuardrails, g)
}

// SetCapital sets the assumed account size
func (s *Service) SetCapital(ctx context.Context, capital float64) (err error) {
	defer s.record("capital", &err)

	if !finite(capital) || capital <= 0 {
		return errors.NewValidationError("capital", "must be a positive number", capital)
	}
	return s.set(ctx, kvstore.KeyCapital, capital)
}

// SetSimulatedPnL sets today's simulated P&L, negative for a loss
func (s *Service) SetSimulatedPnL(ctx context.Context, pnl float64) (err error) {
	defer s.record("pnl", &err)

	if !finite(pnl) {
		return errors.NewValidationError("pnl", "must be a finite number", pnl)
	}
	return s.set(ctx, kvstore.KeySimulatedPnL, pnl)
}

// SetPersona stores the persona quiz scores
func (s *Service) SetPersona(ctx context.Context, p riskstate.Persona) (err error) {
	defer s.record("persona", &err)

	var errs errors.MultiError
	for field, v := range map[string]float64{
		"discipline":  p.Discipline,
		"emotional":   p.Emotional,
		"consistency": p.Consistency,
	} {
		if !finite(v) || v < 0 || v > 100 {
			errs.Add(errors.NewValidationError(field, "must be between 0 and 100", v))
		}
	}
	if errs.HasErrors() {
		return errs.ToError()
	}
	return s.set(ctx, kvstore.KeyPersona, p)
}

// SetActiveStrategy upserts the strategy by ID and makes it the only active one
func (s *Service) SetActiveStrategy(ctx context.Context, st riskstate.Strategy) (err error) {
	defer s.record("strategy", &err)

	if err := validateStrategy(st); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var list []riskstate.Strategy
	if err := kvstore.GetJSON(ctx, s.store, kvstore.KeyStrategies, &list); err != nil {
		switch {
		case errors.Is(err, errors.ErrNotFound):
		case errors.Is(err, errors.ErrMalformedValue):
			s.log.Warnw("Replacing undecodable strategy list", "error", err)
			list = nil
		default:
			return err
		}
	}

	st.Active = true
	replaced := false
	for i := range list {
		if list[i].ID == st.ID {
			list[i] = st
			replaced = true
			continue
		}
		list[i].Active = false
	}
	if !replaced {
		list = append(list, st)
	}

	return s.set(ctx, kvstore.KeyStrategies, list)
}

// ResetDay clears today's counters, event log, simulated P&L and override flag
func (s *Service) ResetDay(ctx context.Context) (err error) {
	defer s.record("reset", &err)

	s.mu.Lock()
	defer s.mu.Unlock()

	date := s.today()
	for _, key := range []string{kvstore.KeyDailyCounter, kvstore.KeyRiskEvents} {
		if err := s.dropDay(ctx, key, date); err != nil {
			return err
		}
	}
	if err := s.store.Delete(ctx, kvstore.KeySimulatedPnL); err != nil {
		return err
	}
	return s.set(ctx, kvstore.KeyOverrideUsed, false)
}

func (s *Service) updateCounters(ctx context.Context, mutate func(c *riskstate.DailyCounters)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateCountersLocked(ctx, mutate)
}

// updateCountersLocked rewrites today's bucket and leaves the other days as stored
func (s *Service) updateCountersLocked(ctx context.Context, mutate func(c *riskstate.DailyCounters)) error {
	date := s.today()

	days, err := s.loadDays(ctx, kvstore.KeyDailyCounter)
	if err != nil {
		return err
	}

	var counters riskstate.DailyCounters
	if raw, ok := days[date]; ok {
		if err := json.Unmarshal(raw, &counters); err != nil {
			s.log.Warnw("Resetting undecodable counters", "date", date, "error", err)
			counters = riskstate.DailyCounters{}
		}
	}

	mutate(&counters)

	encoded, err := json.Marshal(counters)
	if err != nil {
		return errors.Wrap(err, "encode counters")
	}
	days[date] = encoded
	return s.set(ctx, kvstore.KeyDailyCounter, days)
}

func (s *Service) dropDay(ctx context.Context, key, date string) error {
	days, err := s.loadDays(ctx, key)
	if err != nil {
		return err
	}
	if _, ok := days[date]; !ok {
		return nil
	}
	delete(days, date)
	return s.set(ctx, key, days)
}

// loadDays reads a date-keyed map. A missing or undecodable map is treated as empty.
func (s *Service) loadDays(ctx context.Context, key string) (map[string]json.RawMessage, error) {
	days := map[string]json.RawMessage{}
	err := kvstore.GetJSON(ctx, s.store, key, &days)
	switch {
	case err == nil:
		if days == nil {
			days = map[string]json.RawMessage{}
		}
		return days, nil
	case errors.Is(err, errors.ErrNotFound):
		return days, nil
	case errors.Is(err, errors.ErrMalformedValue):
		s.log.Warnw("Replacing undecodable daily map", "key", key, "error", err)
		return map[string]json.RawMessage{}, nil
	default:
		return nil, err
	}
}

func (s *Service) set(ctx context.Context, key string, value interface{}) error {
	if err := kvstore.SetJSON(ctx, s.store, key, value); err != nil {
		return errors.Wrapf(err, "store %s", key)
	}
	s.log.Debugw("Demo input updated", "key", key, "value", value)
	return nil
}

func (s *Service) today() string {
	return s.now().In(s.loc).Format(dateLayout)
}

func (s *Service) record(command string, err *error) {
	metrics.RecordDemoCommand(command, *err)
}

func validateStrategy(st riskstate.Strategy) error {
	var errs errors.MultiError
	if strings.TrimSpace(st.ID) == "" {
		errs.Add(errors.NewValidationError("id", "is required", st.ID))
	}
	r := st.Rules
	if r.MaxDailyTrades < 0 {
		errs.Add(errors.NewValidationError("maxDailyTrades", "must not be negative", r.MaxDailyTrades))
	}
	if !finite(r.MaxDailyLossPct) || r.MaxDailyLossPct < 0 || r.MaxDailyLossPct > 100 {
		errs.Add(errors.NewValidationError("maxDailyLossPct", "must be between 0 and 100", r.MaxDailyLossPct))
	}
	if !finite(r.RiskPerTradePct) || r.RiskPerTradePct < 0 || r.RiskPerTradePct > 100 {
		errs.Add(errors.NewValidationError("riskPerTradePct", "must be between 0 and 100", r.RiskPerTradePct))
	}
	if !finite(r.LeverageCap) || r.LeverageCap < 0 {
		errs.Add(errors.NewValidationError("leverageCap", "must not be negative", r.LeverageCap))
	}
	return errs.ToError()
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
