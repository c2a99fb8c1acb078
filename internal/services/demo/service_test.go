package demo_test

import (
	"context"
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradecoach/internal/adapters/memstore"
	"tradecoach/internal/domain/cryptovix"
	"tradecoach/internal/domain/kvstore"
	"tradecoach/internal/domain/riskstate"
	"tradecoach/internal/services/demo"
	"tradecoach/pkg/errors"
	"tradecoach/pkg/logger"
)

var morning = time.Date(2026, 10, 19, 9, 30, 0, 0, time.UTC)

func newDemo(store kvstore.Store) *demo.Service {
	return demo.NewService(store, logger.NewNop(),
		demo.WithClock(func() time.Time { return morning }),
		demo.WithSimulator(cryptovix.NewSimulator(1, 45, 8)),
	)
}

func todayCounters(t *testing.T, s kvstore.Store) riskstate.DailyCounters {
	t.Helper()
	var days map[string]riskstate.DailyCounters
	require.NoError(t, kvstore.GetJSON(context.Background(), s, kvstore.KeyDailyCounter, &days))
	return days["2026-10-19"]
}

func TestSetScenario(t *testing.T) {
	s := memstore.New()
	d := newDemo(s)
	ctx := context.Background()

	require.NoError(t, d.SetScenario(ctx, " Extreme "))

	var got string
	require.NoError(t, kvstore.GetJSON(ctx, s, kvstore.KeyScenario, &got))
	assert.Equal(t, "extreme", got)

	err := d.SetScenario(ctx, "apocalyptic")
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
}

func TestVolatilityOverride(t *testing.T) {
	s := memstore.New()
	d := newDemo(s)
	ctx := context.Background()

	for _, bad := range []float64{-1, 100.5, math.NaN(), math.Inf(1)} {
		assert.ErrorIs(t, d.SetVolatilityOverride(ctx, bad), errors.ErrInvalidInput, "value %v", bad)
	}

	require.NoError(t, d.SetVolatilityOverride(ctx, 77))
	var vix float64
	require.NoError(t, kvstore.GetJSON(ctx, s, kvstore.KeyVixOverride, &vix))
	assert.Equal(t, 77.0, vix)

	require.NoError(t, d.ClearVolatilityOverride(ctx))
	_, err := s.Get(ctx, kvstore.KeyVixOverride)
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestSimulateVolatilityWritesOverride(t *testing.T) {
	s := memstore.New()
	d := newDemo(s)
	ctx := context.Background()

	reading, err := d.SimulateVolatility(ctx)
	require.NoError(t, err)
	assert.Equal(t, cryptovix.ZoneFor(reading.Value), reading.Zone)

	var vix float64
	require.NoError(t, kvstore.GetJSON(ctx, s, kvstore.KeyVixOverride, &vix))
	assert.Equal(t, reading.Value, vix)
}

func TestCountersKeepOtherDays(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, kvstore.KeyDailyCounter, []byte(`{"2026-10-18": {"lossStreak": 4}}`)))

	d := newDemo(s)
	require.NoError(t, d.SetLossStreak(ctx, 2))
	require.NoError(t, d.SetTradesExecuted(ctx, 3))
	require.NoError(t, d.RecordOverride(ctx))

	assert.Equal(t, riskstate.DailyCounters{LossStreak: 2, TradesExecuted: 3, OverridesUsed: 1}, todayCounters(t, s))

	var days map[string]json.RawMessage
	require.NoError(t, kvstore.GetJSON(ctx, s, kvstore.KeyDailyCounter, &days))
	assert.JSONEq(t, `{"lossStreak": 4}`, string(days["2026-10-18"]))

	var flag bool
	require.NoError(t, kvstore.GetJSON(ctx, s, kvstore.KeyOverrideUsed, &flag))
	assert.True(t, flag)

	assert.ErrorIs(t, d.SetLossStreak(ctx, -1), errors.ErrInvalidInput)
}

func TestRecordTrade(t *testing.T) {
	s := memstore.New()
	d := newDemo(s)
	ctx := context.Background()

	require.NoError(t, d.RecordTrade(ctx, -120.5))
	require.NoError(t, d.RecordTrade(ctx, -80))
	assert.Equal(t, riskstate.DailyCounters{LossStreak: 2, TradesExecuted: 2}, todayCounters(t, s))

	require.NoError(t, d.RecordTrade(ctx, 50))
	assert.Equal(t, riskstate.DailyCounters{LossStreak: 0, TradesExecuted: 3}, todayCounters(t, s))

	var pnl float64
	require.NoError(t, kvstore.GetJSON(ctx, s, kvstore.KeySimulatedPnL, &pnl))
	assert.Equal(t, -150.5, pnl)
}

func TestSetPersonaValidatesEveryScore(t *testing.T) {
	d := newDemo(memstore.New())

	err := d.SetPersona(context.Background(), riskstate.Persona{Discipline: 120, Emotional: -5, Consistency: 50})
	require.Error(t, err)

	var multi *errors.MultiError
	require.ErrorAs(t, err, &multi)
	assert.Len(t, multi.Errors, 2)
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
}

func TestSetActiveStrategyKeepsOneActive(t *testing.T) {
	s := memstore.New()
	d := newDemo(s)
	ctx := context.Background()

	rules := riskstate.RuleSet{MaxDailyTrades: 3, MaxDailyLossPct: 2, RiskPerTradePct: 0.5, LeverageCap: 5}
	require.NoError(t, d.SetActiveStrategy(ctx, riskstate.Strategy{ID: "scalp", Name: "Scalp", Rules: rules}))
	require.NoError(t, d.SetActiveStrategy(ctx, riskstate.Strategy{ID: "swing", Name: "Swing", Rules: rules}))

	rules.MaxDailyTrades = 6
	require.NoError(t, d.SetActiveStrategy(ctx, riskstate.Strategy{ID: "scalp", Name: "Scalp", Rules: rules}))

	var list []riskstate.Strategy
	require.NoError(t, kvstore.GetJSON(ctx, s, kvstore.KeyStrategies, &list))
	require.Len(t, list, 2)

	assert.Equal(t, "scalp", list[0].ID)
	assert.True(t, list[0].Active)
	assert.Equal(t, 6, list[0].Rules.MaxDailyTrades)
	assert.False(t, list[1].Active)

	err := d.SetActiveStrategy(ctx, riskstate.Strategy{Rules: riskstate.RuleSet{MaxDailyLossPct: 200}})
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
}

func TestSetCapitalAndPnL(t *testing.T) {
	d := newDemo(memstore.New())
	ctx := context.Background()

	assert.ErrorIs(t, d.SetCapital(ctx, 0), errors.ErrInvalidInput)
	assert.NoError(t, d.SetCapital(ctx, 5000))
	assert.ErrorIs(t, d.SetSimulatedPnL(ctx, math.NaN()), errors.ErrInvalidInput)
	assert.NoError(t, d.SetSimulatedPnL(ctx, -300))
}

func TestResetDay(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, kvstore.KeyRiskEvents, []byte(`{"2026-10-18": [], "2026-10-19": [{"kind": "override_used"}]}`)))

	d := newDemo(s)
	require.NoError(t, d.SetLossStreak(ctx, 3))
	require.NoError(t, d.SetSimulatedPnL(ctx, -200))
	require.NoError(t, d.RecordOverride(ctx))

	require.NoError(t, d.ResetDay(ctx))

	assert.Equal(t, riskstate.DailyCounters{}, todayCounters(t, s))

	var events map[string]json.RawMessage
	require.NoError(t, kvstore.GetJSON(ctx, s, kvstore.KeyRiskEvents, &events))
	assert.Contains(t, events, "2026-10-18")
	assert.NotContains(t, events, "2026-10-19")

	_, err := s.Get(ctx, kvstore.KeySimulatedPnL)
	assert.ErrorIs(t, err, errors.ErrNotFound)

	var flag bool
	require.NoError(t, kvstore.GetJSON(ctx, s, kvstore.KeyOverrideUsed, &flag))
	assert.False(t, flag)
}

func TestWritesNotifySubscribers(t *testing.T) {
	s := memstore.New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes, err := s.Subscribe(ctx)
	require.NoError(t, err)

	require.NoError(t, newDemo(s).SetRecoveryMode(ctx, true))

	select {
	case c := <-changes:
		assert.Equal(t, kvstore.KeyRecoveryMode, c.Key)
	case <-time.After(time.Second):
		t.Fatal("no notification")
	}
}
