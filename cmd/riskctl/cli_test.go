package main

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradecoach/internal/adapters/memstore"
	"tradecoach/internal/domain/kvstore"
	"tradecoach/internal/domain/riskstate"
	"tradecoach/pkg/errors"
	"tradecoach/pkg/logger"
)

// sharedStore keeps one memstore across commands; Close on the app is a no-op for it
type sharedStore struct {
	*memstore.Store
}

func (sharedStore) Close() error { return nil }

func run(t *testing.T, store *memstore.Store, args ...string) (string, error) {
	t.Helper()

	open := func(ctx context.Context) (*app, error) {
		return newApp(sharedStore{store}, time.UTC, logger.NewNop()), nil
	}

	var out bytes.Buffer
	cmd := newRootCmd(open)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestEvalPrintsState(t *testing.T) {
	store := memstore.New()
	defer store.Close()

	out, err := run(t, store, "eval")
	require.NoError(t, err)

	assert.Contains(t, out, "Decision:")
	assert.Contains(t, out, riskstate.NoRiskReason)
	assert.Contains(t, out, "Budget:")
}

func TestEvalJSON(t *testing.T) {
	store := memstore.New()
	defer store.Close()

	_, err := run(t, store, "vix", "90")
	require.NoError(t, err)

	out, err := run(t, store, "--json", "eval")
	require.NoError(t, err)

	var state riskstate.RiskState
	require.NoError(t, json.Unmarshal([]byte(out), &state))
	assert.Equal(t, riskstate.ZoneExtreme, state.MarketRisk.VixZone)
	assert.Equal(t, riskstate.LevelRed, state.Decision.Level)
	require.Len(t, state.RiskEventsToday, 1)
}

func TestInputCommandsWriteStore(t *testing.T) {
	store := memstore.New()
	defer store.Close()
	ctx := context.Background()

	for _, args := range [][]string{
		{"scenario", "Volatile"},
		{"loss-streak", "2"},
		{"recovery", "on"},
		{"capital", "25000"},
		{"pnl", "-150.5"},
		{"persona", "--discipline", "40"},
		{"guardrails", "--cooldown"},
		{"strategy", "--id", "scalp", "--max-trades", "8"},
	} {
		out, err := run(t, store, args...)
		require.NoError(t, err, args)
		assert.Contains(t, out, "✓", args)
	}

	var scenario riskstate.Scenario
	require.NoError(t, kvstore.GetJSON(ctx, store, kvstore.KeyScenario, &scenario))
	assert.Equal(t, riskstate.ScenarioVolatile, scenario)

	var recovery bool
	require.NoError(t, kvstore.GetJSON(ctx, store, kvstore.KeyRecoveryMode, &recovery))
	assert.True(t, recovery)

	var persona riskstate.Persona
	require.NoError(t, kvstore.GetJSON(ctx, store, kvstore.KeyPersona, &persona))
	assert.Equal(t, 40.0, persona.Discipline)
	assert.Equal(t, riskstate.DefaultParams().DefaultPersona.Emotional, persona.Emotional)

	var strategies []riskstate.Strategy
	require.NoError(t, kvstore.GetJSON(ctx, store, kvstore.KeyStrategies, &strategies))
	require.Len(t, strategies, 1)
	assert.True(t, strategies[0].Active)
	assert.Equal(t, 8, strategies[0].Rules.MaxDailyTrades)

	out, err := run(t, store, "--json", "eval")
	require.NoError(t, err)
	var state riskstate.RiskState
	require.NoError(t, json.Unmarshal([]byte(out), &state))
	assert.True(t, state.TodaysLimits.RecoveryMode)
	assert.True(t, state.TodaysLimits.CooldownActive)
}

func TestVixSubcommands(t *testing.T) {
	store := memstore.New()
	defer store.Close()
	ctx := context.Background()

	out, err := run(t, store, "vix", "simulate")
	require.NoError(t, err)
	assert.Contains(t, out, "Crypto VIX")

	_, err = store.Get(ctx, kvstore.KeyVixOverride)
	require.NoError(t, err)

	_, err = run(t, store, "vix", "clear")
	require.NoError(t, err)

	_, err = store.Get(ctx, kvstore.KeyVixOverride)
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestInvalidArguments(t *testing.T) {
	store := memstore.New()
	defer store.Close()

	tests := [][]string{
		{"vix", "loud"},
		{"vix", "140"},
		{"loss-streak", "two"},
		{"recovery", "maybe"},
		{"scenario", "sideways"},
		{"capital", "0"},
	}

	for _, args := range tests {
		_, err := run(t, store, args...)
		assert.ErrorIs(t, err, errors.ErrInvalidInput, args)
	}

	_, err := run(t, store, "trade")
	assert.Error(t, err, "missing argument")
}

func TestTradeAndReset(t *testing.T) {
	store := memstore.New()
	defer store.Close()

	for _, pnl := range []string{"-100", "-50"} {
		_, err := run(t, store, "trade", pnl)
		require.NoError(t, err)
	}
	_, err := run(t, store, "override")
	require.NoError(t, err)

	out, err := run(t, store, "--json", "eval")
	require.NoError(t, err)
	var state riskstate.RiskState
	require.NoError(t, json.Unmarshal([]byte(out), &state))
	assert.Equal(t, 2, state.TodaysLimits.LossStreak)
	assert.Equal(t, 2, state.TodaysLimits.TradesExecuted)

	_, err = run(t, store, "reset")
	require.NoError(t, err)

	out, err = run(t, store, "--json", "eval")
	require.NoError(t, err)
	state = riskstate.RiskState{}
	require.NoError(t, json.Unmarshal([]byte(out), &state))
	assert.Zero(t, state.TodaysLimits.LossStreak)
	assert.Empty(t, state.RiskEventsToday)
}

func TestFormatMoney(t *testing.T) {
	assert.Equal(t, "$1,234.5", formatMoney(1234.5))
	assert.Equal(t, "-$150", formatMoney(-150))
}
