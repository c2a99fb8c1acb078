package reconnect

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradecoach/pkg/errors"
	"tradecoach/pkg/logger"
)

func newTestManager(cfg Config) *Manager {
	return NewManager(cfg, logger.NewNop())
}

func TestNewManagerDefaults(t *testing.T) {
	m := newTestManager(Config{})

	assert.Equal(t, time.Second, m.minBackoff)
	assert.Equal(t, time.Minute, m.maxBackoff)
	assert.Equal(t, 2.0, m.backoffMultiplier)
	assert.Equal(t, 10, m.maxRetries)
	assert.Equal(t, 30*time.Second, m.stableAfter)
	assert.Equal(t, time.Second, m.GetBackoff())
}

func TestRecordFailureGrowsBackoff(t *testing.T) {
	m := newTestManager(Config{
		MinBackoff: 100 * time.Millisecond,
		MaxBackoff: 350 * time.Millisecond,
		MaxRetries: 4,
	})

	m.RecordFailure()
	assert.Equal(t, 100*time.Millisecond, m.GetBackoff(), "first failure waits the minimum")

	m.RecordFailure()
	assert.Equal(t, 200*time.Millisecond, m.GetBackoff())

	m.RecordFailure()
	assert.Equal(t, 350*time.Millisecond, m.GetBackoff(), "capped at max")
	assert.True(t, m.ShouldRetry())

	m.RecordFailure()
	assert.False(t, m.ShouldRetry())
	assert.True(t, m.Stats().CircuitOpen)
}

func TestRecordSuccessResets(t *testing.T) {
	m := newTestManager(Config{MinBackoff: 10 * time.Millisecond, MaxRetries: 2})
	m.RecordFailure()
	m.RecordFailure()
	require.False(t, m.ShouldRetry())

	m.RecordSuccess()

	stats := m.Stats()
	assert.True(t, m.ShouldRetry())
	assert.Zero(t, stats.ConsecutiveFailures)
	assert.Equal(t, 1, stats.TotalReconnects)
	assert.Equal(t, 10*time.Millisecond, stats.CurrentBackoff)
}

func TestSuperviseRestartsUntilCircuitOpens(t *testing.T) {
	m := newTestManager(Config{
		MinBackoff: time.Millisecond,
		MaxBackoff: 2 * time.Millisecond,
		MaxRetries: 3,
	})

	var runs atomic.Int32
	err := m.Supervise(context.Background(), "subscription", func(ctx context.Context) error {
		runs.Add(1)
		return errors.ErrUnavailable
	})

	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Contains(t, err.Error(), "unavailable")
	assert.Equal(t, int32(3), runs.Load())
}

func TestSuperviseStopsWithContext(t *testing.T) {
	m := newTestManager(Config{MinBackoff: time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())

	var runs atomic.Int32
	err := m.Supervise(ctx, "subscription", func(ctx context.Context) error {
		if runs.Add(1) == 2 {
			cancel()
			<-ctx.Done()
			return nil
		}
		return errors.ErrUnavailable
	})

	assert.NoError(t, err)
	assert.Equal(t, int32(2), runs.Load())
}

func TestSuperviseStableRunResetsFailures(t *testing.T) {
	m := newTestManager(Config{
		MinBackoff:  time.Millisecond,
		MaxRetries:  2,
		StableAfter: 20 * time.Millisecond,
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var runs atomic.Int32
	err := m.Supervise(ctx, "subscription", func(ctx context.Context) error {
		switch runs.Add(1) {
		case 1:
			return errors.ErrUnavailable
		case 2:
			// stays up long enough to count as recovered
			time.Sleep(30 * time.Millisecond)
			return errors.ErrUnavailable
		case 3:
			cancel()
			return nil
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, int32(3), runs.Load())
	assert.Equal(t, 1, m.Stats().TotalReconnects)
}

func TestCalculateJitter(t *testing.T) {
	base := 100 * time.Millisecond

	assert.Equal(t, base, CalculateJitter(base, 0))
	assert.Equal(t, base, CalculateJitter(base, 1.5))

	for i := 0; i < 50; i++ {
		j := CalculateJitter(base, 0.2)
		assert.GreaterOrEqual(t, j, base)
		assert.LessOrEqual(t, j, base+20*time.Millisecond)
	}
}
