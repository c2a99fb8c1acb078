package riskstateservice_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradecoach/internal/adapters/memstore"
	"tradecoach/internal/domain/kvstore"
	"tradecoach/internal/domain/riskstate"
	riskstateservice "tradecoach/internal/services/riskstate"
	"tradecoach/pkg/errors"
	"tradecoach/pkg/logger"
)

type scriptedEvaluator struct {
	mu       sync.Mutex
	calls    int
	inFlight int32
	overlap  bool
	err      error
}

func (e *scriptedEvaluator) Evaluate(ctx context.Context) (*riskstate.RiskState, error) {
	if atomic.AddInt32(&e.inFlight, 1) > 1 {
		e.mu.Lock()
		e.overlap = true
		e.mu.Unlock()
	}
	defer atomic.AddInt32(&e.inFlight, -1)
	time.Sleep(time.Millisecond)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	return &riskstate.RiskState{Decision: riskstate.Decision{Level: riskstate.LevelGreen}}, nil
}

func (e *scriptedEvaluator) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

func TestMonitor_StartsLoading(t *testing.T) {
	m := riskstateservice.NewMonitor(&scriptedEvaluator{}, memstore.New(), logger.NewNop())

	snap := m.Snapshot()
	assert.Nil(t, snap.State)
	assert.True(t, snap.IsLoading)
}

func TestMonitor_RefreshPublishesState(t *testing.T) {
	m := riskstateservice.NewMonitor(&scriptedEvaluator{}, memstore.New(), logger.NewNop())

	snap, err := m.Refresh(context.Background())
	require.NoError(t, err)
	require.NotNil(t, snap.State)
	assert.False(t, snap.IsLoading)
	assert.Equal(t, snap, m.Snapshot())
}

func TestMonitor_FailureClearsState(t *testing.T) {
	eval := &scriptedEvaluator{}
	m := riskstateservice.NewMonitor(eval, memstore.New(), logger.NewNop())

	_, err := m.Refresh(context.Background())
	require.NoError(t, err)

	eval.mu.Lock()
	eval.err = errors.ErrEvaluationFailed
	eval.mu.Unlock()

	snap, err := m.Refresh(context.Background())
	assert.ErrorIs(t, err, errors.ErrEvaluationFailed)
	assert.Nil(t, snap.State)
	assert.True(t, snap.IsLoading)
	assert.Nil(t, m.Snapshot().State)
}

func TestMonitor_RunReactsToTrackedKeysOnly(t *testing.T) {
	store := memstore.New()
	eval := &scriptedEvaluator{}
	m := riskstateservice.NewMonitor(eval, store, logger.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	require.Eventually(t, func() bool { return eval.Calls() == 1 }, time.Second, 5*time.Millisecond, "evaluates on start")

	put(t, store, kvstore.KeyRiskState, `{}`)
	put(t, store, kvstore.KeyScenario, `"extreme"`)

	require.Eventually(t, func() bool { return eval.Calls() == 2 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 2, eval.Calls(), "output keys do not trigger evaluation")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("monitor did not stop")
	}
}

func TestMonitor_RunEndToEnd(t *testing.T) {
	store := memstore.New()
	svc := newService(store)
	m := riskstateservice.NewMonitor(svc, store, logger.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = m.Run(ctx) }()

	require.Eventually(t, func() bool {
		s := m.Snapshot()
		return s.State != nil && s.State.Decision.Level == riskstate.LevelGreen
	}, time.Second, 5*time.Millisecond)

	put(t, store, kvstore.KeyVixOverride, `92`)

	require.Eventually(t, func() bool {
		s := m.Snapshot()
		return s.State != nil && s.State.Decision.Level == riskstate.LevelRed
	}, time.Second, 5*time.Millisecond)
}

func TestMonitor_EvaluationsNeverOverlap(t *testing.T) {
	eval := &scriptedEvaluator{}
	m := riskstateservice.NewMonitor(eval, memstore.New(), logger.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = m.Refresh(context.Background())
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, eval.Calls())
	assert.False(t, eval.overlap)
}

func TestMonitor_WatchStartsWithCurrent(t *testing.T) {
	m := riskstateservice.NewMonitor(&scriptedEvaluator{}, memstore.New(), logger.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	updates := m.Watch(ctx)
	first := <-updates
	assert.True(t, first.IsLoading)

	_, err := m.Refresh(context.Background())
	require.NoError(t, err)

	select {
	case snap := <-updates:
		assert.NotNil(t, snap.State)
	case <-time.After(time.Second):
		t.Fatal("no update after refresh")
	}

	cancel()
	for range updates {
	}
}

func TestMonitor_SlowWatcherReceivesLatest(t *testing.T) {
	eval := &countingEvaluator{}
	m := riskstateservice.NewMonitor(eval, memstore.New(), logger.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	updates := m.Watch(ctx)

	// nobody reads while the burst is published
	for i := 0; i < 30; i++ {
		_, err := m.Refresh(context.Background())
		require.NoError(t, err)
	}
	require.Equal(t, 30, m.Snapshot().State.TodaysLimits.TradesExecuted)

	last := 0
	require.Eventually(t, func() bool {
		for {
			select {
			case snap := <-updates:
				if snap.State != nil {
					last = snap.State.TodaysLimits.TradesExecuted
				}
			default:
				return last == 30
			}
		}
	}, time.Second, 5*time.Millisecond)
}

// countingEvaluator numbers each state through TradesExecuted
type countingEvaluator struct {
	n int
}

func (e *countingEvaluator) Evaluate(ctx context.Context) (*riskstate.RiskState, error) {
	e.n++
	return &riskstate.RiskState{TodaysLimits: riskstate.TodaysLimits{TradesExecuted: e.n}}, nil
}

type closingNotifier struct{}

func (closingNotifier) Subscribe(ctx context.Context) (<-chan kvstore.Change, error) {
	ch := make(chan kvstore.Change)
	close(ch)
	return ch, nil
}

func TestMonitor_RunFailsWhenNotifierCloses(t *testing.T) {
	m := riskstateservice.NewMonitor(&scriptedEvaluator{}, closingNotifier{}, logger.NewNop())

	err := m.Run(context.Background())
	assert.ErrorIs(t, err, errors.ErrNotifierClosed)
}
