package riskstateservice

import (
	"context"
	"sync"
	"time"

	"tradecoach/internal/domain/kvstore"
	"tradecoach/internal/domain/riskstate"
	"tradecoach/internal/events"
	"tradecoach/internal/metrics"
	"tradecoach/pkg/errors"
	"tradecoach/pkg/logger"
)

// Evaluator produces a fresh risk state
type Evaluator interface {
	Evaluate(ctx context.Context) (*riskstate.RiskState, error)
}

// Snapshot is what consumers see: the current state, or nil while it is unavailable
type Snapshot struct {
	State     *riskstate.RiskState `json:"riskState"`
	IsLoading bool                 `json:"isLoading"`
}

// Monitor keeps the latest snapshot current by re-evaluating on every tracked store change.
// Evaluations never overlap; the last one to finish wins.
type Monitor struct {
	evaluator Evaluator
	notifier  kvstore.Notifier
	interval  time.Duration
	log       *logger.Logger

	evalMu sync.Mutex

	mu      sync.RWMutex
	current Snapshot

	updates *events.Broadcaster[Snapshot]
}

// MonitorOption configures a Monitor
type MonitorOption func(*Monitor)

// WithRefreshInterval re-evaluates periodically so daily counters roll over at midnight without a store write
func WithRefreshInterval(d time.Duration) MonitorOption {
	return func(m *Monitor) { m.interval = d }
}

// NewMonitor creates a monitor. Until the first evaluation the snapshot is loading.
func NewMonitor(evaluator Evaluator, notifier kvstore.Notifier, log *logger.Logger, opts ...MonitorOption) *Monitor {
	m := &Monitor{
		evaluator: evaluator,
		notifier:  notifier,
		log:       log.With("component", "riskstate_monitor"),
		current:   Snapshot{IsLoading: true},
		updates:   events.NewBroadcaster[Snapshot](8),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Snapshot returns the latest published snapshot
func (m *Monitor) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Refresh evaluates synchronously and publishes the result.
// On failure the published state becomes nil and stays loading until a run succeeds.
func (m *Monitor) Refresh(ctx context.Context) (Snapshot, error) {
	m.evalMu.Lock()
	defer m.evalMu.Unlock()

	m.setLoading()

	state, err := m.evaluator.Evaluate(ctx)

	snap := Snapshot{State: state, IsLoading: false}
	if err != nil {
		snap = Snapshot{State: nil, IsLoading: true}
	}

	m.mu.Lock()
	m.current = snap
	m.mu.Unlock()

	m.updates.Publish(snap)
	return snap, err
}

// setLoading flags an evaluation in flight and keeps the previous state visible
func (m *Monitor) setLoading() {
	m.mu.Lock()
	m.current.IsLoading = true
	m.mu.Unlock()
}

// Run evaluates once, then on every tracked change until ctx is done
func (m *Monitor) Run(ctx context.Context) error {
	// subscribe before the first evaluation so no change slips between them
	changes, err := m.notifier.Subscribe(ctx)
	if err != nil {
		return errors.Wrap(err, "subscribe to store changes")
	}

	m.log.Infow("Risk state monitor started", "refresh_interval", m.interval)
	m.refreshLogged(ctx, "start")

	var tick <-chan time.Time
	if m.interval > 0 {
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			m.log.Info("Risk state monitor stopped")
			return nil

		case <-tick:
			m.refreshLogged(ctx, "interval")

		case change, ok := <-changes:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return errors.ErrNotifierClosed
			}

			tracked := kvstore.IsTracked(change.Key)
			metrics.RecordStoreChange(change.Source, tracked)
			if !tracked {
				continue
			}
			m.refreshLogged(ctx, change.Key)
		}
	}
}

func (m *Monitor) refreshLogged(ctx context.Context, trigger string) {
	if _, err := m.Refresh(ctx); err != nil {
		// the service already logged and reported the failure
		m.log.Debugw("Refresh failed", "trigger", trigger, "error", err)
	}
}

// Watch streams snapshots, starting with the current one. The channel closes when ctx is done.
// A slow reader skips intermediate snapshots but always receives the latest.
func (m *Monitor) Watch(ctx context.Context) <-chan Snapshot {
	src := m.updates.Subscribe(ctx)

	// one-slot mailbox; only the forwarder sends, so replacing never blocks
	out := make(chan Snapshot, 1)
	out <- m.Snapshot()

	go func() {
		defer close(out)
		for snap := range src {
			select {
			case out <- snap:
				continue
			default:
			}
			select {
			case <-out:
			default:
			}
			out <- snap
		}
	}()

	return out
}

// Close ends all watches
func (m *Monitor) Close() {
	m.updates.Close()
}
