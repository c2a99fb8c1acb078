package reconnect

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"tradecoach/pkg/errors"
	"tradecoach/pkg/logger"
)

// ErrCircuitOpen is returned once too many consecutive attempts have failed
var ErrCircuitOpen = errors.New("circuit breaker is open")

// Manager retries a long-running connection with exponential backoff and a circuit breaker.
// It is used for store subscriptions, which end whenever the underlying connection drops.
type Manager struct {
	minBackoff        time.Duration
	maxBackoff        time.Duration
	backoffMultiplier float64
	jitter            float64
	maxRetries        int
	stableAfter       time.Duration

	mu                  sync.RWMutex
	currentBackoff      time.Duration
	consecutiveFailures int
	totalReconnects     int
	circuitOpen         bool

	logger *logger.Logger
}

// Config configures the reconnect manager
type Config struct {
	MinBackoff        time.Duration // Initial backoff (e.g. 1s)
	MaxBackoff        time.Duration // Max backoff (e.g. 1min)
	BackoffMultiplier float64       // Multiplier for exponential backoff (e.g. 2.0)
	Jitter            float64       // Fraction of the backoff added at random, 0-1
	MaxRetries        int           // Consecutive failures before the circuit opens (0 = default)
	// StableAfter is how long a connection must stay up to count as recovered
	StableAfter time.Duration
}

// NewManager creates a new reconnect manager with sensible defaults
func NewManager(config Config, log *logger.Logger) *Manager {
	if config.MinBackoff == 0 {
		config.MinBackoff = 1 * time.Second
	}
	if config.MaxBackoff == 0 {
		config.MaxBackoff = 1 * time.Minute
	}
	if config.BackoffMultiplier == 0 {
		config.BackoffMultiplier = 2.0
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = 10
	}
	if config.StableAfter == 0 {
		config.StableAfter = 30 * time.Second
	}

	return &Manager{
		minBackoff:        config.MinBackoff,
		maxBackoff:        config.MaxBackoff,
		backoffMultiplier: config.BackoffMultiplier,
		jitter:            config.Jitter,
		maxRetries:        config.MaxRetries,
		stableAfter:       config.StableAfter,
		currentBackoff:    config.MinBackoff,
		logger:            log,
	}
}

// Supervise runs fn until ctx is done. Whenever fn returns early it is restarted after a backoff.
// A run that lasted StableAfter resets the backoff. Returns nil when ctx ends,
// or an error wrapping ErrCircuitOpen once MaxRetries consecutive runs failed.
func (m *Manager) Supervise(ctx context.Context, name string, fn func(context.Context) error) error {
	log := m.logger.With("supervised", name)

	for {
		start := time.Now()
		err := fn(ctx)
		if ctx.Err() != nil {
			return nil
		}

		if time.Since(start) >= m.stableAfter {
			m.RecordSuccess()
		}
		m.RecordFailure()

		if !m.ShouldRetry() {
			return errors.Wrapf(ErrCircuitOpen, "%s failed %d times in a row, last error: %v",
				name, m.Stats().ConsecutiveFailures, err)
		}

		backoff := CalculateJitter(m.GetBackoff(), m.jitter)
		log.Warnw("Connection ended, restarting",
			"error", err,
			"backoff", backoff,
			"consecutive_failures", m.Stats().ConsecutiveFailures,
		)

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return nil
		}
	}
}

// ShouldRetry returns whether another attempt is allowed
func (m *Manager) ShouldRetry() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return !m.circuitOpen
}

// GetBackoff returns the wait before the next attempt
func (m *Manager) GetBackoff() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.currentBackoff
}

// RecordFailure counts a failed attempt and grows the backoff
func (m *Manager) RecordFailure() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.consecutiveFailures++
	if m.consecutiveFailures > 1 {
		next := time.Duration(float64(m.currentBackoff) * m.backoffMultiplier)
		m.currentBackoff = min(next, m.maxBackoff)
	}

	if m.consecutiveFailures >= m.maxRetries && !m.circuitOpen {
		m.circuitOpen = true
		m.logger.Errorw("🔴 Circuit breaker OPENED - too many consecutive failures",
			"consecutive_failures", m.consecutiveFailures,
			"max_retries", m.maxRetries,
		)
	}
}

// RecordSuccess resets the backoff and closes the circuit
func (m *Manager) RecordSuccess() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.consecutiveFailures > 0 {
		m.logger.Infow("✅ Connection recovered, resetting backoff",
			"previous_consecutive_failures", m.consecutiveFailures,
		)
	}

	m.currentBackoff = m.minBackoff
	m.consecutiveFailures = 0
	m.totalReconnects++
	m.circuitOpen = false
}

// Stats returns current reconnect manager stats
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return Stats{
		ConsecutiveFailures: m.consecutiveFailures,
		TotalReconnects:     m.totalReconnects,
		CurrentBackoff:      m.currentBackoff,
		CircuitOpen:         m.circuitOpen,
	}
}

// Stats contains reconnection statistics
type Stats struct {
	ConsecutiveFailures int
	TotalReconnects     int
	CurrentBackoff      time.Duration
	CircuitOpen         bool
}

// CalculateJitter adds up to jitterPercent of duration at random to prevent thundering herd
func CalculateJitter(duration time.Duration, jitterPercent float64) time.Duration {
	if jitterPercent <= 0 || jitterPercent > 1 || duration <= 0 {
		return duration
	}

	maxJitter := float64(duration) * jitterPercent
	return duration + time.Duration(rand.Float64()*maxJitter)
}
