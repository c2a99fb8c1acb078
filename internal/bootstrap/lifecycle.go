package bootstrap

import (
	"context"
	"sync"
	"time"

	"tradecoach/internal/adapters/kafka"
	"tradecoach/internal/api"
	"tradecoach/internal/domain/kvstore"
	riskstateservice "tradecoach/internal/services/riskstate"
	"tradecoach/internal/workers"
	"tradecoach/pkg/errors"
	"tradecoach/pkg/logger"
)

// Lifecycle manages graceful startup and shutdown of components
type Lifecycle struct {
	shutdownTimeout time.Duration
}

// NewLifecycle creates a new lifecycle manager
func NewLifecycle() *Lifecycle {
	return &Lifecycle{
		shutdownTimeout: 60 * time.Second,
	}
}

// ShutdownTargets lists what Shutdown stops. Nil fields are skipped.
type ShutdownTargets struct {
	WG              *sync.WaitGroup
	HTTPServer      *api.Server
	HTTPTimeout     time.Duration
	WorkerScheduler *workers.Scheduler
	Monitor         *riskstateservice.Monitor
	KafkaProducer   *kafka.Producer
	Backend         kvstore.Backend
	ErrorTracker    errors.Tracker
}

// Shutdown performs coordinated cleanup in order:
// 1. No new requests accepted
// 2. Workers stop writing to the store
// 3. Stream watchers released, goroutines drained
// 4. Producer closes after the last publish
// 5. Errors and logs flushed
// 6. Store connection last (other components may need it)
func (l *Lifecycle) Shutdown(t ShutdownTargets, log *logger.Logger) {
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), l.shutdownTimeout)
	defer shutdownCancel()

	// ========================================
	// Step 1: Stop HTTP Server
	// ========================================
	log.Info("[1/7] Stopping HTTP server...")
	if t.HTTPServer != nil {
		timeout := t.HTTPTimeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		httpCtx, httpCancel := context.WithTimeout(shutdownCtx, timeout)
		if err := t.HTTPServer.Shutdown(httpCtx); err != nil {
			log.Errorw("HTTP server shutdown failed", "error", err)
		}
		httpCancel()
	}

	// ========================================
	// Step 2: Stop Background Workers
	// ========================================
	log.Info("[2/7] Stopping background workers...")
	if t.WorkerScheduler != nil && t.WorkerScheduler.IsRunning() {
		if err := t.WorkerScheduler.Stop(); err != nil {
			log.Errorw("Workers shutdown failed", "error", err)
		} else {
			log.Info("✓ Workers stopped")
		}
	}

	// ========================================
	// Step 3: Release stream watchers and wait for goroutines
	// ========================================
	log.Info("[3/7] Waiting for monitor and server goroutines...")
	if t.Monitor != nil {
		t.Monitor.Close()
	}
	if t.WG != nil {
		l.waitForGoroutines(t.WG, 10*time.Second, log)
	}

	// ========================================
	// Step 4: Close Kafka Producer
	// ========================================
	log.Info("[4/7] Closing Kafka producer...")
	if t.KafkaProducer != nil {
		if err := t.KafkaProducer.Close(); err != nil {
			log.Errorw("Kafka producer close failed", "error", err)
		} else {
			log.Info("✓ Kafka producer closed")
		}
	}

	// ========================================
	// Step 5: Flush Error Tracker
	// ========================================
	log.Info("[5/7] Flushing error tracker...")
	l.flushErrorTracker(shutdownCtx, t.ErrorTracker, log)

	// ========================================
	// Step 6: Sync Logs
	// ========================================
	log.Info("[6/7] Syncing logs...")
	if err := logger.Sync(); err != nil {
		// stdout/stderr sync fails on some platforms
		log.Debugw("Log sync completed with warnings", "error", err)
	}

	// ========================================
	// Step 7: Close the store
	// LAST - other components may need it during shutdown
	// ========================================
	log.Info("[7/7] Closing store...")
	if t.Backend != nil {
		if err := t.Backend.Close(); err != nil {
			log.Errorw("Store close failed", "error", err)
		} else {
			log.Info("✓ Store closed")
		}
	}

	log.Info("✅ Graceful shutdown complete")
}

// waitForGoroutines waits for all goroutines with a timeout
func (l *Lifecycle) waitForGoroutines(wg *sync.WaitGroup, timeout time.Duration, log *logger.Logger) {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info("✓ All goroutines finished")
	case <-time.After(timeout):
		log.Warnw("⚠ Some goroutines did not finish within timeout", "timeout", timeout)
	}
}

// flushErrorTracker flushes the error tracker (Sentry, etc.)
func (l *Lifecycle) flushErrorTracker(ctx context.Context, tracker errors.Tracker, log *logger.Logger) {
	if tracker == nil {
		return
	}

	flushCtx, flushCancel := context.WithTimeout(ctx, 3*time.Second)
	defer flushCancel()

	if err := tracker.Flush(flushCtx); err != nil {
		log.Errorw("Error tracker flush failed", "error", err)
	} else {
		log.Info("✓ Error tracker flushed")
	}
}
