package volatility

import (
	"context"
	"time"

	"tradecoach/internal/domain/cryptovix"
	"tradecoach/internal/workers"
	"tradecoach/pkg/logger"
)

// Source advances the Crypto VIX walk and stores the new reading
type Source interface {
	SimulateVolatility(ctx context.Context) (cryptovix.Reading, error)
}

// SimulatorWorker drives the volatility override from the Crypto VIX simulator,
// so the dashboard moves without anyone pressing the demo controls
type SimulatorWorker struct {
	*workers.BaseWorker
	source Source
}

// NewSimulatorWorker creates the worker
func NewSimulatorWorker(source Source, interval time.Duration, enabled bool, log *logger.Logger) *SimulatorWorker {
	return &SimulatorWorker{
		BaseWorker: workers.NewBaseWorker("crypto_vix_simulator", interval, enabled, log),
		source:     source,
	}
}

// Run stores one simulated reading
func (w *SimulatorWorker) Run(ctx context.Context) error {
	reading, err := w.source.SimulateVolatility(ctx)
	if err != nil {
		return err
	}

	w.Log().Debugw("Simulated volatility stored", "value", reading.Value, "zone", reading.Zone)
	return nil
}
