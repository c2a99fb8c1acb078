package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"tradecoach/pkg/logger"
)

// Pinger is any backend that can report reachability
type Pinger interface {
	Ping(ctx context.Context) error
}

// StoreCollector reports store reachability at scrape time
type StoreCollector struct {
	log     *logger.Logger
	backend string
	store   Pinger
	timeout time.Duration

	up      *prometheus.Desc
	latency *prometheus.Desc
}

// NewStoreCollector creates a collector for the configured backend
func NewStoreCollector(log *logger.Logger, backend string, store Pinger) *StoreCollector {
	return &StoreCollector{
		log:     log.With("component", "store_collector"),
		backend: backend,
		store:   store,
		timeout: 2 * time.Second,

		up: prometheus.NewDesc(
			"tradecoach_store_up",
			"Whether the key-value store answered the last ping (0 or 1)",
			[]string{"backend"}, nil,
		),
		latency: prometheus.NewDesc(
			"tradecoach_store_ping_seconds",
			"Latency of the last store ping",
			[]string{"backend"}, nil,
		),
	}
}

// Describe implements prometheus.Collector
func (c *StoreCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.up
	ch <- c.latency
}

// Collect implements prometheus.Collector
func (c *StoreCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	start := time.Now()
	err := c.store.Ping(ctx)
	elapsed := time.Since(start)

	up := 1.0
	if err != nil {
		up = 0
		c.log.Warnw("Store ping failed during scrape", "backend", c.backend, "error", err)
	}

	ch <- prometheus.MustNewConstMetric(c.up, prometheus.GaugeValue, up, c.backend)
	ch <- prometheus.MustNewConstMetric(c.latency, prometheus.GaugeValue, elapsed.Seconds(), c.backend)
}
