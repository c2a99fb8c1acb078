package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Evaluation metrics
	Evaluations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradecoach_riskstate_evaluations_total",
			Help: "Total number of risk state evaluations",
		},
		[]string{"status"}, // status: success|error
	)

	EvaluationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tradecoach_riskstate_evaluation_duration_seconds",
			Help:    "Risk state evaluation duration in seconds, store reads and writes included",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2},
		},
	)

	EvaluationLastSuccess = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tradecoach_riskstate_last_success_timestamp",
			Help: "Unix timestamp of the last successful evaluation",
		},
	)

	// Current state
	DecisionLevel = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tradecoach_riskstate_decision_level",
			Help: "1 for the current decision level, 0 for the others",
		},
		[]string{"level"}, // level: green|yellow|red
	)

	RevengeRiskIndex = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tradecoach_riskstate_revenge_risk_index",
			Help: "Current revenge-trading risk index (0-100)",
		},
	)

	VixValue = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tradecoach_riskstate_vix_value",
			Help: "Volatility score used by the last evaluation (0-100)",
		},
	)

	// Input quality
	FieldFallbacks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradecoach_riskstate_field_fallbacks_total",
			Help: "Stored fields that could not be decoded and fell back to defaults",
		},
		[]string{"key"},
	)

	RiskEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradecoach_riskstate_risk_events_total",
			Help: "Risk events appended to the daily log",
		},
		[]string{"kind"},
	)

	// Transport metrics
	StoreChanges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradecoach_store_changes_total",
			Help: "Store change notifications received by the monitor",
		},
		[]string{"source", "tracked"},
	)

	KafkaMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradecoach_kafka_messages_total",
			Help: "Kafka messages published",
		},
		[]string{"topic", "status"},
	)

	WebSocketConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tradecoach_websocket_connections",
			Help: "Active risk state stream connections",
		},
	)

	DemoCommands = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradecoach_demo_commands_total",
			Help: "Demo control commands by outcome",
		},
		[]string{"command", "status"},
	)

	WorkerRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradecoach_worker_runs_total",
			Help: "Background worker iterations by outcome",
		},
		[]string{"worker", "status"},
	)
)

var initOnce sync.Once

// Init registers all metrics with the default registry. Safe to call more than once.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(Evaluations)
		prometheus.MustRegister(EvaluationDuration)
		prometheus.MustRegister(EvaluationLastSuccess)

		prometheus.MustRegister(DecisionLevel)
		prometheus.MustRegister(RevengeRiskIndex)
		prometheus.MustRegister(VixValue)

		prometheus.MustRegister(FieldFallbacks)
		prometheus.MustRegister(RiskEvents)

		prometheus.MustRegister(StoreChanges)
		prometheus.MustRegister(KafkaMessages)
		prometheus.MustRegister(WebSocketConnections)
		prometheus.MustRegister(DemoCommands)
		prometheus.MustRegister(WorkerRuns)
	})
}

// Handler returns Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordEvaluation records one evaluation outcome
func RecordEvaluation(duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	} else {
		EvaluationLastSuccess.SetToCurrentTime()
	}

	Evaluations.WithLabelValues(status).Inc()
	EvaluationDuration.Observe(duration.Seconds())
}

// RecordState publishes the gauges describing the current state
func RecordState(level string, revengeIndex, vix float64) {
	for _, l := range []string{"green", "yellow", "red"} {
		v := 0.0
		if l == level {
			v = 1
		}
		DecisionLevel.WithLabelValues(l).Set(v)
	}
	RevengeRiskIndex.Set(revengeIndex)
	VixValue.Set(vix)
}

// RecordStoreChange counts a change notification
func RecordStoreChange(source string, tracked bool) {
	t := "false"
	if tracked {
		t = "true"
	}
	StoreChanges.WithLabelValues(source, t).Inc()
}

// RecordKafkaMessage counts a publish attempt
func RecordKafkaMessage(topic string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	KafkaMessages.WithLabelValues(topic, status).Inc()
}

// RecordDemoCommand counts a demo control call
func RecordDemoCommand(command string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	DemoCommands.WithLabelValues(command, status).Inc()
}

// RecordWorkerRun counts one scheduler iteration
func RecordWorkerRun(worker string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	WorkerRuns.WithLabelValues(worker, status).Inc()
}
