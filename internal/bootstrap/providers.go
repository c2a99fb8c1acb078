package bootstrap

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"tradecoach/internal/adapters/config"
	errnoop "tradecoach/internal/adapters/errors/noop"
	"tradecoach/internal/adapters/errors/sentry"
	"tradecoach/internal/adapters/kafka"
	"tradecoach/internal/adapters/memstore"
	pgclient "tradecoach/internal/adapters/postgres"
	redisclient "tradecoach/internal/adapters/redis"
	"tradecoach/internal/api"
	"tradecoach/internal/api/health"
	"tradecoach/internal/domain/cryptovix"
	"tradecoach/internal/domain/kvstore"
	"tradecoach/internal/events"
	"tradecoach/internal/metrics"
	"tradecoach/internal/services/demo"
	riskstateservice "tradecoach/internal/services/riskstate"
	"tradecoach/internal/workers"
	"tradecoach/internal/workers/volatility"
	"tradecoach/pkg/errors"
	"tradecoach/pkg/logger"
)

// ========================================
// Phase 1: Configuration & Logging
// ========================================

// MustInitConfig loads configuration and initializes logger
func (c *Container) MustInitConfig() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}
	c.Config = cfg

	if err := logger.Init(cfg.App.LogLevel, cfg.App.Env); err != nil {
		panic("failed to init logger: " + err.Error())
	}

	c.Log = logger.Get()
	c.Log.Infof("Starting %s %s in %s mode", cfg.App.Name, cfg.App.Version, cfg.App.Env)

	c.InstanceID = cfg.App.Name + "-" + uuid.NewString()

	c.ErrorTracker = provideErrorTracker(cfg, c.Log)
	logger.SetErrorTracker(c.ErrorTracker)

	metrics.Init()
}

// ========================================
// Phase 2: Infrastructure Layer
// ========================================

// MustInitInfrastructure connects the configured key-value backend
func (c *Container) MustInitInfrastructure() {
	backend, err := ProvideBackend(c.Context, c.Config, c.Log)
	if err != nil {
		c.Log.Fatalf("failed to init %s store: %v", c.Config.Store.Backend, err)
	}
	c.Backend = backend

	prometheus.MustRegister(metrics.NewStoreCollector(c.Log, c.Config.Store.Backend, backend))
}

// ========================================
// Phase 3: Adapters
// ========================================

// MustInitAdapters wires Kafka publishing and the change feed around the store
func (c *Container) MustInitAdapters() {
	c.Adapters.Store = c.Backend
	c.Adapters.Notifier = c.Backend

	if !c.Config.Kafka.Enabled {
		c.Log.Info("Kafka disabled: snapshots and store changes stay in-process")
		return
	}

	c.Adapters.KafkaProducer = kafka.NewProducer(kafka.ProducerConfig{
		Brokers: c.Config.Kafka.Brokers,
	})
	c.Adapters.Publisher = events.NewPublisher(c.Adapters.KafkaProducer, kafka.Topics(c.Config.Kafka), c.Log)

	// Writes are announced so other processes sharing the store can re-evaluate
	c.Adapters.Store = events.NewAnnouncingStore(c.Backend, c.Adapters.Publisher, c.InstanceID, c.Log)

	if c.Config.Kafka.ConsumeChanges {
		c.Adapters.ChangeConsumer = kafka.NewConsumer(kafka.ConsumerConfig{
			Brokers: c.Config.Kafka.Brokers,
			// each instance needs every change, so the group is per instance
			GroupID: c.Config.Kafka.GroupID + "-" + c.InstanceID,
			Topic:   c.Config.Kafka.StoreChangesTopic,
		})
		feed := kafka.NewChangeFeed(c.Adapters.ChangeConsumer, c.InstanceID, c.Log)
		c.Adapters.Notifier = kvstore.MergeNotifiers(c.Backend, feed)
	}

	c.Log.Infow("✓ Kafka adapters initialized",
		"brokers", c.Config.Kafka.Brokers,
		"consume_changes", c.Config.Kafka.ConsumeChanges,
	)
}

// ========================================
// Phase 4: Services
// ========================================

// MustInitServices creates the evaluator, the monitor and the demo controls
func (c *Container) MustInitServices() {
	loc, err := c.Config.Store.Location()
	if err != nil {
		c.Log.Fatalf("invalid store timezone: %v", err)
	}

	writeLock := &sync.Mutex{}

	opts := []riskstateservice.Option{
		riskstateservice.WithLocation(loc),
		riskstateservice.WithWriteLock(writeLock),
		riskstateservice.WithTracker(c.ErrorTracker),
	}
	if c.Adapters.Publisher != nil {
		opts = append(opts, riskstateservice.WithPublisher(c.Adapters.Publisher))
	}

	c.Services.RiskState = riskstateservice.NewService(c.Adapters.Store, c.Log, opts...)
	c.Services.Monitor = riskstateservice.NewMonitor(
		c.Services.RiskState,
		c.Adapters.Notifier,
		c.Log,
		riskstateservice.WithRefreshInterval(c.Config.App.RefreshInterval),
	)

	sim := c.Config.Simulator
	c.Services.Demo = demo.NewService(c.Adapters.Store, c.Log,
		demo.WithLocation(loc),
		demo.WithWriteLock(writeLock),
		demo.WithSimulator(cryptovix.NewSimulator(sim.Seed, sim.Start, sim.MaxStep)),
	)

	c.Log.Info("✓ Services initialized")
}

// ========================================
// Phase 5: Application Layer
// ========================================

// MustInitApplication creates the HTTP server
func (c *Container) MustInitApplication() {
	c.Application.HealthHandler = health.New(c.Log, c.Config.App.Name, c.Config.App.Version)
	c.Application.HealthHandler.Register("store", true, c.Backend.Ping)
	c.Application.HealthHandler.Register("risk_state", false, monitorCheck(c.Services.Monitor))

	var controls api.DemoControls
	if c.Config.App.DemoEnabled {
		controls = c.Services.Demo
	}

	c.Application.HTTPServer = api.NewServer(api.ServerConfig{
		HTTP:        c.Config.HTTP,
		ServiceName: c.Config.App.Name,
		Version:     c.Config.App.Version,
	}, c.Application.HealthHandler, c.Services.Monitor, controls, c.Log)
}

// ========================================
// Phase 6: Background
// ========================================

// MustInitBackground registers the background workers
func (c *Container) MustInitBackground() {
	c.Background.WorkerScheduler = workers.NewScheduler(c.Log)
	c.Background.WorkerScheduler.RegisterWorker(volatility.NewSimulatorWorker(
		c.Services.Demo,
		c.Config.Simulator.Interval,
		c.Config.Simulator.Enabled,
		c.Log,
	))
}

// ========================================
// Providers
// ========================================

// provideErrorTracker initializes error tracking (Sentry or no-op)
func provideErrorTracker(cfg *config.Config, log *logger.Logger) errors.Tracker {
	if !cfg.ErrorTracking.Enabled || cfg.ErrorTracking.SentryDSN == "" {
		log.Info("Error tracking disabled")
		return errnoop.New()
	}

	tracker, err := sentry.New(cfg.ErrorTracking, cfg.App.Name+"@"+cfg.App.Version)
	if err != nil {
		log.Warnf("Failed to initialize Sentry: %v", err)
		return errnoop.New()
	}

	log.Info("✓ Error tracking initialized (Sentry)")
	return tracker
}

// ProvideBackend connects the store selected by STORE_BACKEND
func ProvideBackend(ctx context.Context, cfg *config.Config, log *logger.Logger) (kvstore.Backend, error) {
	switch cfg.Store.Backend {
	case config.BackendMemory:
		log.Warn("Using in-memory store: inputs are lost on restart and not shared between processes")
		return memstore.New(), nil

	case config.BackendRedis:
		log.Info("Connecting to Redis...")
		client, err := redisclient.NewClient(cfg.Redis)
		if err != nil {
			return nil, err
		}
		log.Infow("✓ Redis connected", "addr", cfg.Redis.Addr())
		return redisclient.NewStore(client, cfg.Store.KeyPrefix, cfg.Store.NotifyChannel, log), nil

	case config.BackendPostgres:
		log.Info("Connecting to PostgreSQL...")
		client, err := pgclient.NewClient(cfg.Postgres)
		if err != nil {
			return nil, err
		}
		store, err := pgclient.NewKVStore(client, pgclient.DefaultTable, cfg.Store.NotifyChannel, log)
		if err != nil {
			_ = client.Close()
			return nil, err
		}

		migrateCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := store.Migrate(migrateCtx); err != nil {
			_ = client.Close()
			return nil, err
		}
		log.Info("✓ PostgreSQL connected")
		return store, nil

	default:
		return nil, errors.Wrapf(errors.ErrUnknownBackend, "%q", cfg.Store.Backend)
	}
}

// monitorCheck fails while no risk state is available
func monitorCheck(m *riskstateservice.Monitor) health.Check {
	return func(ctx context.Context) error {
		if m.Snapshot().State == nil {
			return errors.Wrap(errors.ErrUnavailable, "risk state not evaluated")
		}
		return nil
	}
}
