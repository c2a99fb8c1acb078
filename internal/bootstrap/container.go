package bootstrap

import (
	"context"
	"sync"

	"tradecoach/internal/adapters/config"
	"tradecoach/internal/adapters/kafka"
	"tradecoach/internal/api"
	"tradecoach/internal/api/health"
	"tradecoach/internal/domain/kvstore"
	"tradecoach/internal/events"
	"tradecoach/internal/services/demo"
	riskstateservice "tradecoach/internal/services/riskstate"
	"tradecoach/internal/workers"
	"tradecoach/pkg/errors"
	"tradecoach/pkg/logger"
	"tradecoach/pkg/reconnect"
)

// Container holds all application dependencies and their lifecycle
// Components are organized in initialization order
type Container struct {
	// Core configuration & logging
	Config       *config.Config
	Log          *logger.Logger
	ErrorTracker errors.Tracker

	// InstanceID stamps the store changes this process announces on Kafka
	InstanceID string

	// Infrastructure Layer (key-value store)
	Backend kvstore.Backend

	// External Adapters
	Adapters *Adapters

	// Domain Layer - Services
	Services *Services

	// Application Layer
	Application *Application

	// Background Processing
	Background *Background

	// Lifecycle management
	Lifecycle *Lifecycle
	WG        *sync.WaitGroup
	Context   context.Context
	Cancel    context.CancelFunc
}

// Adapters groups all external adapters
type Adapters struct {
	KafkaProducer  *kafka.Producer
	ChangeConsumer *kafka.Consumer
	Publisher      *events.Publisher

	// Store is what services write through: the backend, announcing when Kafka is enabled
	Store kvstore.Store
	// Notifier merges the backend's own notifications with the Kafka change feed
	Notifier kvstore.Notifier
}

// Services groups all domain services
type Services struct {
	RiskState *riskstateservice.Service
	Monitor   *riskstateservice.Monitor
	Demo      *demo.Service
}

// Application groups application layer components
type Application struct {
	HTTPServer    *api.Server
	HealthHandler *health.Handler
}

// Background groups all background processing components
type Background struct {
	WorkerScheduler *workers.Scheduler
}

// NewContainer creates a new dependency container
func NewContainer() *Container {
	ctx, cancel := context.WithCancel(context.Background())

	return &Container{
		Adapters:    &Adapters{},
		Services:    &Services{},
		Application: &Application{},
		Background:  &Background{},
		Lifecycle:   NewLifecycle(),
		WG:          &sync.WaitGroup{},
		Context:     ctx,
		Cancel:      cancel,
	}
}

// MustInit initializes all components in the correct order
// Panics on any initialization error (fail-fast at startup)
func (c *Container) MustInit() {
	c.MustInitConfig()
	c.MustInitInfrastructure()
	c.MustInitAdapters()
	c.MustInitServices()
	c.MustInitApplication()
	c.MustInitBackground()
}

// Start starts all background components
func (c *Container) Start() error {
	c.Log.Info("Starting all systems...")

	// The monitor runs the first evaluation and then follows store changes.
	// A dropped subscription is resubscribed with backoff.
	supervisor := reconnect.NewManager(reconnect.Config{Jitter: 0.2}, c.Log.With("component", "monitor_supervisor"))
	c.WG.Add(1)
	go func() {
		defer c.WG.Done()
		if err := supervisor.Supervise(c.Context, "risk_state_monitor", c.Services.Monitor.Run); err != nil {
			c.Log.Errorf("Risk state monitor failed: %v", err)
			c.Cancel() // without change notifications the dashboard would go stale
		}
	}()

	if err := c.Background.WorkerScheduler.Start(c.Context); err != nil {
		return errors.Wrap(err, "failed to start workers")
	}

	// Start HTTP server
	c.WG.Add(1)
	go func() {
		defer c.WG.Done()
		if err := c.Application.HTTPServer.Start(); err != nil {
			c.Log.Errorf("HTTP server failed: %v", err)
			c.Cancel() // Trigger shutdown on fatal HTTP error
		}
	}()

	c.Log.Info("✓ All systems operational")
	return nil
}

// Shutdown performs graceful shutdown in the correct order
func (c *Container) Shutdown() {
	c.Log.Info("Initiating graceful shutdown...")

	// Cancel application context to signal all components to stop
	c.Cancel()

	c.Lifecycle.Shutdown(ShutdownTargets{
		WG:              c.WG,
		HTTPServer:      c.Application.HTTPServer,
		HTTPTimeout:     c.Config.HTTP.ShutdownTimeout,
		WorkerScheduler: c.Background.WorkerScheduler,
		Monitor:         c.Services.Monitor,
		KafkaProducer:   c.Adapters.KafkaProducer,
		Backend:         c.Backend,
		ErrorTracker:    c.ErrorTracker,
	}, c.Log)
}
