package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"tradecoach/pkg/errors"
)

// Store backends
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

type Config struct {
	App           AppConfig
	HTTP          HTTPConfig
	Store         StoreConfig
	Redis         RedisConfig
	Postgres      PostgresConfig
	Kafka         KafkaConfig
	Simulator     SimulatorConfig
	ErrorTracking ErrorTrackingConfig
}

type AppConfig struct {
	Name     string `envconfig:"APP_NAME" default:"tradecoach"`
	Env      string `envconfig:"APP_ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	Debug    bool   `envconfig:"DEBUG" default:"false"`
	Version  string `envconfig:"APP_VERSION" default:"dev"`
	// DemoEnabled exposes the demo control endpoints
	DemoEnabled bool `envconfig:"DEMO_ENABLED" default:"true"`
	// RefreshInterval re-evaluates without a store change so daily buckets roll over; 0 disables it
	RefreshInterval time.Duration `envconfig:"RISK_REFRESH_INTERVAL" default:"1m"`
}

type HTTPConfig struct {
	Addr            string        `envconfig:"HTTP_ADDR" default:":8080"`
	ReadTimeout     time.Duration `envconfig:"HTTP_READ_TIMEOUT" default:"10s"`
	WriteTimeout    time.Duration `envconfig:"HTTP_WRITE_TIMEOUT" default:"10s"`
	ShutdownTimeout time.Duration `envconfig:"HTTP_SHUTDOWN_TIMEOUT" default:"15s"`
}

// StoreConfig selects the key-value backend holding the risk inputs
type StoreConfig struct {
	Backend       string `envconfig:"STORE_BACKEND" default:"memory"`
	KeyPrefix     string `envconfig:"STORE_KEY_PREFIX" default:"tradecoach:"`
	Timezone      string `envconfig:"STORE_TIMEZONE" default:"UTC"`
	NotifyChannel string `envconfig:"STORE_NOTIFY_CHANNEL" default:"tradecoach_kv_changes"`
}

// Location resolves the configured time zone used for daily buckets
func (c StoreConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, errors.Wrapf(err, "load timezone %q", c.Timezone)
	}
	return loc, nil
}

type RedisConfig struct {
	Host     string `envconfig:"REDIS_HOST" default:"localhost"`
	Port     int    `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type PostgresConfig struct {
	Host     string `envconfig:"POSTGRES_HOST" default:"localhost"`
	Port     int    `envconfig:"POSTGRES_PORT" default:"5432"`
	User     string `envconfig:"POSTGRES_USER" default:"postgres"`
	Password string `envconfig:"POSTGRES_PASSWORD"`
	Database string `envconfig:"POSTGRES_DB" default:"tradecoach"`
	SSLMode  string `envconfig:"POSTGRES_SSL_MODE" default:"disable"`
	MaxConns int    `envconfig:"POSTGRES_MAX_CONNS" default:"10"`
}

func (c PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

type KafkaConfig struct {
	Enabled           bool     `envconfig:"KAFKA_ENABLED" default:"false"`
	Brokers           []string `envconfig:"KAFKA_BROKERS" default:"localhost:9092"`
	GroupID           string   `envconfig:"KAFKA_GROUP_ID" default:"tradecoach"`
	SnapshotTopic     string   `envconfig:"KAFKA_SNAPSHOT_TOPIC" default:"riskstate.snapshots"`
	EventTopic        string   `envconfig:"KAFKA_EVENT_TOPIC" default:"riskstate.events"`
	StoreChangesTopic string   `envconfig:"KAFKA_STORE_CHANGES_TOPIC" default:"riskstate.store_changes"`
	// ConsumeChanges subscribes the monitor to store changes announced by other processes
	ConsumeChanges bool `envconfig:"KAFKA_CONSUME_CHANGES" default:"false"`
}

// SimulatorConfig drives the Crypto VIX random walk
type SimulatorConfig struct {
	Enabled  bool          `envconfig:"SIMULATOR_ENABLED" default:"false"`
	Interval time.Duration `envconfig:"SIMULATOR_INTERVAL" default:"30s"`
	Seed     int64         `envconfig:"SIMULATOR_SEED" default:"42"`
	Start    float64       `envconfig:"SIMULATOR_START" default:"45"`
	MaxStep  float64       `envconfig:"SIMULATOR_MAX_STEP" default:"8"`
}

type ErrorTrackingConfig struct {
	Enabled     bool   `envconfig:"ERROR_TRACKING_ENABLED" default:"false"`
	Provider    string `envconfig:"ERROR_TRACKING_PROVIDER" default:"sentry"`
	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"SENTRY_ENVIRONMENT" default:"development"`
}

// Load reads configuration from environment variables
// It first tries to load .env file (useful for local development)
func Load() (*Config, error) {
	// Load .env file if exists (ignore error if not exists)
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to process env config")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks cross-field constraints envconfig cannot express
func (c *Config) Validate() error {
	var errs errors.MultiError

	c.Store.Backend = strings.ToLower(strings.TrimSpace(c.Store.Backend))
	switch c.Store.Backend {
	case BackendMemory, BackendRedis, BackendPostgres:
	default:
		errs.Add(errors.Wrapf(errors.ErrUnknownBackend, "STORE_BACKEND=%q", c.Store.Backend))
	}

	if _, err := c.Store.Location(); err != nil {
		errs.Add(err)
	}

	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		errs.Add(errors.NewValidationError("KAFKA_BROKERS", "required when KAFKA_ENABLED is set", nil))
	}

	if c.App.RefreshInterval < 0 {
		errs.Add(errors.NewValidationError("RISK_REFRESH_INTERVAL", "must not be negative", c.App.RefreshInterval))
	}

	if c.Simulator.Enabled && c.Simulator.Interval <= 0 {
		errs.Add(errors.NewValidationError("SIMULATOR_INTERVAL", "must be positive", c.Simulator.Interval))
	}

	if c.ErrorTracking.Enabled && c.ErrorTracking.Provider == "sentry" && c.ErrorTracking.SentryDSN == "" {
		errs.Add(errors.NewValidationError("SENTRY_DSN", "required when error tracking is enabled", nil))
	}

	return errs.ToError()
}
