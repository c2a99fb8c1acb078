package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradecoach/pkg/errors"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "tradecoach", cfg.App.Name)
	assert.Equal(t, BackendMemory, cfg.Store.Backend)
	assert.Equal(t, "tradecoach:", cfg.Store.KeyPrefix)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.False(t, cfg.Kafka.Enabled)
	assert.Equal(t, "riskstate.snapshots", cfg.Kafka.SnapshotTopic)
	assert.Equal(t, 30*time.Second, cfg.Simulator.Interval)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr())
	assert.True(t, cfg.App.DemoEnabled)
	assert.Equal(t, time.Minute, cfg.App.RefreshInterval)
}

func TestLoadFromEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("STORE_BACKEND", "Redis")
	t.Setenv("STORE_TIMEZONE", "Europe/Berlin")
	t.Setenv("KAFKA_ENABLED", "true")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092,kafka-2:9092")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, BackendRedis, cfg.Store.Backend)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)

	loc, err := cfg.Store.Location()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Berlin", loc.String())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr error
	}{
		{
			name:    "unknown backend",
			mutate:  func(c *Config) { c.Store.Backend = "etcd" },
			wantErr: errors.ErrUnknownBackend,
		},
		{
			name:    "sentry without dsn",
			mutate:  func(c *Config) { c.ErrorTracking.Enabled = true },
			wantErr: errors.ErrInvalidInput,
		},
		{
			name:    "kafka without brokers",
			mutate:  func(c *Config) { c.Kafka.Enabled = true; c.Kafka.Brokers = nil },
			wantErr: errors.ErrInvalidInput,
		},
		{
			name:    "negative refresh interval",
			mutate:  func(c *Config) { c.App.RefreshInterval = -time.Second },
			wantErr: errors.ErrInvalidInput,
		},
		{
			name:   "valid",
			mutate: func(c *Config) {},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				Store:         StoreConfig{Backend: BackendMemory, Timezone: "UTC"},
				Kafka:         KafkaConfig{Brokers: []string{"localhost:9092"}},
				ErrorTracking: ErrorTrackingConfig{Provider: "sentry"},
			}
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}
