package testsupport

import (
	"context"
	"testing"

	"tradecoach/internal/adapters/config"
	"tradecoach/internal/adapters/postgres"
)

// PostgresTestHelper owns a client for integration tests.
// LISTEN/NOTIFY needs committed writes, so tests work on throwaway tables instead of a rolled back transaction.
type PostgresTestHelper struct {
	client *postgres.Client
	cfg    config.PostgresConfig
}

// NewPostgresTestHelper opens a connection closed at test cleanup
func NewPostgresTestHelper(t *testing.T) *PostgresTestHelper {
	t.Helper()

	cfg := PostgresConfigFromEnv(t)
	client, err := postgres.NewClient(cfg)
	if err != nil {
		t.Fatalf("failed to create postgres client: %v", err)
	}

	t.Cleanup(func() {
		_ = client.Close()
	})

	return &PostgresTestHelper{client: client, cfg: cfg}
}

// Client returns the connected client
func (h *PostgresTestHelper) Client() *postgres.Client {
	return h.client
}

// Config returns the connection settings
func (h *PostgresTestHelper) Config() config.PostgresConfig {
	return h.cfg
}

// DropTableOnCleanup drops table once the test finishes
func (h *PostgresTestHelper) DropTableOnCleanup(t *testing.T, table string) {
	t.Helper()
	t.Cleanup(func() {
		_, _ = h.client.DB().ExecContext(context.Background(), "DROP TABLE IF EXISTS "+table)
	})
}
