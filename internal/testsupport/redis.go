package testsupport

import (
	"context"
	"testing"

	redisadapter "tradecoach/internal/adapters/redis"
)

// NewRedisClient connects to the integration Redis and flushes its test database around the test
func NewRedisClient(t *testing.T) *redisadapter.Client {
	t.Helper()

	client, err := redisadapter.NewClient(RedisConfigFromEnv(t))
	if err != nil {
		t.Fatalf("failed to connect to redis: %v", err)
	}

	if err := client.Client().FlushDB(context.Background()).Err(); err != nil {
		t.Fatalf("failed to flush redis before test: %v", err)
	}

	t.Cleanup(func() {
		_ = client.Client().FlushDB(context.Background()).Err()
		_ = client.Close()
	})

	return client
}
