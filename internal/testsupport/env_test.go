package testsupport

import "testing"

func TestRedisConfigFromEnv(t *testing.T) {
	if testing.Short() {
		t.Skip("config loader skips in short mode")
	}
	t.Setenv("REDIS_HOST", "redis")
	t.Setenv("REDIS_PORT", "6380")
	t.Setenv("REDIS_TEST_DB", "2")

	cfg := RedisConfigFromEnv(t)

	if cfg.Host != "redis" || cfg.Port != 6380 || cfg.DB != 2 {
		t.Fatalf("unexpected redis config %+v", cfg)
	}
}

func TestPostgresConfigFromEnv(t *testing.T) {
	if testing.Short() {
		t.Skip("config loader skips in short mode")
	}
	t.Setenv("POSTGRES_HOST", "localhost")
	t.Setenv("POSTGRES_USER", "user")
	t.Setenv("POSTGRES_PASSWORD", "pass")
	t.Setenv("POSTGRES_DB", "db")
	t.Setenv("POSTGRES_PORT", "5543")

	cfg := PostgresConfigFromEnv(t)

	if cfg.Host != "localhost" || cfg.Port != 5543 || cfg.SSLMode != "disable" {
		t.Fatalf("unexpected postgres config %+v", cfg)
	}
}

func TestIntValueFallsBack(t *testing.T) {
	t.Setenv("TESTSUPPORT_INT", "not-a-number")

	if got := intValue("TESTSUPPORT_INT", 7); got != 7 {
		t.Fatalf("expected fallback 7, got %d", got)
	}
}
