// riskctl evaluates the risk state and drives the demo inputs from a terminal,
// against the same store the server uses.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"tradecoach/internal/adapters/config"
	"tradecoach/internal/bootstrap"
	"tradecoach/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd(openApp).ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// openApp connects the configured store. Logging goes to stderr at warn level unless LOG_LEVEL says otherwise.
func openApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	level := cfg.App.LogLevel
	if os.Getenv("LOG_LEVEL") == "" {
		level = "warn"
	}
	if err := logger.Init(level, cfg.App.Env); err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	log := logger.Get()

	if cfg.Store.Backend == config.BackendMemory {
		log.Warn("STORE_BACKEND=memory: changes made by riskctl are not visible to the server")
	}

	backend, err := bootstrap.ProvideBackend(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	loc, err := cfg.Store.Location()
	if err != nil {
		_ = backend.Close()
		return nil, err
	}

	return newApp(backend, loc, log), nil
}
