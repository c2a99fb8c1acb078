package main

import (
	"sync"
	"time"

	"tradecoach/internal/domain/kvstore"
	"tradecoach/internal/services/demo"
	riskstateservice "tradecoach/internal/services/riskstate"
	"tradecoach/pkg/logger"
)

// app is what every command works against
type app struct {
	backend kvstore.Backend
	service *riskstateservice.Service
	demo    *demo.Service
}

func newApp(backend kvstore.Backend, loc *time.Location, log *logger.Logger) *app {
	writeLock := &sync.Mutex{}
	return &app{
		backend: backend,
		service: riskstateservice.NewService(backend, log,
			riskstateservice.WithLocation(loc),
			riskstateservice.WithWriteLock(writeLock),
		),
		demo: demo.NewService(backend, log,
			demo.WithLocation(loc),
			demo.WithWriteLock(writeLock),
		),
	}
}

func (a *app) Close() error {
	return a.backend.Close()
}
