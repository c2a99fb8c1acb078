package api

import (
	"context"
	"net/http"

	"tradecoach/internal/domain/cryptovix"
	"tradecoach/internal/domain/riskstate"
	"tradecoach/pkg/logger"
)

// DemoControls are the scenario inputs the demo endpoints write
type DemoControls interface {
	SetScenario(ctx context.Context, tag string) error
	SetVolatilityOverride(ctx context.Context, vix float64) error
	ClearVolatilityOverride(ctx context.Context) error
	SimulateVolatility(ctx context.Context) (cryptovix.Reading, error)
	SetLossStreak(ctx context.Context, n int) error
	SetTradesExecuted(ctx context.Context, n int) error
	RecordTrade(ctx context.Context, pnl float64) error
	RecordOverride(ctx context.Context) error
	SetRecoveryMode(ctx context.Context, on bool) error
	SetGuardrails(ctx context.Context, g riskstate.Guardrails) error
	SetCapital(ctx context.Context, capital float64) error
	SetSimulatedPnL(ctx context.Context, pnl float64) error
	SetPersona(ctx context.Context, p riskstate.Persona) error
	SetActiveStrategy(ctx context.Context, st riskstate.Strategy) error
	ResetDay(ctx context.Context) error
}

type demoHandler struct {
	demo DemoControls
	log  *logger.Logger
}

func newDemoHandler(demo DemoControls, log *logger.Logger) *demoHandler {
	return &demoHandler{demo: demo, log: log.With("handler", "demo")}
}

type scenarioRequest struct {
	Scenario string `json:"scenario"`
}

type valueRequest struct {
	Value float64 `json:"value"`
}

type countRequest struct {
	Count int `json:"count"`
}

type tradeRequest struct {
	PnL float64 `json:"pnl"`
}

type toggleRequest struct {
	Enabled bool `json:"enabled"`
}

func (h *demoHandler) register(mux *http.ServeMux) {
	mux.HandleFunc("PUT /api/v1/demo/scenario", withBody(h, func(ctx context.Context, req scenarioRequest) error {
		return h.demo.SetScenario(ctx, req.Scenario)
	}))
	mux.HandleFunc("PUT /api/v1/demo/vix", withBody(h, func(ctx context.Context, req valueRequest) error {
		return h.demo.SetVolatilityOverride(ctx, req.Value)
	}))
	mux.HandleFunc("DELETE /api/v1/demo/vix", h.noBody(h.demo.ClearVolatilityOverride))
	mux.HandleFunc("POST /api/v1/demo/vix/simulate", h.simulate)
	mux.HandleFunc("PUT /api/v1/demo/loss-streak", withBody(h, func(ctx context.Context, req countRequest) error {
		return h.demo.SetLossStreak(ctx, req.Count)
	}))
	mux.HandleFunc("PUT /api/v1/demo/trades", withBody(h, func(ctx context.Context, req countRequest) error {
		return h.demo.SetTradesExecuted(ctx, req.Count)
	}))
	mux.HandleFunc("POST /api/v1/demo/trade", withBody(h, func(ctx context.Context, req tradeRequest) error {
		return h.demo.RecordTrade(ctx, req.PnL)
	}))
	mux.HandleFunc("POST /api/v1/demo/override", h.noBody(h.demo.RecordOverride))
	mux.HandleFunc("PUT /api/v1/demo/recovery", withBody(h, func(ctx context.Context, req toggleRequest) error {
		return h.demo.SetRecoveryMode(ctx, req.Enabled)
	}))
	mux.HandleFunc("PUT /api/v1/demo/guardrails", withBody(h, h.demo.SetGuardrails))
	mux.HandleFunc("PUT /api/v1/demo/capital", withBody(h, func(ctx context.Context, req valueRequest) error {
		return h.demo.SetCapital(ctx, req.Value)
	}))
	mux.HandleFunc("PUT /api/v1/demo/pnl", withBody(h, func(ctx context.Context, req valueRequest) error {
		return h.demo.SetSimulatedPnL(ctx, req.Value)
	}))
	mux.HandleFunc("PUT /api/v1/demo/persona", withBody(h, h.demo.SetPersona))
	mux.HandleFunc("PUT /api/v1/demo/strategy", withBody(h, h.demo.SetActiveStrategy))
	mux.HandleFunc("POST /api/v1/demo/reset", h.noBody(h.demo.ResetDay))
}

// withBody decodes the request into T and runs the command with it
func withBody[T any](h *demoHandler, command func(ctx context.Context, req T) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req T
		if err := decodeBody(r, &req); err != nil {
			writeError(w, err)
			return
		}
		h.finish(w, r, command(r.Context(), req))
	}
}

func (h *demoHandler) noBody(command func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.finish(w, r, command(r.Context()))
	}
}

func (h *demoHandler) simulate(w http.ResponseWriter, r *http.Request) {
	reading, err := h.demo.SimulateVolatility(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reading)
}

// finish answers 204: the new state arrives through the monitor, not this response
func (h *demoHandler) finish(w http.ResponseWriter, r *http.Request, err error) {
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *demoHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if statusFor(err) >= http.StatusInternalServerError {
		h.log.Errorw("Demo command failed", "path", r.URL.Path, "error", err)
	} else {
		h.log.Debugw("Demo command rejected", "path", r.URL.Path, "error", err)
	}
	writeError(w, err)
}
