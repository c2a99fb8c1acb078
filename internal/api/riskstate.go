package api

import (
	"context"
	"net/http"

	riskstateservice "tradecoach/internal/services/riskstate"
	"tradecoach/pkg/logger"
)

// RiskStateMonitor is the read side the HTTP layer exposes
type RiskStateMonitor interface {
	Snapshot() riskstateservice.Snapshot
	Refresh(ctx context.Context) (riskstateservice.Snapshot, error)
	Watch(ctx context.Context) <-chan riskstateservice.Snapshot
}

type riskStateHandler struct {
	monitor RiskStateMonitor
	log     *logger.Logger
}

func newRiskStateHandler(monitor RiskStateMonitor, log *logger.Logger) *riskStateHandler {
	return &riskStateHandler{monitor: monitor, log: log}
}

// get returns the latest snapshot without evaluating
func (h *riskStateHandler) get(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.monitor.Snapshot())
}

// refresh forces an evaluation and returns its snapshot
func (h *riskStateHandler) refresh(w http.ResponseWriter, r *http.Request) {
	snap, err := h.monitor.Refresh(r.Context())
	if err != nil {
		h.log.Warnw("Manual refresh failed", "error", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}
