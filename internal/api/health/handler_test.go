package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradecoach/pkg/logger"
)

func ok(ctx context.Context) error { return nil }

func failing(ctx context.Context) error { return errors.New("connection refused") }

func decode(t *testing.T, rec *httptest.ResponseRecorder) HealthStatus {
	t.Helper()
	var status HealthStatus
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&status))
	return status
}

func TestHandleLiveness(t *testing.T) {
	h := New(logger.NewNop(), "tradecoach", "test")
	rec := httptest.NewRecorder()

	h.HandleLiveness(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"alive"}`, rec.Body.String())
}

func TestHandleReadiness(t *testing.T) {
	tests := []struct {
		name       string
		store      Check
		kafka      Check
		wantCode   int
		wantStatus string
	}{
		{"all healthy", ok, ok, http.StatusOK, statusHealthy},
		{"non-critical failure does not gate readiness", ok, failing, http.StatusOK, statusHealthy},
		{"store down", failing, ok, http.StatusServiceUnavailable, statusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := New(logger.NewNop(), "tradecoach", "test")
			h.Register("store", true, tt.store)
			h.Register("kafka", false, tt.kafka)

			rec := httptest.NewRecorder()
			h.HandleReadiness(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

			assert.Equal(t, tt.wantCode, rec.Code)
			status := decode(t, rec)
			assert.Equal(t, tt.wantStatus, status.Status)
			assert.NotContains(t, status.Checks, "kafka")
		})
	}
}

func TestHandleHealthDegraded(t *testing.T) {
	h := New(logger.NewNop(), "tradecoach", "test")
	h.Register("store", true, ok)
	h.Register("kafka", false, failing)

	rec := httptest.NewRecorder()
	h.HandleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	status := decode(t, rec)
	assert.Equal(t, statusDegraded, status.Status)
	assert.Equal(t, "connection refused", status.Checks["kafka"].Error)
	assert.Equal(t, "failing checks: kafka", status.ErrorDetail)
}
