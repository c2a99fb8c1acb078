package metrics

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradecoach/pkg/logger"
)

type stubPinger struct{ err error }

func (s stubPinger) Ping(ctx context.Context) error { return s.err }

func TestRecordState(t *testing.T) {
	RecordState("yellow", 55, 68)

	assert.Equal(t, 1.0, testutil.ToFloat64(DecisionLevel.WithLabelValues("yellow")))
	assert.Equal(t, 0.0, testutil.ToFloat64(DecisionLevel.WithLabelValues("green")))
	assert.Equal(t, 0.0, testutil.ToFloat64(DecisionLevel.WithLabelValues("red")))
	assert.Equal(t, 55.0, testutil.ToFloat64(RevengeRiskIndex))
	assert.Equal(t, 68.0, testutil.ToFloat64(VixValue))
}

func TestRecordEvaluation(t *testing.T) {
	before := testutil.ToFloat64(Evaluations.WithLabelValues("error"))
	RecordEvaluation(5*time.Millisecond, errors.New("boom"))
	assert.Equal(t, before+1, testutil.ToFloat64(Evaluations.WithLabelValues("error")))
}

func TestInitIsIdempotent(t *testing.T) {
	assert.NotPanics(t, func() {
		Init()
		Init()
	})
}

func TestStoreCollector(t *testing.T) {
	up := NewStoreCollector(logger.NewNop(), "redis", stubPinger{})
	down := NewStoreCollector(logger.NewNop(), "postgres", stubPinger{err: errors.New("refused")})

	reg := prometheus.NewPedanticRegistry()
	require.NoError(t, reg.Register(up))

	expected := `
# HELP tradecoach_store_up Whether the key-value store answered the last ping (0 or 1)
# TYPE tradecoach_store_up gauge
tradecoach_store_up{backend="redis"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "tradecoach_store_up"))

	reg = prometheus.NewPedanticRegistry()
	require.NoError(t, reg.Register(down))
	expected = `
# HELP tradecoach_store_up Whether the key-value store answered the last ping (0 or 1)
# TYPE tradecoach_store_up gauge
tradecoach_store_up{backend="postgres"} 0
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "tradecoach_store_up"))
}
