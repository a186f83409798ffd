package metrics_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/btorressz/idxflow-orderflow/internal/infrastructure/metrics"
)

func TestMetrics(t *testing.T) {
	m := metrics.New()

	m.ObserveOperation("stake", "ok")
	m.ObserveOperation("stake", "ok")
	m.ObserveOperation("claim", "already_claimed")
	m.ObserveTransfer("staking", "in", 10*time.Millisecond)
	m.SetGlobal(2_000_000_000, 3)
	m.AddRewardsPaid(500)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Operations().WithLabelValues("stake", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Operations().WithLabelValues("claim", "already_claimed")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "orderflow_total_staked 2e+09"))
	assert.True(t, strings.Contains(body, "orderflow_current_epoch 3"))
	assert.True(t, strings.Contains(body, "orderflow_rewards_paid_total 500"))
}

func TestNilMetrics(t *testing.T) {
	var m *metrics.Metrics

	assert.NotPanics(t, func() {
		m.ObserveOperation("stake", "ok")
		m.ObserveTransfer("reward", "out", time.Second)
		m.SetGlobal(1, 1)
		m.AddRewardsPaid(1)
		m.ObserveSwap("recorded")
	})

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
