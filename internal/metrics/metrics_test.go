package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObservePass(0.1)
		m.Trigger("listen")
		m.Scheduled("time")
		m.Cancelled("distance")
		m.Delivered("telegram")
		m.Failure("save")
	})
}

func TestCounters(t *testing.T) {
	m := New()
	m.ObservePass(0.2)
	m.Scheduled("time")
	m.Scheduled("time")
	m.Cancelled("distance")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Passes))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.RemindersSchedule.WithLabelValues("time")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RemindersCancel.WithLabelValues("distance")))
}

func TestHandler(t *testing.T) {
	m := New()
	m.Delivered("telegram")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `upkeep_reminders_dispatched_total{channel="telegram"} 1`)
}
