package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMetrics_PredictorCalls(t *testing.T) {
	m := New()
	m.ObservePredictorCall("add_points", 120*time.Millisecond, nil)
	m.ObservePredictorCall("add_points", 80*time.Millisecond, errors.New("boom"))
	m.ObservePredictorCall("propagate", 2*time.Second, nil)
	m.ObservePropagatedMasks(15)

	require.Equal(t, 1.0, testutil.ToFloat64(m.predictorCalls.WithLabelValues("add_points", "ok")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.predictorCalls.WithLabelValues("add_points", "error")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.predictorCalls.WithLabelValues("propagate", "ok")))
	require.Equal(t, 15.0, testutil.ToFloat64(m.propagatedMasks))
	require.Equal(t, 2, testutil.CollectAndCount(m.predictorLatency))
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.ObserveExport(nil)
	m.ObserveOperation("navigate", nil)
	m.ObserveVideoLoaded()
	m.SetProcessing(true)
	m.EventClients.Add(2)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	for _, want := range []string{
		`rotulador_exports_total{status="ok"} 1`,
		`rotulador_operations_total{op="navigate",status="ok"} 1`,
		`rotulador_videos_loaded_total 1`,
		`rotulador_processing 1`,
		`rotulador_event_clients 2`,
	} {
		require.True(t, strings.Contains(body, want), "missing %q", want)
	}
}
