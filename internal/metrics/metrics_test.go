package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, name, label, value string) float64 {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() == label && lp.GetValue() == value {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestCounters(t *testing.T) {
	before := counterValue(t, "focus_ticks_total", "verdict", "focused")
	TicksTotal.WithLabelValues("focused").Inc()
	assert.Equal(t, before+1, counterValue(t, "focus_ticks_total", "verdict", "focused"))
}

func TestHandler(t *testing.T) {
	AnalysisFallbacks.WithLabelValues("parse").Inc()

	w := httptest.NewRecorder()
	Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "focus_analysis_fallbacks_total")
	assert.Contains(t, w.Body.String(), "focus_active_sessions")
}
