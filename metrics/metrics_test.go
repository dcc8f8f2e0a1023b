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

	"github.com/warp/nota-engine/metrics"
)

func TestRecorder_NilIsNoop(t *testing.T) {
	var r *metrics.Recorder
	assert.NotPanics(t, func() {
		r.EventRegistered("planned")
		r.EventTransitioned("APROBADO")
		r.RecomputeFinished(true, 1, 0, 0)
		r.SetStaleEvents(3)
		r.ReportBuilt(time.Millisecond)
	})

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRecorder_DomainCounters(t *testing.T) {
	r := metrics.New()

	r.EventRegistered("extra")
	r.EventRegistered("extra")
	r.RecomputeFinished(true, 4, 1, 2)
	r.SetStaleEvents(5)

	expected := `
# HELP nota_events_registered_total NOTA events registered, by kind (planned, extra)
# TYPE nota_events_registered_total counter
nota_events_registered_total{kind="extra"} 2
`
	require.NoError(t, testutil.GatherAndCompare(r.Registry(), strings.NewReader(expected), "nota_events_registered_total"))

	count, err := testutil.GatherAndCount(r.Registry(), "nota_recompute_events_total")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestRecorder_HandlerExposesMetrics(t *testing.T) {
	r := metrics.New()
	r.ReportBuilt(10 * time.Millisecond)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "nota_reports_built_total 1")
}
