package service

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsServiceGenerationCounters(t *testing.T) {
	metrics := NewMetricsService()
	metrics.ObserveGeneration(GenerationPartial, 4, 2, 20*time.Millisecond)
	metrics.ObserveGeneration(GenerationComplete, 3, 0, 10*time.Millisecond)
	metrics.RecordRejectedWrite("SCHEDULE_CONFLICT")

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.generationRuns.WithLabelValues(GenerationPartial)))
	assert.Equal(t, float64(7), testutil.ToFloat64(metrics.subjectsPlaced))
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.subjectsUnplaced))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.conflictsRejected.WithLabelValues("SCHEDULE_CONFLICT")))
}

func TestMetricsServiceHandler(t *testing.T) {
	metrics := NewMetricsService()
	metrics.ObserveHTTPRequest(http.MethodGet, "/api/v1/timetable", http.StatusOK, 5*time.Millisecond)

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `http_requests_total{method="GET",path="/api/v1/timetable",status="200"} 1`)

	var nilMetrics *MetricsService
	rec = httptest.NewRecorder()
	nilMetrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
