package service

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/division-console/internal/models"
)

func TestMetricsServiceSnapshot(t *testing.T) {
	metrics := NewMetricsService()
	metrics.ObserveHTTPRequest(http.MethodGet, "/api/v1/divisions", http.StatusOK, 20*time.Millisecond)
	metrics.ObserveHTTPRequest(http.MethodGet, "/api/v1/divisions", http.StatusOK, 40*time.Millisecond)
	metrics.ObserveGatewayCall("delete", http.StatusOK, 10*time.Millisecond)
	metrics.RecordDeletionItem(true)
	metrics.RecordDeletionItem(true)
	metrics.RecordDeletionItem(false)
	metrics.ObserveDeletionBatch(models.SeverityError, time.Second)
	metrics.SetDeletionQueueDepth(3)

	snapshot := metrics.Snapshot()
	assert.Equal(t, uint64(2), snapshot.RequestsTotal)
	assert.InDelta(t, 30, snapshot.AverageRequestDurationMs, 0.01)
	assert.Equal(t, uint64(1), snapshot.GatewayCalls)
	assert.Equal(t, uint64(2), snapshot.DeletedItems)
	assert.Equal(t, uint64(1), snapshot.FailedItems)
	assert.Equal(t, uint64(1), snapshot.BatchesCompleted)
	assert.Equal(t, 3, snapshot.QueueDepth)
	assert.Positive(t, snapshot.Goroutines)
}

func TestMetricsServiceHandlerExposesCollectors(t *testing.T) {
	metrics := NewMetricsService()
	metrics.SetDeletionQueueDepth(2)

	recorder := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "deletion_queue_depth 2")
}

func TestMetricsServiceNilSafe(t *testing.T) {
	var metrics *MetricsService
	metrics.RecordDeletionItem(true)
	metrics.ObserveGatewayCall("list", 0, time.Millisecond)
	assert.Zero(t, metrics.Snapshot().DeletedItems)

	recorder := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, recorder.Code)
}
