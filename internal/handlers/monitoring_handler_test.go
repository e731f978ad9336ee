package handlers

import (
	"context"
	"net/http"
	"testing"

	"pos-service/internal/repository"
	"pos-service/internal/repository/storetest"
	"pos-service/internal/syncqueue"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func setupMonitoringRouter(db Pinger, store repository.Store) *gin.Engine {
	queue := new(MockSyncQueue)
	queue.On("Stats").Return(syncqueue.Stats{Total: 1})
	monitor := new(MockConnectivity)
	monitor.On("IsOnline").Return(true)
	handler := NewMonitoringHandler(db, store, queue, monitor, "sqlite", zap.NewNop())
	return setupTestRouter(func(v1 *gin.RouterGroup) {
		v1.GET("/health", handler.Health)
		v1.GET("/monitoring/stats", handler.GetStats)
	})
}

func TestHealth(t *testing.T) {
	healthy := setupMonitoringRouter(pingFunc(func(ctx context.Context) error { return nil }), repository.NewInMemoryStore())
	w := doJSON(healthy, http.MethodGet, "/api/v1/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var response HealthResponse
	decode(t, w, &response)
	assert.Equal(t, HealthResponse{Status: "ok", Service: "pos-service", Database: "ok", Online: true}, response)

	broken := setupMonitoringRouter(pingFunc(func(ctx context.Context) error { return assert.AnError }), repository.NewInMemoryStore())
	w = doJSON(broken, http.MethodGet, "/api/v1/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestGetStats(t *testing.T) {
	store := repository.NewInMemoryStore()
	require.NoError(t, store.SaveProduct(context.Background(), storetest.NewProduct("Milk", 25.5, 3)))
	router := setupMonitoringRouter(nil, store)

	w := doJSON(router, http.MethodGet, "/api/v1/monitoring/stats", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var response StatsResponse
	decode(t, w, &response)
	assert.Equal(t, float64(1), response.Stats["products"])
	assert.Equal(t, float64(0), response.Stats["sales_today"])
	assert.Equal(t, float64(1), response.Stats["pending_sync"])
	assert.Equal(t, "sqlite", response.Stats["kv_backend"])
}
