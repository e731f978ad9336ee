package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"pos-service/internal/connectivity"
	"pos-service/internal/domain"
	"pos-service/internal/events"
	"pos-service/internal/syncqueue"
	"pos-service/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockSyncQueue is a mock implementation of SyncQueue
type MockSyncQueue struct {
	mock.Mock
}

func (m *MockSyncQueue) Stats() syncqueue.Stats {
	return m.Called().Get(0).(syncqueue.Stats)
}

func (m *MockSyncQueue) Pending() []domain.PendingAction {
	return m.Called().Get(0).([]domain.PendingAction)
}

func (m *MockSyncQueue) LastSyncTime() *time.Time {
	args := m.Called()
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(*time.Time)
}

func (m *MockSyncQueue) ForceSync(ctx context.Context) (syncqueue.DrainResult, error) {
	args := m.Called(ctx)
	return args.Get(0).(syncqueue.DrainResult), args.Error(1)
}

func (m *MockSyncQueue) CleanupOldData(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

// MockConnectivity is a mock implementation of Connectivity
type MockConnectivity struct {
	mock.Mock
}

func (m *MockConnectivity) IsOnline() bool {
	return m.Called().Bool(0)
}

func (m *MockConnectivity) SetOnline(ctx context.Context, online bool) bool {
	return m.Called(ctx, online).Bool(0)
}

func (m *MockConnectivity) Check(ctx context.Context) (bool, error) {
	args := m.Called(ctx)
	return args.Bool(0), args.Error(1)
}

func (m *MockConnectivity) Status() connectivity.Status {
	return m.Called().Get(0).(connectivity.Status)
}

func setupSyncRouter(queue SyncQueue, monitor Connectivity, bus Subscriber) *gin.Engine {
	handler := NewSyncHandler(queue, monitor, bus, zap.NewNop())
	return setupTestRouter(func(v1 *gin.RouterGroup) {
		v1.GET("/sync/status", handler.Status)
		v1.POST("/sync/force", handler.Force)
		v1.POST("/sync/cleanup", handler.Cleanup)
		v1.GET("/connectivity", handler.GetConnectivity)
		v1.PUT("/connectivity", handler.SetConnectivity)
		v1.POST("/connectivity/check", handler.CheckConnectivity)
		v1.GET("/events", handler.Events)
	})
}

func TestSyncStatus(t *testing.T) {
	// Setup
	lastSync := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	queue := new(MockSyncQueue)
	queue.On("Stats").Return(syncqueue.Stats{Total: 2, ByKind: map[domain.ActionKind]int{domain.ActionUploadSale: 2}})
	queue.On("LastSyncTime").Return(&lastSync)
	queue.On("Pending").Return([]domain.PendingAction{{ID: "a1", Kind: domain.ActionUploadSale}, {ID: "a2", Kind: domain.ActionUploadSale}})
	monitor := new(MockConnectivity)
	monitor.On("IsOnline").Return(false)
	router := setupSyncRouter(queue, monitor, events.NewBus(zap.NewNop()))

	// Execute
	w := doJSON(router, http.MethodGet, "/api/v1/sync/status?details=true", nil)

	// Assert
	require.Equal(t, http.StatusOK, w.Code)
	var response SyncStatusResponse
	decode(t, w, &response)
	assert.False(t, response.Online)
	assert.Equal(t, 2, response.Pending)
	assert.Equal(t, 2, response.ByKind[domain.ActionUploadSale])
	assert.Len(t, response.Actions, 2)
	require.NotNil(t, response.LastSyncTime)
	assert.True(t, lastSync.Equal(*response.LastSyncTime))
}

func TestForceSync(t *testing.T) {
	tests := []struct {
		name       string
		result     syncqueue.DrainResult
		err        error
		wantStatus int
	}{
		{"online", syncqueue.DrainResult{Attempted: 2, Successful: 2}, nil, http.StatusOK},
		{"offline", syncqueue.DrainResult{}, errors.NewOffline(), http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			queue := new(MockSyncQueue)
			queue.On("ForceSync", mock.Anything).Return(tt.result, tt.err)
			router := setupSyncRouter(queue, new(MockConnectivity), events.NewBus(zap.NewNop()))

			w := doJSON(router, http.MethodPost, "/api/v1/sync/force", nil)

			assert.Equal(t, tt.wantStatus, w.Code)
			queue.AssertExpectations(t)
		})
	}
}

func TestSyncCleanup(t *testing.T) {
	queue := new(MockSyncQueue)
	queue.On("CleanupOldData", mock.Anything).Return(3, nil)
	router := setupSyncRouter(queue, new(MockConnectivity), events.NewBus(zap.NewNop()))

	w := doJSON(router, http.MethodPost, "/api/v1/sync/cleanup", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var response CleanupResponse
	decode(t, w, &response)
	assert.Equal(t, 3, response.Removed)
}

func TestSetConnectivity(t *testing.T) {
	monitor := new(MockConnectivity)
	monitor.On("SetOnline", mock.Anything, true).Return(true).Once()
	router := setupSyncRouter(new(MockSyncQueue), monitor, events.NewBus(zap.NewNop()))

	w := doJSON(router, http.MethodPut, "/api/v1/connectivity", map[string]bool{"online": true})

	require.Equal(t, http.StatusOK, w.Code)
	var response ConnectivityResponse
	decode(t, w, &response)
	assert.Equal(t, ConnectivityResponse{Online: true, Changed: true}, response)

	w = doJSON(router, http.MethodPut, "/api/v1/connectivity", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	monitor.AssertExpectations(t)
}

func TestCheckConnectivity_ReportsProbeFailure(t *testing.T) {
	monitor := new(MockConnectivity)
	monitor.On("Check", mock.Anything).Return(false, assert.AnError)
	monitor.On("Status").Return(connectivity.Status{Online: false, LastCheckError: assert.AnError.Error()})
	router := setupSyncRouter(new(MockSyncQueue), monitor, events.NewBus(zap.NewNop()))

	w := doJSON(router, http.MethodPost, "/api/v1/connectivity/check", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var status connectivity.Status
	decode(t, w, &status)
	assert.False(t, status.Online)
	assert.Equal(t, assert.AnError.Error(), status.LastCheckError)
}

// streamRecorder lets gin's Stream run against a recorder and signals each write
type streamRecorder struct {
	*httptest.ResponseRecorder
	closed  chan bool
	written chan struct{}
}

func (r *streamRecorder) CloseNotify() <-chan bool {
	return r.closed
}

func (r *streamRecorder) Write(b []byte) (int, error) {
	n, err := r.ResponseRecorder.Write(b)
	r.signal()
	return n, err
}

func (r *streamRecorder) WriteString(s string) (int, error) {
	n, err := r.ResponseRecorder.WriteString(s)
	r.signal()
	return n, err
}

func (r *streamRecorder) signal() {
	select {
	case r.written <- struct{}{}:
	default:
	}
}

func TestEvents_StreamsPublishedEvents(t *testing.T) {
	// Setup
	bus := events.NewBus(zap.NewNop())
	router := setupSyncRouter(new(MockSyncQueue), new(MockConnectivity), bus)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/events", nil).WithContext(ctx)
	w := &streamRecorder{ResponseRecorder: httptest.NewRecorder(), closed: make(chan bool), written: make(chan struct{}, 1)}

	done := make(chan struct{})
	go func() {
		router.ServeHTTP(w, req)
		close(done)
	}()
	require.Eventually(t, func() bool { return bus.Subscribers() == 1 }, time.Second, 5*time.Millisecond)

	// Execute
	require.NoError(t, bus.Publish(context.Background(), events.ConnectivityChanged{Online: true}))
	select {
	case <-w.written:
	case <-time.After(time.Second):
		t.Fatal("event was not written to the stream")
	}
	cancel()
	<-done

	// Assert
	assert.Contains(t, w.Body.String(), "event:ConnectivityChanged")
	assert.Contains(t, w.Body.String(), `"online":true`)
	assert.Equal(t, 0, bus.Subscribers())
}
