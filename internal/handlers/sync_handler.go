package handlers

import (
	"context"
	"io"
	"net/http"
	"time"

	"pos-service/internal/connectivity"
	"pos-service/internal/domain"
	"pos-service/internal/events"
	"pos-service/internal/syncqueue"
	"pos-service/pkg/errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SyncQueue is the offline queue as seen by the API
type SyncQueue interface {
	Stats() syncqueue.Stats
	Pending() []domain.PendingAction
	LastSyncTime() *time.Time
	ForceSync(ctx context.Context) (syncqueue.DrainResult, error)
	CleanupOldData(ctx context.Context) (int, error)
}

// Connectivity is the online/offline state as seen by the API
type Connectivity interface {
	IsOnline() bool
	SetOnline(ctx context.Context, online bool) bool
	Check(ctx context.Context) (bool, error)
	Status() connectivity.Status
}

// Subscriber registers for UI events
type Subscriber interface {
	Subscribe(h events.Handler) func()
}

// eventBuffer is how many events a slow stream client may lag behind before events are dropped for it
const eventBuffer = 32

type SyncHandler struct {
	queue   SyncQueue
	monitor Connectivity
	bus     Subscriber
	logger  *zap.Logger
}

func NewSyncHandler(queue SyncQueue, monitor Connectivity, bus Subscriber, logger *zap.Logger) *SyncHandler {
	return &SyncHandler{
		queue:   queue,
		monitor: monitor,
		bus:     bus,
		logger:  logger,
	}
}

// Status handles GET /api/v1/sync/status
// @Summary      Sync queue status
// @Description  Acciones pendientes por tipo, última sincronización y estado de conexión. Con ?details=true incluye las acciones.
// @Tags         sync
// @Produce      json
// @Security     BearerAuth
// @Param        details  query     bool  false  "Include pending actions"
// @Success      200      {object}  SyncStatusResponse
// @Router       /sync/status [get]
func (h *SyncHandler) Status(c *gin.Context) {
	stats := h.queue.Stats()
	response := SyncStatusResponse{
		Online:       h.monitor.IsOnline(),
		Pending:      stats.Total,
		ByKind:       stats.ByKind,
		Draining:     stats.Draining,
		LastSyncTime: h.queue.LastSyncTime(),
	}
	if c.Query("details") == "true" {
		response.Actions = h.queue.Pending()
	}
	c.JSON(http.StatusOK, response)
}

// Force handles POST /api/v1/sync/force
// @Summary      Sync now
// @Description  Procesa la cola de inmediato. Sin conexión responde 503 y la cola no cambia.
// @Tags         sync
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  syncqueue.DrainResult
// @Failure      503  {object}  ErrorResponse  "Sin conexión"
// @Router       /sync/force [post]
func (h *SyncHandler) Force(c *gin.Context) {
	result, err := h.queue.ForceSync(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Cleanup handles POST /api/v1/sync/cleanup
// @Summary      Purge expired sync actions
// @Description  Elimina acciones pendientes más antiguas que la retención configurada. Las acciones eliminadas se pierden.
// @Tags         sync
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  CleanupResponse
// @Router       /sync/cleanup [post]
func (h *SyncHandler) Cleanup(c *gin.Context) {
	removed, err := h.queue.CleanupOldData(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, CleanupResponse{Removed: removed})
}

// GetConnectivity handles GET /api/v1/connectivity
// @Summary      Connection state
// @Tags         connectivity
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  connectivity.Status
// @Router       /connectivity [get]
func (h *SyncHandler) GetConnectivity(c *gin.Context) {
	c.JSON(http.StatusOK, h.monitor.Status())
}

// SetConnectivity handles PUT /api/v1/connectivity
// @Summary      Report the connection state
// @Description  El host informa si hay red. Al pasar a en línea se dispara una sincronización de la cola.
// @Tags         connectivity
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      SetConnectivityRequest  true  "State"
// @Success      200      {object}  ConnectivityResponse
// @Failure      400      {object}  ErrorResponse
// @Router       /connectivity [put]
func (h *SyncHandler) SetConnectivity(c *gin.Context) {
	var req SetConnectivityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewValidationError("online must be true or false", "online"))
		return
	}
	changed := h.monitor.SetOnline(c.Request.Context(), *req.Online)
	c.JSON(http.StatusOK, ConnectivityResponse{Online: *req.Online, Changed: changed})
}

// CheckConnectivity handles POST /api/v1/connectivity/check
// @Summary      Probe the backend
// @Description  Comprueba el backend y actualiza el estado según el resultado.
// @Tags         connectivity
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  connectivity.Status
// @Router       /connectivity/check [post]
func (h *SyncHandler) CheckConnectivity(c *gin.Context) {
	if _, err := h.monitor.Check(c.Request.Context()); err != nil {
		h.logger.Debug("Connectivity check failed", zap.Error(err))
	}
	c.JSON(http.StatusOK, h.monitor.Status())
}

// Events handles GET /api/v1/events
// @Summary      Stream UI events
// @Description  Server-Sent Events con CartChanged, SaleCompleted, SyncCompleted y ConnectivityChanged.
// @Tags         events
// @Produce      text/event-stream
// @Security     BearerAuth
// @Success      200  {string}  string  "event stream"
// @Router       /events [get]
func (h *SyncHandler) Events(c *gin.Context) {
	stream := make(chan interface{}, eventBuffer)
	unsubscribe := h.bus.Subscribe(func(ctx context.Context, event interface{}) {
		select {
		case stream <- event:
		default:
			h.logger.Warn("Dropping event for slow stream client", zap.String("event_type", events.EventType(event)))
		}
	})
	defer unsubscribe()

	h.logger.Debug("Event stream opened", zap.String("cashier_id", c.GetString("cashier_id")))
	c.Stream(func(w io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		case event := <-stream:
			c.SSEvent(events.EventType(event), event)
			return true
		}
	})
}
