package handlers

import (
	"context"
	"net/http"
	"time"

	"pos-service/internal/repository"
	"pos-service/pkg/errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Pinger reports whether the record store is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// StatsResponse represents statistics response
type StatsResponse struct {
	Status string                 `json:"status" example:"ok"`
	Stats  map[string]interface{} `json:"stats"`
}

type MonitoringHandler struct {
	db      Pinger
	store   repository.Store
	queue   SyncQueue
	monitor Connectivity
	backend string
	logger  *zap.Logger
	now     func() time.Time
}

// NewMonitoringHandler builds the health and stats endpoints; backend names the
// key-value backend in use (sqlite, redis or memory)
func NewMonitoringHandler(db Pinger, store repository.Store, queue SyncQueue, monitor Connectivity, backend string, logger *zap.Logger) *MonitoringHandler {
	return &MonitoringHandler{
		db:      db,
		store:   store,
		queue:   queue,
		monitor: monitor,
		backend: backend,
		logger:  logger,
		now:     time.Now,
	}
}

// Health godoc
// @Summary      Health check endpoint
// @Description  Verifica el estado del servicio y de la base de datos local. Responde 503 si SQLite no está disponible.
// @Tags         health
// @Produce      json
// @Success      200  {object}  HealthResponse  "Servicio operativo"
// @Failure      503  {object}  HealthResponse  "Base de datos no disponible"
// @Router       /health [get]
func (h *MonitoringHandler) Health(c *gin.Context) {
	response := HealthResponse{
		Status:   "ok",
		Service:  "pos-service",
		Database: "ok",
		Online:   h.monitor.IsOnline(),
	}
	if h.db != nil {
		if err := h.db.Ping(c.Request.Context()); err != nil {
			h.logger.Error("Database ping failed", zap.Error(err))
			response.Status = "degraded"
			response.Database = "unavailable"
			c.JSON(http.StatusServiceUnavailable, response)
			return
		}
	}
	c.JSON(http.StatusOK, response)
}

// GetStats godoc
// @Summary      Get service statistics
// @Description  Obtiene estadísticas de la caja: productos, clientes, ventas del día, cola de sincronización y backend de almacenamiento.
// @Tags         monitoring
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  StatsResponse  "Estadísticas del servicio"
// @Failure      500  {object}  ErrorResponse  "Error interno del servidor"
// @Router       /monitoring/stats [get]
func (h *MonitoringHandler) GetStats(c *gin.Context) {
	ctx := c.Request.Context()
	stats := make(map[string]interface{})

	products, err := h.store.ListProducts(ctx, repository.ProductFilter{})
	if err != nil {
		c.Error(errors.NewDatabaseError("count products", err))
		return
	}
	stats["products"] = len(products)

	customers, err := h.store.ListCustomers(ctx)
	if err != nil {
		c.Error(errors.NewDatabaseError("count customers", err))
		return
	}
	stats["customers"] = len(customers)

	now := h.now()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	sales, err := h.store.ListSales(ctx, startOfDay, startOfDay.AddDate(0, 0, 1))
	if err != nil {
		c.Error(errors.NewDatabaseError("count sales", err))
		return
	}
	stats["sales_today"] = len(sales)

	queue := h.queue.Stats()
	stats["pending_sync"] = queue.Total
	stats["pending_by_kind"] = queue.ByKind
	stats["online"] = h.monitor.IsOnline()
	stats["kv_backend"] = h.backend

	c.JSON(http.StatusOK, StatsResponse{Status: "ok", Stats: stats})
}
