package handlers

import (
	"net/http"
	"time"

	"pos-service/internal/repository"
	"pos-service/pkg/errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const backupTimeLayout = "20060102-150405"

type BackupHandler struct {
	backup repository.BackupRepository
	logger *zap.Logger
}

func NewBackupHandler(backup repository.BackupRepository, logger *zap.Logger) *BackupHandler {
	return &BackupHandler{
		backup: backup,
		logger: logger,
	}
}

// Export handles GET /api/v1/backup
// @Summary      Download a full backup
// @Description  Exporta productos, clientes, ventas y movimientos de inventario en un único documento JSON.
// @Tags         backup
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  repository.Snapshot
// @Failure      500  {object}  ErrorResponse
// @Router       /backup [get]
func (h *BackupHandler) Export(c *gin.Context) {
	snapshot, err := h.backup.Export(c.Request.Context())
	if err != nil {
		c.Error(errors.NewDatabaseError("export backup", err))
		return
	}
	filename := "pos-backup-" + snapshot.ExportedAt.UTC().Format(backupTimeLayout) + ".json"
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.JSON(http.StatusOK, snapshot)
}

// Restore handles POST /api/v1/backup
// @Summary      Restore a backup
// @Description  Reemplaza todos los registros con el contenido del respaldo. Si algún registro es inválido no se modifica nada.
// @Tags         backup
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        backup  body      repository.Snapshot  true  "Backup document"
// @Success      200     {object}  RestoreBackupResponse
// @Failure      400     {object}  ErrorResponse
// @Failure      409     {object}  ErrorResponse
// @Router       /backup [post]
func (h *BackupHandler) Restore(c *gin.Context) {
	var snapshot repository.Snapshot
	if err := c.ShouldBindJSON(&snapshot); err != nil {
		c.Error(errors.NewValidationError("invalid backup: "+err.Error(), "body"))
		return
	}
	if err := h.backup.Import(c.Request.Context(), &snapshot); err != nil {
		if errors.Code(err) == "" {
			err = errors.NewDatabaseError("restore backup", err)
		}
		c.Error(err)
		return
	}

	h.logger.Info("Backup restored",
		zap.String("cashier_id", c.GetString("cashier_id")),
		zap.Time("exported_at", snapshot.ExportedAt),
	)
	c.JSON(http.StatusOK, RestoreBackupResponse{
		Products:       len(snapshot.Products),
		Customers:      len(snapshot.Customers),
		Sales:          len(snapshot.Sales),
		StockMovements: len(snapshot.StockMovements),
		RestoredAt:     time.Now(),
	})
}
