package handlers

import (
	"net/http"
	"strconv"

	"pos-service/internal/reports"
	"pos-service/pkg/errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type ReportHandler struct {
	reports *reports.Service
	logger  *zap.Logger
}

func NewReportHandler(service *reports.Service, logger *zap.Logger) *ReportHandler {
	return &ReportHandler{
		reports: service,
		logger:  logger,
	}
}

// Daily handles GET /api/v1/reports/daily
// @Summary      Daily sales summary
// @Description  Resumen de ventas del día: ingresos, impuestos, descuentos, ticket promedio, totales por forma de pago y productos más vendidos.
// @Tags         reports
// @Produce      json
// @Security     BearerAuth
// @Param        date  query     string  false  "Day as YYYY-MM-DD (default today)"
// @Success      200   {object}  domain.DailyReport
// @Failure      400   {object}  ErrorResponse
// @Router       /reports/daily [get]
func (h *ReportHandler) Daily(c *gin.Context) {
	day, err := h.reports.ParseDay(c.Query("date"))
	if err != nil {
		c.Error(err)
		return
	}
	report, err := h.reports.DailySummary(c.Request.Context(), day)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// Export handles GET /api/v1/reports/daily/export
// @Summary      Download the daily report as xlsx
// @Tags         reports
// @Produce      application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security     BearerAuth
// @Param        date  query     string  false  "Day as YYYY-MM-DD (default today)"
// @Success      200   {file}    file
// @Failure      400   {object}  ErrorResponse
// @Router       /reports/daily/export [get]
func (h *ReportHandler) Export(c *gin.Context) {
	day, err := h.reports.ParseDay(c.Query("date"))
	if err != nil {
		c.Error(err)
		return
	}
	data, err := h.reports.ExportWorkbook(c.Request.Context(), day)
	if err != nil {
		c.Error(err)
		return
	}
	filename := "daily-report-" + day.Format(reports.DateLayout) + ".xlsx"
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, xlsxContentType, data)
}

// Submit handles POST /api/v1/reports/daily/submit
// @Summary      Queue the daily report for upload
// @Tags         reports
// @Produce      json
// @Security     BearerAuth
// @Param        date  query     string  false  "Day as YYYY-MM-DD (default today)"
// @Success      202   {object}  domain.DailyReport
// @Failure      400   {object}  ErrorResponse
// @Router       /reports/daily/submit [post]
func (h *ReportHandler) Submit(c *gin.Context) {
	day, err := h.reports.ParseDay(c.Query("date"))
	if err != nil {
		c.Error(err)
		return
	}
	report, err := h.reports.SubmitDailyReport(c.Request.Context(), day)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusAccepted, report)
}

// BestSellers handles GET /api/v1/reports/best-sellers
// @Summary      Best selling products
// @Tags         reports
// @Produce      json
// @Security     BearerAuth
// @Param        from   query     string  false  "First day as YYYY-MM-DD (default today)"
// @Param        to     query     string  false  "Last day as YYYY-MM-DD, inclusive (default from)"
// @Param        limit  query     int     false  "Maximum entries (default 10)"
// @Success      200    {array}   domain.BestSeller
// @Failure      400    {object}  ErrorResponse
// @Router       /reports/best-sellers [get]
func (h *ReportHandler) BestSellers(c *gin.Context) {
	from, err := h.reports.ParseDay(c.Query("from"))
	if err != nil {
		c.Error(err)
		return
	}
	to := from
	if raw := c.Query("to"); raw != "" {
		if to, err = h.reports.ParseDay(raw); err != nil {
			c.Error(err)
			return
		}
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(reports.DefaultTopProducts)))
	if err != nil || limit <= 0 {
		c.Error(errors.NewValidationError("limit must be a positive integer", "limit"))
		return
	}

	top, err := h.reports.BestSellers(c.Request.Context(), from, to.AddDate(0, 0, 1), limit)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, top)
}
