package handlers

import (
	"bytes"
	"context"
	"net/http"
	"testing"
	"time"

	"pos-service/internal/domain"
	"pos-service/internal/reports"
	"pos-service/internal/repository"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

func setupReportRouter(t *testing.T) (*gin.Engine, *recordingQueue) {
	t.Helper()
	store := repository.NewInMemoryStore()
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	line := domain.CartLine{ProductID: "milk", Name: "Milk", Price: decimal.NewFromInt(20), Quantity: 3}
	line.Recompute()
	require.NoError(t, store.SaveSale(context.Background(), &domain.Sale{
		ID:            "s1",
		ReceiptNumber: domain.GenerateReceiptNumber(at),
		Items:         []domain.CartLine{line},
		Subtotal:      decimal.NewFromInt(60),
		Tax:           decimal.NewFromInt(9),
		Total:         decimal.NewFromInt(69),
		AmountPaid:    decimal.NewFromInt(70),
		Change:        decimal.NewFromInt(1),
		PaymentMethod: domain.PaymentCash,
		SyncStatus:    domain.SyncPending,
		CreatedAt:     at,
	}))

	queue := &recordingQueue{}
	handler := NewReportHandler(reports.NewService(store, queue, time.UTC, zap.NewNop()), zap.NewNop())
	router := setupTestRouter(func(v1 *gin.RouterGroup) {
		v1.GET("/reports/daily", handler.Daily)
		v1.GET("/reports/daily/export", handler.Export)
		v1.POST("/reports/daily/submit", handler.Submit)
		v1.GET("/reports/best-sellers", handler.BestSellers)
	})
	return router, queue
}

func TestDailyReport(t *testing.T) {
	router, _ := setupReportRouter(t)

	w := doJSON(router, http.MethodGet, "/api/v1/reports/daily?date=2024-03-01", nil)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var report domain.DailyReport
	decode(t, w, &report)
	assert.Equal(t, 1, report.SaleCount)
	assert.True(t, decimal.NewFromInt(69).Equal(report.Revenue))

	w = doJSON(router, http.MethodGet, "/api/v1/reports/daily?date=03/01/2024", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExportDailyReport(t *testing.T) {
	router, _ := setupReportRouter(t)

	w := doJSON(router, http.MethodGet, "/api/v1/reports/daily/export?date=2024-03-01", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, xlsxContentType, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "daily-report-2024-03-01.xlsx")
	file, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	defer file.Close()
	rows, err := file.GetRows("Sales")
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestSubmitDailyReport(t *testing.T) {
	router, queue := setupReportRouter(t)

	w := doJSON(router, http.MethodPost, "/api/v1/reports/daily/submit?date=2024-03-01", nil)

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, []domain.ActionKind{domain.ActionUploadReport}, queue.kinds)
}

func TestBestSellers(t *testing.T) {
	router, _ := setupReportRouter(t)

	w := doJSON(router, http.MethodGet, "/api/v1/reports/best-sellers?from=2024-03-01&limit=5", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var top []domain.BestSeller
	decode(t, w, &top)
	require.Len(t, top, 1)
	assert.Equal(t, 3, top[0].Quantity)

	w = doJSON(router, http.MethodGet, "/api/v1/reports/best-sellers?from=2024-03-01&limit=0", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = doJSON(router, http.MethodGet, "/api/v1/reports/best-sellers?from=2024-03-02&to=2024-02-01", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
