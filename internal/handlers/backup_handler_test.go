package handlers

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"pos-service/internal/domain"
	"pos-service/internal/repository"
	apperrors "pos-service/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type MockBackup struct {
	mock.Mock
}

func (m *MockBackup) Export(ctx context.Context) (*repository.Snapshot, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.Snapshot), args.Error(1)
}

func (m *MockBackup) Import(ctx context.Context, snapshot *repository.Snapshot) error {
	return m.Called(ctx, snapshot).Error(0)
}

func setupBackupRouter(backup repository.BackupRepository) *gin.Engine {
	handler := NewBackupHandler(backup, zap.NewNop())
	return setupTestRouter(func(v1 *gin.RouterGroup) {
		v1.GET("/backup", handler.Export)
		v1.POST("/backup", handler.Restore)
	})
}

func TestBackup_ExportThenRestore(t *testing.T) {
	// Setup
	ctx := context.Background()
	source := repository.NewInMemoryStore()
	milk := domain.NewProduct("Milk", "7501000111", "dairy", "", decimal.NewFromFloat(25.50), decimal.Zero, 10, 2)
	require.NoError(t, source.SaveProduct(ctx, milk))
	require.NoError(t, source.SaveCustomer(ctx, domain.NewCustomer("Ana", "555-0101", "")))

	target := repository.NewInMemoryStore()
	require.NoError(t, target.SaveProduct(ctx, domain.NewProduct("Stale", "", "general", "", decimal.NewFromInt(1), decimal.Zero, 1, 0)))

	// Execute
	exported := doJSON(setupBackupRouter(source), http.MethodGet, "/api/v1/backup", nil)
	require.Equal(t, http.StatusOK, exported.Code, exported.Body.String())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/backup", bytes.NewReader(exported.Body.Bytes()))
	req.Header.Set("Content-Type", "application/json")
	restored := httptest.NewRecorder()
	setupBackupRouter(target).ServeHTTP(restored, req)

	// Assert
	assert.Contains(t, exported.Header().Get("Content-Disposition"), "pos-backup-")
	require.Equal(t, http.StatusOK, restored.Code, restored.Body.String())
	var resp RestoreBackupResponse
	decode(t, restored, &resp)
	assert.Equal(t, 1, resp.Products)
	assert.Equal(t, 1, resp.Customers)

	got, err := target.GetProductByBarcode(ctx, "7501000111")
	require.NoError(t, err)
	assert.True(t, decimal.NewFromFloat(25.50).Equal(got.Price))
	products, err := target.ListProducts(ctx, repository.ProductFilter{IncludeInactive: true})
	require.NoError(t, err)
	assert.Len(t, products, 1)
}

func TestBackup_RestoreRejections(t *testing.T) {
	first := domain.NewProduct("Milk", "123", "dairy", "", decimal.NewFromInt(1), decimal.Zero, 1, 0)
	second := domain.NewProduct("Juice", "123", "drinks", "", decimal.NewFromInt(1), decimal.Zero, 1, 0)

	tests := []struct {
		name       string
		body       interface{}
		wantStatus int
		wantCode   string
	}{
		{
			name:       "not a backup document",
			body:       []string{"products"},
			wantStatus: http.StatusBadRequest,
			wantCode:   apperrors.CodeValidation,
		},
		{
			name:       "duplicate barcode",
			body:       repository.Snapshot{Products: []*domain.Product{first, second}},
			wantStatus: http.StatusConflict,
			wantCode:   apperrors.CodeConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			store := repository.NewInMemoryStore()
			kept := domain.NewProduct("Bread", "", "bakery", "", decimal.NewFromInt(2), decimal.Zero, 5, 0)
			require.NoError(t, store.SaveProduct(ctx, kept))

			w := doJSON(setupBackupRouter(store), http.MethodPost, "/api/v1/backup", tt.body)

			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			assert.Equal(t, tt.wantCode, errorCode(t, w))
			_, err := store.GetProduct(ctx, kept.ID)
			assert.NoError(t, err)
		})
	}
}

func TestBackup_StoreFailures(t *testing.T) {
	backup := new(MockBackup)
	backup.On("Export", mock.Anything).Return(nil, errors.New("disk I/O error"))
	backup.On("Import", mock.Anything, mock.Anything).Return(errors.New("database is locked"))
	router := setupBackupRouter(backup)

	exported := doJSON(router, http.MethodGet, "/api/v1/backup", nil)
	restored := doJSON(router, http.MethodPost, "/api/v1/backup", repository.Snapshot{})

	assert.Equal(t, http.StatusInternalServerError, exported.Code)
	assert.Equal(t, apperrors.CodeDatabase, errorCode(t, exported))
	assert.Equal(t, http.StatusInternalServerError, restored.Code)
	assert.Equal(t, apperrors.CodeDatabase, errorCode(t, restored))
	backup.AssertExpectations(t)
}
