package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"pos-service/internal/auth"
	apperrors "pos-service/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "test-secret-key-min-32-chars-for-testing"

func decodeError(t *testing.T, w *httptest.ResponseRecorder) apperrors.StandardError {
	t.Helper()
	var body apperrors.StandardError
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestAuthMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	manager := auth.NewJWTManager(testSecret, time.Hour, zap.NewNop())
	token, _, err := manager.GenerateToken("cashier-7")
	require.NoError(t, err)

	router := gin.New()
	router.Use(AuthMiddleware(manager, zap.NewNop()))
	router.GET("/cart", func(c *gin.Context) {
		c.String(http.StatusOK, GetCashierID(c))
	})

	tests := []struct {
		name        string
		header      string
		wantStatus  int
		wantBody    string
		wantMessage string
	}{
		{"valid token", "Bearer " + token, http.StatusOK, "cashier-7", ""},
		{"missing header", "", http.StatusUnauthorized, "", "missing authorization header"},
		{"wrong scheme", "Basic " + token, http.StatusUnauthorized, "", "invalid authorization header format"},
		{"bad token", "Bearer nope", http.StatusUnauthorized, "", "invalid token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/cart", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantMessage == "" {
				assert.Equal(t, tt.wantBody, w.Body.String())
				return
			}
			body := decodeError(t, w)
			assert.Equal(t, apperrors.CodeUnauthorized, body.Code)
			assert.Equal(t, tt.wantMessage, body.Message)
		})
	}
}

func TestErrorHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(ErrorHandler(zap.NewNop()))
	router.GET("/standard", func(c *gin.Context) {
		c.Error(apperrors.NewInsufficientStock("Milk", 1, 3))
	})
	router.GET("/wrapped", func(c *gin.Context) {
		c.Error(fmt.Errorf("checkout: %w", apperrors.NewEmptyCart()))
	})
	router.GET("/plain", func(c *gin.Context) {
		c.Error(fmt.Errorf("boom"))
	})

	tests := []struct {
		path       string
		wantStatus int
		wantCode   string
	}{
		{"/standard", http.StatusUnprocessableEntity, apperrors.CodeInsufficientStock},
		{"/wrapped", http.StatusBadRequest, apperrors.CodeEmptyCart},
		{"/plain", http.StatusInternalServerError, apperrors.CodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantCode, decodeError(t, w).Code)
		})
	}
}

func TestRecoveryHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RecoveryHandler(zap.NewNop()))
	router.GET("/panic", func(c *gin.Context) {
		panic("scanner unplugged")
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, apperrors.CodeInternal, decodeError(t, w).Code)
}

func TestCORSMiddleware_Preflight(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(CORSMiddleware())
	router.POST("/checkout", func(c *gin.Context) { c.Status(http.StatusCreated) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/checkout", nil))

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
