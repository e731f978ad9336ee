package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"pos-service/internal/domain"
	"pos-service/pkg/middleware"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// setupTestRouter mounts routes under /api/v1 behind the error handler and a
// fixed cashier identity
func setupTestRouter(register func(v1 *gin.RouterGroup)) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(middleware.ErrorHandler(zap.NewNop()))
	router.Use(func(c *gin.Context) {
		c.Set(middleware.CashierIDContextKey, "cashier-1")
		c.Next()
	})
	register(router.Group("/api/v1"))
	return router
}

func doJSON(router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, dest interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), dest), w.Body.String())
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body ErrorResponse
	decode(t, w, &body)
	return body.Error
}

type recordingQueue struct {
	kinds []domain.ActionKind
}

func (q *recordingQueue) Enqueue(ctx context.Context, kind domain.ActionKind, payload interface{}) (domain.PendingAction, error) {
	q.kinds = append(q.kinds, kind)
	return domain.PendingAction{Kind: kind}, nil
}

func stringsReader(s string) *strings.Reader {
	return strings.NewReader(s)
}
