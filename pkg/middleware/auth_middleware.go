package middleware

import (
	"errors"
	"strings"

	"pos-service/internal/auth"
	apperrors "pos-service/pkg/errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// CashierIDContextKey holds the authenticated cashier for the request
const CashierIDContextKey = "cashier_id"

// AuthMiddleware validates the cashier's bearer token
func AuthMiddleware(jwtManager *auth.JWTManager, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			logger.Warn("Missing authorization header",
				zap.String("path", c.Request.URL.Path),
				zap.String("method", c.Request.Method),
			)
			abortUnauthorized(c, "missing authorization header", "Header: Authorization")
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			logger.Warn("Invalid authorization header format",
				zap.String("path", c.Request.URL.Path),
				zap.String("method", c.Request.Method),
			)
			abortUnauthorized(c, "invalid authorization header format", "Expected: Bearer <token>")
			return
		}

		claims, err := jwtManager.ValidateToken(parts[1])
		if err != nil {
			if errors.Is(err, auth.ErrExpiredToken) {
				abortUnauthorized(c, "token expired", "Token has expired, please login again")
				return
			}
			logger.Warn("Invalid token",
				zap.String("path", c.Request.URL.Path),
				zap.String("method", c.Request.Method),
				zap.Error(err),
			)
			abortUnauthorized(c, "invalid token", err.Error())
			return
		}

		c.Set(CashierIDContextKey, claims.Subject)
		c.Set("username", claims.Username)

		c.Next()
	}
}

// GetCashierID returns the authenticated cashier, empty when auth is disabled
func GetCashierID(c *gin.Context) string {
	return c.GetString(CashierIDContextKey)
}

func abortUnauthorized(c *gin.Context, message, details string) {
	stdErr := apperrors.NewStandardError(apperrors.CodeUnauthorized, message, details)
	c.AbortWithStatusJSON(stdErr.HTTPStatus(), stdErr)
}
