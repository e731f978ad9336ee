package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"go.uber.org/zap"
)

const issuer = "pos-service"

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
)

// CashierClaims are the claims carried by a till session token
type CashierClaims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// JWTManager issues and validates cashier session tokens
type JWTManager struct {
	secretKey []byte
	ttl       time.Duration
	logger    *zap.Logger
	now       func() time.Time
}

// NewJWTManager creates a manager whose tokens are valid for ttl
func NewJWTManager(secretKey string, ttl time.Duration, logger *zap.Logger) *JWTManager {
	if ttl <= 0 {
		ttl = 8 * time.Hour
	}
	return &JWTManager{
		secretKey: []byte(secretKey),
		ttl:       ttl,
		logger:    logger,
		now:       time.Now,
	}
}

// TTL is how long issued tokens stay valid
func (j *JWTManager) TTL() time.Duration {
	return j.ttl
}

// GenerateToken signs a session token for the cashier and returns it with its expiry
func (j *JWTManager) GenerateToken(username string) (string, time.Time, error) {
	now := j.now()
	expiresAt := now.Add(j.ttl)

	claims := CashierClaims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    issuer,
			Subject:   username,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(j.secretKey)
	if err != nil {
		j.logger.Error("Failed to generate token", zap.Error(err))
		return "", time.Time{}, err
	}

	j.logger.Info("Token generated",
		zap.String("cashier_id", username),
		zap.Time("expires_at", expiresAt),
	)
	return signed, expiresAt, nil
}

// ValidateToken checks signature, expiry and issuer and returns the claims
func (j *JWTManager) ValidateToken(tokenString string) (*CashierClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &CashierClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return j.secretKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			j.logger.Warn("Token expired", zap.Error(err))
			return nil, ErrExpiredToken
		}
		j.logger.Warn("Invalid token", zap.Error(err))
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*CashierClaims)
	if !ok || !token.Valid || !claims.VerifyIssuer(issuer, true) {
		j.logger.Warn("Invalid token claims")
		return nil, ErrInvalidToken
	}
	return claims, nil
}
