package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus_AllCodes(t *testing.T) {
	testCases := []struct {
		code     string
		expected int
	}{
		{CodeValidation, http.StatusBadRequest},
		{CodeEmptyCart, http.StatusBadRequest},
		{CodeNotFound, http.StatusNotFound},
		{CodeConflict, http.StatusConflict},
		{CodeCheckoutInProgress, http.StatusConflict},
		{CodeInsufficientStock, http.StatusUnprocessableEntity},
		{CodeInsufficientPayment, http.StatusUnprocessableEntity},
		{CodeUnauthorized, http.StatusUnauthorized},
		{CodeOffline, http.StatusServiceUnavailable},
		{CodeDatabase, http.StatusInternalServerError},
		{"Unknown", http.StatusInternalServerError},
	}

	for _, tc := range testCases {
		t.Run(tc.code, func(t *testing.T) {
			err := NewStandardError(tc.code, "message", "details")
			assert.Equal(t, tc.expected, err.HTTPStatus())
		})
	}
}

func TestHasCode_WrappedError(t *testing.T) {
	base := NewInsufficientStock("Milk", 2, 5)
	wrapped := fmt.Errorf("checkout: %w", base)

	assert.True(t, HasCode(wrapped, CodeInsufficientStock))
	assert.False(t, HasCode(wrapped, CodeValidation))
	assert.Equal(t, CodeInsufficientStock, Code(wrapped))
	assert.Equal(t, "", Code(fmt.Errorf("plain")))
}

func TestInsufficientStock_CarriesContext(t *testing.T) {
	err := NewInsufficientStock("Milk", 2, 5)

	assert.Contains(t, err.Error(), "Milk")
	assert.Equal(t, "Available: 2, Requested: 5", err.Details)
}

func TestSyncErrors_Retryable(t *testing.T) {
	cause := fmt.Errorf("connection refused")

	retryable := NewRetryableSync("uploadSale", cause)
	permanent := NewPermanentSync("uploadSale", cause)

	assert.True(t, retryable.Retryable())
	assert.False(t, permanent.Retryable())
	assert.ErrorIs(t, retryable, cause)
}
