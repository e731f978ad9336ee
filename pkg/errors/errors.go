package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// Error codes shared by the cart, checkout, inventory and sync layers
const (
	CodeValidation          = "ValidationError"
	CodeNotFound            = "NotFound"
	CodeInsufficientStock   = "InsufficientStock"
	CodeInsufficientPayment = "InsufficientPayment"
	CodeEmptyCart           = "EmptyCart"
	CodeConflict            = "Conflict"
	CodeCheckoutInProgress  = "CheckoutInProgress"
	CodeRetryableSync       = "RetryableSync"
	CodePermanentSync       = "PermanentSync"
	CodeOffline             = "Offline"
	CodeUnauthorized        = "Unauthorized"
	CodeDatabase            = "DatabaseError"
	CodeInternal            = "InternalError"
)

// StandardError represents a standardized error response
type StandardError struct {
	Code    string `json:"error"`   // Error code/type (e.g., "ValidationError", "InsufficientStock")
	Message string `json:"message"` // Human-readable error message
	Details string `json:"details"` // Additional details (entity, required vs available, ...)
	cause   error
}

// Error implements the error interface
func (e *StandardError) Error() string {
	return e.Message
}

// Unwrap exposes the underlying cause, if any
func (e *StandardError) Unwrap() error {
	return e.cause
}

// HTTPStatus returns the appropriate HTTP status code for the error
func (e *StandardError) HTTPStatus() int {
	switch e.Code {
	case CodeValidation, CodeEmptyCart:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict, CodeCheckoutInProgress:
		return http.StatusConflict
	case CodeInsufficientStock, CodeInsufficientPayment:
		return http.StatusUnprocessableEntity
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeOffline, CodeRetryableSync:
		return http.StatusServiceUnavailable
	case CodePermanentSync, CodeDatabase, CodeInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// Retryable reports whether a sync handler may try the action again
func (e *StandardError) Retryable() bool {
	return e.Code != CodePermanentSync
}

// NewStandardError creates a new StandardError
func NewStandardError(errorCode, message, details string) *StandardError {
	return &StandardError{
		Code:    errorCode,
		Message: message,
		Details: details,
	}
}

// HasCode reports whether err (or anything it wraps) is a StandardError with the given code
func HasCode(err error, code string) bool {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr.Code == code
	}
	return false
}

// Code returns the code of the first StandardError in err's chain, or "" when there is none
func Code(err error) string {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr.Code
	}
	return ""
}

// Common error constructors
func NewValidationError(message, field string) *StandardError {
	return NewStandardError(CodeValidation, message, fmt.Sprintf("Field: %s", field))
}

func NewNotFound(entity, id string) *StandardError {
	return NewStandardError(CodeNotFound, fmt.Sprintf("%s not found", entity), fmt.Sprintf("%s ID: %s", entity, id))
}

func NewInsufficientStock(productName string, available, requested int) *StandardError {
	return NewStandardError(CodeInsufficientStock,
		fmt.Sprintf("insufficient stock for %s", productName),
		fmt.Sprintf("Available: %d, Requested: %d", available, requested))
}

func NewInsufficientPayment(required, paid string) *StandardError {
	return NewStandardError(CodeInsufficientPayment,
		fmt.Sprintf("amount paid is less than the total due (%s)", required),
		fmt.Sprintf("Required: %s, Paid: %s", required, paid))
}

func NewEmptyCart() *StandardError {
	return NewStandardError(CodeEmptyCart, "cart is empty", "add at least one item before checkout")
}

func NewConflict(message, details string) *StandardError {
	return NewStandardError(CodeConflict, message, details)
}

func NewCheckoutInProgress() *StandardError {
	return NewStandardError(CodeCheckoutInProgress, "a checkout is already in progress", "retry once the current checkout completes")
}

func NewRetryableSync(action string, err error) *StandardError {
	e := NewStandardError(CodeRetryableSync, fmt.Sprintf("sync of %s failed", action), errDetails(err))
	e.cause = err
	return e
}

func NewPermanentSync(action string, err error) *StandardError {
	e := NewStandardError(CodePermanentSync, fmt.Sprintf("sync of %s failed permanently", action), errDetails(err))
	e.cause = err
	return e
}

func NewOffline() *StandardError {
	return NewStandardError(CodeOffline, "no network connection", "sync is unavailable while offline")
}

func NewDatabaseError(operation string, err error) *StandardError {
	e := NewStandardError(CodeDatabase, fmt.Sprintf("database operation failed: %s", operation), errDetails(err))
	e.cause = err
	return e
}

func NewInternalError(message string, err error) *StandardError {
	e := NewStandardError(CodeInternal, message, errDetails(err))
	e.cause = err
	return e
}

func errDetails(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
