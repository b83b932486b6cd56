package apierror

import (
	"encoding/json"
	"net/http"
)

// Error codes returned in the "code" field.
const (
	CodeBadRequest        = "BAD_REQUEST"
	CodeValidation        = "VALIDATION_ERROR"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeForbidden         = "FORBIDDEN"
	CodeNotFound          = "NOT_FOUND"
	CodeConflict          = "CONFLICT"
	CodeInsufficientFunds = "INSUFFICIENT_FUNDS"
	CodeAlreadyOwned      = "ALREADY_OWNED"
	CodeInternal          = "INTERNAL_ERROR"
	CodeUnavailable       = "SERVICE_UNAVAILABLE"
)

// Error represents a structured API error response.
type Error struct {
	StatusCode int          `json:"-"`
	Code       string       `json:"code"`
	Message    string       `json:"message"`
	Details    []FieldError `json:"details,omitempty"`
}

// FieldError represents a validation error for a specific field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type envelope struct {
	Success bool   `json:"success"`
	Error   *Error `json:"error"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Code + ": " + e.Message
}

// WithDetails adds field-level error details.
func (e *Error) WithDetails(details ...FieldError) *Error {
	e.Details = details
	return e
}

// ToJSON renders the error inside the {"success": false, "error": ...} envelope.
func (e *Error) ToJSON() []byte {
	data, _ := json.Marshal(envelope{Success: false, Error: e})
	return data
}

func newError(status int, code, message, fallback string) *Error {
	if message == "" {
		message = fallback
	}
	return &Error{StatusCode: status, Code: code, Message: message}
}

// BadRequest creates a 400 Bad Request error.
func BadRequest(message string) *Error {
	return newError(http.StatusBadRequest, CodeBadRequest, message, "Malformed request")
}

// ValidationError creates a 400 error with validation details.
func ValidationError(message string, details ...FieldError) *Error {
	e := newError(http.StatusBadRequest, CodeValidation, message, "Validation failed")
	e.Details = details
	return e
}

// Unauthorized creates a 401 Unauthorized error.
func Unauthorized(message string) *Error {
	return newError(http.StatusUnauthorized, CodeUnauthorized, message, "Authentication required")
}

// Forbidden creates a 403 Forbidden error.
func Forbidden(message string) *Error {
	return newError(http.StatusForbidden, CodeForbidden, message, "Access denied")
}

// NotFound creates a 404 Not Found error.
func NotFound(message string) *Error {
	return newError(http.StatusNotFound, CodeNotFound, message, "Resource not found")
}

// Conflict creates a 409 Conflict error.
func Conflict(message string) *Error {
	return newError(http.StatusConflict, CodeConflict, message, "Conflict")
}

// InsufficientFunds creates a 409 error for a spend the balance cannot cover.
func InsufficientFunds(message string) *Error {
	return newError(http.StatusConflict, CodeInsufficientFunds, message, "Not enough points")
}

// AlreadyOwned creates a 409 error for an item already in the inventory.
func AlreadyOwned(message string) *Error {
	return newError(http.StatusConflict, CodeAlreadyOwned, message, "Item already owned")
}

// InternalError creates a 500 Internal Server Error.
func InternalError(message string) *Error {
	return newError(http.StatusInternalServerError, CodeInternal, message, "An unexpected error occurred")
}

// ServiceUnavailable creates a 503 Service Unavailable error.
func ServiceUnavailable(message string) *Error {
	return newError(http.StatusServiceUnavailable, CodeUnavailable, message, "Service temporarily unavailable")
}
