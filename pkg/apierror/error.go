package apierror

import (
	"encoding/json"
	"errors"
	"net/http"

	"sheetvend-api/internal/errs"
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

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// WithDetails adds field-level error details.
func (e *Error) WithDetails(details ...FieldError) *Error {
	e.Details = details
	return e
}

type errorBody struct {
	Success bool   `json:"success"`
	Error   *Error `json:"error"`
}

// ToJSON converts the error to JSON bytes.
func (e *Error) ToJSON() []byte {
	data, _ := json.Marshal(errorBody{Success: false, Error: e})
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
	return newError(http.StatusBadRequest, "BAD_REQUEST", message, "Bad request")
}

// ValidationError creates a 400 error with validation details.
func ValidationError(message string, details ...FieldError) *Error {
	e := newError(http.StatusBadRequest, "VALIDATION_ERROR", message, "Validation failed")
	e.Details = details
	return e
}

// Unauthorized creates a 401 Unauthorized error.
func Unauthorized(message string) *Error {
	return newError(http.StatusUnauthorized, "UNAUTHORIZED", message, "Authentication required")
}

// PaymentRequired creates a 402 error for a balance that does not cover a request.
func PaymentRequired(message string) *Error {
	return newError(http.StatusPaymentRequired, "INSUFFICIENT_CREDITS", message, "Insufficient credits")
}

// Forbidden creates a 403 Forbidden error.
func Forbidden(message string) *Error {
	return newError(http.StatusForbidden, "FORBIDDEN", message, "Access denied")
}

// NotFound creates a 404 Not Found error.
func NotFound(message string) *Error {
	return newError(http.StatusNotFound, "NOT_FOUND", message, "Resource not found")
}

// Conflict creates a 409 Conflict error.
func Conflict(message string) *Error {
	return newError(http.StatusConflict, "CONFLICT", message, "Conflict")
}

// InternalError creates a 500 Internal Server Error.
func InternalError(message string) *Error {
	return newError(http.StatusInternalServerError, "INTERNAL_ERROR", message, "An unexpected error occurred")
}

// ServiceUnavailable creates a 503 Service Unavailable error.
func ServiceUnavailable(message string) *Error {
	return newError(http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", message, "Service temporarily unavailable")
}

// FromError maps a domain error to its API error. Unknown errors become 500s
// without leaking their text.
func FromError(err error) *Error {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}

	switch {
	case errors.Is(err, errs.ErrInvalidQuantity):
		e := ValidationError("quantity must be between 1 and 100")
		e.Code = "INVALID_QUANTITY"
		return e
	case errors.Is(err, errs.ErrInvalidAmount):
		e := ValidationError("amount must be positive")
		e.Code = "INVALID_AMOUNT"
		return e
	case errors.Is(err, errs.ErrEmptyMessage):
		return BadRequest("message must not be empty")
	case errors.Is(err, errs.ErrInsufficientCredits):
		return PaymentRequired(err.Error())
	case errors.Is(err, errs.ErrBanned):
		e := Forbidden("user is banned")
		e.Code = "BANNED"
		return e
	case errors.Is(err, errs.ErrForbidden):
		return Forbidden("")
	case errors.Is(err, errs.ErrUnknownRegion):
		e := NotFound(err.Error())
		e.Code = "UNKNOWN_REGION"
		return e
	case errors.Is(err, errs.ErrNotFound):
		return NotFound(err.Error())
	case errors.Is(err, errs.ErrPoolExhausted):
		e := Conflict(err.Error())
		e.Code = "POOL_EXHAUSTED"
		return e
	case errors.Is(err, errs.ErrStoreUnavailable):
		e := ServiceUnavailable("inventory store unavailable")
		e.Code = "STORE_UNAVAILABLE"
		return e
	case errors.Is(err, errs.ErrLockTimeout):
		return ServiceUnavailable("allocation busy, try again")
	case errors.Is(err, errs.ErrNotifierUnavailable):
		return ServiceUnavailable("no chat transport configured")
	default:
		return InternalError("")
	}
}
