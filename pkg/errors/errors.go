package errors

import (
	"errors"
	"fmt"
)

// ErrorType represents different types of errors in the system
type ErrorType string

const (
	// ErrorTypeNotFound indicates a resource was not found
	ErrorTypeNotFound ErrorType = "NOT_FOUND"

	// ErrorTypeValidation indicates a client-correctable filter or parameter error
	ErrorTypeValidation ErrorType = "VALIDATION"

	// ErrorTypeInvalidCursor indicates a malformed, tampered or stale pagination cursor
	ErrorTypeInvalidCursor ErrorType = "INVALID_CURSOR"

	// ErrorTypeUpstreamTimeout indicates the store did not answer within its deadline
	ErrorTypeUpstreamTimeout ErrorType = "UPSTREAM_TIMEOUT"

	// ErrorTypeInternal indicates an internal server error
	ErrorTypeInternal ErrorType = "INTERNAL"

	// ErrorTypeDegradedFacet marks a facet computation failure. It is logged, never returned to clients.
	ErrorTypeDegradedFacet ErrorType = "DEGRADED_FACET"
)

// Field error reasons reported to clients.
const (
	ReasonUnknownFilter     = "unknown_filter"
	ReasonInvalidRange      = "invalid_range"
	ReasonInvalidCoordinate = "invalid_coordinate"
	ReasonInvalidEnumValue  = "invalid_enum_value"
	ReasonInvalidBoolean    = "invalid_boolean"
	ReasonInvalidNumber     = "invalid_number"
	ReasonRequiresLocation  = "requires_location"
	ReasonInvalidCursor     = "invalid_cursor"
	ReasonUpstreamTimeout   = "upstream_timeout"
	ReasonNotFound          = "not_found"
	ReasonInternal          = "internal_error"
)

// AppError represents an application error
type AppError struct {
	Type    ErrorType
	Message string
	Field   string
	Reason  string
	Err     error
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (%s): %s", e.Type, e.Field, e.Reason, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements the unwrap interface
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewFieldError creates a validation error bound to a single request parameter
func NewFieldError(field, reason, message string) *AppError {
	return &AppError{
		Type:    ErrorTypeValidation,
		Message: message,
		Field:   field,
		Reason:  reason,
	}
}

// NewInvalidCursorError creates a new invalid cursor error
func NewInvalidCursorError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeInvalidCursor,
		Message: message,
		Field:   "cursor",
		Reason:  ReasonInvalidCursor,
		Err:     err,
	}
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeNotFound,
		Message: message,
		Reason:  ReasonNotFound,
	}
}

// NewUpstreamTimeoutError creates a new upstream timeout error
func NewUpstreamTimeoutError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeUpstreamTimeout,
		Message: message,
		Reason:  ReasonUpstreamTimeout,
		Err:     err,
	}
}

// NewInternalError creates a new internal error
func NewInternalError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeInternal,
		Message: message,
		Reason:  ReasonInternal,
		Err:     err,
	}
}

// NewDegradedFacetError wraps a facet failure for logging
func NewDegradedFacetError(field string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeDegradedFacet,
		Message: "facet computation failed",
		Field:   field,
		Err:     err,
	}
}

// As returns the first AppError in err's chain
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsType reports whether err carries an AppError of the given type
func IsType(err error, t ErrorType) bool {
	appErr, ok := As(err)
	return ok && appErr.Type == t
}
