package dto

import "net/http"

// Error code constants organized by category
// Format: ERR_<CATEGORY>_<DESCRIPTION>

// General error codes
const (
	// ErrCodeUnknown is used when the error type is unknown
	ErrCodeUnknown = "ERR_UNKNOWN"
	// ErrCodeInternal is used for internal server errors
	ErrCodeInternal = "ERR_INTERNAL"
)

// Validation error codes
const (
	// ErrCodeValidation is the base code for validation errors
	ErrCodeValidation = "ERR_VALIDATION"
	// ErrCodeBadRequest is used for malformed requests
	ErrCodeBadRequest = "ERR_BAD_REQUEST"
	// ErrCodeInvalidJSON is used when JSON parsing fails
	ErrCodeInvalidJSON = "ERR_INVALID_JSON"
)

// Authentication error codes
const (
	// ErrCodeUnauthorized is used when authentication is required but missing/invalid
	ErrCodeUnauthorized = "ERR_UNAUTHORIZED"
	// ErrCodeForbidden is used when the user lacks permission
	ErrCodeForbidden = "ERR_FORBIDDEN"
	// ErrCodeTokenExpired is used when the auth token has expired
	ErrCodeTokenExpired = "ERR_TOKEN_EXPIRED"
)

// Resource error codes
const (
	// ErrCodeNotFound is used when a resource is not found
	ErrCodeNotFound = "ERR_NOT_FOUND"
	// ErrCodeConflict is used for general resource conflicts
	ErrCodeConflict = "ERR_CONFLICT"
	// ErrCodeDuplicateRequest is used when an idempotency key was already processed
	ErrCodeDuplicateRequest = "ERR_DUPLICATE_REQUEST"
)

// Lifecycle error codes
const (
	// ErrCodeInvalidState is used when an operation is invalid for the current state
	ErrCodeInvalidState = "ERR_INVALID_STATE"
	// ErrCodeInvalidTransition is used when a status transition is not legal
	ErrCodeInvalidTransition = "ERR_INVALID_TRANSITION"
)

// Upstream dependency error codes
const (
	// ErrCodeDependencyUnavailable is used when a circuit breaker is open
	ErrCodeDependencyUnavailable = "ERR_DEPENDENCY_UNAVAILABLE"
	// ErrCodeDependencyTimeout is used when an upstream call hit its deadline
	ErrCodeDependencyTimeout = "ERR_DEPENDENCY_TIMEOUT"
	// ErrCodeRetryExhausted is used when every retry attempt failed
	ErrCodeRetryExhausted = "ERR_RETRY_EXHAUSTED"
	// ErrCodeRetryCancelled is used when the caller aborted a retrying operation
	ErrCodeRetryCancelled = "ERR_RETRY_CANCELLED"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeUnknown:  http.StatusInternalServerError,
	ErrCodeInternal: http.StatusInternalServerError,

	ErrCodeValidation:  http.StatusBadRequest,
	ErrCodeBadRequest:  http.StatusBadRequest,
	ErrCodeInvalidJSON: http.StatusBadRequest,

	ErrCodeUnauthorized: http.StatusUnauthorized,
	ErrCodeForbidden:    http.StatusForbidden,
	ErrCodeTokenExpired: http.StatusUnauthorized,

	ErrCodeNotFound:         http.StatusNotFound,
	ErrCodeConflict:         http.StatusConflict,
	ErrCodeDuplicateRequest: http.StatusConflict,

	ErrCodeInvalidState:      http.StatusUnprocessableEntity,
	ErrCodeInvalidTransition: http.StatusUnprocessableEntity,

	ErrCodeDependencyUnavailable: http.StatusServiceUnavailable,
	ErrCodeDependencyTimeout:     http.StatusGatewayTimeout,
	ErrCodeRetryExhausted:        http.StatusBadGateway,
	ErrCodeRetryCancelled:        http.StatusBadRequest,
}

// GetHTTPStatus returns the HTTP status code for an error code.
// Returns 500 Internal Server Error if the error code is not found.
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DomainErrorCodeMapping maps domain error codes to API error codes
var DomainErrorCodeMapping = map[string]string{
	"NOT_FOUND":           ErrCodeNotFound,
	"FORBIDDEN":           ErrCodeForbidden,
	"UNAUTHORIZED":        ErrCodeUnauthorized,
	"INVALID_STATE":       ErrCodeInvalidState,
	"INVALID_STATUS":      ErrCodeValidation,
	"INVALID_REASON":      ErrCodeValidation,
	"INVALID_TITLE":       ErrCodeValidation,
	"INVALID_DESTINATION": ErrCodeValidation,
	"INVALID_DATES":       ErrCodeValidation,
	"INVALID_BUDGET":      ErrCodeValidation,
	"INVALID_TRAVELERS":   ErrCodeValidation,
	"BAD_REQUEST":         ErrCodeBadRequest,
	"INTERNAL_ERROR":      ErrCodeInternal,
}

// NormalizeErrorCode converts a domain error code to the API format.
// If the code is already in the API format or unknown, returns it as-is.
func NormalizeErrorCode(code string) string {
	if apiCode, ok := DomainErrorCodeMapping[code]; ok {
		return apiCode
	}
	return code
}
