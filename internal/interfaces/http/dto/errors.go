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
	// ErrCodeInvalidInput is used for invalid input data
	ErrCodeInvalidInput = "ERR_INVALID_INPUT"
	// ErrCodeRequestTooLarge is used when the body exceeds the configured limit
	ErrCodeRequestTooLarge = "ERR_REQUEST_TOO_LARGE"
)

// Resource error codes
const (
	// ErrCodeNotFound is used when a donation or project does not exist
	ErrCodeNotFound = "ERR_NOT_FOUND"
)

// Ledger error codes
const (
	// ErrCodeInvalidTransition is used when a donation is no longer PENDING
	ErrCodeInvalidTransition = "ERR_INVALID_TRANSITION"
	// ErrCodeReconciliationFailed is used when the store failed after the retry
	ErrCodeReconciliationFailed = "ERR_RECONCILIATION_FAILED"
	// ErrCodeSweepInProgress is used when another sweep holds the sweep lock
	ErrCodeSweepInProgress = "ERR_SWEEP_IN_PROGRESS"
	// ErrCodeSchedulerNotRunning is used when a background sweep cannot be queued
	ErrCodeSchedulerNotRunning = "ERR_SCHEDULER_NOT_RUNNING"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeUnknown:  http.StatusInternalServerError,
	ErrCodeInternal: http.StatusInternalServerError,

	// Input errors -> 400 Bad Request
	ErrCodeValidation:      http.StatusBadRequest,
	ErrCodeBadRequest:      http.StatusBadRequest,
	ErrCodeInvalidInput:    http.StatusBadRequest,
	ErrCodeRequestTooLarge: http.StatusRequestEntityTooLarge,

	ErrCodeNotFound: http.StatusNotFound,

	// Transition errors -> 422 Unprocessable Entity
	ErrCodeInvalidTransition:    http.StatusUnprocessableEntity,
	ErrCodeReconciliationFailed: http.StatusInternalServerError,
	ErrCodeSweepInProgress:      http.StatusConflict,
	ErrCodeSchedulerNotRunning:  http.StatusServiceUnavailable,
}

// GetHTTPStatus returns the HTTP status code for an error code
// Returns 500 Internal Server Error if the error code is not found
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DomainErrorCodeMapping maps domain error codes to API error codes
var DomainErrorCodeMapping = map[string]string{
	"NOT_FOUND":             ErrCodeNotFound,
	"INVALID_INPUT":         ErrCodeInvalidInput,
	"INVALID_TRANSITION":    ErrCodeInvalidTransition,
	"RECONCILIATION_FAILED": ErrCodeReconciliationFailed,
	"SWEEP_IN_PROGRESS":     ErrCodeSweepInProgress,
}

// NormalizeErrorCode converts a domain error code to the API format.
// Unknown codes are returned as-is.
func NormalizeErrorCode(code string) string {
	if newCode, ok := DomainErrorCodeMapping[code]; ok {
		return newCode
	}
	return code
}
