package dto

import "net/http"

// General error codes
const (
	ErrCodeInternal        = "INTERNAL_ERROR"
	ErrCodeBadRequest      = "BAD_REQUEST"
	ErrCodeValidation      = "VALIDATION_ERROR"
	ErrCodeInvalidInput    = "INVALID_INPUT"
	ErrCodeRateLimited     = "RATE_LIMITED"
	ErrCodeRequestTooLarge = "REQUEST_TOO_LARGE"
	ErrCodeDuplicate       = "DUPLICATE_REQUEST"
)

// Domain error codes, as raised by the engine
const (
	ErrCodeNotFound                 = "NOT_FOUND"
	ErrCodeAlreadyExists            = "ALREADY_EXISTS"
	ErrCodeInvalidPlan              = "INVALID_PLAN"
	ErrCodeInvalidState             = "INVALID_STATE"
	ErrCodeInsufficientInstallments = "INSUFFICIENT_INSTALLMENTS"
	ErrCodeInsufficientStock        = "INSUFFICIENT_STOCK"
	ErrCodeConcurrencyConflict      = "CONCURRENCY_CONFLICT"
	ErrCodeImportRejected           = "IMPORT_REJECTED"
	ErrCodePersistence              = "PERSISTENCE_ERROR"
	ErrCodeArchiveUnavailable       = "ARCHIVE_UNAVAILABLE"
	ErrCodeNoChange                 = "NO_CHANGE"
)

// Field-level rejections raised by entity constructors
var invalidFieldCodes = []string{
	"INVALID_AMOUNT", "INVALID_CATEGORY", "INVALID_DATE", "INVALID_DESCRIPTION",
	"INVALID_DIRECTION", "INVALID_MATERIAL", "INVALID_MOVEMENT_TYPE", "INVALID_NAME",
	"INVALID_PARCEL", "INVALID_QUANTITY", "INVALID_SERVICE",
}

func init() {
	for _, code := range invalidFieldCodes {
		ErrorCodeHTTPStatus[code] = http.StatusBadRequest
	}
}

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeInternal:        http.StatusInternalServerError,
	ErrCodeBadRequest:      http.StatusBadRequest,
	ErrCodeValidation:      http.StatusBadRequest,
	ErrCodeInvalidInput:    http.StatusBadRequest,
	ErrCodeRateLimited:     http.StatusTooManyRequests,
	ErrCodeRequestTooLarge: http.StatusRequestEntityTooLarge,
	ErrCodeDuplicate:       http.StatusConflict,

	ErrCodeNotFound:                 http.StatusNotFound,
	ErrCodeAlreadyExists:            http.StatusConflict,
	ErrCodeInvalidPlan:              http.StatusBadRequest,
	ErrCodeInvalidState:             http.StatusUnprocessableEntity,
	ErrCodeInsufficientInstallments: http.StatusUnprocessableEntity,
	ErrCodeInsufficientStock:        http.StatusUnprocessableEntity,
	ErrCodeConcurrencyConflict:      http.StatusConflict,
	ErrCodeImportRejected:           http.StatusUnprocessableEntity,
	ErrCodePersistence:              http.StatusInternalServerError,
	ErrCodeArchiveUnavailable:       http.StatusServiceUnavailable,
	ErrCodeNoChange:                 http.StatusUnprocessableEntity,
}

// GetHTTPStatus returns the HTTP status code for an error code
// Returns 500 Internal Server Error if the error code is not found
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
