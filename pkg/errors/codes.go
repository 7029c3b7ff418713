package errors

import (
	"net/http"
)

// ErrorCode is a string representation of a specific error condition.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Common error codes
const (
	ErrCodeInternal           ErrorCode = "COMMON_001"
	ErrCodeBadRequest         ErrorCode = "COMMON_002"
	ErrCodeNotFound           ErrorCode = "COMMON_003"
	ErrCodeConflict           ErrorCode = "COMMON_004"
	ErrCodeTooManyRequests    ErrorCode = "COMMON_005"
	ErrCodeServiceUnavailable ErrorCode = "COMMON_006"
	ErrCodeTimeout            ErrorCode = "COMMON_007"
	ErrCodeValidation         ErrorCode = "COMMON_008"
	ErrCodeSerialization      ErrorCode = "COMMON_009"
	ErrCodeCacheError         ErrorCode = "COMMON_010"
	ErrCodeExternalService    ErrorCode = "COMMON_011"
)

// Geospatial module error codes
const (
	ErrCodeInvalidCoordinate ErrorCode = "GEO_001"
	ErrCodeInvalidPostalCode ErrorCode = "GEO_002"
	ErrCodeGeocodeFailed     ErrorCode = "GEO_003"
	ErrCodeGeocodeNoResult   ErrorCode = "GEO_004"
	ErrCodeInvalidRadius     ErrorCode = "GEO_005"
)

// Customer dataset error codes
const (
	ErrCodeCustomerFetchFailed ErrorCode = "CUST_001"
	ErrCodeProductFetchFailed  ErrorCode = "CUST_002"
	ErrCodeCustomerNotFound    ErrorCode = "CUST_003"
)

// Map engine error codes
const (
	ErrCodeEngineNotReady      ErrorCode = "MAP_001"
	ErrCodeSourceNotFound      ErrorCode = "MAP_002"
	ErrCodeClusterNotFound     ErrorCode = "MAP_003"
	ErrCodeEngineInitFailed    ErrorCode = "MAP_004"
	ErrCodeLayerRefreshFailed  ErrorCode = "MAP_005"
	ErrCodeExpansionUnresolved ErrorCode = "MAP_006"
)

// Short aliases used at call sites throughout the codebase.
const (
	CodeInternal     = ErrCodeInternal
	CodeInvalidParam = ErrCodeBadRequest
	CodeNotFound     = ErrCodeNotFound
	CodeConflict     = ErrCodeConflict
	CodeUnknown      = ErrorCode("UNKNOWN")
	CodeOK           = ErrorCode("OK")
)

// httpStatusByCode maps error codes to the HTTP status the interfaces layer
// should respond with.  Codes absent from the map resolve to 500.
var httpStatusByCode = map[ErrorCode]int{
	ErrCodeInternal:           http.StatusInternalServerError,
	ErrCodeBadRequest:         http.StatusBadRequest,
	ErrCodeNotFound:           http.StatusNotFound,
	ErrCodeConflict:           http.StatusConflict,
	ErrCodeTooManyRequests:    http.StatusTooManyRequests,
	ErrCodeServiceUnavailable: http.StatusServiceUnavailable,
	ErrCodeTimeout:            http.StatusGatewayTimeout,
	ErrCodeValidation:         http.StatusBadRequest,
	ErrCodeSerialization:      http.StatusInternalServerError,
	ErrCodeCacheError:         http.StatusInternalServerError,
	ErrCodeExternalService:    http.StatusBadGateway,

	ErrCodeInvalidCoordinate: http.StatusBadRequest,
	ErrCodeInvalidPostalCode: http.StatusBadRequest,
	ErrCodeGeocodeFailed:     http.StatusBadGateway,
	ErrCodeGeocodeNoResult:   http.StatusNotFound,
	ErrCodeInvalidRadius:     http.StatusBadRequest,

	ErrCodeCustomerFetchFailed: http.StatusBadGateway,
	ErrCodeProductFetchFailed:  http.StatusBadGateway,
	ErrCodeCustomerNotFound:    http.StatusNotFound,

	ErrCodeEngineNotReady:      http.StatusServiceUnavailable,
	ErrCodeSourceNotFound:      http.StatusNotFound,
	ErrCodeClusterNotFound:     http.StatusNotFound,
	ErrCodeEngineInitFailed:    http.StatusServiceUnavailable,
	ErrCodeLayerRefreshFailed:  http.StatusInternalServerError,
	ErrCodeExpansionUnresolved: http.StatusInternalServerError,
}

// HTTPStatus returns the HTTP status code associated with an ErrorCode.
func (c ErrorCode) HTTPStatus() int {
	if s, ok := httpStatusByCode[c]; ok {
		return s
	}
	return http.StatusInternalServerError
}
