package server

import (
	"encoding/json"
	"net/http"

	"github.com/llamafarm/llamafarm-core/internal/apperr"
)

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error details.
type ErrorDetail struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// Error codes
const (
	ErrCodeInvalidRequest   = "INVALID_REQUEST"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodePermissionDenied = "PERMISSION_DENIED"
	ErrCodeProviderError    = "PROVIDER_ERROR"
	ErrCodeRateLimited      = "RATE_LIMITED"
	ErrCodeInternalError    = "INTERNAL_ERROR"
)

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// writeErrorWithDetails writes an error response with details.
func writeErrorWithDetails(w http.ResponseWriter, status int, code, message string, details map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

// writeSuccess writes a success response: a bare JSON `true`.
func writeSuccess(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, true)
}

// notImplemented writes a not implemented response.
func notImplemented(w http.ResponseWriter) {
	writeError(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "This endpoint is not yet implemented")
}

// appErrStatus maps an apperr.Kind to the HTTP status the router
// surfaces for it (spec §7: internal kind detail never leaks past this
// boundary).
func appErrStatus(kind apperr.Kind) (int, string) {
	switch kind {
	case apperr.NotFound:
		return http.StatusNotFound, ErrCodeNotFound
	case apperr.InvalidArgument, apperr.InvalidPath:
		return http.StatusBadRequest, ErrCodeInvalidRequest
	case apperr.PermissionDenied:
		return http.StatusForbidden, ErrCodePermissionDenied
	case apperr.Conflict:
		return http.StatusConflict, ErrCodeInvalidRequest
	case apperr.PayloadTooLarge:
		return http.StatusRequestEntityTooLarge, ErrCodeInvalidRequest
	case apperr.Unavailable:
		return http.StatusServiceUnavailable, ErrCodeProviderError
	case apperr.Timeout:
		return http.StatusGatewayTimeout, ErrCodeProviderError
	default:
		return http.StatusInternalServerError, ErrCodeInternalError
	}
}

// writeAppError writes err as a JSON error response, mapping its
// apperr.Kind to an HTTP status. A non-apperr error is treated as
// Internal.
func writeAppError(w http.ResponseWriter, err error) {
	status, code := appErrStatus(apperr.KindOf(err))
	writeError(w, status, code, err.Error())
}
