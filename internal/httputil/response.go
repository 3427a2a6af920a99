// Package httputil provides HTTP response helpers shared by the gateway
// middleware and handlers.
package httputil

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/rifaclub/edge-gateway/internal/errors"
)

// ErrorResponse is the JSON envelope for error responses
type ErrorResponse struct {
	Error     string                 `json:"error"`
	Code      string                 `json:"code,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
}

// WriteJSON writes a JSON response with the given status
func WriteJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// WriteErrorResponse writes a JSON error envelope
func WriteErrorResponse(w http.ResponseWriter, status int, code, message, requestID string, details map[string]interface{}) {
	WriteJSON(w, status, ErrorResponse{
		Error:     message,
		Code:      code,
		Details:   details,
		RequestID: requestID,
	})
}

// WriteServiceError writes a ServiceError as a JSON error envelope. The
// retry_after_seconds detail of a rate limit rejection is also surfaced as a
// Retry-After header so clients that never parse bodies still back off.
func WriteServiceError(w http.ResponseWriter, requestID string, serviceErr *errors.ServiceError) {
	if serviceErr == nil {
		serviceErr = errors.Internal("unknown error", nil)
	}

	details := serviceErr.Details
	if serviceErr.Code == errors.CodeRateLimited {
		if secs, ok := retryAfterSeconds(serviceErr); ok {
			w.Header().Set("Retry-After", strconv.Itoa(secs))
		}
		// The rejection body stays minimal and machine-readable.
		details = nil
	}

	WriteErrorResponse(w, serviceErr.HTTPStatus, string(serviceErr.Code), serviceErr.Message, requestID, details)
}

func retryAfterSeconds(serviceErr *errors.ServiceError) (int, bool) {
	v, ok := serviceErr.Details["retry_after_seconds"]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}
