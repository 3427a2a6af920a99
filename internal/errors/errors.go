// Package errors defines the gateway error taxonomy. Every failure surfaced
// to a caller is a ServiceError with a stable code and an HTTP status;
// rejection outcomes (rate limiting, authorization) are normal control flow
// and are never escalated as internal faults.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode identifies an error category
type ErrorCode string

const (
	// CodeBadRequest indicates a malformed inbound request
	CodeBadRequest ErrorCode = "BAD_REQUEST"
	// CodeUnauthorized indicates a missing or unusable credential
	CodeUnauthorized ErrorCode = "UNAUTHORIZED"
	// CodeForbidden indicates an insufficient role
	CodeForbidden ErrorCode = "FORBIDDEN"
	// CodeRateLimited indicates a rate limit admission rejection
	CodeRateLimited ErrorCode = "RATE_LIMITED"
	// CodeUpstreamUnavailable indicates the backend could not be reached
	CodeUpstreamUnavailable ErrorCode = "UPSTREAM_UNAVAILABLE"
	// CodeUpstreamTimeout indicates the backend did not answer in time
	CodeUpstreamTimeout ErrorCode = "UPSTREAM_TIMEOUT"
	// CodeInternal indicates an unexpected gateway fault
	CodeInternal ErrorCode = "INTERNAL_ERROR"
)

// ServiceError is the canonical error type for the gateway
type ServiceError struct {
	Code       ErrorCode              `json:"code"`
	Message    string                 `json:"message"`
	HTTPStatus int                    `json:"-"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Err        error                  `json:"-"`
}

// Error implements the error interface
func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped cause, if any
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// WithDetails attaches a detail key/value and returns the error for chaining
func (e *ServiceError) WithDetails(key string, value interface{}) *ServiceError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// BadRequest creates a malformed-request error
func BadRequest(message string) *ServiceError {
	return &ServiceError{
		Code:       CodeBadRequest,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}

// Unauthorized creates a missing-credential error
func Unauthorized(message string) *ServiceError {
	return &ServiceError{
		Code:       CodeUnauthorized,
		Message:    message,
		HTTPStatus: http.StatusUnauthorized,
	}
}

// Forbidden creates an insufficient-role error
func Forbidden(message string) *ServiceError {
	return &ServiceError{
		Code:       CodeForbidden,
		Message:    message,
		HTTPStatus: http.StatusForbidden,
	}
}

// RateLimitExceeded creates an admission rejection carrying the retry delay
func RateLimitExceeded(retryAfterSeconds int) *ServiceError {
	e := &ServiceError{
		Code:       CodeRateLimited,
		Message:    "Too many requests",
		HTTPStatus: http.StatusTooManyRequests,
	}
	return e.WithDetails("retry_after_seconds", retryAfterSeconds)
}

// UpstreamUnavailable creates a could-not-reach-backend error. This is a
// gateway-level failure, distinct from an error status returned by the
// backend itself.
func UpstreamUnavailable(err error) *ServiceError {
	return &ServiceError{
		Code:       CodeUpstreamUnavailable,
		Message:    "could not reach backend",
		HTTPStatus: http.StatusBadGateway,
		Err:        err,
	}
}

// UpstreamCircuitOpen creates an error for a tripped upstream circuit
// breaker. The backend is presumed down, so no call was attempted.
func UpstreamCircuitOpen() *ServiceError {
	return &ServiceError{
		Code:       CodeUpstreamUnavailable,
		Message:    "could not reach backend",
		HTTPStatus: http.StatusServiceUnavailable,
	}
}

// UpstreamTimeout creates a backend-timeout error
func UpstreamTimeout(err error) *ServiceError {
	return &ServiceError{
		Code:       CodeUpstreamTimeout,
		Message:    "backend did not respond in time",
		HTTPStatus: http.StatusGatewayTimeout,
		Err:        err,
	}
}

// Internal creates an unexpected-fault error
func Internal(message string, err error) *ServiceError {
	return &ServiceError{
		Code:       CodeInternal,
		Message:    message,
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// GetServiceError extracts a *ServiceError from an error chain, or nil
func GetServiceError(err error) *ServiceError {
	var se *ServiceError
	if errors.As(err, &se) {
		return se
	}
	return nil
}
