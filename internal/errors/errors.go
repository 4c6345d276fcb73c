// Package errors defines the service error type shared by services and the
// HTTP layer.
package errors

import (
	"database/sql"
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/lib/pq"
)

// Code is a stable machine-readable error identifier.
type Code string

const (
	CodeValidation   Code = "VALIDATION_ERROR"
	CodeUnauthorized Code = "UNAUTHORIZED"
	CodeInvalidToken Code = "INVALID_TOKEN"
	CodeForbidden    Code = "FORBIDDEN"
	CodeNotFound     Code = "NOT_FOUND"
	CodeConflict     Code = "CONFLICT"
	CodeRateLimited  Code = "RATE_LIMIT_EXCEEDED"
	CodeInternal     Code = "INTERNAL_ERROR"
)

// ServiceError carries an HTTP status alongside a client-safe message.
type ServiceError struct {
	Code       Code
	Message    string
	HTTPStatus int
	Details    map[string]interface{}
	Err        error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// WithDetails returns the error with an extra detail entry.
func (e *ServiceError) WithDetails(key string, value interface{}) *ServiceError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

func newError(code Code, status int, message string, err error) *ServiceError {
	return &ServiceError{Code: code, Message: message, HTTPStatus: status, Err: err}
}

// Validation reports malformed or rejected input.
func Validation(format string, args ...interface{}) *ServiceError {
	return newError(CodeValidation, http.StatusBadRequest, fmt.Sprintf(format, args...), nil)
}

// Unauthorized reports missing or failed authentication.
func Unauthorized(message string) *ServiceError {
	if message == "" {
		message = "authentication required"
	}
	return newError(CodeUnauthorized, http.StatusUnauthorized, message, nil)
}

// InvalidToken reports an unusable bearer token.
func InvalidToken(err error) *ServiceError {
	return newError(CodeInvalidToken, http.StatusUnauthorized, "invalid or expired token", err)
}

// Forbidden reports an authenticated caller lacking permission.
func Forbidden(message string) *ServiceError {
	return newError(CodeForbidden, http.StatusForbidden, message, nil)
}

// NotFound reports a missing entity.
func NotFound(message string) *ServiceError {
	return newError(CodeNotFound, http.StatusNotFound, message, nil)
}

// Conflict reports a uniqueness or state conflict.
func Conflict(message string) *ServiceError {
	return newError(CodeConflict, http.StatusConflict, message, nil)
}

// RateLimitExceeded reports throttling.
func RateLimitExceeded(limit int, window string) *ServiceError {
	return newError(CodeRateLimited, http.StatusTooManyRequests, "too many requests", nil).
		WithDetails("limit", limit).
		WithDetails("window", window)
}

// Internal wraps an unexpected failure. The message is what clients see.
func Internal(message string, err error) *ServiceError {
	return newError(CodeInternal, http.StatusInternalServerError, message, err)
}

// GetServiceError extracts a ServiceError from err. Missing rows and unique
// violations are translated; other errors yield nil.
func GetServiceError(err error) *ServiceError {
	if err == nil {
		return nil
	}
	var svcErr *ServiceError
	if stderrors.As(err, &svcErr) {
		return svcErr
	}
	if stderrors.Is(err, sql.ErrNoRows) {
		return NotFound("resource not found")
	}
	var pqErr *pq.Error
	if stderrors.As(err, &pqErr) && pqErr.Code == "23505" {
		return Conflict("resource already exists")
	}
	return nil
}

// FromStore converts a missing-row error into NotFound with the given message
// and passes any other error through.
func FromStore(err error, notFoundMessage string) error {
	if err == nil {
		return nil
	}
	if stderrors.Is(err, sql.ErrNoRows) {
		return NotFound(notFoundMessage)
	}
	return err
}

// IsNotFound reports whether err is a missing row or a NotFound service error.
func IsNotFound(err error) bool {
	if stderrors.Is(err, sql.ErrNoRows) {
		return true
	}
	var svcErr *ServiceError
	return stderrors.As(err, &svcErr) && svcErr.Code == CodeNotFound
}

// BuildingRequired reports an operation that needs a selected building.
func BuildingRequired() *ServiceError {
	return Validation("a building must be selected")
}
