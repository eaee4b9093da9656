// Package errors defines the error kinds the address book API reports and
// how each maps onto an HTTP status and a machine-readable code.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel kinds. Wrap them (or use the constructors below) so callers can
// test with errors.Is.
var (
	ErrNotFound       = errors.New("not found")
	ErrAlreadyExists  = errors.New("already exists")
	ErrInvalidInput   = errors.New("invalid input")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrConflict       = errors.New("conflict")
	ErrServiceUnavail = errors.New("service unavailable")
)

type kind struct {
	sentinel error
	code     string
	status   int
}

// Lookup order matters only for errors that wrap more than one sentinel.
var kinds = []kind{
	{ErrNotFound, "NOT_FOUND", http.StatusNotFound},
	{ErrInvalidInput, "INVALID_INPUT", http.StatusBadRequest},
	{ErrUnauthorized, "UNAUTHORIZED", http.StatusUnauthorized},
	{ErrForbidden, "FORBIDDEN", http.StatusForbidden},
	{ErrAlreadyExists, "ALREADY_EXISTS", http.StatusConflict},
	{ErrConflict, "CONFLICT", http.StatusConflict},
	{ErrServiceUnavail, "SERVICE_UNAVAILABLE", http.StatusServiceUnavailable},
}

// Codes and status reported for errors of no known kind.
const (
	CodeInternal    = "INTERNAL_ERROR"
	InternalMessage = "an internal error occurred"
)

// AppError is an error with a client-safe message, a code and an HTTP status.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func newAppError(sentinel error, message string) *AppError {
	for _, k := range kinds {
		if k.sentinel == sentinel {
			return &AppError{Code: k.code, Message: message, Status: k.status, Err: sentinel}
		}
	}
	return &AppError{Code: CodeInternal, Message: message, Status: http.StatusInternalServerError, Err: sentinel}
}

// NotFound reports a missing record, e.g. "address with id 7 not found".
func NotFound(resource string, id any) *AppError {
	return newAppError(ErrNotFound, fmt.Sprintf("%s with id %v not found", resource, id))
}

// InvalidInput reports a request the caller must fix.
func InvalidInput(message string) *AppError {
	return newAppError(ErrInvalidInput, message)
}

func Unauthorized(message string) *AppError {
	return newAppError(ErrUnauthorized, message)
}

func Forbidden(message string) *AppError {
	return newAppError(ErrForbidden, message)
}

func Conflict(message string) *AppError {
	return newAppError(ErrConflict, message)
}

func ServiceUnavailable(message string) *AppError {
	return newAppError(ErrServiceUnavail, message)
}

// Classify returns the code, status and client-safe message for err. An
// AppError reports its own fields. A bare sentinel reports its kind with the
// sentinel text as message. Anything else is an internal error whose details
// must not reach the client.
func Classify(err error) (code string, status int, message string) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code, appErr.Status, appErr.Message
	}
	for _, k := range kinds {
		if errors.Is(err, k.sentinel) {
			return k.code, k.status, k.sentinel.Error()
		}
	}
	return CodeInternal, http.StatusInternalServerError, InternalMessage
}

// HTTPStatus returns the status Classify assigns to err.
func HTTPStatus(err error) int {
	_, status, _ := Classify(err)
	return status
}
