package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrEntryNotFound  = errors.New("entry not found")
	ErrLevelNotFound  = errors.New("level not found")
	ErrDuplicateEntry = errors.New("duplicate entry id")
	ErrInvalidEntry   = errors.New("invalid entry")
	ErrInvalidInput   = errors.New("invalid input")
	ErrRateLimited    = errors.New("rate limit exceeded")
	ErrInternal       = errors.New("internal error")
	ErrTimeout        = errors.New("operation timed out")
)

type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

// NotFound reports a missing entry id. It is the only error the query
// surface returns at runtime.
func NotFound(id string) *AppError {
	return Newf(ErrEntryNotFound, http.StatusNotFound, "no entry with id %q", id)
}

func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrEntryNotFound), errors.Is(err, ErrLevelNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// IsNotFound reports whether err means the requested entry or level does
// not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrEntryNotFound) || errors.Is(err, ErrLevelNotFound)
}
