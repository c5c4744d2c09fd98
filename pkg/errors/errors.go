// Package errors defines the sentinels shared by the search service and
// maps them onto HTTP responses.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrCorpusUnavailable = errors.New("corpus unavailable")
	ErrReloadInProgress  = errors.New("corpus reload already in progress")
	ErrCacheDisabled     = errors.New("cache disabled")
	ErrInvalidInput      = errors.New("invalid input")
	ErrNotFound          = errors.New("not found")
	ErrRateLimited       = errors.New("rate limit exceeded")
	ErrInternal          = errors.New("internal error")
	ErrTimeout           = errors.New("operation timed out")
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

func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrReloadInProgress):
		return http.StatusConflict
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrCorpusUnavailable), errors.Is(err, ErrCacheDisabled), errors.Is(err, ErrTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Public returns the status and client-facing message for err. AppError
// messages are shown as written; a bare sentinel shows its own text;
// anything mapping to 500 is reduced to "internal error" so wrapped causes
// such as SQL errors never reach the client.
func Public(err error) (int, string) {
	status := HTTPStatusCode(err)
	if status == http.StatusInternalServerError {
		return status, ErrInternal.Error()
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return status, appErr.Message
	}
	for _, sentinel := range []error{
		ErrCorpusUnavailable, ErrReloadInProgress, ErrCacheDisabled,
		ErrInvalidInput, ErrNotFound, ErrRateLimited, ErrTimeout,
	} {
		if errors.Is(err, sentinel) {
			return status, sentinel.Error()
		}
	}
	return status, err.Error()
}
