package models

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrEmptyResponse is returned when the service answers with no text.
var ErrEmptyResponse = errors.New("empty response from AI provider")

// TransientError marks a failure worth retrying: network errors, timeouts,
// rate limiting and server errors.
type TransientError struct {
	StatusCode int
	Err        error
}

func (e *TransientError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("transient provider error (status %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("transient provider error: %v", e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// FatalError aborts the whole run: retrying cannot help and every later call would fail the same way.
type FatalError struct {
	StatusCode int
	Err        error
}

func (e *FatalError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fatal provider error (status %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fatal provider error: %v", e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }

// IsTransient reports whether err, or anything it wraps, is a TransientError.
func IsTransient(err error) bool {
	var t *TransientError
	return errors.As(err, &t)
}

// IsFatal reports whether err, or anything it wraps, is a FatalError.
func IsFatal(err error) bool {
	var f *FatalError
	return errors.As(err, &f)
}

// ClassifyStatus wraps err according to an HTTP status code. Codes that are
// neither transient nor fatal (400, 413, 422 and other 4xx) fail only the node.
func ClassifyStatus(statusCode int, err error) error {
	switch {
	case statusCode == http.StatusRequestTimeout,
		statusCode == http.StatusTooManyRequests,
		statusCode >= http.StatusInternalServerError:
		return &TransientError{StatusCode: statusCode, Err: err}
	case statusCode == http.StatusUnauthorized,
		statusCode == http.StatusForbidden,
		statusCode == http.StatusNotFound:
		return &FatalError{StatusCode: statusCode, Err: err}
	default:
		return fmt.Errorf("provider rejected request (status %d): %w", statusCode, err)
	}
}
