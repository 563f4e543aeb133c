package generation

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Apology texts used when every candidate failed with a transient error.
const (
	OverloadedMessage  = "The assistant is temporarily overloaded. Please try again in a moment."
	UnavailableMessage = "The assistant is temporarily unavailable. Please try again shortly."
)

// retryableStatuses are upstream statuses worth another attempt
var retryableStatuses = map[int]bool{
	http.StatusRequestTimeout:      true,
	http.StatusConflict:            true,
	http.StatusTooEarly:            true,
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// StatusError is an upstream failure with an HTTP status
type StatusError struct {
	Status  int
	Message string
	Err     error
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("upstream status %d", e.Status)
	}
	return fmt.Sprintf("upstream status %d: %s", e.Status, e.Message)
}

func (e *StatusError) Unwrap() error { return e.Err }

// StatusCode reports the upstream status
func (e *StatusError) StatusCode() int { return e.Status }

// ExhaustedError is returned after every candidate model failed.
// Err is the last error observed.
type ExhaustedError struct {
	Models   []string
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("generation failed after %d attempts across [%s]: %v",
		e.Attempts, strings.Join(e.Models, ", "), e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

// statusCoder is satisfied by any error exposing an HTTP status
type statusCoder interface {
	StatusCode() int
}

// StatusOf extracts the HTTP status carried by err, or 0 when there is none.
func StatusOf(err error) int {
	var sc statusCoder
	if errors.As(err, &sc) {
		return sc.StatusCode()
	}
	return 0
}

// IsRetryableStatus reports whether status is in the transient set.
// 0 (no discernible status) counts as transient.
func IsRetryableStatus(status int) bool {
	return status == 0 || retryableStatuses[status]
}

// IsRetryable reports whether err is worth another attempt
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return IsRetryableStatus(StatusOf(err))
}

// ApologyFor returns the canned reply for a transient failure status
func ApologyFor(status int) string {
	if status == http.StatusServiceUnavailable {
		return OverloadedMessage
	}
	return UnavailableMessage
}
