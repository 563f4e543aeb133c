package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"cortex/internal/domain"
)

// ParseJSON decodes JSON from the request body into the given destination.
// Bodies whose declared or measured size exceeds limit yield a
// *domain.PayloadTooLargeError; anything unparseable wraps
// domain.ErrValidation.
func ParseJSON(w http.ResponseWriter, r *http.Request, dest any, limit int64) error {
	if r.ContentLength > limit {
		return &domain.PayloadTooLargeError{Limit: limit}
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(dest); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return &domain.PayloadTooLargeError{Limit: maxErr.Limit}
		}
		return fmt.Errorf("%w: invalid JSON: %v", domain.ErrValidation, err)
	}

	return nil
}
