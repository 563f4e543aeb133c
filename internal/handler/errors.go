package handler

import (
	"errors"
	"net/http"

	"cortex/internal/domain"
	"cortex/internal/httputil"
)

// errorStatus maps a domain error to its HTTP status and public message.
// Messages for not-found and server errors are fixed so internals never leak.
func errorStatus(err error, notFound string) (int, string) {
	var conflict *domain.ConflictError

	switch {
	case errors.Is(err, domain.ErrPayloadTooLarge):
		return http.StatusRequestEntityTooLarge, "Request body too large"
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, notFound
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, "Unauthorized"
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, "Forbidden"
	case errors.As(err, &conflict):
		return http.StatusConflict, conflict.Error()
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

// handleError writes the error response for err
func handleError(w http.ResponseWriter, err error, notFound string) {
	status, msg := errorStatus(err, notFound)

	var tooLarge *domain.PayloadTooLargeError
	if errors.As(err, &tooLarge) {
		httputil.RespondErrorWithExtras(w, status, msg, map[string]any{"limit": tooLarge.Limit})
		return
	}
	httputil.RespondError(w, status, msg)
}

// pathID extracts the {id} wildcard, answering 400 when it is blank
func pathID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := httputil.PathParam(r, "id")
	if id == "" {
		httputil.RespondError(w, http.StatusBadRequest, "Chat ID is required")
		return "", false
	}
	return id, true
}
