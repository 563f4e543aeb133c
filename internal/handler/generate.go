package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"cortex/internal/config"
	"cortex/internal/domain/services"
	"cortex/internal/httputil"
)

// GenerateHandler answers chat messages
type GenerateHandler struct {
	generationService services.GenerationService
	logger            *slog.Logger
}

// NewGenerateHandler creates a new generation handler
func NewGenerateHandler(generationService services.GenerationService, logger *slog.Logger) *GenerateHandler {
	return &GenerateHandler{
		generationService: generationService,
		logger:            logger,
	}
}

// Reply generates the assistant's answer and stores both messages
// POST /api/chat
func (h *GenerateHandler) Reply(w http.ResponseWriter, r *http.Request) {
	var req services.ReplyRequest
	if err := httputil.ParseJSON(w, r, &req, config.MaxGenerateBodyBytes); err != nil {
		handleError(w, err, chatNotFound)
		return
	}
	req.UserID = httputil.GetUserID(r)

	if strings.TrimSpace(req.Message) == "" {
		httputil.RespondError(w, http.StatusBadRequest, "Message is required")
		return
	}
	if strings.TrimSpace(req.ChatID) == "" {
		httputil.RespondError(w, http.StatusBadRequest, "Chat ID is required")
		return
	}

	resp, err := h.generationService.Reply(r.Context(), &req)
	switch {
	case err == nil:
		httputil.RespondJSON(w, http.StatusOK, resp)
	case errors.Is(err, context.Canceled):
		// client went away; nobody reads the body
		h.logger.Debug("reply cancelled", "chat_id", req.ChatID)
	case isClientError(err):
		handleError(w, err, chatNotFound)
	default:
		h.logger.Error("reply failed", "chat_id", req.ChatID, "error", err)
		httputil.RespondError(w, http.StatusInternalServerError, "Failed to generate response")
	}
}

// isClientError reports errors that map to a 4xx status
func isClientError(err error) bool {
	status, _ := errorStatus(err, "")
	return status >= 400 && status < 500
}
