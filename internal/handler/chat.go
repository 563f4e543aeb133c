package handler

import (
	"log/slog"
	"net/http"

	"cortex/internal/config"
	"cortex/internal/domain/models"
	"cortex/internal/domain/services"
	"cortex/internal/httputil"
)

const chatNotFound = "Chat not found"

// ChatHandler handles chat persistence requests
type ChatHandler struct {
	chatService services.ChatService
	logger      *slog.Logger
}

// NewChatHandler creates a new chat handler
func NewChatHandler(chatService services.ChatService, logger *slog.Logger) *ChatHandler {
	return &ChatHandler{
		chatService: chatService,
		logger:      logger,
	}
}

type chatEnvelope struct {
	Chat *models.Chat `json:"chat"`
}

type chatsEnvelope struct {
	Chats []models.Chat `json:"chats"`
}

// CreateChat creates a new chat
// POST /api/chats
func (h *ChatHandler) CreateChat(w http.ResponseWriter, r *http.Request) {
	var req services.CreateChatRequest
	if err := httputil.ParseJSON(w, r, &req, config.MaxJSONBodyBytes); err != nil {
		handleError(w, err, chatNotFound)
		return
	}
	req.UserID = httputil.GetUserID(r)

	chat, err := h.chatService.CreateChat(r.Context(), &req)
	if err != nil {
		handleError(w, err, chatNotFound)
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, chatEnvelope{Chat: chat})
}

// ListChats returns the caller's chats with preview messages
// GET /api/chats
func (h *ChatHandler) ListChats(w http.ResponseWriter, r *http.Request) {
	chats, err := h.chatService.ListChats(r.Context(), httputil.GetUserID(r))
	if err != nil {
		h.logger.Error("failed to list chats", "error", err)
		handleError(w, err, chatNotFound)
		return
	}
	if chats == nil {
		chats = []models.Chat{}
	}

	httputil.RespondJSON(w, http.StatusOK, chatsEnvelope{Chats: chats})
}

// GetChat returns one chat with all messages
// GET /api/chats/{id}
func (h *ChatHandler) GetChat(w http.ResponseWriter, r *http.Request) {
	chatID, ok := pathID(w, r)
	if !ok {
		return
	}

	chat, err := h.chatService.GetChat(r.Context(), chatID, httputil.GetUserID(r))
	if err != nil {
		handleError(w, err, chatNotFound)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, chatEnvelope{Chat: chat})
}

// UpdateChat applies a partial update. "mode": null clears the mode.
// PATCH /api/chats/{id}
func (h *ChatHandler) UpdateChat(w http.ResponseWriter, r *http.Request) {
	chatID, ok := pathID(w, r)
	if !ok {
		return
	}

	var req services.UpdateChatRequest
	if err := httputil.ParseJSON(w, r, &req, config.MaxJSONBodyBytes); err != nil {
		handleError(w, err, chatNotFound)
		return
	}

	chat, err := h.chatService.UpdateChat(r.Context(), chatID, httputil.GetUserID(r), &req)
	if err != nil {
		handleError(w, err, chatNotFound)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, chatEnvelope{Chat: chat})
}

// DeleteChat removes a chat and its messages
// DELETE /api/chats/{id}
func (h *ChatHandler) DeleteChat(w http.ResponseWriter, r *http.Request) {
	chatID, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := h.chatService.DeleteChat(r.Context(), chatID, httputil.GetUserID(r)); err != nil {
		handleError(w, err, chatNotFound)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, map[string]bool{"success": true})
}
