package services

import "context"

// GenerationService answers a user message inside an existing chat and
// persists both sides of the exchange.
type GenerationService interface {
	Reply(ctx context.Context, req *ReplyRequest) (*ReplyResponse, error)
}

// ReplyRequest is the body of POST /api/chat
type ReplyRequest struct {
	UserID     string  `json:"-"`
	ChatID     string  `json:"chatId"`
	Message    string  `json:"message"`
	Mode       *string `json:"mode"`
	DeepSearch bool    `json:"deepSearch,omitempty"`
	// Regenerate answers a message already stored in the chat; the user
	// message is not saved again
	Regenerate bool `json:"regenerate,omitempty"`
}

// ReplyResponse carries the assistant text. Degraded is set when the text is
// a canned apology produced after every model candidate failed.
type ReplyResponse struct {
	Response      string `json:"response"`
	MessageID     string `json:"messageId"`
	UserMessageID string `json:"userMessageId,omitempty"`
	Model         string `json:"model,omitempty"`
	Degraded      bool   `json:"degraded,omitempty"`
}
