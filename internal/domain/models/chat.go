package models

import (
	"sort"
	"strings"
	"time"
	"unicode/utf8"
)

// Role identifies the author of a chat message
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the known roles
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Feedback is the user's rating of an assistant message.
// The zero value means no feedback.
type Feedback string

const (
	FeedbackNone    Feedback = ""
	FeedbackLike    Feedback = "like"
	FeedbackDislike Feedback = "dislike"
)

// TitlePreviewLength is the number of characters of the first user message
// kept when deriving a chat title.
const TitlePreviewLength = 50

// Chat is a conversation owned by one user (server) or living only in the
// local cache when the client is unauthenticated.
type Chat struct {
	ID         string    `json:"id" db:"id"`
	UserID     string    `json:"-" db:"user_id"`
	Title      string    `json:"title" db:"title"`
	Mode       *string   `json:"mode" db:"mode"`
	IsFavorite bool      `json:"isFavorite" db:"is_favorite"`
	CreatedAt  time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt  time.Time `json:"updatedAt" db:"updated_at"`
	Messages   []Message `json:"messages"`
}

// Message is a single transcript entry
type Message struct {
	ID        string    `json:"id" db:"id"`
	ChatID    string    `json:"-" db:"chat_id"`
	Content   string    `json:"content" db:"content"`
	Role      Role      `json:"role" db:"role"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	Feedback  Feedback  `json:"feedback,omitempty" db:"-"`
}

// TitleFromMessage derives a chat title from the first user message:
// the first TitlePreviewLength characters, with "..." appended when cut.
func TitleFromMessage(text string) string {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) <= TitlePreviewLength {
		return text
	}
	runes := []rune(text)
	return string(runes[:TitlePreviewLength]) + "..."
}

// SortMessages orders messages by creation time ascending.
// Messages with equal timestamps keep their relative order.
func SortMessages(msgs []Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
	})
}

// LastActivity returns UpdatedAt, falling back to CreatedAt when unset
func (c *Chat) LastActivity() time.Time {
	if c.UpdatedAt.IsZero() {
		return c.CreatedAt
	}
	return c.UpdatedAt
}

// Clone returns a deep copy of the chat
func (c *Chat) Clone() Chat {
	out := *c
	if c.Mode != nil {
		m := *c.Mode
		out.Mode = &m
	}
	out.Messages = append([]Message(nil), c.Messages...)
	return out
}
