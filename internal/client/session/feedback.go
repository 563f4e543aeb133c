package session

import (
	"fmt"
	"slices"
	"strings"
)

// FeedbackReasons are the reasons a user may give for rating a reply
var FeedbackReasons = []string{
	"inaccurate",
	"out_of_date",
	"too_short",
	"too_long",
	"harmful",
	"not_helpful",
}

// Feedback is a user report about one assistant message
type Feedback struct {
	MessageID string
	Reasons   []string
	Comment   string
}

// SubmitFeedback validates and records a report. At least one reason or a
// non-empty comment is required.
func (m *Manager) SubmitFeedback(fb Feedback) error {
	fb.Comment = strings.TrimSpace(fb.Comment)
	if len(fb.Reasons) == 0 && fb.Comment == "" {
		return ErrEmptyFeedback
	}
	for _, r := range fb.Reasons {
		if !slices.Contains(FeedbackReasons, r) {
			return fmt.Errorf("%q: %w", r, ErrUnknownReason)
		}
	}

	m.mu.Lock()
	chatID := m.chat.ID
	found := m.indexLocked(fb.MessageID) >= 0
	m.mu.Unlock()
	if !found {
		return fmt.Errorf("%s: %w", fb.MessageID, ErrMessageNotFound)
	}

	m.logger.Info("feedback submitted",
		"chat_id", chatID,
		"message_id", fb.MessageID,
		"reasons", fb.Reasons,
		"comment", fb.Comment,
	)
	return nil
}
