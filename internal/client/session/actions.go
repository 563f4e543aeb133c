package session

import (
	"context"
	"fmt"
	"strings"

	"cortex/internal/client/events"
	"cortex/internal/domain/models"
)

// Like toggles a like on the message, replacing any dislike
func (m *Manager) Like(id string) error {
	return m.toggleFeedback(id, models.FeedbackLike)
}

// Dislike toggles a dislike on the message, replacing any like
func (m *Manager) Dislike(id string) error {
	return m.toggleFeedback(id, models.FeedbackDislike)
}

func (m *Manager) toggleFeedback(id string, fb models.Feedback) error {
	m.mu.Lock()
	i := m.indexLocked(id)
	if i < 0 {
		m.mu.Unlock()
		return fmt.Errorf("%s: %w", id, ErrMessageNotFound)
	}
	if m.messages[i].Feedback == fb {
		m.messages[i].Feedback = models.FeedbackNone
	} else {
		m.messages[i].Feedback = fb
	}
	evs := m.writeThroughLocked(true)
	m.mu.Unlock()

	m.publish(evs)
	return nil
}

// Copy puts the message text on the clipboard. Clipboard failures are
// logged only.
func (m *Manager) Copy(id string) error {
	m.mu.Lock()
	i := m.indexLocked(id)
	if i < 0 {
		m.mu.Unlock()
		return fmt.Errorf("%s: %w", id, ErrMessageNotFound)
	}
	text := m.messages[i].Content
	if full, ok := m.full[id]; ok {
		text = full
	}
	m.mu.Unlock()

	if err := m.clip.WriteAll(text); err != nil {
		m.logger.Warn("copy to clipboard failed", "message_id", id, "error", err)
	}
	return nil
}

// StopGeneration halts the reveal in progress. The message keeps the text
// shown so far.
func (m *Manager) StopGeneration() {
	m.mu.Lock()
	m.stopped = m.streamingID
	m.mu.Unlock()
	m.sim.Stop()
}

// Retry regenerates the reply to the user message right before the given
// assistant message. The first message of a chat, or an assistant message
// not preceded by a user message, cannot be retried and is left alone.
func (m *Manager) Retry(ctx context.Context, assistantID string) error {
	m.mu.Lock()
	if m.busy || m.hydrating {
		m.mu.Unlock()
		return ErrBusy
	}
	i := m.indexLocked(assistantID)
	if i < 0 {
		m.mu.Unlock()
		return fmt.Errorf("%s: %w", assistantID, ErrMessageNotFound)
	}
	if m.messages[i].Role != models.RoleAssistant {
		m.mu.Unlock()
		return fmt.Errorf("retry %s: %w", assistantID, ErrWrongRole)
	}
	if i == 0 || m.messages[i-1].Role != models.RoleUser {
		m.mu.Unlock()
		return nil
	}

	user := m.messages[i-1]
	m.messages = append(m.messages[:i:i], m.messages[i+1:]...)
	delete(m.full, assistantID)
	m.dropped[assistantID] = struct{}{}
	m.busy = true
	ex := exchange{
		epoch:     m.epoch,
		chatID:    m.chat.ID,
		mode:      m.currentModeLocked(),
		deep:      m.deepSearch,
		userMsgID: user.ID,
	}
	m.touchLocked()
	evs := m.writeThroughLocked(true)
	m.mu.Unlock()
	defer m.setBusy(false)

	m.stopRevealOf(assistantID)
	m.publish(evs)

	if ex.chatID == "" {
		if err := m.ensureChat(ctx, &ex, user.Content); err != nil {
			return err
		}
		return m.generate(ctx, ex, user.Content, false)
	}
	return m.generate(ctx, ex, user.Content, !strings.HasPrefix(user.ID, provisionalPrefix))
}

// Edit replaces a user message's text, drops everything after it and
// requests a new reply. Blank text cancels the edit.
func (m *Manager) Edit(ctx context.Context, userID, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	m.mu.Lock()
	if m.busy || m.hydrating {
		m.mu.Unlock()
		return ErrBusy
	}
	i := m.indexLocked(userID)
	if i < 0 {
		m.mu.Unlock()
		return fmt.Errorf("%s: %w", userID, ErrMessageNotFound)
	}
	if m.messages[i].Role != models.RoleUser {
		m.mu.Unlock()
		return fmt.Errorf("edit %s: %w", userID, ErrWrongRole)
	}

	for _, dropped := range m.messages[i+1:] {
		delete(m.full, dropped.ID)
		m.dropped[dropped.ID] = struct{}{}
	}
	m.messages = m.messages[: i+1 : i+1]
	m.messages[i].Content = text
	m.busy = true
	ex := exchange{
		epoch:     m.epoch,
		chatID:    m.chat.ID,
		mode:      m.currentModeLocked(),
		deep:      m.deepSearch,
		userMsgID: userID,
	}
	var evs []events.Event
	if ex.chatID != "" {
		m.touchLocked()
		evs = m.writeThroughLocked(true)
	}
	streaming := m.streamingID
	m.mu.Unlock()
	defer m.setBusy(false)

	if streaming != "" && streaming != userID {
		m.stopRevealOf(streaming)
	}
	m.publish(evs)

	if ex.chatID == "" {
		if err := m.ensureChat(ctx, &ex, text); err != nil {
			return err
		}
	}
	return m.generate(ctx, ex, text, false)
}

// stopRevealOf cancels the reveal only if it is animating id
func (m *Manager) stopRevealOf(id string) {
	if active, ok := m.sim.Active(); ok && active == id {
		m.sim.Stop()
	}
}
