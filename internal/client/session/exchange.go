package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"cortex/internal/client/api"
	"cortex/internal/client/events"
	"cortex/internal/domain/models"
	"cortex/internal/generation"
)

// EmptyReplyMessage is shown when the server answered with no text
const EmptyReplyMessage = "No response returned."

// exchange pins an in-flight request to the chat it was issued for, so a
// reply arriving after the user switched chats lands in the right record.
type exchange struct {
	epoch     uint64
	chatID    string
	mode      *string
	deep      bool
	userMsgID string
}

// Send appends text as a user message and requests the assistant reply.
// The user message stays in the transcript whatever happens next, followed
// by exactly one reply: the real one, a canned apology when the service is
// overloaded or unreachable, or an explicit error. When the chat cannot be
// created the pair lives in memory only and the creation error is returned.
func (m *Manager) Send(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyMessage
	}

	m.mu.Lock()
	if m.busy || m.hydrating {
		m.mu.Unlock()
		return ErrBusy
	}
	m.busy = true
	user := models.Message{
		ID:        m.newID(),
		Role:      models.RoleUser,
		Content:   text,
		CreatedAt: m.now(),
	}
	m.messages = append(m.messages, user)
	ex := exchange{
		epoch:     m.epoch,
		chatID:    m.chat.ID,
		mode:      m.currentModeLocked(),
		deep:      m.deepSearch,
		userMsgID: user.ID,
	}
	var evs []events.Event
	if ex.chatID != "" {
		m.touchLocked()
		evs = m.writeThroughLocked(true)
	}
	m.mu.Unlock()
	defer m.setBusy(false)

	m.publish(evs)

	if ex.chatID == "" {
		if err := m.ensureChat(ctx, &ex, text); err != nil {
			return err
		}
	}
	return m.generate(ctx, ex, text, false)
}

// EnsureChat returns the active chat id, creating a chat titled after
// firstText when none is active.
func (m *Manager) EnsureChat(ctx context.Context, firstText string) (string, error) {
	m.mu.Lock()
	ex := exchange{epoch: m.epoch, chatID: m.chat.ID, mode: m.currentModeLocked()}
	m.mu.Unlock()

	if ex.chatID != "" {
		return ex.chatID, nil
	}
	if err := m.ensureChat(ctx, &ex, firstText); err != nil {
		return "", err
	}
	return ex.chatID, nil
}

// ensureChat creates the chat for ex and adopts it as the active chat. On
// failure an error reply is appended in memory and nothing is persisted.
func (m *Manager) ensureChat(ctx context.Context, ex *exchange, firstText string) error {
	chat, err := m.api.CreateChat(ctx, models.TitleFromMessage(firstText), ex.mode)
	if err != nil {
		m.logger.Warn("chat creation failed", "status", api.StatusOf(err), "error", err)

		m.mu.Lock()
		if m.epoch == ex.epoch && m.chat.ID == "" && ex.userMsgID != "" {
			m.messages = append(m.messages, models.Message{
				ID:        m.newID(),
				Role:      models.RoleAssistant,
				Content:   errorReply(err),
				CreatedAt: m.now(),
			})
		}
		m.mu.Unlock()
		return fmt.Errorf("create chat: %w", err)
	}

	ex.chatID = chat.ID
	record := *chat
	record.Messages = nil

	m.mu.Lock()
	if m.epoch != ex.epoch || m.chat.ID != "" {
		// the user moved on while the chat was being created
		var pending []models.Message
		if i := m.indexLocked(ex.userMsgID); i >= 0 {
			pending = append(pending, m.messages[i])
		}
		m.mu.Unlock()

		record.Messages = pending
		m.cache.Save(record)
		m.bus.Publish(events.Event{Kind: events.ChatListRefresh, ChatID: chat.ID})
		return nil
	}

	m.chat = record
	m.pendingMode = nil
	m.touchLocked()
	evs := m.writeThroughLocked(false)
	m.mu.Unlock()

	m.logger.Info("chat created", "chat_id", chat.ID)
	m.prefs.SetCurrentChatID(chat.ID)
	m.publish(append([]events.Event{{Kind: events.ActiveChatChanged, ChatID: chat.ID}}, evs...))
	return nil
}

// generate requests the reply for text and appends it. Real replies are
// revealed gradually; apologies and errors appear at once.
func (m *Manager) generate(ctx context.Context, ex exchange, text string, regenerate bool) error {
	resp, err := m.api.Generate(ctx, api.GenerateRequest{
		ChatID:     ex.chatID,
		Message:    text,
		Mode:       ex.mode,
		DeepSearch: ex.deep,
		Regenerate: regenerate,
	})

	reply := models.Message{
		ID:        m.newID(),
		Role:      models.RoleAssistant,
		CreatedAt: m.now(),
	}
	reveal := false
	var result error

	switch {
	case err == nil:
		if resp.MessageID != "" {
			reply.ID = resp.MessageID
		}
		reply.Content = resp.Response
		if strings.TrimSpace(reply.Content) == "" {
			reply.Content = EmptyReplyMessage
		}
		reveal = true
		if resp.Degraded {
			m.logger.Warn("server returned a degraded reply", "chat_id", ex.chatID)
		}

	case ctx.Err() == nil && unreachable(api.StatusOf(err)):
		status := api.StatusOf(err)
		m.logger.Warn("generation unavailable, using fallback reply", "chat_id", ex.chatID, "status", status, "error", err)
		reply.Content = generation.ApologyFor(status)

	default:
		m.logger.Error("generation failed", "chat_id", ex.chatID, "status", api.StatusOf(err), "error", err)
		reply.Content = errorReply(err)
		result = fmt.Errorf("generate reply: %w", err)
	}

	m.mu.Lock()
	if m.chat.ID != ex.chatID {
		m.mu.Unlock()
		m.cache.AppendMessage(ex.chatID, reply)
		m.bus.Publish(events.Event{Kind: events.ChatListRefresh, ChatID: ex.chatID})
		return result
	}
	if m.epoch != ex.epoch && m.indexLocked(reply.ID) >= 0 {
		// the chat was reopened and the reload already carried the reply
		m.mu.Unlock()
		return result
	}

	if resp != nil && resp.UserMessageID != "" && ex.userMsgID != "" {
		if i := m.indexLocked(ex.userMsgID); i >= 0 {
			m.dropped[ex.userMsgID] = struct{}{}
			m.messages[i].ID = resp.UserMessageID
		}
	}

	visible := reply
	if reveal {
		m.full[reply.ID] = reply.Content
		m.streamingID = reply.ID
		visible.Content = ""
	}
	m.messages = append(m.messages, visible)
	m.touchLocked()
	evs := m.writeThroughLocked(true)
	m.mu.Unlock()

	m.publish(evs)
	if reveal {
		m.sim.Reveal(reply.Content, reply.ID)
	}
	return result
}

// unreachable reports a failure that never got an answer from the generation
// endpoint: a transport error or a gateway in front of it. The endpoint turns
// its own exhausted retries into a degraded reply, so any other status is a
// real error.
func unreachable(status int) bool {
	switch status {
	case 0, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

func (m *Manager) setBusy(busy bool) {
	m.mu.Lock()
	m.busy = busy
	m.mu.Unlock()
}

// errorReply renders a failure as transcript text
func errorReply(err error) string {
	detail := err.Error()
	var apiErr *api.Error
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		detail = apiErr.Message
	}
	return "Sorry, I encountered an error: " + detail
}
