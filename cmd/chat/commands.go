package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"cortex/internal/client/session"
	"cortex/internal/domain/models"
)

var errNoActiveChat = errors.New("no active chat")

// parseCommand splits "/name rest of line" into its lower-cased name and
// the trimmed remainder
func parseCommand(input string) (name, args string) {
	input = strings.TrimPrefix(strings.TrimSpace(input), "/")
	name, args, _ = strings.Cut(input, " ")
	return strings.ToLower(name), strings.TrimSpace(args)
}

// parseIndex parses a 1-based number
func parseIndex(arg string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(arg))
	if err != nil {
		return 0, false
	}
	return n, true
}

// pickMessage resolves a transcript number. An empty ref picks the last
// message with the wanted role.
func pickMessage(msgs []models.Message, ref string, role models.Role) (models.Message, error) {
	if strings.TrimSpace(ref) == "" {
		for i := len(msgs) - 1; i >= 0; i-- {
			if msgs[i].Role == role {
				return msgs[i], nil
			}
		}
		return models.Message{}, fmt.Errorf("no %s message yet", role)
	}

	n, ok := parseIndex(ref)
	if !ok {
		return models.Message{}, fmt.Errorf("%q is not a message number", ref)
	}
	if n < 1 || n > len(msgs) {
		return models.Message{}, fmt.Errorf("%w: #%d", session.ErrMessageNotFound, n)
	}
	msg := msgs[n-1]
	if msg.Role != role {
		return models.Message{}, fmt.Errorf("%w: #%d is a %s message", session.ErrWrongRole, n, msg.Role)
	}
	return msg, nil
}

func indexOf(msgs []models.Message, id string) int {
	for i, m := range msgs {
		if m.ID == id {
			return i
		}
	}
	return len(msgs)
}

// lastReply returns the newest assistant message at or after index from
func lastReply(msgs []models.Message, from int) *models.Message {
	if from < 0 {
		from = 0
	}
	for i := len(msgs) - 1; i >= from; i-- {
		if msgs[i].Role == models.RoleAssistant {
			return &msgs[i]
		}
	}
	return nil
}

// parseFeedback reads "reason,reason free text". The first word is taken
// as the reason list when every entry is a known reason.
func parseFeedback(rest string) (reasons []string, comment string) {
	rest = strings.TrimSpace(rest)
	first, tail, _ := strings.Cut(rest, " ")
	for _, r := range strings.Split(first, ",") {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		if !knownReason(r) {
			return nil, rest
		}
		reasons = append(reasons, r)
	}
	return reasons, strings.TrimSpace(tail)
}

func knownReason(reason string) bool {
	for _, r := range session.FeedbackReasons {
		if r == reason {
			return true
		}
	}
	return false
}

// matchMode finds a mode by case-insensitive name or unique prefix
func matchMode(arg string) (string, bool) {
	arg = strings.TrimSpace(arg)
	var found []string
	for _, m := range models.Modes {
		if strings.EqualFold(m, arg) {
			return m, true
		}
		if strings.HasPrefix(strings.ToLower(m), strings.ToLower(arg)) {
			found = append(found, m)
		}
	}
	if len(found) == 1 {
		return found[0], true
	}
	return "", false
}
