package session

import "errors"

var (
	// ErrBusy is returned while another exchange or a hydration is in flight
	ErrBusy = errors.New("another request is in progress")

	// ErrEmptyMessage is returned for blank input
	ErrEmptyMessage = errors.New("message is empty")

	// ErrMessageNotFound is returned when an action targets an unknown message
	ErrMessageNotFound = errors.New("message not found")

	// ErrWrongRole is returned when an action targets a message of the wrong role
	ErrWrongRole = errors.New("action not allowed for this message")

	// ErrChatNotFound is returned when the server no longer has the chat
	ErrChatNotFound = errors.New("chat not found")

	// ErrUnknownMode is returned for modes outside the fixed set
	ErrUnknownMode = errors.New("unknown mode")

	// ErrEmptyTitle is returned when renaming to a blank title
	ErrEmptyTitle = errors.New("title is empty")

	// ErrEmptyFeedback is returned when feedback has neither reasons nor text
	ErrEmptyFeedback = errors.New("feedback needs a reason or a comment")

	// ErrUnknownReason is returned for feedback reasons outside the fixed set
	ErrUnknownReason = errors.New("unknown feedback reason")

	// ErrEmptyToken is returned when signing in without a token
	ErrEmptyToken = errors.New("token is empty")

	// ErrTokenUnsupported is returned when the API cannot change tokens
	ErrTokenUnsupported = errors.New("api does not accept session tokens")
)
