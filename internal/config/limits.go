package config

const (
	// MaxChatTitleLength is the maximum length for chat titles.
	// Limited to 255 to fit in PostgreSQL VARCHAR(255).
	MaxChatTitleLength = 255

	// MaxMessageLength bounds a single user message, in characters
	MaxMessageLength = 100_000

	// MaxGenerateBodyBytes is the request body ceiling for POST /api/chat.
	// Larger bodies are rejected with 413 and the limit in the response.
	MaxGenerateBodyBytes int64 = 8 << 20

	// MaxJSONBodyBytes is the ceiling for the other JSON endpoints
	MaxJSONBodyBytes int64 = 1 << 20
)
