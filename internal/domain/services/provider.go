package services

import "context"

// LLMProvider is implemented by every model backend (Anthropic, lorem, ...).
type LLMProvider interface {
	// GenerateResponse runs one blocking completion
	GenerateResponse(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error)

	// Name returns the provider name (e.g., "anthropic")
	Name() string

	// SupportsModel returns true if the provider serves the given model id
	SupportsModel(model string) bool
}

// GenerateRequest contains the parameters for one completion
type GenerateRequest struct {
	Model     string
	System    string
	Messages  []ProviderMessage
	MaxTokens int
}

// ProviderMessage is a plain-text conversation entry
type ProviderMessage struct {
	Role    string
	Content string
}

// GenerateResponse is the provider's answer
type GenerateResponse struct {
	Text         string
	Model        string
	InputTokens  int
	OutputTokens int
	StopReason   string
}
