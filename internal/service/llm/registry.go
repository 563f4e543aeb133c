package llm

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"

	"cortex/internal/domain/services"
	"cortex/internal/generation"
)

// TokenBudget sizes the reply for a provider's model.
// *capabilities.Registry implements it.
type TokenBudget interface {
	OutputTokens(provider, model string) int
}

// ProviderRegistry routes model strings to registered providers. It is the
// generation client's Backend.
type ProviderRegistry struct {
	providers map[string]services.LLMProvider
	budget    TokenBudget
	mu        sync.RWMutex
}

// NewProviderRegistry creates an empty registry. budget gives the output
// token limit passed to each provider call.
func NewProviderRegistry(budget TokenBudget) *ProviderRegistry {
	return &ProviderRegistry{
		providers: make(map[string]services.LLMProvider),
		budget:    budget,
	}
}

// Register adds a provider under its Name()
func (r *ProviderRegistry) Register(p services.LLMProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = p
}

// GetProvider returns the provider registered under name
func (r *ProviderRegistry) GetProvider(name string) (services.LLMProvider, error) {
	if name == "" {
		return nil, fmt.Errorf("provider cannot be empty")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("provider '%s' is not configured", name)
	}
	return p, nil
}

// Providers lists registered provider names, sorted
func (r *ProviderRegistry) Providers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Generate implements generation.Backend. Unknown models and unconfigured
// providers fail with 400 so the client moves on to the next candidate
// without retrying.
func (r *ProviderRegistry) Generate(ctx context.Context, model string, prompt generation.Prompt) (string, error) {
	info, err := ParseModel(model)
	if err != nil {
		return "", &generation.StatusError{Status: http.StatusBadRequest, Message: err.Error(), Err: err}
	}

	provider, err := r.GetProvider(info.Provider)
	if err != nil {
		return "", &generation.StatusError{Status: http.StatusBadRequest, Message: err.Error(), Err: err}
	}

	resp, err := provider.GenerateResponse(ctx, &services.GenerateRequest{
		Model:     info.Model,
		System:    prompt.System,
		Messages:  []services.ProviderMessage{{Role: "user", Content: prompt.Text}},
		MaxTokens: r.budget.OutputTokens(info.Provider, info.Model),
	})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}
