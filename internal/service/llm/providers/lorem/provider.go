package lorem

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	loremgen "github.com/bozaro/golorem"

	"cortex/internal/domain/services"
	"cortex/internal/generation"
)

// Provider is a mock LLM provider that generates lorem ipsum text.
// Used for development without real API keys. Some model names simulate
// upstream failures:
//   - lorem-overloaded: always 503
//   - lorem-ratelimited: always 429
//   - lorem-invalid: always 400
type Provider struct {
	generator *loremgen.Lorem
	delay     func(model string) time.Duration
}

// NewProvider creates a new lorem ipsum provider.
func NewProvider() *Provider {
	return &Provider{
		generator: loremgen.New(),
		delay:     getDelay,
	}
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "lorem"
}

// SupportsModel returns true if the model name starts with "lorem-".
func (p *Provider) SupportsModel(model string) bool {
	return strings.HasPrefix(model, "lorem-")
}

// GenerateResponse waits a model-dependent delay, then answers with a few
// paragraphs of lorem ipsum.
func (p *Provider) GenerateResponse(ctx context.Context, req *services.GenerateRequest) (*services.GenerateResponse, error) {
	if !p.SupportsModel(req.Model) {
		return nil, &generation.StatusError{
			Status:  http.StatusBadRequest,
			Message: fmt.Sprintf("model '%s' is not supported by lorem provider", req.Model),
		}
	}

	select {
	case <-time.After(p.delay(req.Model)):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if status := simulatedFailure(req.Model); status != 0 {
		return nil, &generation.StatusError{Status: status, Message: "simulated by " + req.Model}
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 || maxTokens > 1024 {
		maxTokens = 1024
	}
	// Estimate: 1 token ≈ 4 characters, kept short for the terminal
	text := p.generateText(min(maxTokens*4, 1200))

	return &services.GenerateResponse{
		Text:         text,
		Model:        req.Model,
		InputTokens:  estimateTokens(req),
		OutputTokens: len(strings.Fields(text)),
		StopReason:   "end_turn",
	}, nil
}

// getDelay returns the simulated latency for a model
func getDelay(model string) time.Duration {
	switch {
	case strings.Contains(model, "slow"):
		return 3 * time.Second
	case strings.Contains(model, "fast"):
		return 50 * time.Millisecond
	default:
		return 500 * time.Millisecond
	}
}

func simulatedFailure(model string) int {
	switch {
	case strings.Contains(model, "overloaded"):
		return http.StatusServiceUnavailable
	case strings.Contains(model, "ratelimited"):
		return http.StatusTooManyRequests
	case strings.Contains(model, "invalid"):
		return http.StatusBadRequest
	}
	return 0
}

func (p *Provider) generateText(targetChars int) string {
	var sb strings.Builder
	for sb.Len() < targetChars {
		sb.WriteString(p.generator.Paragraph(2, 4))
		sb.WriteString("\n\n")
	}
	return strings.TrimSpace(sb.String())
}

func estimateTokens(req *services.GenerateRequest) int {
	words := len(strings.Fields(req.System))
	for _, msg := range req.Messages {
		words += len(strings.Fields(msg.Content))
	}
	return words
}
