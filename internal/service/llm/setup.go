package llm

import (
	"fmt"
	"log/slog"
	"strings"

	"cortex/internal/capabilities"
	"cortex/internal/config"
	"cortex/internal/domain/repositories"
	"cortex/internal/domain/services"
	"cortex/internal/generation"
	"cortex/internal/service/llm/providers/anthropic"
	"cortex/internal/service/llm/providers/lorem"
)

// SetupProviders registers every provider the configuration allows.
// The lorem provider needs no key and is always available.
func SetupProviders(cfg *config.Config, catalog *capabilities.Registry, logger *slog.Logger) (*ProviderRegistry, error) {
	registry := NewProviderRegistry(catalog)
	registry.Register(lorem.NewProvider())

	if cfg.AnthropicAPIKey != "" {
		provider, err := anthropic.NewProvider(cfg.AnthropicAPIKey)
		if err != nil {
			return nil, fmt.Errorf("failed to create anthropic provider: %w", err)
		}
		registry.Register(provider)
		logger.Info("provider available", "name", "anthropic", "models", catalogModels(catalog, "anthropic"))
	} else {
		logger.Warn("ANTHROPIC_API_KEY not set - Anthropic provider not available")
	}

	logger.Info("provider registry initialized", "providers", registry.Providers())
	return registry, nil
}

func catalogModels(catalog *capabilities.Registry, provider string) string {
	listed, err := catalog.ListProviderModels(provider)
	if err != nil {
		return ""
	}
	names := make([]string, len(listed))
	for i, m := range listed {
		names[i] = m.ID
	}
	return strings.Join(names, ",")
}

// UnknownCandidates returns the candidates the catalog does not list, such
// as a mistyped GENERATION_MODELS entry. They are still tried, with the
// default token budget.
func UnknownCandidates(candidates []string, catalog *capabilities.Registry) []string {
	var unknown []string
	for _, c := range candidates {
		info, err := ParseModel(c)
		if err != nil || !catalog.KnownModel(info.Provider, info.Model) {
			unknown = append(unknown, c)
		}
	}
	return unknown
}

// GenerationConfig resolves the candidate list and retry timing. Explicit
// GENERATION_MODELS win; otherwise the catalog's online list is used when an
// Anthropic key is configured and the offline list when not.
func GenerationConfig(cfg *config.Config, catalog *capabilities.Registry) generation.Config {
	models := cfg.GenerationModels
	if len(models) == 0 {
		models = catalog.Candidates(cfg.AnthropicAPIKey != "")
	}

	gen := generation.DefaultConfig(models...)
	gen.MaxAttempts = cfg.GenerationMaxRetries
	gen.BaseDelay = cfg.GenerationBaseDelay
	gen.MaxDelay = cfg.GenerationMaxDelay
	gen.AttemptTimeout = cfg.GenerationTimeout
	return gen
}

// SetupServices wires the generation client and the reply service
func SetupServices(
	chatRepo repositories.ChatRepository,
	messageRepo repositories.MessageRepository,
	txManager repositories.TransactionManager,
	providers *ProviderRegistry,
	catalog *capabilities.Registry,
	cfg *config.Config,
	logger *slog.Logger,
) (services.GenerationService, error) {
	genCfg := GenerationConfig(cfg, catalog)

	client, err := generation.NewClient(providers, genCfg, logger.With("component", "generation"))
	if err != nil {
		return nil, fmt.Errorf("failed to create generation client: %w", err)
	}

	for _, c := range UnknownCandidates(genCfg.Models, catalog) {
		logger.Warn("model candidate not in catalog", "model", c)
	}

	logger.Info("generation configured",
		"models", strings.Join(genCfg.Models, ","),
		"max_attempts", genCfg.MaxAttempts,
		"timeout", genCfg.AttemptTimeout,
	)

	return NewGenerationService(chatRepo, messageRepo, txManager, client, catalog, logger), nil
}
