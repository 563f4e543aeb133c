package capabilities

import (
	"embed"
	"fmt"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed config/*.yaml
var configFiles embed.FS

// Registry manages model capabilities across all providers, plus the
// generation catalog
type Registry struct {
	providers  map[string]*ProviderCapabilities
	generation GenerationCatalog
	mu         sync.RWMutex
}

// NewRegistry creates a new capability registry and loads embedded YAML files
func NewRegistry() (*Registry, error) {
	r := &Registry{
		providers: make(map[string]*ProviderCapabilities),
	}

	for _, provider := range []string{"anthropic", "lorem"} {
		if err := r.loadProviderFile(provider); err != nil {
			return nil, fmt.Errorf("failed to load %s capabilities: %w", provider, err)
		}
	}

	if err := r.loadGenerationFile(); err != nil {
		return nil, err
	}

	return r, nil
}

// loadProviderFile loads a provider's capability YAML file
func (r *Registry) loadProviderFile(provider string) error {
	filename := fmt.Sprintf("config/%s.yaml", provider)
	data, err := configFiles.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", filename, err)
	}

	var providerCaps ProviderCapabilities
	if err := yaml.Unmarshal(data, &providerCaps); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", filename, err)
	}

	r.mu.Lock()
	r.providers[provider] = &providerCaps
	r.mu.Unlock()

	return nil
}

func (r *Registry) loadGenerationFile() error {
	data, err := configFiles.ReadFile("config/generation.yaml")
	if err != nil {
		return fmt.Errorf("failed to read generation catalog: %w", err)
	}

	var catalog GenerationCatalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return fmt.Errorf("failed to unmarshal generation catalog: %w", err)
	}
	if len(catalog.Candidates) == 0 {
		return fmt.Errorf("generation catalog has no candidates")
	}

	r.mu.Lock()
	r.generation = catalog
	r.mu.Unlock()
	return nil
}

// GetModelCapabilities returns capabilities for a specific model
func (r *Registry) GetModelCapabilities(provider, model string) (*ModelCapabilities, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.providers[provider]; !ok {
		return nil, fmt.Errorf("unknown provider: %s", provider)
	}
	if caps := r.findLocked(provider, model); caps != nil {
		cp := *caps
		return &cp, nil
	}
	return nil, fmt.Errorf("unknown model %s for provider %s", model, provider)
}

// ListProviderModels returns all models for a provider (ordered as defined in YAML)
func (r *Registry) ListProviderModels(provider string) ([]ModelCapabilities, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	providerCaps, ok := r.providers[provider]
	if !ok {
		return nil, fmt.Errorf("unknown provider: %s", provider)
	}

	return append([]ModelCapabilities(nil), providerCaps.Models...), nil
}

// Candidates returns the model candidates ("provider/model"), primary
// first. With online unset the offline list is returned.
func (r *Registry) Candidates(online bool) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if online || len(r.generation.OfflineCandidates) == 0 {
		return append([]string(nil), r.generation.Candidates...)
	}
	return append([]string(nil), r.generation.OfflineCandidates...)
}

// maxTokensLocked is the catalog-wide reply budget
func (r *Registry) maxTokensLocked() int {
	if r.generation.MaxTokens <= 0 {
		return 1024
	}
	return r.generation.MaxTokens
}

// OutputTokens returns the reply budget for one model: the catalog budget,
// capped by the model's max_output when the model is listed
func (r *Registry) OutputTokens(provider, model string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	budget := r.maxTokensLocked()
	if caps := r.findLocked(provider, model); caps != nil && caps.MaxOutput > 0 && caps.MaxOutput < budget {
		return caps.MaxOutput
	}
	return budget
}

// KnownModel reports whether the provider's YAML lists the model
func (r *Registry) KnownModel(provider, model string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.findLocked(provider, model) != nil
}

func (r *Registry) findLocked(provider, model string) *ModelCapabilities {
	providerCaps, ok := r.providers[provider]
	if !ok {
		return nil
	}
	for i := range providerCaps.Models {
		if providerCaps.Models[i].ID == model {
			return &providerCaps.Models[i]
		}
	}
	return nil
}

// ModeContext returns the system context for a chat mode. Unknown or empty
// modes get the default context.
func (r *Registry) ModeContext(mode string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if ctx, ok := r.generation.Modes[strings.TrimSpace(mode)]; ok {
		return ctx
	}
	return r.generation.DefaultContext
}
