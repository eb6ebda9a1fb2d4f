package provider

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/llamafarm/llamafarm-core/internal/logging"
)

// Registry manages all available providers and the model they serve.
type Registry struct {
	mu           sync.RWMutex
	providers    map[string]Provider
	defaultModel string // "provider/model", set by SetDefaultModel
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// SetDefaultModel records the "provider/model" reference DefaultModel
// should resolve to when one isn't otherwise available.
func (r *Registry) SetDefaultModel(ref string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defaultModel = ref
}

// Register adds a provider to the registry.
func (r *Registry) Register(provider Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[provider.ID()] = provider
}

// Get retrieves a provider by ID.
func (r *Registry) Get(providerID string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	provider, ok := r.providers[providerID]
	if !ok {
		return nil, fmt.Errorf("provider not found: %s", providerID)
	}
	return provider, nil
}

// List returns all available providers.
func (r *Registry) List() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	providers := make([]Provider, 0, len(r.providers))
	for _, p := range r.providers {
		providers = append(providers, p)
	}
	return providers
}

// GetModel retrieves a specific model from a provider.
func (r *Registry) GetModel(providerID, modelID string) (*ModelInfo, error) {
	provider, err := r.Get(providerID)
	if err != nil {
		return nil, err
	}

	for _, model := range provider.Models() {
		if model.ID == modelID {
			return &model, nil
		}
	}

	return nil, fmt.Errorf("model not found: %s/%s", providerID, modelID)
}

// AllModels returns all models from all providers, ranked by priority.
func (r *Registry) AllModels() []ModelInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var models []ModelInfo
	for _, p := range r.providers {
		models = append(models, p.Models()...)
	}

	sort.Slice(models, func(i, j int) bool {
		return modelPriority(models[i].ID) > modelPriority(models[j].ID)
	})

	return models
}

// DefaultModel returns the registry's default model: the one named by
// SetDefaultModel if set, else anthropic's claude-sonnet-4-20250514 when
// that provider and model are registered, else the highest-priority
// model of AllModels.
func (r *Registry) DefaultModel() (*ModelInfo, error) {
	r.mu.RLock()
	ref := r.defaultModel
	r.mu.RUnlock()

	if ref != "" {
		providerID, modelID := ParseModelString(ref)
		return r.GetModel(providerID, modelID)
	}

	model, err := r.GetModel("anthropic", "claude-sonnet-4-20250514")
	if err == nil {
		return model, nil
	}

	models := r.AllModels()
	if len(models) == 0 {
		return nil, fmt.Errorf("no models available")
	}
	return &models[0], nil
}

// ParseModelString parses "provider/model" format.
func ParseModelString(s string) (providerID, modelID string) {
	parts := strings.SplitN(s, "/", 2)
	if len(parts) == 2 {
		return parts[0], parts[1]
	}
	return "", s
}

// modelPriority returns sorting priority for models.
func modelPriority(modelID string) int {
	switch {
	case strings.Contains(modelID, "gpt-5"):
		return 100
	case strings.Contains(modelID, "claude-sonnet-4"):
		return 90
	case strings.Contains(modelID, "claude-opus"):
		return 85
	case strings.Contains(modelID, "gpt-4o"):
		return 80
	case strings.Contains(modelID, "claude-3-5"):
		return 75
	case strings.Contains(modelID, "gemini-2"):
		return 70
	default:
		return 50
	}
}

// InitializeFromEnv registers the anthropic, openai and ark backends
// that have credentials available in the process environment
// (ANTHROPIC_API_KEY, OPENAI_API_KEY, ARK_API_KEY/ARK_BASE_URL). A
// language-family modeladapter uses this to resolve a ModelRecord's
// backend without the project manifest having to restate credentials
// that belong in the environment, not in version-controlled config.
func InitializeFromEnv(ctx context.Context) (*Registry, error) {
	registry := NewRegistry()

	if apiKey := os.Getenv("ANTHROPIC_API_KEY"); apiKey != "" {
		provider, err := NewAnthropicProvider(ctx, &AnthropicConfig{
			ID:        "anthropic",
			APIKey:    apiKey,
			BaseURL:   os.Getenv("ANTHROPIC_BASE_URL"),
			MaxTokens: 8192,
		})
		if err != nil {
			logging.Logger.Error().Err(err).Msg("failed to register anthropic provider from environment")
		} else {
			registry.Register(provider)
		}
	}

	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		provider, err := NewOpenAIProvider(ctx, &OpenAIConfig{
			ID:        "openai",
			APIKey:    apiKey,
			BaseURL:   os.Getenv("OPENAI_BASE_URL"),
			MaxTokens: 4096,
		})
		if err != nil {
			logging.Logger.Error().Err(err).Msg("failed to register openai provider from environment")
		} else {
			registry.Register(provider)
		}
	}

	if apiKey := os.Getenv("ARK_API_KEY"); apiKey != "" {
		provider, err := NewArkProvider(ctx, &ArkConfig{
			APIKey:    apiKey,
			BaseURL:   os.Getenv("ARK_BASE_URL"),
			Model:     os.Getenv("ARK_ENDPOINT_ID"),
			MaxTokens: 4096,
		})
		if err != nil {
			logging.Logger.Error().Err(err).Msg("failed to register ark provider from environment")
		} else {
			registry.Register(provider)
		}
	}

	return registry, nil
}
