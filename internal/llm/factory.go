package llm

import (
	"fmt"
	"os"

	"github.com/campusrag/advisor/internal/config"
)

// NewProvider creates a chat provider from configuration. The API key is
// read from the provider's conventional environment variable.
func NewProvider(cfg *config.Config) (Provider, error) {
	envVar := config.APIKeyEnvVar(cfg.Provider)
	apiKey := os.Getenv(envVar)
	if apiKey == "" {
		return nil, fmt.Errorf("%s environment variable is not set", envVar)
	}

	var p Provider
	switch cfg.Provider {
	case config.ProviderOpenRouter:
		p = NewOpenRouterProvider(apiKey, cfg.Model, cfg.SiteURL, cfg.SiteTitle)
	case config.ProviderOpenAI:
		p = NewOpenAIProvider(apiKey, cfg.Model)
	default:
		return nil, fmt.Errorf("unsupported provider type: %s", cfg.Provider)
	}

	if cfg.RateLimitRPM > 0 {
		p = NewRateLimitedProvider(p, cfg.RateLimitRPM)
	}
	return p, nil
}
