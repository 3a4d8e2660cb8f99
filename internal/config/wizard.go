package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/manifoldco/promptui"
)

// RunWizard runs an interactive configuration wizard and returns the
// resulting Config. It also saves the config to the given path.
func RunWizard(path string) (*Config, error) {
	fmt.Println("Welcome to advisor! Let's configure the course assistant.")
	fmt.Println()

	cfg := DefaultConfig()

	// 1. Chat provider.
	providerPrompt := promptui.Select{
		Label: "Select chat provider",
		Items: []string{"openrouter", "openai"},
	}
	_, providerStr, err := providerPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("provider selection: %w", err)
	}
	cfg.Provider = ProviderType(providerStr)

	// 2. Chat model.
	modelDefault := cfg.Model
	if cfg.Provider == ProviderOpenAI {
		modelDefault = "gpt-4o-mini"
	}
	modelPrompt := promptui.Prompt{
		Label:   "Chat model",
		Default: modelDefault,
	}
	model, err := modelPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("model: %w", err)
	}
	cfg.Model = model

	// 3. Embedding model. Embeddings always go through the OpenAI API
	// since OpenRouter has no embeddings endpoint.
	embPrompt := promptui.Select{
		Label: "Select embedding model",
		Items: []string{"text-embedding-3-small", "text-embedding-3-large"},
	}
	_, embModel, err := embPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("embedding model: %w", err)
	}
	cfg.EmbeddingProvider = ProviderOpenAI
	cfg.EmbeddingModel = embModel

	// 4. Catalog inputs.
	metaPrompt := promptui.Prompt{
		Label:   "Course metadata CSV",
		Default: cfg.MetadataPath,
	}
	if cfg.MetadataPath, err = metaPrompt.Run(); err != nil {
		return nil, fmt.Errorf("metadata path: %w", err)
	}
	docsPrompt := promptui.Prompt{
		Label:   "Course documents CSV",
		Default: cfg.DocumentsPath,
	}
	if cfg.DocumentsPath, err = docsPrompt.Run(); err != nil {
		return nil, fmt.Errorf("documents path: %w", err)
	}

	// 5. Retrieval depth.
	topKPrompt := promptui.Prompt{
		Label:   "Courses per recommendation (top-k)",
		Default: strconv.Itoa(cfg.TopK),
		Validate: func(s string) error {
			n, err := strconv.Atoi(s)
			if err != nil || n <= 0 {
				return fmt.Errorf("must be a positive integer")
			}
			return nil
		},
	}
	topKStr, err := topKPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("top-k: %w", err)
	}
	cfg.TopK, _ = strconv.Atoi(topKStr)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if err := cfg.Save(path); err != nil {
		return nil, err
	}
	fmt.Printf("\nConfiguration saved to %s\n", path)

	// Point out missing API keys up front.
	for _, p := range []ProviderType{cfg.Provider, cfg.EmbeddingProvider} {
		envVar := APIKeyEnvVar(p)
		if envVar != "" && os.Getenv(envVar) == "" {
			fmt.Printf("Note: set %s in your environment before running advisor.\n", envVar)
		}
	}

	return cfg, nil
}
