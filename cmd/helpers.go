package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/campusrag/advisor/internal/attemptlog"
	"github.com/campusrag/advisor/internal/catalog"
	"github.com/campusrag/advisor/internal/config"
	"github.com/campusrag/advisor/internal/db"
	"github.com/campusrag/advisor/internal/embcache"
	"github.com/campusrag/advisor/internal/embeddings"
	"github.com/campusrag/advisor/internal/llm"
	"github.com/campusrag/advisor/internal/progress"
	"github.com/campusrag/advisor/internal/retriever"
	"github.com/campusrag/advisor/internal/session"
)

// createEmbedderFromConfig creates an embeddings.Embedder based on config.
// This is the shared version used by the index, query, chat, serve and mcp
// commands.
func createEmbedderFromConfig(cfg *config.Config) (embeddings.Embedder, error) {
	provider := cfg.EmbeddingProvider
	if provider == "" {
		provider = cfg.Provider
	}

	switch provider {
	case config.ProviderOpenAI:
		apiKey := os.Getenv(config.APIKeyEnvVar(config.ProviderOpenAI))
		if apiKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY environment variable is required for OpenAI embeddings")
		}
		return newOpenAIEmbedder(cfg, apiKey), nil
	default:
		// OpenRouter has no embeddings endpoint, so embeddings always go
		// through the OpenAI API regardless of the chat provider.
		apiKey := os.Getenv(config.APIKeyEnvVar(config.ProviderOpenAI))
		if apiKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required (used for embeddings when provider is %s)", provider)
		}
		return newOpenAIEmbedder(cfg, apiKey), nil
	}
}

func newOpenAIEmbedder(cfg *config.Config, apiKey string) *embeddings.OpenAIEmbedder {
	model := embeddings.OpenAIModel(cfg.EmbeddingModel)
	if cfg.EmbeddingBaseURL != "" {
		return embeddings.NewOpenAIEmbedderWithBaseURL(apiKey, cfg.EmbeddingBaseURL, model)
	}
	return embeddings.NewOpenAIEmbedder(apiKey, model)
}

// createLLMProviderFromConfig creates a chat provider based on config settings.
func createLLMProviderFromConfig(cfg *config.Config) (llm.Provider, error) {
	return llm.NewProvider(cfg)
}

// loadConfig loads and validates the config, providing a user-friendly error.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w\nRun `advisor init` to create a config file", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w\nRun `advisor init` to recreate it", err)
	}
	return cfg, nil
}

// pipeline bundles the loaded catalog, embedding cache, retriever, attempt
// log and chat engine behind a single Close.
type pipeline struct {
	cfg      *config.Config
	meta     *catalog.Metadata
	corpus   *catalog.Corpus
	cache    *embcache.Cache
	database *db.DB
	store    *attemptlog.Store
	engine   *session.Engine
}

// openPipeline loads the catalog CSVs, ensures the embedding cache is fresh
// and wires the full chat pipeline. Building a missing or stale cache embeds
// the whole corpus, so a progress reporter is always attached.
func openPipeline(ctx context.Context, cfg *config.Config) (*pipeline, error) {
	meta, err := catalog.LoadMetadata(cfg.MetadataPath)
	if err != nil {
		return nil, fmt.Errorf("loading course metadata: %w", err)
	}
	corpus, err := catalog.LoadDocuments(cfg.DocumentsPath)
	if err != nil {
		return nil, fmt.Errorf("loading course documents: %w", err)
	}

	embedder, err := createEmbedderFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	cache, err := embcache.Ensure(ctx, cfg.CacheDir, corpus, embedder, progress.NewReporter())
	if err != nil {
		return nil, fmt.Errorf("ensuring embedding cache: %w", err)
	}

	provider, err := createLLMProviderFromConfig(cfg)
	if err != nil {
		cache.Close()
		return nil, err
	}

	database, err := db.Open(filepath.Join(cfg.DataDir, "advisor.db"))
	if err != nil {
		cache.Close()
		return nil, err
	}
	store := attemptlog.NewStore(database)

	r := retriever.New(corpus, cache, embedder, cfg.ScoreChunk)
	engine := session.NewEngine(meta, r, provider, store, session.Options{
		TopK:        cfg.TopK,
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
		Timeout:     cfg.Timeout(),
		Prices:      cfg.Prices,
	})

	return &pipeline{
		cfg:      cfg,
		meta:     meta,
		corpus:   corpus,
		cache:    cache,
		database: database,
		store:    store,
		engine:   engine,
	}, nil
}

// Close releases the embedding cache mapping and the database handle.
func (p *pipeline) Close() {
	p.cache.Close()
	p.database.Close()
}
