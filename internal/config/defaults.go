package config

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Provider:          ProviderOpenRouter,
		Model:             "google/gemma-3-27b-it",
		SiteTitle:         "Course Advisor",
		MaxTokens:         2048,
		Temperature:       0.2,
		TimeoutSecs:       120,
		EmbeddingProvider: ProviderOpenAI,
		EmbeddingModel:    "text-embedding-3-small",
		MetadataPath:      "out/courses_metadata.csv",
		DocumentsPath:     "out/courses_documents.csv",
		CacheDir:          "out/emb_cache",
		DataDir:           "out",
		TopK:              5,
		ScoreChunk:        4096,
	}
}
