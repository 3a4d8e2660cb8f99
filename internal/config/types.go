package config

import "time"

// ProviderType identifies a chat/embedding API provider.
type ProviderType string

const (
	ProviderOpenRouter ProviderType = "openrouter"
	ProviderOpenAI     ProviderType = "openai"
)

// Config is the top-level advisor configuration, corresponding to .advisor.yml.
type Config struct {
	Provider    ProviderType `yaml:"provider" koanf:"provider"`
	Model       string       `yaml:"model" koanf:"model"`
	SiteURL     string       `yaml:"site_url" koanf:"site_url"`
	SiteTitle   string       `yaml:"site_title" koanf:"site_title"`
	MaxTokens   int          `yaml:"max_tokens" koanf:"max_tokens"`
	Temperature float64      `yaml:"temperature" koanf:"temperature"`
	TimeoutSecs int          `yaml:"timeout_secs" koanf:"timeout_secs"`

	// RateLimitRPM caps chat requests per minute. Zero disables the cap.
	RateLimitRPM int `yaml:"rate_limit_rpm" koanf:"rate_limit_rpm"`

	EmbeddingProvider ProviderType `yaml:"embedding_provider" koanf:"embedding_provider"`
	EmbeddingModel    string       `yaml:"embedding_model" koanf:"embedding_model"`
	// EmbeddingBaseURL points the embeddings client at an OpenAI-compatible
	// gateway. Empty uses the provider's default endpoint.
	EmbeddingBaseURL string `yaml:"embedding_base_url" koanf:"embedding_base_url"`

	MetadataPath  string `yaml:"metadata_path" koanf:"metadata_path"`
	DocumentsPath string `yaml:"documents_path" koanf:"documents_path"`
	CacheDir      string `yaml:"cache_dir" koanf:"cache_dir"`
	DataDir       string `yaml:"data_dir" koanf:"data_dir"`

	TopK       int     `yaml:"top_k" koanf:"top_k"`
	ScoreChunk int     `yaml:"score_chunk" koanf:"score_chunk"`
	Prices     Pricing `yaml:"prices" koanf:"prices"`
}

// Timeout returns the LLM request timeout as a duration. Zero disables the
// per-request deadline.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// Pricing holds optional per-model token prices in USD per 1M tokens.
// Zero values disable cost reporting.
type Pricing struct {
	InputPerMillion  float64 `yaml:"input_per_million" koanf:"input_per_million"`
	OutputPerMillion float64 `yaml:"output_per_million" koanf:"output_per_million"`
}
