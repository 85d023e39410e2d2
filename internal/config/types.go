package config

import "time"

// QualityTier controls the model selection and trade-off between speed/cost and quality.
type QualityTier string

const (
	QualityLite   QualityTier = "lite"
	QualityNormal QualityTier = "normal"
	QualityMax    QualityTier = "max"
)

// ProviderType identifies an LLM provider.
type ProviderType string

const (
	ProviderAnthropic  ProviderType = "anthropic"
	ProviderOpenAI     ProviderType = "openai"
	ProviderGoogle     ProviderType = "google"
	ProviderOllama     ProviderType = "ollama"
	ProviderOpenRouter ProviderType = "openrouter"
)

// Config is the top-level ctxpack configuration, corresponding to .ctxpack.yml.
type Config struct {
	Provider          ProviderType `yaml:"provider" koanf:"provider"`
	Model             string       `yaml:"model" koanf:"model"`
	EmbeddingProvider ProviderType `yaml:"embedding_provider" koanf:"embedding_provider"`
	EmbeddingModel    string       `yaml:"embedding_model" koanf:"embedding_model"`
	Quality           QualityTier  `yaml:"quality" koanf:"quality"`
	// DataDir holds the SQLite database and the persisted vector index.
	DataDir string   `yaml:"data_dir" koanf:"data_dir"`
	Include []string `yaml:"include" koanf:"include"`
	Exclude []string `yaml:"exclude" koanf:"exclude"`

	Index       IndexConfig       `yaml:"index" koanf:"index"`
	Retrieval   RetrievalConfig   `yaml:"retrieval" koanf:"retrieval"`
	Budget      BudgetConfig      `yaml:"budget" koanf:"budget"`
	Compression CompressionConfig `yaml:"compression" koanf:"compression"`
	Stats       StatsConfig       `yaml:"stats" koanf:"stats"`
	LLM         LLMConfig         `yaml:"llm" koanf:"llm"`
	Server      ServerConfig      `yaml:"server" koanf:"server"`
	Log         LogConfig         `yaml:"log" koanf:"log"`
}

// IndexConfig holds corpus indexing settings.
type IndexConfig struct {
	// ChunkTokens is the largest chunk written to the semantic index.
	ChunkTokens int           `yaml:"chunk_tokens" koanf:"chunk_tokens"`
	Concurrency int           `yaml:"concurrency" koanf:"concurrency"`
	Debounce    time.Duration `yaml:"debounce" koanf:"debounce"`
}

// RetrievalConfig holds candidate gathering settings.
type RetrievalConfig struct {
	Limit         int           `yaml:"limit" koanf:"limit"`
	MinScore      float64       `yaml:"min_score" koanf:"min_score"`
	SearchTimeout time.Duration `yaml:"search_timeout" koanf:"search_timeout"`
}

// BudgetConfig holds token budget settings for prompt packing.
type BudgetConfig struct {
	MaxTokens         int `yaml:"max_tokens" koanf:"max_tokens"`
	ResponseBuffer    int `yaml:"response_buffer" koanf:"response_buffer"`
	MinFragmentTokens int `yaml:"min_fragment_tokens" koanf:"min_fragment_tokens"`
}

// CompressionConfig holds conversation summarization settings.
type CompressionConfig struct {
	Window           int           `yaml:"window" koanf:"window"`
	Timeout          time.Duration `yaml:"timeout" koanf:"timeout"`
	CacheTTL         time.Duration `yaml:"cache_ttl" koanf:"cache_ttl"`
	MaxSummaryTokens int           `yaml:"max_summary_tokens" koanf:"max_summary_tokens"`
}

// StatsConfig holds context window reporting settings.
type StatsConfig struct {
	ContextCeiling    int `yaml:"context_ceiling" koanf:"context_ceiling"`
	CanAddMorePercent int `yaml:"can_add_more_percent" koanf:"can_add_more_percent"`
}

// LLMConfig holds provider call settings.
type LLMConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute" koanf:"requests_per_minute"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int  `yaml:"port" koanf:"port"`
	AllowAllOrigins bool `yaml:"allow_all_origins" koanf:"allow_all_origins"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `yaml:"level" koanf:"level"`
	Format string `yaml:"format" koanf:"format"`
}
