package config

import (
	"path/filepath"
	"time"
)

// QualityPreset describes the models to use for a given quality tier.
type QualityPreset struct {
	Model          string
	EmbeddingModel string
}

// qualityPresets maps each provider+quality combination to its model choices.
var qualityPresets = map[ProviderType]map[QualityTier]QualityPreset{
	ProviderAnthropic: {
		QualityLite:   {Model: "claude-haiku-4-5-20251001", EmbeddingModel: "text-embedding-3-small"},
		QualityNormal: {Model: "claude-sonnet-4-5-20250929", EmbeddingModel: "text-embedding-3-small"},
		QualityMax:    {Model: "claude-opus-4-1-20250805", EmbeddingModel: "text-embedding-3-large"},
	},
	ProviderOpenAI: {
		QualityLite:   {Model: "gpt-4o-mini", EmbeddingModel: "text-embedding-3-small"},
		QualityNormal: {Model: "gpt-4o", EmbeddingModel: "text-embedding-3-small"},
		QualityMax:    {Model: "gpt-4.1", EmbeddingModel: "text-embedding-3-large"},
	},
	ProviderGoogle: {
		QualityLite:   {Model: "gemini-2.5-flash", EmbeddingModel: "gemini-embedding-001"},
		QualityNormal: {Model: "gemini-2.5-pro", EmbeddingModel: "gemini-embedding-001"},
		QualityMax:    {Model: "gemini-2.5-pro", EmbeddingModel: "gemini-embedding-001"},
	},
	ProviderOllama: {
		QualityLite:   {Model: "llama3", EmbeddingModel: "nomic-embed-text"},
		QualityNormal: {Model: "llama3", EmbeddingModel: "nomic-embed-text"},
		QualityMax:    {Model: "llama3:70b", EmbeddingModel: "nomic-embed-text"},
	},
	ProviderOpenRouter: {
		QualityLite:   {Model: "openai/gpt-4o-mini", EmbeddingModel: "text-embedding-3-small"},
		QualityNormal: {Model: "anthropic/claude-sonnet-4.5", EmbeddingModel: "text-embedding-3-small"},
		QualityMax:    {Model: "anthropic/claude-opus-4.1", EmbeddingModel: "text-embedding-3-large"},
	},
}

// DefaultExcludes are glob patterns skipped when indexing by default.
var DefaultExcludes = []string{
	"vendor/**",
	"node_modules/**",
	".git/**",
	".ctxpack/**",
	"dist/**",
	"build/**",
	"*.min.js",
	"*.lock",
	"go.sum",
	"package-lock.json",
}

// DefaultConfigFile is the config path used when none is given.
const DefaultConfigFile = ".ctxpack.yml"

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Provider:          ProviderAnthropic,
		Model:             "claude-sonnet-4-5-20250929",
		EmbeddingProvider: ProviderOpenAI,
		EmbeddingModel:    "text-embedding-3-small",
		Quality:           QualityNormal,
		DataDir:           ".ctxpack",
		Include:           []string{"**/*.md", "**/*.txt"},
		Exclude:           DefaultExcludes,
		Index: IndexConfig{
			ChunkTokens: 512,
			Concurrency: 4,
			Debounce:    500 * time.Millisecond,
		},
		Retrieval: RetrievalConfig{
			Limit:         10,
			MinScore:      0.4,
			SearchTimeout: 10 * time.Second,
		},
		Budget: BudgetConfig{
			MaxTokens:         100000,
			ResponseBuffer:    4096,
			MinFragmentTokens: 500,
		},
		Compression: CompressionConfig{
			Window:           10,
			Timeout:          60 * time.Second,
			CacheTTL:         30 * time.Minute,
			MaxSummaryTokens: 1024,
		},
		Stats: StatsConfig{
			ContextCeiling:    100000,
			CanAddMorePercent: 80,
		},
		LLM: LLMConfig{
			RequestsPerMinute: 60,
		},
		Server: ServerConfig{
			Port: 8080,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// GetPreset returns the quality preset for the given provider and tier.
// Returns the Normal Anthropic preset if the combination is not found.
func GetPreset(provider ProviderType, tier QualityTier) QualityPreset {
	if tiers, ok := qualityPresets[provider]; ok {
		if preset, ok := tiers[tier]; ok {
			return preset
		}
	}
	return qualityPresets[ProviderAnthropic][QualityNormal]
}

// ProviderModels returns the model to use for every known provider: the
// configured model for the configured provider and the quality preset for
// the rest.
func (c *Config) ProviderModels() map[string]string {
	models := make(map[string]string, len(qualityPresets))
	for p := range qualityPresets {
		models[string(p)] = GetPreset(p, c.Quality).Model
	}
	if c.Model != "" {
		models[string(c.Provider)] = c.Model
	}
	return models
}

// DBPath is the SQLite database location under DataDir.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, "ctxpack.db")
}

// IndexDir is the vector index location under DataDir.
func (c *Config) IndexDir() string {
	return filepath.Join(c.DataDir, "index")
}
