package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "CTXPACK_"

// Load reads configuration from the given YAML file, then overlays
// environment variable overrides. A double underscore separates nested keys:
// CTXPACK_BUDGET__MAX_TOKENS sets budget.max_tokens.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	// Start from defaults.
	cfg := DefaultConfig()

	// Load YAML file if it exists.
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("accessing config %s: %w", path, err)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	return cfg, nil
}

func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// Save writes the configuration to the given YAML file path.
func (c *Config) Save(path string) error {
	data, err := yamlv3.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// validProviders is the set of recognized provider values.
var validProviders = map[ProviderType]bool{
	ProviderAnthropic:  true,
	ProviderOpenAI:     true,
	ProviderGoogle:     true,
	ProviderOllama:     true,
	ProviderOpenRouter: true,
}

// validQualityTiers is the set of recognized quality tier values.
var validQualityTiers = map[QualityTier]bool{
	QualityLite:   true,
	QualityNormal: true,
	QualityMax:    true,
}

var validLogFormats = map[string]bool{"": true, "text": true, "json": true}

// Validate checks that the configuration contains valid values.
func (c *Config) Validate() error {
	if c.Provider == "" {
		return fmt.Errorf("provider is required")
	}
	if !validProviders[c.Provider] {
		return fmt.Errorf("invalid provider %q: must be one of anthropic, openai, google, ollama, openrouter", c.Provider)
	}

	switch c.EmbeddingProvider {
	case "", ProviderOpenAI, ProviderOllama, ProviderGoogle:
	default:
		return fmt.Errorf("invalid embedding_provider %q: must be openai, ollama or google", c.EmbeddingProvider)
	}

	if c.Quality != "" && !validQualityTiers[c.Quality] {
		return fmt.Errorf("invalid quality %q: must be one of lite, normal, max", c.Quality)
	}

	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}

	if c.Index.ChunkTokens <= 0 {
		return fmt.Errorf("index.chunk_tokens must be positive")
	}
	if c.Index.Concurrency < 0 || c.Index.Debounce < 0 {
		return fmt.Errorf("index.concurrency and index.debounce must be non-negative")
	}

	if c.Retrieval.Limit < 0 {
		return fmt.Errorf("retrieval.limit must be non-negative")
	}
	if c.Retrieval.MinScore < 0 || c.Retrieval.MinScore > 1 {
		return fmt.Errorf("retrieval.min_score must be within [0, 1]")
	}
	if c.Retrieval.SearchTimeout < 0 {
		return fmt.Errorf("retrieval.search_timeout must be non-negative")
	}

	if c.Budget.MaxTokens < 0 || c.Budget.ResponseBuffer < 0 || c.Budget.MinFragmentTokens < 0 {
		return fmt.Errorf("budget values must be non-negative")
	}

	if c.Compression.Window <= 0 {
		return fmt.Errorf("compression.window must be positive")
	}

	if c.Stats.CanAddMorePercent < 0 || c.Stats.CanAddMorePercent > 100 {
		return fmt.Errorf("stats.can_add_more_percent must be within [0, 100]")
	}

	if c.LLM.RequestsPerMinute < 0 {
		return fmt.Errorf("llm.requests_per_minute must be non-negative")
	}

	if !validLogFormats[c.Log.Format] {
		return fmt.Errorf("invalid log.format %q: must be text or json", c.Log.Format)
	}

	return nil
}
