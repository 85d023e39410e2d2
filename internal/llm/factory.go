package llm

import (
	"fmt"
	"os"
)

// CredentialLookup returns the credential for a provider and whether one is
// configured. For Ollama the credential is the server URL.
type CredentialLookup func(provider string) (string, bool)

// APIKeyEnvVar returns the environment variable holding a provider's key.
func APIKeyEnvVar(provider string) string {
	switch provider {
	case ProviderAnthropic:
		return "ANTHROPIC_API_KEY"
	case ProviderOpenAI:
		return "OPENAI_API_KEY"
	case ProviderGoogle:
		return "GOOGLE_API_KEY"
	case ProviderOpenRouter:
		return "OPENROUTER_API_KEY"
	case ProviderOllama:
		return "OLLAMA_HOST"
	default:
		return ""
	}
}

// EnvCredentials reads credentials from the conventional environment
// variables. Ollama needs no key and always resolves, to OLLAMA_HOST or the
// default local address.
func EnvCredentials(provider string) (string, bool) {
	if provider == ProviderOllama {
		if host := os.Getenv("OLLAMA_HOST"); host != "" {
			return host, true
		}
		return DefaultOllamaHost, true
	}
	name := APIKeyEnvVar(provider)
	if name == "" {
		return "", false
	}
	key := os.Getenv(name)
	return key, key != ""
}

// NewProvider creates a provider using credentials from the environment.
func NewProvider(providerType string, model string) (Provider, error) {
	return NewProviderWithCredentials(providerType, model, EnvCredentials)
}

// NewProviderWithCredentials creates a provider, resolving its credential
// through creds.
func NewProviderWithCredentials(providerType, model string, creds CredentialLookup) (Provider, error) {
	if !KnownProvider(providerType) {
		return nil, fmt.Errorf("unsupported provider type: %s", providerType)
	}
	if creds == nil {
		creds = EnvCredentials
	}
	key, ok := creds(providerType)
	if !ok {
		return nil, fmt.Errorf("%s: %w (set %s)", providerType, ErrMissingCredentials, APIKeyEnvVar(providerType))
	}

	switch providerType {
	case ProviderAnthropic:
		return NewAnthropicProvider(key, model), nil
	case ProviderOpenAI:
		return NewOpenAIProvider(key, model), nil
	case ProviderOpenRouter:
		return NewOpenRouterProvider(key, model), nil
	case ProviderGoogle:
		return NewGoogleProvider(key, model), nil
	default:
		return NewOllamaProvider(key, model), nil
	}
}
