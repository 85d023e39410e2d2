package llm

import "context"

// Provider generates text from a list of messages.
type Provider interface {
	// Complete sends a completion request and returns the response.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
	// Name returns the name of this provider.
	Name() string
}

// Known provider names.
const (
	ProviderAnthropic  = "anthropic"
	ProviderOpenAI     = "openai"
	ProviderGoogle     = "google"
	ProviderOllama     = "ollama"
	ProviderOpenRouter = "openrouter"
)

// searchCapable lists providers that can ground answers in live web search.
var searchCapable = map[string]bool{
	ProviderGoogle:     true,
	ProviderOpenRouter: true,
}

// SupportsSearch reports whether the named provider can answer with web search.
func SupportsSearch(provider string) bool {
	return searchCapable[provider]
}

// KnownProvider reports whether name is a provider this package can build.
func KnownProvider(name string) bool {
	switch name {
	case ProviderAnthropic, ProviderOpenAI, ProviderGoogle, ProviderOllama, ProviderOpenRouter:
		return true
	}
	return false
}
