package llm

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrMissingCredentials means no credential is configured for a provider.
	ErrMissingCredentials = errors.New("missing provider credentials")
	// ErrNoProvider means no candidate provider satisfied the selection.
	ErrNoProvider = errors.New("no usable LLM provider")
)

// DefaultFallbackOrder is tried after explicit preferences are exhausted.
var DefaultFallbackOrder = []string{ProviderAnthropic, ProviderOpenAI, ProviderGoogle, ProviderOpenRouter, ProviderOllama}

// UserSettings are a user's stored LLM preferences.
type UserSettings struct {
	PreferredProvider string            `json:"preferred_provider,omitempty"`
	Models            map[string]string `json:"models,omitempty"`
}

// Selection is the outcome of provider selection.
type Selection struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

// Selector picks a provider for a request and builds it.
type Selector interface {
	Select(settings UserSettings, preferred string, needsSearch bool) (Selection, error)
	Provider(sel Selection) (Provider, error)
}

// Policy is the default Selector. Candidates are considered in order: the
// per-call preference, the user's preferred provider, Default, then Fallback.
// Providers without credentials are skipped, and when search is required
// only search-capable providers qualify.
type Policy struct {
	Default  string
	Fallback []string
	// Models maps a provider to its model when the user has not chosen one.
	Models      map[string]string
	Credentials CredentialLookup
	// RequestsPerMinute rate-limits each built provider. Zero disables it.
	RequestsPerMinute int

	mu    sync.Mutex
	cache map[Selection]Provider
}

// Select returns the first qualifying provider and its model.
func (p *Policy) Select(settings UserSettings, preferred string, needsSearch bool) (Selection, error) {
	creds := p.Credentials
	if creds == nil {
		creds = EnvCredentials
	}
	fallback := p.Fallback
	if len(fallback) == 0 {
		fallback = DefaultFallbackOrder
	}

	candidates := append([]string{preferred, settings.PreferredProvider, p.Default}, fallback...)
	seen := make(map[string]bool, len(candidates))
	for _, name := range candidates {
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		if !KnownProvider(name) {
			continue
		}
		if needsSearch && !SupportsSearch(name) {
			continue
		}
		if _, ok := creds(name); !ok {
			continue
		}
		model := settings.Models[name]
		if model == "" {
			model = p.Models[name]
		}
		return Selection{Provider: name, Model: model}, nil
	}

	if needsSearch {
		return Selection{}, fmt.Errorf("%w: none with search support has credentials", ErrNoProvider)
	}
	return Selection{}, ErrNoProvider
}

// Provider builds the provider for sel, reusing an earlier instance so the
// rate limiter is shared across requests.
func (p *Policy) Provider(sel Selection) (Provider, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if prov, ok := p.cache[sel]; ok {
		return prov, nil
	}

	prov, err := NewProviderWithCredentials(sel.Provider, sel.Model, p.Credentials)
	if err != nil {
		return nil, err
	}
	prov = NewRateLimitedProvider(prov, p.RequestsPerMinute)

	if p.cache == nil {
		p.cache = make(map[Selection]Provider)
	}
	p.cache[sel] = prov
	return prov, nil
}

// StaticSelector always returns one provider. It is useful when the caller
// already holds a configured Provider.
type StaticSelector struct {
	P     Provider
	Model string
}

func (s StaticSelector) Select(UserSettings, string, bool) (Selection, error) {
	if s.P == nil {
		return Selection{}, ErrNoProvider
	}
	return Selection{Provider: s.P.Name(), Model: s.Model}, nil
}

func (s StaticSelector) Provider(Selection) (Provider, error) {
	if s.P == nil {
		return nil, ErrNoProvider
	}
	return s.P, nil
}
