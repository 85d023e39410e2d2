package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

// MockProvider is a test provider that records calls and returns canned responses.
type MockProvider struct {
	mu       sync.Mutex
	Calls    []CompletionRequest
	Response *CompletionResponse
	Err      error
	ProvName string
}

func NewMockProvider(name string) *MockProvider {
	return &MockProvider{
		ProvName: name,
		Response: &CompletionResponse{
			Content:      "mock response",
			InputTokens:  10,
			OutputTokens: 20,
			Model:        "mock-model",
			FinishReason: "stop",
		},
	}
}

func (m *MockProvider) Name() string {
	return m.ProvName
}

func (m *MockProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, req)
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Response, nil
}

func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// credsFor returns a CredentialLookup that knows only the given providers.
func credsFor(providers ...string) CredentialLookup {
	set := make(map[string]bool)
	for _, p := range providers {
		set[p] = true
	}
	return func(p string) (string, bool) {
		if set[p] {
			return "key-" + p, true
		}
		return "", false
	}
}

// --- Factory ---

func TestFactoryReturnsErrorForMissingAPIKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "")
	t.Setenv("OPENROUTER_API_KEY", "")

	for _, p := range []string{ProviderAnthropic, ProviderOpenAI, ProviderGoogle, ProviderOpenRouter} {
		_, err := NewProvider(p, "some-model")
		if !errors.Is(err, ErrMissingCredentials) {
			t.Errorf("provider %q: expected ErrMissingCredentials, got %v", p, err)
		}
	}
}

func TestFactoryReturnsErrorForUnknownProvider(t *testing.T) {
	if _, err := NewProvider("unknown", "some-model"); err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestFactoryCreatesOllamaWithDefaultHost(t *testing.T) {
	t.Setenv("OLLAMA_HOST", "")
	provider, err := NewProvider(ProviderOllama, "llama3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ollamaP, ok := provider.(*OllamaProvider)
	if !ok {
		t.Fatal("expected *OllamaProvider")
	}
	if ollamaP.baseURL != DefaultOllamaHost {
		t.Errorf("expected default host, got %q", ollamaP.baseURL)
	}
}

func TestFactoryCreatesNamedProviders(t *testing.T) {
	creds := credsFor(ProviderAnthropic, ProviderOpenAI, ProviderGoogle, ProviderOpenRouter)
	for _, name := range []string{ProviderAnthropic, ProviderOpenAI, ProviderGoogle, ProviderOpenRouter} {
		p, err := NewProviderWithCredentials(name, "m", creds)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", name, err)
		}
		if p.Name() != name {
			t.Errorf("Name() = %q, want %q", p.Name(), name)
		}
	}
}

// --- Policy ---

func TestPolicySelectOrder(t *testing.T) {
	policy := &Policy{
		Default:     ProviderOpenAI,
		Models:      map[string]string{ProviderOpenAI: "gpt-4o", ProviderAnthropic: "claude-sonnet-4-5-20250929"},
		Credentials: credsFor(ProviderOpenAI, ProviderAnthropic),
	}

	tests := []struct {
		name      string
		settings  UserSettings
		preferred string
		want      Selection
	}{
		{
			name: "config default",
			want: Selection{Provider: ProviderOpenAI, Model: "gpt-4o"},
		},
		{
			name:     "user preference beats default",
			settings: UserSettings{PreferredProvider: ProviderAnthropic},
			want:     Selection{Provider: ProviderAnthropic, Model: "claude-sonnet-4-5-20250929"},
		},
		{
			name:      "call preference beats user preference",
			settings:  UserSettings{PreferredProvider: ProviderAnthropic},
			preferred: ProviderOpenAI,
			want:      Selection{Provider: ProviderOpenAI, Model: "gpt-4o"},
		},
		{
			name:      "preference without credentials is skipped",
			preferred: ProviderGoogle,
			want:      Selection{Provider: ProviderOpenAI, Model: "gpt-4o"},
		},
		{
			name:     "user model override",
			settings: UserSettings{Models: map[string]string{ProviderOpenAI: "gpt-4o-mini"}},
			want:     Selection{Provider: ProviderOpenAI, Model: "gpt-4o-mini"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := policy.Select(tt.settings, tt.preferred, false)
			if err != nil {
				t.Fatalf("Select: %v", err)
			}
			if got != tt.want {
				t.Errorf("Select = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestPolicySelectNeedsSearch(t *testing.T) {
	policy := &Policy{Default: ProviderAnthropic, Credentials: credsFor(ProviderAnthropic, ProviderGoogle)}
	got, err := policy.Select(UserSettings{}, "", true)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if got.Provider != ProviderGoogle {
		t.Errorf("expected search-capable google, got %s", got.Provider)
	}

	policy.Credentials = credsFor(ProviderAnthropic)
	if _, err := policy.Select(UserSettings{}, "", true); !errors.Is(err, ErrNoProvider) {
		t.Errorf("expected ErrNoProvider, got %v", err)
	}
}

func TestPolicySelectNoCredentials(t *testing.T) {
	policy := &Policy{Credentials: credsFor(), Fallback: []string{ProviderAnthropic}}
	if _, err := policy.Select(UserSettings{}, "", false); !errors.Is(err, ErrNoProvider) {
		t.Errorf("expected ErrNoProvider, got %v", err)
	}
}

func TestPolicyProviderIsReused(t *testing.T) {
	policy := &Policy{Credentials: credsFor(ProviderOpenAI), RequestsPerMinute: 30}
	sel := Selection{Provider: ProviderOpenAI, Model: "gpt-4o"}
	a, err := policy.Provider(sel)
	if err != nil {
		t.Fatalf("Provider: %v", err)
	}
	b, err := policy.Provider(sel)
	if err != nil {
		t.Fatalf("Provider: %v", err)
	}
	if a != b {
		t.Error("expected the same provider instance for the same selection")
	}
	if _, ok := a.(*RateLimitedProvider); !ok {
		t.Errorf("expected rate-limited provider, got %T", a)
	}
}

func TestStaticSelector(t *testing.T) {
	mock := NewMockProvider("fixed")
	s := StaticSelector{P: mock, Model: "m"}
	sel, err := s.Select(UserSettings{}, "other", true)
	if err != nil || sel.Provider != "fixed" {
		t.Fatalf("Select = %+v, %v", sel, err)
	}
	p, _ := s.Provider(sel)
	if p != mock {
		t.Error("expected the wrapped provider")
	}
	if _, err := (StaticSelector{}).Select(UserSettings{}, "", false); !errors.Is(err, ErrNoProvider) {
		t.Errorf("empty selector: expected ErrNoProvider, got %v", err)
	}
}

// --- Rate limiting ---

func TestRateLimiterPassesThrough(t *testing.T) {
	mock := NewMockProvider("test")
	rl := NewRateLimitedProvider(mock, 60)

	resp, err := rl.Complete(context.Background(), CompletionRequest{Messages: Generate("", "hello")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "mock response" {
		t.Errorf("expected 'mock response', got %q", resp.Content)
	}
	if rl.Name() != "test" {
		t.Errorf("expected name 'test', got %q", rl.Name())
	}
}

func TestRateLimiterLimitsRequests(t *testing.T) {
	mock := NewMockProvider("test")
	rl := NewRateLimitedProvider(mock, 2)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	req := CompletionRequest{Messages: Generate("", "hello")}

	for i := 0; i < 2; i++ {
		if _, err := rl.Complete(ctx, req); err != nil {
			t.Fatalf("request %d: unexpected error: %v", i, err)
		}
	}
	if _, err := rl.Complete(ctx, req); err == nil {
		t.Error("expected error due to rate limiting + context timeout")
	}
	if mock.CallCount() != 2 {
		t.Errorf("expected 2 calls to reach the provider, got %d", mock.CallCount())
	}
}

func TestRateLimiterDisabled(t *testing.T) {
	mock := NewMockProvider("test")
	if got := NewRateLimitedProvider(mock, 0); got != Provider(mock) {
		t.Error("rpm 0 should return the provider unwrapped")
	}
}

// --- HTTP providers ---

func TestOllamaProviderComplete(t *testing.T) {
	var got ollamaChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_ = json.NewEncoder(w).Encode(ollamaChatResponse{
			Message:         ollamaMessage{Role: "assistant", Content: "summary"},
			Model:           "llama3",
			DoneReason:      "stop",
			PromptEvalCount: 12,
			EvalCount:       3,
		})
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL+"/", "llama3")
	resp, err := p.Complete(context.Background(), CompletionRequest{Messages: Generate("be brief", "hi"), MaxTokens: 50})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != "summary" || resp.InputTokens != 12 || resp.OutputTokens != 3 {
		t.Errorf("unexpected response %+v", resp)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" || got.Options.NumPredict != 50 {
		t.Errorf("unexpected request %+v", got)
	}
}

func TestOllamaProviderErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL, "missing")
	if _, err := p.Complete(context.Background(), CompletionRequest{Messages: Generate("", "hi")}); err == nil {
		t.Error("expected error for non-200 status")
	}
}

func TestGoogleProviderComplete(t *testing.T) {
	var got geminiRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("key") != "secret" {
			t.Errorf("api key not sent")
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"a"},{"text":"b"}]},"finishReason":"STOP"}],` +
			`"usageMetadata":{"promptTokenCount":7,"candidatesTokenCount":2}}`))
	}))
	defer srv.Close()

	p := NewGoogleProvider("secret", "gemini-2.0-flash")
	p.baseURL = srv.URL
	resp, err := p.Complete(context.Background(), CompletionRequest{Messages: []Message{
		{Role: RoleSystem, Content: "sys"},
		{Role: RoleUser, Content: "q"},
		{Role: RoleAssistant, Content: "a"},
	}})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != "ab" || resp.FinishReason != "STOP" || resp.InputTokens != 7 {
		t.Errorf("unexpected response %+v", resp)
	}
	if got.SystemInstruction == nil || got.SystemInstruction.Parts[0].Text != "sys" {
		t.Error("system instruction not sent")
	}
	if len(got.Contents) != 2 || got.Contents[1].Role != "model" {
		t.Errorf("unexpected contents %+v", got.Contents)
	}
}

// --- Helpers ---

func TestEstimateCost(t *testing.T) {
	cost := EstimateCost(&CompletionResponse{Model: "claude-sonnet-4-5-20250929", InputTokens: 1_000_000, OutputTokens: 1_000_000})
	if cost < 17.99 || cost > 18.01 {
		t.Errorf("expected cost ~$18.00, got $%.2f", cost)
	}
	if EstimateCost(&CompletionResponse{Model: "unknown-model", InputTokens: 1000}) != 0 {
		t.Error("expected 0 for unknown model")
	}
	if EstimateCost(nil) != 0 {
		t.Error("expected 0 for nil response")
	}
}

func TestSplitSystem(t *testing.T) {
	system, turns := splitSystem([]Message{
		{Role: RoleSystem, Content: "one"},
		{Role: RoleUser, Content: "u"},
		{Role: RoleSystem, Content: "two"},
	})
	if system != "one\n\ntwo" {
		t.Errorf("system = %q", system)
	}
	if len(turns) != 1 || turns[0].Content != "u" {
		t.Errorf("turns = %+v", turns)
	}
}

func TestGenerate(t *testing.T) {
	if msgs := Generate("", "p"); len(msgs) != 1 || msgs[0].Role != RoleUser {
		t.Errorf("unexpected messages %+v", msgs)
	}
	if msgs := Generate("s", "p"); len(msgs) != 2 || msgs[0].Role != RoleSystem {
		t.Errorf("unexpected messages %+v", msgs)
	}
}
