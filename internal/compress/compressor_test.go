package compress

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ziadkadry99/ctxpack/internal/conversation"
	"github.com/ziadkadry99/ctxpack/internal/llm"
)

type fakeStore struct {
	convs map[string]*conversation.Conversation
	msgs  map[string][]conversation.Message
	err   error
}

func (f *fakeStore) GetConversation(_ context.Context, id string) (*conversation.Conversation, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.convs[id], nil
}

func (f *fakeStore) ListMessages(_ context.Context, id string) ([]conversation.Message, error) {
	return f.msgs[id], nil
}

func storeWith(id string, n int) *fakeStore {
	msgs := make([]conversation.Message, n)
	for i := range msgs {
		role := conversation.RoleUser
		if i%2 == 1 {
			role = conversation.RoleAssistant
		}
		msgs[i] = conversation.Message{ID: fmt.Sprintf("m%d", i), Role: role, Content: fmt.Sprintf("message %d", i)}
	}
	return &fakeStore{
		convs: map[string]*conversation.Conversation{id: {ID: id}},
		msgs:  map[string][]conversation.Message{id: msgs},
	}
}

// stubProvider returns a fixed reply or error and records prompts.
type stubProvider struct {
	mu    sync.Mutex
	reply string
	err   error
	reqs  []llm.CompletionRequest
}

func (s *stubProvider) Name() string { return "stub" }

func (s *stubProvider) Complete(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reqs = append(s.reqs, req)
	if s.err != nil {
		return nil, s.err
	}
	return &llm.CompletionResponse{Content: s.reply}, nil
}

func (s *stubProvider) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.reqs)
}

type stubSettings struct {
	settings llm.UserSettings
	got      string
}

func (s *stubSettings) GetUserSettings(_ context.Context, requester string) (llm.UserSettings, error) {
	s.got = requester
	return s.settings, nil
}

func quiet() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestCompressSummarizesOlderMessages(t *testing.T) {
	store := storeWith("c1", 25)
	prov := &stubProvider{reply: "  They discussed deployments.  "}
	c := New(store, llm.StaticSelector{P: prov}, WithLogger(quiet()))

	s, err := c.CompressIfNeeded(context.Background(), "c1", "alice", 10)
	if err != nil {
		t.Fatalf("CompressIfNeeded: %v", err)
	}
	if s == nil {
		t.Fatal("expected a summary")
	}
	if s.SummarizedCount != 15 || s.RemainingCount != 10 {
		t.Errorf("counts = %d/%d, want 15/10", s.SummarizedCount, s.RemainingCount)
	}
	if s.Text != "They discussed deployments." {
		t.Errorf("summary text = %q", s.Text)
	}

	prompt := prov.reqs[0].Messages[len(prov.reqs[0].Messages)-1].Content
	if !strings.Contains(prompt, "User: message 0") || !strings.Contains(prompt, "Assistant: message 13") {
		t.Error("prompt is missing summarized messages")
	}
	if strings.Contains(prompt, "message 15") {
		t.Error("prompt includes a retained message")
	}
	if !strings.Contains(prompt, "questions, answers and conclusions") {
		t.Error("prompt lacks the preservation instruction")
	}
}

func TestCompressNotNeeded(t *testing.T) {
	prov := &stubProvider{reply: "x"}
	c := New(storeWith("c1", 10), llm.StaticSelector{P: prov}, WithLogger(quiet()))

	s, err := c.CompressIfNeeded(context.Background(), "c1", "alice", 10)
	if err != nil || s != nil {
		t.Fatalf("expected (nil, nil), got (%v, %v)", s, err)
	}
	if prov.calls() != 0 {
		t.Error("provider should not be called")
	}
}

func TestCompressDefaultWindow(t *testing.T) {
	c := New(storeWith("c1", 12), llm.StaticSelector{P: &stubProvider{reply: "sum"}}, WithLogger(quiet()))
	s, err := c.CompressIfNeeded(context.Background(), "c1", "alice", 0)
	if err != nil || s == nil {
		t.Fatalf("expected a summary, got (%v, %v)", s, err)
	}
	if s.SummarizedCount != 2 || s.RemainingCount != DefaultWindow {
		t.Errorf("counts = %d/%d", s.SummarizedCount, s.RemainingCount)
	}
}

func TestCompressGenerationFailureReturnsNil(t *testing.T) {
	prov := &stubProvider{err: errors.New("provider down")}
	c := New(storeWith("c1", 25), llm.StaticSelector{P: prov}, WithLogger(quiet()))

	s, err := c.CompressIfNeeded(context.Background(), "c1", "alice", 10)
	if err != nil {
		t.Fatalf("generation failure must not escape: %v", err)
	}
	if s != nil {
		t.Errorf("expected nil summary, got %+v", s)
	}
}

func TestCompressEmptyReplyReturnsNil(t *testing.T) {
	c := New(storeWith("c1", 25), llm.StaticSelector{P: &stubProvider{reply: "   "}}, WithLogger(quiet()))
	if s, err := c.CompressIfNeeded(context.Background(), "c1", "alice", 10); s != nil || err != nil {
		t.Errorf("expected (nil, nil), got (%v, %v)", s, err)
	}
}

func TestCompressNoProviderReturnsNil(t *testing.T) {
	c := New(storeWith("c1", 25), llm.StaticSelector{}, WithLogger(quiet()))
	if s, err := c.CompressIfNeeded(context.Background(), "c1", "alice", 10); s != nil || err != nil {
		t.Errorf("expected (nil, nil), got (%v, %v)", s, err)
	}
}

func TestCompressUnknownConversation(t *testing.T) {
	c := New(storeWith("c1", 25), llm.StaticSelector{P: &stubProvider{reply: "x"}}, WithLogger(quiet()))
	if s, err := c.CompressIfNeeded(context.Background(), "nope", "alice", 10); s != nil || err != nil {
		t.Errorf("expected (nil, nil), got (%v, %v)", s, err)
	}
}

func TestCompressOtherOwnersConversation(t *testing.T) {
	store := storeWith("c1", 25)
	store.convs["c1"].Owner = "alice"
	prov := &stubProvider{reply: "x"}
	c := New(store, llm.StaticSelector{P: prov}, WithLogger(quiet()))

	if s, err := c.CompressIfNeeded(context.Background(), "c1", "mallory", 10); s != nil || err != nil {
		t.Errorf("expected (nil, nil), got (%v, %v)", s, err)
	}
	if prov.calls() != 0 {
		t.Error("another owner's history must not be sent to a provider")
	}
	if s, _ := c.CompressIfNeeded(context.Background(), "c1", "alice", 10); s == nil {
		t.Error("owner should still get a summary")
	}
}

func TestCompressStoreFailure(t *testing.T) {
	store := storeWith("c1", 25)
	store.err = errors.New("db locked")
	c := New(store, llm.StaticSelector{P: &stubProvider{reply: "x"}}, WithLogger(quiet()))
	if s, err := c.CompressIfNeeded(context.Background(), "c1", "alice", 10); s != nil || err != nil {
		t.Errorf("expected (nil, nil), got (%v, %v)", s, err)
	}
}

func TestCompressNegativeWindow(t *testing.T) {
	c := New(storeWith("c1", 5), llm.StaticSelector{}, WithLogger(quiet()))
	if _, err := c.CompressIfNeeded(context.Background(), "c1", "alice", -1); !errors.Is(err, ErrInvalidWindow) {
		t.Errorf("expected ErrInvalidWindow, got %v", err)
	}
}

func TestCompressCachesSummary(t *testing.T) {
	store := storeWith("c1", 25)
	prov := &stubProvider{reply: "cached summary"}
	c := New(store, llm.StaticSelector{P: prov}, WithLogger(quiet()), WithCacheTTL(time.Minute))

	for i := 0; i < 3; i++ {
		if s, _ := c.CompressIfNeeded(context.Background(), "c1", "alice", 10); s == nil || s.Text != "cached summary" {
			t.Fatalf("call %d: unexpected summary %+v", i, s)
		}
	}
	if prov.calls() != 1 {
		t.Errorf("expected 1 generation, got %d", prov.calls())
	}

	// A new message shifts the summarized prefix, so the cache misses.
	store.msgs["c1"] = append(store.msgs["c1"], conversation.Message{ID: "m25", Role: conversation.RoleUser, Content: "more"})
	if s, _ := c.CompressIfNeeded(context.Background(), "c1", "alice", 10); s == nil || s.SummarizedCount != 16 {
		t.Fatalf("unexpected summary after new message: %+v", s)
	}
	if prov.calls() != 2 {
		t.Errorf("expected 2 generations, got %d", prov.calls())
	}
}

func TestCompressUsesUserSettings(t *testing.T) {
	settings := &stubSettings{settings: llm.UserSettings{PreferredProvider: "stub"}}
	c := New(storeWith("c1", 25), llm.StaticSelector{P: &stubProvider{reply: "ok"}},
		WithLogger(quiet()), WithSettings(settings))
	if _, err := c.CompressIfNeeded(context.Background(), "c1", "bob", 10); err != nil {
		t.Fatal(err)
	}
	if settings.got != "bob" {
		t.Errorf("settings looked up for %q, want bob", settings.got)
	}
}

func TestApply(t *testing.T) {
	msgs := storeWith("c", 5).msgs["c"]
	out := Apply(msgs, &Summary{Text: "earlier", SummarizedCount: 3, RemainingCount: 2})

	if len(out) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(out))
	}
	if out[0].Role != conversation.RoleSystem || out[0].Content != "earlier" {
		t.Errorf("first entry = %+v", out[0])
	}
	if out[1].ID != "m3" || out[2].ID != "m4" {
		t.Errorf("retained tail = %+v", out[1:])
	}
	if msgs[0].Content != "message 0" || len(msgs) != 5 {
		t.Error("input history was modified")
	}

	if got := Apply(msgs, nil); len(got) != 5 {
		t.Errorf("nil summary should keep all messages, got %d", len(got))
	}
}

func TestErrorUnwrap(t *testing.T) {
	err := &Error{Op: "generate", ConversationID: "c9", Err: ErrEmptySummary}
	if !errors.Is(err, ErrEmptySummary) {
		t.Error("errors.Is should see the wrapped error")
	}
	if !strings.Contains(err.Error(), "c9") || !strings.Contains(err.Error(), "generate") {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func TestCompressWindowBoundaries(t *testing.T) {
	tests := []struct {
		messages       int
		window         int
		wantSummarized int
		wantNil        bool
	}{
		{messages: 15, window: 10, wantSummarized: 5},
		{messages: 8, window: 10, wantNil: true},
		{messages: 11, window: 10, wantSummarized: 1},
		{messages: 3, window: 0, wantNil: true},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d/%d", tt.messages, tt.window), func(t *testing.T) {
			c := New(storeWith("c", tt.messages), llm.StaticSelector{P: &stubProvider{reply: "s"}}, WithLogger(quiet()))
			s, err := c.CompressIfNeeded(context.Background(), "c", "alice", tt.window)
			if err != nil {
				t.Fatalf("CompressIfNeeded: %v", err)
			}
			if tt.wantNil {
				if s != nil {
					t.Errorf("expected nil, got %+v", s)
				}
				return
			}
			if s == nil || s.SummarizedCount != tt.wantSummarized {
				t.Errorf("summary = %+v, want %d summarized", s, tt.wantSummarized)
			}
		})
	}
}
