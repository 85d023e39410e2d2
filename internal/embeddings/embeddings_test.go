package embeddings

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	openai "github.com/sashabaranov/go-openai"
)

func TestOllamaEmbedderBatches(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Path != "/api/embed" {
			t.Errorf("path = %q", r.URL.Path)
		}
		var req ollamaEmbedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		if req.Model != "nomic-embed-text" {
			t.Errorf("model = %q", req.Model)
		}
		resp := ollamaEmbedResponse{}
		for i := range req.Input {
			resp.Embeddings = append(resp.Embeddings, []float32{float32(i), 1})
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	e := NewOllamaEmbedder("nomic-embed-text", 2, srv.URL+"/")
	vecs, err := e.Embed(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vecs) != 3 || vecs[2][0] != 2 {
		t.Errorf("vectors = %v", vecs)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
	if e.Name() != "ollama/nomic-embed-text" {
		t.Errorf("Name = %q", e.Name())
	}
}

func TestOllamaEmbedderCountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(ollamaEmbedResponse{Embeddings: [][]float32{{1}}})
	}))
	defer srv.Close()

	e := NewOllamaEmbedder("m", 1, srv.URL)
	if _, err := e.Embed(context.Background(), []string{"a", "b"}); err == nil {
		t.Error("expected an error when fewer embeddings come back")
	}
}

func TestGoogleEmbedder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/gemini-embedding-001:batchEmbedContents") {
			t.Errorf("path = %q", r.URL.Path)
		}
		if r.URL.Query().Get("key") != "secret" {
			t.Errorf("key = %q", r.URL.Query().Get("key"))
		}
		var req googleBatchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		var resp googleBatchResponse
		for _, q := range req.Requests {
			if q.Model != "models/gemini-embedding-001" {
				t.Errorf("model = %q", q.Model)
			}
			resp.Embeddings = append(resp.Embeddings, struct {
				Values []float32 `json:"values"`
			}{Values: []float32{float32(len(q.Content.Parts[0].Text))}})
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	e := NewGoogleEmbedder("secret", "")
	e.baseURL = srv.URL
	vecs, err := e.Embed(context.Background(), []string{"ab", "abcd"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vecs) != 2 || vecs[0][0] != 2 || vecs[1][0] != 4 {
		t.Errorf("vectors = %v", vecs)
	}
	if e.Dimensions() != 3072 {
		t.Errorf("Dimensions = %d", e.Dimensions())
	}
}

func TestGoogleEmbedderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad key", http.StatusForbidden)
	}))
	defer srv.Close()

	e := NewGoogleEmbedder("wrong", ModelGeminiEmbedding001)
	e.baseURL = srv.URL
	if _, err := e.Embed(context.Background(), []string{"x"}); err == nil {
		t.Error("expected an error for a 403")
	}
}

func TestOpenAIEmbedderOrdersByIndex(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/embeddings" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		// Returned out of order on purpose.
		w.Write([]byte(`{"object":"list","model":"text-embedding-3-small","data":[
			{"object":"embedding","index":1,"embedding":[2,2]},
			{"object":"embedding","index":0,"embedding":[1,1]}
		],"usage":{"prompt_tokens":2,"total_tokens":2}}`))
	}))
	defer srv.Close()

	cfg := openai.DefaultConfig("test")
	cfg.BaseURL = srv.URL + "/v1"
	e := NewOpenAIEmbedderWithConfig(cfg, ModelTextEmbedding3Small)

	vecs, err := e.Embed(context.Background(), []string{"first", "second"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vecs) != 2 || vecs[0][0] != 1 || vecs[1][0] != 2 {
		t.Errorf("vectors = %v", vecs)
	}
	if e.Dimensions() != 1536 {
		t.Errorf("Dimensions = %d", e.Dimensions())
	}
}

type countingEmbedder struct {
	texts []string
}

func (c *countingEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	c.texts = append(c.texts, texts...)
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t))}
	}
	return out, nil
}

func (c *countingEmbedder) Dimensions() int { return 1 }
func (c *countingEmbedder) Name() string    { return "counting" }

func TestCachedEmbedder(t *testing.T) {
	inner := &countingEmbedder{}
	e := NewCached(inner, 0)
	ctx := context.Background()

	if _, err := e.Embed(ctx, []string{"alpha", "be"}); err != nil {
		t.Fatal(err)
	}
	vecs, err := e.Embed(ctx, []string{"be", "gamma", "alpha"})
	if err != nil {
		t.Fatal(err)
	}
	if len(vecs) != 3 || vecs[0][0] != 2 || vecs[1][0] != 5 || vecs[2][0] != 5 {
		t.Errorf("vectors = %v", vecs)
	}
	if strings.Join(inner.texts, ",") != "alpha,be,gamma" {
		t.Errorf("inner embedded %v, want each text once", inner.texts)
	}
	if e.Dimensions() != 1 || e.Name() != "counting" {
		t.Error("wrapper should expose the inner embedder's identity")
	}
}

func TestToChromemFunc(t *testing.T) {
	fn := ToChromemFunc(&countingEmbedder{})
	vec, err := fn(context.Background(), "abc")
	if err != nil {
		t.Fatal(err)
	}
	if len(vec) != 1 || vec[0] != 3 {
		t.Errorf("vector = %v", vec)
	}

	_, err = ToChromemFunc(emptyEmbedder{})(context.Background(), "abc")
	if !errors.Is(err, ErrNoEmbedding) {
		t.Errorf("err = %v, want ErrNoEmbedding", err)
	}
}

type emptyEmbedder struct{}

func (emptyEmbedder) Embed(context.Context, []string) ([][]float32, error) { return nil, nil }
func (emptyEmbedder) Dimensions() int                                      { return 0 }
func (emptyEmbedder) Name() string                                         { return "empty" }
