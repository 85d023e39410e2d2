package embeddings

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/ziadkadry99/ctxpack/internal/httpjson"
)

const googleEmbedBaseURL = "https://generativelanguage.googleapis.com/v1beta/models"

// googleMaxBatch is the request limit of batchEmbedContents.
const googleMaxBatch = 100

// GoogleModel represents a supported Google embedding model.
type GoogleModel string

const (
	ModelGeminiEmbedding001 GoogleModel = "gemini-embedding-001"
)

func (m GoogleModel) dimensions() int {
	return 3072
}

// GoogleEmbedder generates embeddings using the Gemini API.
type GoogleEmbedder struct {
	apiKey     string
	model      GoogleModel
	baseURL    string
	httpClient *http.Client
}

// NewGoogleEmbedder creates a new Google embedder.
func NewGoogleEmbedder(apiKey string, model GoogleModel) *GoogleEmbedder {
	if model == "" {
		model = ModelGeminiEmbedding001
	}
	return &GoogleEmbedder{
		apiKey:     apiKey,
		model:      model,
		baseURL:    googleEmbedBaseURL,
		httpClient: &http.Client{},
	}
}

func (e *GoogleEmbedder) Name() string {
	return "google/" + string(e.model)
}

func (e *GoogleEmbedder) Dimensions() int {
	return e.model.dimensions()
}

type googleBatchRequest struct {
	Requests []googleEmbedRequest `json:"requests"`
}

type googleEmbedRequest struct {
	Model   string        `json:"model"`
	Content googleContent `json:"content"`
}

type googleContent struct {
	Parts []googlePart `json:"parts"`
}

type googlePart struct {
	Text string `json:"text"`
}

type googleBatchResponse struct {
	Embeddings []struct {
		Values []float32 `json:"values"`
	} `json:"embeddings"`
}

func (e *GoogleEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	endpoint := fmt.Sprintf("%s/%s:batchEmbedContents?key=%s", e.baseURL, e.model, url.QueryEscape(e.apiKey))
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += googleMaxBatch {
		end := min(start+googleMaxBatch, len(texts))

		req := googleBatchRequest{Requests: make([]googleEmbedRequest, 0, end-start)}
		for _, text := range texts[start:end] {
			req.Requests = append(req.Requests, googleEmbedRequest{
				Model:   "models/" + string(e.model),
				Content: googleContent{Parts: []googlePart{{Text: text}}},
			})
		}

		var resp googleBatchResponse
		if err := httpjson.Post(ctx, e.httpClient, endpoint, req, &resp); err != nil {
			return nil, fmt.Errorf("google embedding request failed: %w", err)
		}
		if len(resp.Embeddings) != end-start {
			return nil, fmt.Errorf("google returned %d embeddings, expected %d", len(resp.Embeddings), end-start)
		}
		for _, emb := range resp.Embeddings {
			if len(emb.Values) == 0 {
				return nil, fmt.Errorf("google returned an empty embedding")
			}
			out = append(out, emb.Values)
		}
	}
	return out, nil
}
