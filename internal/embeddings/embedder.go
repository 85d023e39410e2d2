// Package embeddings turns chunk and query text into vectors for the
// semantic index.
package embeddings

import (
	"context"
	"errors"
	"fmt"

	chromem "github.com/philippgille/chromem-go"
)

// ErrNoEmbedding is returned when a provider answers without a vector.
var ErrNoEmbedding = errors.New("embeddings: provider returned no vector")

// Embedder produces one vector per input text, in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	// Dimensions is the vector length, or 0 when the model decides.
	Dimensions() int
	// Name identifies the provider and model, e.g. "openai/text-embedding-3-small".
	Name() string
}

// ToChromemFunc adapts e to the single-text function chromem-go calls for
// every chunk it stores and every query it runs. An empty vector is an error
// so it never reaches the index.
func ToChromemFunc(e Embedder) chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		results, err := e.Embed(ctx, []string{text})
		if err != nil {
			return nil, err
		}
		if len(results) == 0 || len(results[0]) == 0 {
			return nil, fmt.Errorf("%s: %w", e.Name(), ErrNoEmbedding)
		}
		return results[0], nil
	}
}
