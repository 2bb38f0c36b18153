// Package llm wires the DeepSeek (OpenAI-compatible) chat and embedding
// models this service depends on, via langchaingo — the same library the
// resolver/clarify/workflow packages use for their GenerateContent calls.
package llm

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

// Embedder adapts a langchaingo embeddings.Embedder to the single-text
// func(ctx, string) ([]float32, error) shape resolver/workflow/knowledge
// collaborators expect.
type Embedder struct {
	inner embeddings.Embedder
}

// NewEmbedder builds an Embedder against an OpenAI-compatible endpoint
// (DeepSeek's API is OpenAI-compatible). apiKey/baseURL/model come from
// config.Settings.
func NewEmbedder(apiKey, baseURL, model string) (*Embedder, error) {
	llm, err := openai.New(
		openai.WithToken(apiKey),
		openai.WithBaseURL(baseURL),
		openai.WithEmbeddingModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("llm: new embedding client: %w", err)
	}
	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("llm: new embedder: %w", err)
	}
	return &Embedder{inner: embedder}, nil
}

// Embed returns the embedding vector for a single piece of text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.inner.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("llm: embed: %w", err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("llm: embed: empty result")
	}
	return vectors[0], nil
}
