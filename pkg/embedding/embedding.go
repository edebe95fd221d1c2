// Package embedding converts question text into vectors for similarity matching.
package embedding

import (
	"context"

	"github.com/m-mizutani/ditto/pkg/adapter"
	"github.com/m-mizutani/goerr/v2"
)

// Provider embeds texts. It returns exactly one vector per text in input
// order and fails as a unit if any text cannot be embedded.
type Provider interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// ProviderFunc adapts a function to Provider
type ProviderFunc func(ctx context.Context, texts []string) ([][]float32, error)

func (f ProviderFunc) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return f(ctx, texts)
}

type gemini struct {
	client         adapter.Gemini
	dimensionality int
}

// NewGemini creates a Provider using Gemini embeddings
func NewGemini(client adapter.Gemini, dimensionality int) Provider {
	return &gemini{client: client, dimensionality: dimensionality}
}

func (g *gemini) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	vectors, err := g.client.Embedding(ctx, texts, g.dimensionality)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to embed texts with gemini", goerr.V("count", len(texts)))
	}
	return vectors, nil
}

type openAI struct {
	client     adapter.OpenAI
	dimensions int
}

// NewOpenAI creates a Provider using OpenAI embeddings
func NewOpenAI(client adapter.OpenAI, dimensions int) Provider {
	return &openAI{client: client, dimensions: dimensions}
}

func (o *openAI) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	vectors, err := o.client.Embedding(ctx, texts, o.dimensions)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to embed texts with openai", goerr.V("count", len(texts)))
	}
	return vectors, nil
}
