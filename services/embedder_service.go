package services

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms/ollama"
	"golang.org/x/sync/errgroup"
)

const embedBatchSize = 16

// TextEmbedder is the embedding surface the knowledge service depends on.
type TextEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Embedder turns text into vectors using an Ollama embedding model.
type Embedder struct {
	llm     *ollama.LLM
	workers int
}

// NewEmbedder connects to the Ollama server at baseURL using the given
// embedding model. workers bounds how many embedding batches run at once
// during ingest.
func NewEmbedder(baseURL, model string, workers int) (*Embedder, error) {
	llm, err := ollama.New(ollama.WithModel(model), ollama.WithServerURL(baseURL))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedding model: %w", err)
	}
	if workers < 1 {
		workers = 1
	}
	return &Embedder{llm: llm, workers: workers}, nil
}

// EmbedQuery embeds a single piece of text.
func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.llm.CreateEmbedding(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("failed to embed text: %w", err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("embedding model returned no vector")
	}
	return vectors[0], nil
}

// EmbedTexts embeds a batch of texts, preserving order. Batches are sent to
// Ollama concurrently, capped at the configured worker count.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors := make([][]float32, len(texts))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)

	for start := 0; start < len(texts); start += embedBatchSize {
		start := start
		end := start + embedBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		g.Go(func() error {
			batch, err := e.llm.CreateEmbedding(ctx, texts[start:end])
			if err != nil {
				return fmt.Errorf("failed to embed batch at %d: %w", start, err)
			}
			if len(batch) != end-start {
				return fmt.Errorf("embedding model returned %d vectors for %d texts", len(batch), end-start)
			}
			copy(vectors[start:], batch)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}
