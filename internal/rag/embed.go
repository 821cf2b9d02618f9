package rag

import (
	"context"
	"fmt"
	"sync"

	openai "github.com/sashabaranov/go-openai"

	"zeb-assist-backend/internal/config"
)

const (
	// Dimension is the fixed embedding vector size.
	Dimension = 1536
	// maxInputChars truncates input before the service's hard limit.
	maxInputChars = 8000
	// embedBatchSize respects the embedding service batch limit.
	embedBatchSize = 100
)

type embeddingAPI interface {
	CreateEmbeddings(ctx context.Context, conv openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error)
}

// Embedder turns text into fixed-dimension vectors. The client is
// lazily constructed and dropped on config invalidation.
type Embedder struct {
	cfg *config.Store

	mu        sync.Mutex
	client    embeddingAPI
	newClient func(config.Config) embeddingAPI
}

func NewEmbedder(cfg *config.Store) *Embedder {
	e := &Embedder{
		cfg: cfg,
		newClient: func(c config.Config) embeddingAPI {
			return openai.NewClient(c.EmbedKey)
		},
	}
	cfg.OnInvalidate(e.invalidate)
	return e
}

func (e *Embedder) invalidate() {
	e.mu.Lock()
	e.client = nil
	e.mu.Unlock()
}

func (e *Embedder) getClient() (embeddingAPI, config.Config, error) {
	cfg := e.cfg.Snapshot()
	if cfg.EmbedKey == "" {
		return nil, cfg, fmt.Errorf("EMBED_API_KEY not configured")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.client == nil {
		e.client = e.newClient(cfg)
	}
	return e.client, cfg, nil
}

// Embed embeds a single string, truncated to the input cap.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// EmbedBatch embeds texts in fixed-size batches, sequentially, and
// returns vectors in input order. Order preservation matters: callers
// zip embeddings back onto their source chunks by index.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	client, cfg, err := e.getClient()
	if err != nil {
		return nil, err
	}
	vectors := make([][]float32, 0, len(texts))
	for i := 0; i < len(texts); i += embedBatchSize {
		end := i + embedBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		input := make([]string, 0, end-i)
		for _, t := range texts[i:end] {
			input = append(input, truncate(t, maxInputChars))
		}
		resp, err := client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Model:      openai.EmbeddingModel(cfg.EmbedModel),
			Input:      input,
			Dimensions: Dimension,
		})
		if err != nil {
			return nil, fmt.Errorf("embedding batch %d failed: %w", i/embedBatchSize, err)
		}
		if len(resp.Data) != len(input) {
			return nil, fmt.Errorf("embedding batch %d returned %d vectors for %d inputs", i/embedBatchSize, len(resp.Data), len(input))
		}
		for _, d := range resp.Data {
			vectors = append(vectors, d.Embedding)
		}
	}
	return vectors, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
