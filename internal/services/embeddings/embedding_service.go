package embeddings

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/cloudwego/eino-ext/libs/acl/openai"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/ticketdigest/internal/common"
	"github.com/ternarybob/ticketdigest/internal/interfaces"
)

// Service implements EmbeddingService on top of an eino embedder
type Service struct {
	embedder embedding.Embedder
	model    string
	retry    common.RetryPolicy
	logger   arbor.ILogger
}

var _ interfaces.EmbeddingService = (*Service)(nil)

// NewService wraps an existing embedder. Use NewOpenAIService for the configured endpoint.
func NewService(embedder embedding.Embedder, model string, retry common.RetryPolicy, logger arbor.ILogger) *Service {
	return &Service{
		embedder: embedder,
		model:    model,
		retry:    retry,
		logger:   logger,
	}
}

// NewOpenAIService creates an embedding service for an OpenAI-compatible /embeddings endpoint
func NewOpenAIService(ctx context.Context, baseURL, apiKey, model string, timeout time.Duration, retry common.RetryPolicy, logger arbor.ILogger) (*Service, error) {
	if model == "" {
		return nil, fmt.Errorf("embedding model is required")
	}

	client, err := openai.NewEmbeddingClient(ctx, &openai.EmbeddingConfig{
		BaseURL:    baseURL,
		APIKey:     apiKey,
		Model:      model,
		HTTPClient: &http.Client{Timeout: timeout},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding client: %w", err)
	}

	logger.Info().
		Str("model", model).
		Str("base_url", baseURL).
		Msg("Embedding service initialized")

	return NewService(client, model, retry, logger), nil
}

// ModelName returns the embedding model identifier
func (s *Service) ModelName() string {
	return s.model
}

// EmbedTexts embeds each text in one batched request
func (s *Service) EmbedTexts(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("no texts to embed")
	}

	start := time.Now()
	var vectors [][]float64
	err := common.Retry(ctx, s.retry, s.logger, "embeddings.embed", func(ctx context.Context) error {
		out, err := s.embedder.EmbedStrings(ctx, texts)
		if err != nil {
			return err
		}
		if len(out) != len(texts) {
			return common.Permanent(fmt.Errorf("embedding count mismatch: got %d, want %d", len(out), len(texts)))
		}
		vectors = out
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate embeddings: %w", err)
	}

	for i, v := range vectors {
		if len(v) == 0 {
			return nil, fmt.Errorf("embedding %d is empty", i)
		}
	}

	s.logger.Debug().
		Str("model", s.model).
		Int("count", len(vectors)).
		Int("embedding_dim", len(vectors[0])).
		Dur("duration", time.Since(start)).
		Msg("Generated embeddings")

	return vectors, nil
}

// EmbedQuery embeds a single retrieval query
func (s *Service) EmbedQuery(ctx context.Context, query string) ([]float64, error) {
	if query == "" {
		return nil, fmt.Errorf("query cannot be empty")
	}
	vectors, err := s.EmbedTexts(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}
