package interfaces

import "context"

// EmbeddingService generates vector embeddings with a fixed model
type EmbeddingService interface {
	// EmbedTexts embeds each text, returning one vector per input in order
	EmbedTexts(ctx context.Context, texts []string) ([][]float64, error)

	// EmbedQuery embeds a single retrieval query
	EmbedQuery(ctx context.Context, query string) ([]float64, error)

	// ModelName returns the embedding model identifier
	ModelName() string
}
