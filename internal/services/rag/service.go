// Package rag answers questions about ticket content with retrieval-augmented generation.
package rag

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/retriever"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/ticketdigest/internal/common"
	"github.com/ternarybob/ticketdigest/internal/interfaces"
	"github.com/ternarybob/ticketdigest/internal/models"
)

// StuffPrompt places the retrieved context directly ahead of the question
const StuffPrompt = "Use the following pieces of context to answer the question at the end. " +
	"If you don't know the answer, just say that you don't know, don't try to make up an answer.\n\n" +
	"{context}\n\nQuestion: {question}\nHelpful Answer:"

// Service implements TextSummarizer
type Service struct {
	embeddings interfaces.EmbeddingService
	text       interfaces.TextService
	transform  interfaces.TransformService
	logger     arbor.ILogger
}

var _ interfaces.TextSummarizer = (*Service)(nil)

// NewService creates a new RAG service
func NewService(embeddings interfaces.EmbeddingService, text interfaces.TextService, transform interfaces.TransformService, logger arbor.ILogger) *Service {
	return &Service{
		embeddings: embeddings,
		text:       text,
		transform:  transform,
		logger:     logger,
	}
}

// Query retrieves the single best chunk and asks the text model to answer with it as context
func (s *Service) Query(ctx context.Context, index *Index, question string) (string, error) {
	docs, err := index.Retrieve(ctx, question, retriever.WithTopK(DefaultTopK))
	if err != nil {
		return "", fmt.Errorf("failed to retrieve context: %w", err)
	}
	if len(docs) == 0 {
		return "", interfaces.ErrNoContent
	}

	s.logger.Debug().
		Str("chunk_id", docs[0].ID).
		Float64("score", docs[0].Score()).
		Msg("Retrieved context chunk")

	prompt := common.RenderTemplate(StuffPrompt, map[string]string{
		"context":  docs[0].Content,
		"question": question,
	}, s.logger)

	return s.text.Complete(ctx, prompt, "")
}

// RAGComplete chunks the sources, indexes them, answers question from the best chunk and
// drops the index. Sources without text yield ErrNoContent and no model call.
func (s *Service) RAGComplete(ctx context.Context, sources []models.ContentSource, question string) (string, error) {
	chunks := s.Chunk(sources)
	if len(chunks) == 0 {
		s.logger.Debug().Int("sources", len(sources)).Msg("No chunks to index, skipping completion")
		return "", interfaces.ErrNoContent
	}

	index, err := s.BuildIndex(ctx, chunks)
	if err != nil {
		return "", err
	}
	defer func() {
		if closeErr := index.Close(); closeErr != nil {
			s.logger.Warn().Err(closeErr).Msg("Failed to close retrieval index")
		}
	}()

	return s.Query(ctx, index, question)
}

// Complete is a direct completion without retrieval
func (s *Service) Complete(ctx context.Context, prompt, contextText string) (string, error) {
	return s.text.Complete(ctx, prompt, contextText)
}
