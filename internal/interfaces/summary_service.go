package interfaces

import (
	"context"
	"errors"

	"github.com/ternarybob/ticketdigest/internal/models"
)

// ErrNoContent is returned when the sources hold no text to retrieve from
var ErrNoContent = errors.New("no textual content to summarize")

// TextSummarizer answers questions about ticket content with retrieval-augmented generation
type TextSummarizer interface {
	// RAGComplete chunks and indexes sources, retrieves the best chunk and answers question with it.
	// With no usable content it returns ErrNoContent and makes no model call.
	RAGComplete(ctx context.Context, sources []models.ContentSource, question string) (string, error)

	// Complete is a direct completion without retrieval
	Complete(ctx context.Context, prompt, contextText string) (string, error)
}
