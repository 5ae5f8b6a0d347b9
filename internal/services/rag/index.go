package rag

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/cloudwego/eino/components/retriever"
	"github.com/cloudwego/eino/schema"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/ticketdigest/internal/interfaces"
	"github.com/ternarybob/ticketdigest/internal/models"
	badgerstore "github.com/ternarybob/ticketdigest/internal/storage/badger"
)

// Metadata keys set on retrieved documents
const (
	MetaSourceID   = "source_id"
	MetaSourceType = "source_type"
)

// DefaultTopK is how many chunks a query retrieves
const DefaultTopK = 1

// Index is an ephemeral vector index over one run's chunks.
// It lives in an in-memory badger store and is dropped by Close.
type Index struct {
	db         *badgerstore.BadgerDB
	chunks     *badgerstore.ChunkStorage
	embeddings interfaces.EmbeddingService
	logger     arbor.ILogger
}

var _ retriever.Retriever = (*Index)(nil)

// BuildIndex embeds the chunks and stores them in a fresh in-memory index
func (s *Service) BuildIndex(ctx context.Context, chunks []models.Chunk) (*Index, error) {
	if len(chunks) == 0 {
		return nil, fmt.Errorf("no chunks to index")
	}

	texts := make([]string, len(chunks))
	for i := range chunks {
		texts[i] = chunks[i].Text
	}

	vectors, err := s.embeddings.EmbedTexts(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to embed chunks: %w", err)
	}

	embedded := make([]models.Chunk, len(chunks))
	copy(embedded, chunks)
	for i := range embedded {
		embedded[i].Vector = vectors[i]
	}

	db, err := badgerstore.NewInMemoryDB(s.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open index store: %w", err)
	}

	storage := badgerstore.NewChunkStorage(db, s.logger)
	if err := storage.SaveChunks(embedded); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to store chunks: %w", err)
	}

	// Colliding IDs would silently drop chunks from retrieval
	stored, err := storage.CountChunks()
	if err != nil {
		db.Close()
		return nil, err
	}
	if stored != len(embedded) {
		db.Close()
		return nil, fmt.Errorf("stored %d of %d chunks: chunk IDs must be unique", stored, len(embedded))
	}

	s.logger.Debug().
		Int("chunks", len(embedded)).
		Str("embedding_model", s.embeddings.ModelName()).
		Msg("Built retrieval index")

	return &Index{
		db:         db,
		chunks:     storage,
		embeddings: s.embeddings,
		logger:     s.logger,
	}, nil
}

// Retrieve returns the chunks most similar to query, best first. TopK defaults to 1.
func (idx *Index) Retrieve(ctx context.Context, query string, opts ...retriever.Option) ([]*schema.Document, error) {
	topK := DefaultTopK
	options := retriever.GetCommonOptions(&retriever.Options{TopK: &topK}, opts...)
	if options.TopK != nil && *options.TopK > 0 {
		topK = *options.TopK
	}

	queryVector, err := idx.embeddings.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	chunks, err := idx.chunks.ListChunks()
	if err != nil {
		return nil, err
	}

	type scored struct {
		chunk models.Chunk
		score float64
	}
	results := make([]scored, 0, len(chunks))
	for _, chunk := range chunks {
		results = append(results, scored{chunk: chunk, score: cosineSimilarity(queryVector, chunk.Vector)})
	}

	// Stable keeps insertion order among equal scores
	sort.SliceStable(results, func(i, j int) bool { return results[i].score > results[j].score })

	if len(results) > topK {
		results = results[:topK]
	}

	docs := make([]*schema.Document, 0, len(results))
	for _, r := range results {
		doc := &schema.Document{
			ID:      r.chunk.ID,
			Content: r.chunk.Text,
			MetaData: map[string]any{
				MetaSourceID:   r.chunk.SourceID,
				MetaSourceType: r.chunk.SourceType,
			},
		}
		docs = append(docs, doc.WithScore(r.score))
	}
	return docs, nil
}

// Close drops the index
func (idx *Index) Close() error {
	if idx == nil {
		return nil
	}
	return idx.db.Close()
}

// cosineSimilarity returns the cosine of the angle between a and b, 0 for mismatched or zero vectors
func cosineSimilarity(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
