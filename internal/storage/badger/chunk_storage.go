package badger

import (
	"fmt"
	"sort"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/ticketdigest/internal/models"
)

// ChunkStorage keeps embedded chunks for one retrieval index
type ChunkStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewChunkStorage creates a new ChunkStorage instance
func NewChunkStorage(db *BadgerDB, logger arbor.ILogger) *ChunkStorage {
	return &ChunkStorage{
		db:     db,
		logger: logger,
	}
}

// SaveChunks stores chunks keyed by ID, replacing existing entries
func (s *ChunkStorage) SaveChunks(chunks []models.Chunk) error {
	for i := range chunks {
		if chunks[i].ID == "" {
			return fmt.Errorf("chunk ID is required (ordinal %d)", chunks[i].Ordinal)
		}
		if err := s.db.Store().Upsert(chunks[i].ID, &chunks[i]); err != nil {
			return fmt.Errorf("failed to save chunk %s: %w", chunks[i].ID, err)
		}
	}
	return nil
}

// ListChunks returns all chunks in insertion order
func (s *ChunkStorage) ListChunks() ([]models.Chunk, error) {
	var chunks []models.Chunk
	if err := s.db.Store().Find(&chunks, nil); err != nil {
		return nil, fmt.Errorf("failed to list chunks: %w", err)
	}
	sort.Slice(chunks, func(i, j int) bool { return chunks[i].Ordinal < chunks[j].Ordinal })
	return chunks, nil
}

// CountChunks returns the number of stored chunks
func (s *ChunkStorage) CountChunks() (int, error) {
	count, err := s.db.Store().Count(&models.Chunk{}, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return int(count), nil
}
