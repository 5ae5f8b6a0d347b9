package rag

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/ticketdigest/internal/models"
	"github.com/ternarybob/ticketdigest/internal/services/transform"
)

// blockSelector lists the elements that become chunks
const blockSelector = "p, li, h1, h2, h3, h4, h5, h6"

// Chunk splits each source into retrievable pieces. Content is entity-unescaped and
// parsed as HTML; every leaf paragraph, list item and heading with text becomes one chunk.
// Content without any of those elements becomes a single chunk. Empty sources yield nothing.
func (s *Service) Chunk(sources []models.ContentSource) []models.Chunk {
	var chunks []models.Chunk

	for _, source := range sources {
		if strings.TrimSpace(source.Content) == "" {
			continue
		}

		content := s.transform.Unescape(source.Content)
		for _, text := range splitBlocks(content) {
			chunks = append(chunks, models.Chunk{
				ID:         fmt.Sprintf("%s-%d", source.SourceID, len(chunks)),
				Ordinal:    len(chunks),
				Text:       text,
				SourceID:   source.SourceID,
				SourceType: models.SourceTypeGLPITicket,
			})
		}
	}

	s.logger.Debug().
		Int("sources", len(sources)).
		Int("chunks", len(chunks)).
		Msg("Processed sources into chunks")

	return chunks
}

// splitBlocks returns the text of each leaf block element, or the whole text when there are none
func splitBlocks(content string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		if text := transform.PlainText(content); text != "" {
			return []string{text}
		}
		return nil
	}

	var texts []string
	doc.Find(blockSelector).Each(func(_ int, block *goquery.Selection) {
		// Nested blocks are chunked on their own
		if block.Find(blockSelector).Length() > 0 {
			return
		}
		if text := collapse(block.Text()); text != "" {
			texts = append(texts, text)
		}
	})

	if len(texts) == 0 {
		if text := collapse(doc.Text()); text != "" {
			return []string{text}
		}
	}
	return texts
}

func collapse(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
