package models

// Chunk is one retrievable piece of ticket content
type Chunk struct {
	ID         string    `json:"id" badgerhold:"key"`
	Ordinal    int       `json:"ordinal"`
	Text       string    `json:"text"`
	SourceID   string    `json:"source_id"`
	SourceType string    `json:"source_type"`
	Vector     []float64 `json:"-"`
}
