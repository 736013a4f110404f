package domain

import "time"

// Chunk represents a bounded slice of a document's text used as the unit of retrieval.
// A chunk without an embedding is never considered for retrieval.
type Chunk struct {
	ID         string
	DocumentID string
	Index      int
	Text       string
	Embedding  []float32
	CreatedAt  time.Time
}

// Candidate is a chunk eligible for ranking, joined with its document's filename.
type Candidate struct {
	ChunkID    string
	DocumentID string
	Filename   string
	Text       string
	Embedding  []float32
}

// Source describes one chunk that contributed to an answer.
type Source struct {
	ChunkID    string
	DocumentID string
	Filename   string
	Score      float64
}
