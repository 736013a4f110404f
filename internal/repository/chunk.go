package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/cloo-solutions/docqa/internal/domain"
)

// ChunkRepository handles persistence of document chunks and their embeddings.
type ChunkRepository struct {
	db dbtx
}

func NewChunkRepository(pool *pgxpool.Pool) *ChunkRepository {
	return &ChunkRepository{db: pool}
}

// Add persists one chunk. A nil embedding is stored as NULL and keeps the
// chunk out of retrieval.
func (r *ChunkRepository) Add(ctx context.Context, documentID, text string, index int, embedding []float32) error {
	var vec any
	if embedding != nil {
		vec = pgvector.NewVector(embedding)
	}

	_, err := r.db.Exec(ctx,
		`INSERT INTO document_chunks (id, document_id, chunk_text, chunk_index, chunk_embedding, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		uuid.NewString(), documentID, text, index, vec, time.Now().UTC(),
	)
	if err != nil {
		if pgCode(err) == pgUniqueViolation {
			return domain.NewDomainErrorWithCause(domain.ErrCodeAlreadyExists, domain.ErrChunkAlreadyExists.Message, err)
		}
		return documentLookupError(err)
	}
	return nil
}

// ListByDocument returns a document's chunks in index order.
func (r *ChunkRepository) ListByDocument(ctx context.Context, documentID string) ([]*domain.Chunk, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id::text, document_id::text, chunk_index, chunk_text, chunk_embedding, created_at
		 FROM document_chunks
		 WHERE document_id = $1
		 ORDER BY chunk_index`,
		documentID,
	)
	if err != nil {
		return nil, documentLookupError(err)
	}
	defer rows.Close()

	chunks := []*domain.Chunk{}
	for rows.Next() {
		var c domain.Chunk
		var vec *pgvector.Vector
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Index, &c.Text, &vec, &c.CreatedAt); err != nil {
			return nil, err
		}
		if vec != nil {
			c.Embedding = vec.Slice()
		}
		chunks = append(chunks, &c)
	}
	return chunks, rows.Err()
}

// Candidates returns every embedded chunk whose document is in the active
// selection, or every embedded chunk when the selection is empty. The
// selection check and the scan run in one statement so they share a snapshot.
func (r *ChunkRepository) Candidates(ctx context.Context) ([]domain.Candidate, error) {
	rows, err := r.db.Query(ctx,
		`SELECT dc.id::text, dc.chunk_text, dc.document_id::text, d.filename, dc.chunk_embedding
		 FROM document_chunks dc
		 INNER JOIN documents d ON d.id = dc.document_id
		 WHERE dc.chunk_embedding IS NOT NULL
		   AND (NOT EXISTS (SELECT 1 FROM document_selections)
		        OR dc.document_id IN (SELECT document_id FROM document_selections))
		 ORDER BY d.created_at DESC, dc.document_id, dc.chunk_index`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	candidates := []domain.Candidate{}
	for rows.Next() {
		var c domain.Candidate
		var vec pgvector.Vector
		if err := rows.Scan(&c.ChunkID, &c.Text, &c.DocumentID, &c.Filename, &vec); err != nil {
			return nil, err
		}
		c.Embedding = vec.Slice()
		candidates = append(candidates, c)
	}
	return candidates, rows.Err()
}
