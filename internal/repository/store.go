// Package repository implements the segment store on PostgreSQL with pgvector.
package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cloo-solutions/docqa/internal/domain"
)

// Store composes the document, chunk and selection repositories.
type Store struct {
	documents  *DocumentRepository
	chunks     *ChunkRepository
	selections *SelectionRepository
	tx         *TxRunner
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{
		documents:  NewDocumentRepository(pool),
		chunks:     NewChunkRepository(pool),
		selections: NewSelectionRepository(pool),
		tx:         NewTxRunner(pool),
	}
}

func (s *Store) CreateDocument(ctx context.Context, filename string, fileType domain.FileType, contentType string) (*domain.Document, error) {
	return s.documents.Create(ctx, filename, fileType, contentType)
}

func (s *Store) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	return s.documents.GetByID(ctx, id)
}

func (s *Store) ListDocuments(ctx context.Context) ([]*domain.Document, error) {
	return s.documents.List(ctx)
}

func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	return s.documents.Delete(ctx, id)
}

func (s *Store) AddChunk(ctx context.Context, documentID, text string, index int, embedding []float32) error {
	return s.chunks.Add(ctx, documentID, text, index, embedding)
}

func (s *Store) ListChunks(ctx context.Context, documentID string) ([]*domain.Chunk, error) {
	return s.chunks.ListByDocument(ctx, documentID)
}

func (s *Store) CandidateChunks(ctx context.Context) ([]domain.Candidate, error) {
	return s.chunks.Candidates(ctx)
}

// ReplaceSelection clears and repopulates the selection in one transaction.
// Concurrent readers see either the previous or the new set.
func (s *Store) ReplaceSelection(ctx context.Context, documentIDs []string) error {
	return s.tx.WithTx(ctx, func(repos TxRepositories) error {
		sel := repos.Selections()
		if err := sel.Lock(ctx); err != nil {
			return err
		}
		if err := sel.Clear(ctx); err != nil {
			return err
		}
		for _, id := range documentIDs {
			if err := sel.Add(ctx, id); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) ListSelection(ctx context.Context) ([]*domain.Document, error) {
	return s.selections.ListDocuments(ctx)
}
