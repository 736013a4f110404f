package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cloo-solutions/docqa/internal/domain"
)

// SelectionRepository handles the rows that make up the active selection.
type SelectionRepository struct {
	db dbtx
}

func NewSelectionRepository(pool *pgxpool.Pool) *SelectionRepository {
	return &SelectionRepository{db: pool}
}

func NewSelectionRepositoryWithTx(tx pgx.Tx) *SelectionRepository {
	return &SelectionRepository{db: tx}
}

// Lock blocks other selection writers until the surrounding transaction ends.
// Readers are not blocked.
func (r *SelectionRepository) Lock(ctx context.Context) error {
	_, err := r.db.Exec(ctx, `LOCK TABLE document_selections IN SHARE ROW EXCLUSIVE MODE`)
	return err
}

func (r *SelectionRepository) Clear(ctx context.Context) error {
	_, err := r.db.Exec(ctx, `DELETE FROM document_selections`)
	return err
}

func (r *SelectionRepository) Add(ctx context.Context, documentID string) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO document_selections (id, document_id, created_at) VALUES ($1, $2, $3)`,
		uuid.NewString(), documentID, time.Now().UTC(),
	)
	return documentLookupError(err)
}

// ListDocuments returns the selected documents, most recently created first.
func (r *SelectionRepository) ListDocuments(ctx context.Context) ([]*domain.Document, error) {
	rows, err := r.db.Query(ctx,
		`SELECT d.id::text, d.filename, d.file_type, d.content_type, d.created_at
		 FROM documents d
		 INNER JOIN document_selections s ON s.document_id = d.id
		 ORDER BY d.created_at DESC, d.id DESC`,
	)
	if err != nil {
		return nil, err
	}
	return collectDocuments(rows)
}
