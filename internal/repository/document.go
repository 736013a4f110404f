package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cloo-solutions/docqa/internal/domain"
)

const documentColumns = `id::text, filename, file_type, content_type, created_at`

// DocumentRepository handles persistence of documents.
type DocumentRepository struct {
	db dbtx
}

func NewDocumentRepository(pool *pgxpool.Pool) *DocumentRepository {
	return &DocumentRepository{db: pool}
}

// Create inserts a document under a freshly allocated id.
func (r *DocumentRepository) Create(ctx context.Context, filename string, fileType domain.FileType, contentType string) (*domain.Document, error) {
	doc := domain.NewDocument(uuid.NewString(), filename, fileType, contentType, time.Now().UTC())
	if err := domain.ValidateDocument(doc); err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid document", err)
	}

	_, err := r.db.Exec(ctx,
		`INSERT INTO documents (id, filename, file_type, content_type, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		doc.ID, doc.Filename, doc.FileType, doc.ContentType, doc.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	doc, err := scanDocument(r.db.QueryRow(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = $1`, id,
	))
	if err != nil {
		return nil, documentLookupError(err)
	}
	return doc, nil
}

// List returns all documents, most recently created first.
func (r *DocumentRepository) List(ctx context.Context) ([]*domain.Document, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+documentColumns+` FROM documents ORDER BY created_at DESC, id DESC`,
	)
	if err != nil {
		return nil, err
	}
	return collectDocuments(rows)
}

// Delete removes a document; chunks and selection rows cascade.
func (r *DocumentRepository) Delete(ctx context.Context, id string) error {
	cmdTag, err := r.db.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return documentLookupError(err)
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

func scanDocument(row pgx.Row) (*domain.Document, error) {
	var d domain.Document
	var fileType string
	if err := row.Scan(&d.ID, &d.Filename, &fileType, &d.ContentType, &d.CreatedAt); err != nil {
		return nil, err
	}
	d.FileType = domain.FileType(fileType)
	return &d, nil
}

func collectDocuments(rows pgx.Rows) ([]*domain.Document, error) {
	defer rows.Close()

	docs := []*domain.Document{}
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}
