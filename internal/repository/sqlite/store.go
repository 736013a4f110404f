// Package sqlite implements the segment store on an embedded SQLite database.
// Embeddings are stored as JSON float lists.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cloo-solutions/docqa/internal/database"
	"github.com/cloo-solutions/docqa/internal/domain"
)

// Store is a SQLite-backed segment store.
type Store struct {
	db *sql.DB
}

// NewStore wraps an open database that already carries the schema.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open migrates the database at path and opens a store over it.
func Open(ctx context.Context, path string) (*Store, error) {
	if err := database.Migrate("sqlite:" + path); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	db, err := database.OpenSQLite(ctx, path)
	if err != nil {
		return nil, err
	}
	return NewStore(db), nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) CreateDocument(ctx context.Context, filename string, fileType domain.FileType, contentType string) (*domain.Document, error) {
	doc := domain.NewDocument(uuid.NewString(), filename, fileType, contentType, time.Now().UTC())
	if err := domain.ValidateDocument(doc); err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid document", err)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (id, filename, file_type, content_type, created_at) VALUES (?, ?, ?, ?, ?)`,
		doc.ID, doc.Filename, string(doc.FileType), doc.ContentType, doc.CreatedAt.UnixNano(),
	)
	if err != nil {
		return nil, fmt.Errorf("inserting document: %w", err)
	}
	return doc, nil
}

func (s *Store) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	doc, err := scanDocument(s.db.QueryRowContext(ctx,
		`SELECT id, filename, file_type, content_type, created_at FROM documents WHERE id = ?`, id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrDocumentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting document: %w", err)
	}
	return doc, nil
}

// ListDocuments returns all documents, most recently created first.
func (s *Store) ListDocuments(ctx context.Context) ([]*domain.Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, filename, file_type, content_type, created_at
		 FROM documents ORDER BY created_at DESC, rowid DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	return collectDocuments(rows)
}

// DeleteDocument removes a document; chunks and selection rows cascade.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	if n == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

func (s *Store) AddChunk(ctx context.Context, documentID, text string, index int, embedding []float32) error {
	var encoded sql.NullString
	if embedding != nil {
		data, err := json.Marshal(embedding)
		if err != nil {
			return fmt.Errorf("encoding embedding: %w", err)
		}
		encoded = sql.NullString{String: string(data), Valid: true}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO document_chunks (id, document_id, chunk_text, chunk_index, chunk_embedding, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), documentID, text, index, encoded, time.Now().UTC().UnixNano(),
	)
	return constraintError(err)
}

// ListChunks returns a document's chunks in index order.
func (s *Store) ListChunks(ctx context.Context, documentID string) ([]*domain.Chunk, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, document_id, chunk_index, chunk_text, chunk_embedding, created_at
		 FROM document_chunks WHERE document_id = ? ORDER BY chunk_index`,
		documentID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing chunks: %w", err)
	}
	defer rows.Close()

	chunks := []*domain.Chunk{}
	for rows.Next() {
		var (
			c         domain.Chunk
			embedding sql.NullString
			createdAt int64
		)
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Index, &c.Text, &embedding, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		if embedding.Valid {
			if c.Embedding, err = decodeEmbedding(embedding.String); err != nil {
				return nil, err
			}
		}
		c.CreatedAt = time.Unix(0, createdAt).UTC()
		chunks = append(chunks, &c)
	}
	return chunks, rows.Err()
}

// CandidateChunks returns every embedded chunk in the active selection, or
// every embedded chunk when the selection is empty.
func (s *Store) CandidateChunks(ctx context.Context) ([]domain.Candidate, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT dc.id, dc.chunk_text, dc.document_id, d.filename, dc.chunk_embedding
		 FROM document_chunks dc
		 INNER JOIN documents d ON d.id = dc.document_id
		 WHERE dc.chunk_embedding IS NOT NULL
		   AND (NOT EXISTS (SELECT 1 FROM document_selections)
		        OR dc.document_id IN (SELECT document_id FROM document_selections))
		 ORDER BY d.created_at DESC, dc.document_id, dc.chunk_index`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing candidate chunks: %w", err)
	}
	defer rows.Close()

	candidates := []domain.Candidate{}
	for rows.Next() {
		var c domain.Candidate
		var embedding string
		if err := rows.Scan(&c.ChunkID, &c.Text, &c.DocumentID, &c.Filename, &embedding); err != nil {
			return nil, fmt.Errorf("scanning candidate: %w", err)
		}
		if c.Embedding, err = decodeEmbedding(embedding); err != nil {
			return nil, err
		}
		candidates = append(candidates, c)
	}
	return candidates, rows.Err()
}

// ReplaceSelection clears and repopulates the selection in one transaction.
func (s *Store) ReplaceSelection(ctx context.Context, documentIDs []string) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM document_selections`); err != nil {
		return fmt.Errorf("clearing selection: %w", err)
	}

	now := time.Now().UTC().UnixNano()
	for _, id := range documentIDs {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO document_selections (id, document_id, created_at) VALUES (?, ?, ?)`,
			uuid.NewString(), id, now,
		)
		if err = constraintError(err); err != nil {
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing selection: %w", err)
	}
	return nil
}

// ListSelection returns the selected documents, most recently created first.
func (s *Store) ListSelection(ctx context.Context) ([]*domain.Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT d.id, d.filename, d.file_type, d.content_type, d.created_at
		 FROM documents d
		 INNER JOIN document_selections sel ON sel.document_id = d.id
		 ORDER BY d.created_at DESC, d.rowid DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing selection: %w", err)
	}
	return collectDocuments(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*domain.Document, error) {
	var (
		d         domain.Document
		fileType  string
		createdAt int64
	)
	if err := row.Scan(&d.ID, &d.Filename, &fileType, &d.ContentType, &createdAt); err != nil {
		return nil, err
	}
	d.FileType = domain.FileType(fileType)
	d.CreatedAt = time.Unix(0, createdAt).UTC()
	return &d, nil
}

func collectDocuments(rows *sql.Rows) ([]*domain.Document, error) {
	defer rows.Close()

	docs := []*domain.Document{}
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func decodeEmbedding(s string) ([]float32, error) {
	var v []float32
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, fmt.Errorf("decoding embedding: %w", err)
	}
	return v, nil
}

// constraintError maps SQLite constraint failures onto domain errors.
func constraintError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "FOREIGN KEY constraint failed"):
		return domain.NewDomainErrorWithCause(domain.ErrCodeNotFound, domain.ErrDocumentNotFound.Message, err)
	case strings.Contains(msg, "UNIQUE constraint failed: document_chunks"):
		return domain.NewDomainErrorWithCause(domain.ErrCodeAlreadyExists, domain.ErrChunkAlreadyExists.Message, err)
	}
	return err
}
