package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/cloo-solutions/docqa/internal/domain"
)

// dbtx is satisfied by both *pgxpool.Pool and pgx.Tx.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const (
	pgUniqueViolation      = "23505"
	pgForeignKeyViolation  = "23503"
	pgInvalidTextRepresent = "22P02"
)

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// documentLookupError maps errors from statements keyed by a document id.
// A malformed id cannot match any row, so it reads as not found.
func documentLookupError(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrDocumentNotFound
	}
	switch pgCode(err) {
	case pgForeignKeyViolation, pgInvalidTextRepresent:
		return domain.NewDomainErrorWithCause(domain.ErrCodeNotFound, domain.ErrDocumentNotFound.Message, err)
	}
	return err
}
