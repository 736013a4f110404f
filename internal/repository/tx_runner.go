package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TxRepositories provides transaction-bound repositories.
type TxRepositories interface {
	Selections() *SelectionRepository
}

// TxRunner provides transactional repositories using a pgx pool.
type TxRunner struct {
	pool *pgxpool.Pool
}

func NewTxRunner(pool *pgxpool.Pool) *TxRunner {
	return &TxRunner{pool: pool}
}

// WithTx runs fn in a transaction that is committed when fn returns nil and
// rolled back otherwise.
func (r *TxRunner) WithTx(ctx context.Context, fn func(repos TxRepositories) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}

	repos := &txRepos{tx: tx}
	if err := fn(repos); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}

	return tx.Commit(ctx)
}

type txRepos struct {
	tx pgx.Tx
}

func (r *txRepos) Selections() *SelectionRepository {
	return NewSelectionRepositoryWithTx(r.tx)
}
