// Package postgres implements service.Store on PostgreSQL using pgx.
package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dukerupert/verdandi/internal/domain"
	"github.com/dukerupert/verdandi/internal/service"
)

// querier is the subset of pgx shared by *pgxpool.Pool and pgx.Tx, so
// every query method works both inside and outside a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store is the PostgreSQL-backed service.Store.
type Store struct {
	pool *pgxpool.Pool
	q    querier
}

// Compile-time check that Store implements service.Store.
var _ service.Store = (*Store)(nil)

// NewStore creates a store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, q: pool}
}

// WithTx runs fn inside a single database transaction. A nested call
// opens a savepoint on the enclosing transaction, so the inner work can
// fail and roll back without aborting the outer transaction.
func (s *Store) WithTx(ctx context.Context, fn func(tx service.Store) error) error {
	if tx, ok := s.q.(pgx.Tx); ok {
		nested, err := tx.Begin(ctx)
		if err != nil {
			return domain.Internal(err, "postgres.with_tx", "failed to create savepoint")
		}
		if err := fn(&Store{q: nested}); err != nil {
			_ = nested.Rollback(ctx)
			return err
		}
		if err := nested.Commit(ctx); err != nil {
			return domain.Internal(err, "postgres.with_tx", "failed to release savepoint")
		}
		return nil
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.Internal(err, "postgres.with_tx", "failed to begin transaction")
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	if err := fn(&Store{q: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Internal(err, "postgres.with_tx", "failed to commit transaction")
	}
	return nil
}

func rowsAffected(tag pgconn.CommandTag, op string, missing error) error {
	if tag.RowsAffected() == 0 {
		if missing != nil {
			return missing
		}
		return domain.Errorf(domain.ENOTFOUND, op, "no rows updated")
	}
	return nil
}
