package bank

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vvka-141/roachtx/pkg/roachtx"
	"github.com/vvka-141/roachtx/pkg/roachtx/pgxtx"
)

// PgxStore runs the bank on a pgx connection pool.
type PgxStore struct {
	pool    *pgxpool.Pool
	session *pgxtx.Session
	exec    *roachtx.Executor
}

var _ Store = (*PgxStore)(nil)

// NewPgxStore creates a store whose transactions go through exec.
func NewPgxStore(pool *pgxpool.Pool, exec *roachtx.Executor) *PgxStore {
	return &PgxStore{
		pool:    pool,
		session: pgxtx.NewSession(pool).WithTxOptions(pgx.TxOptions{IsoLevel: pgx.Serializable}),
		exec:    exec,
	}
}

func (s *PgxStore) Init(ctx context.Context, accounts int, balance int64) error {
	for _, stmt := range schemaStatements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}

	return roachtx.ExecuteTx(ctx, s.exec, s.session, func(ctx context.Context, tx *pgxtx.Tx) error {
		if _, err := tx.Exec(ctx, seedAccounts, accounts, balance); err != nil {
			return fmt.Errorf("failed to seed accounts: %w", err)
		}
		return nil
	})
}

func (s *PgxStore) Transfer(ctx context.Context, t Transfer) (bool, error) {
	return roachtx.Execute(ctx, s.exec, s.session, func(ctx context.Context, tx *pgxtx.Tx) (bool, error) {
		return applyTransfer(ctx, pgxConn{tx}, t)
	})
}

func (s *PgxStore) Totals(ctx context.Context) (Totals, error) {
	var t Totals
	if err := s.pool.QueryRow(ctx, selectTotals).Scan(&t.Accounts, &t.Balance); err != nil {
		return Totals{}, fmt.Errorf("failed to read totals: %w", err)
	}
	return t, nil
}

func (s *PgxStore) Seeded(ctx context.Context) (bool, error) {
	return seeded(ctx, func(ctx context.Context, query string) row {
		return s.pool.QueryRow(ctx, query)
	})
}

func (s *PgxStore) LedgerCount(ctx context.Context, runID uuid.UUID) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, countTransfers, runID.String()).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count ledger rows: %w", err)
	}
	return n, nil
}

type pgxConn struct{ tx *pgxtx.Tx }

func (c pgxConn) exec(ctx context.Context, query string, args ...any) error {
	_, err := c.tx.Exec(ctx, query, args...)
	return err
}

func (c pgxConn) queryRow(ctx context.Context, query string, args ...any) row {
	return c.tx.QueryRow(ctx, query, args...)
}

func (pgxConn) isNoRows(err error) bool { return errors.Is(err, pgx.ErrNoRows) }
