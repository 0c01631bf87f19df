package bank

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/vvka-141/roachtx/pkg/roachtx"
	"github.com/vvka-141/roachtx/pkg/roachtx/sqltx"
)

// SQLStore runs the bank on database/sql, normally with lib/pq.
type SQLStore struct {
	db      *sql.DB
	session *sqltx.Session
	exec    *roachtx.Executor
}

var _ Store = (*SQLStore)(nil)

// NewSQLStore creates a store whose transactions go through exec.
func NewSQLStore(db *sql.DB, exec *roachtx.Executor) *SQLStore {
	return &SQLStore{
		db:      db,
		session: sqltx.NewSession(db).WithTxOptions(&sql.TxOptions{Isolation: sql.LevelSerializable}),
		exec:    exec,
	}
}

func (s *SQLStore) Init(ctx context.Context, accounts int, balance int64) error {
	for _, stmt := range schemaStatements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}

	return roachtx.ExecuteTx(ctx, s.exec, s.session, func(ctx context.Context, tx *sqltx.Tx) error {
		if _, err := tx.ExecContext(ctx, seedAccounts, accounts, balance); err != nil {
			return fmt.Errorf("failed to seed accounts: %w", err)
		}
		return nil
	})
}

func (s *SQLStore) Transfer(ctx context.Context, t Transfer) (bool, error) {
	return roachtx.Execute(ctx, s.exec, s.session, func(ctx context.Context, tx *sqltx.Tx) (bool, error) {
		return applyTransfer(ctx, sqlConn{tx}, t)
	})
}

func (s *SQLStore) Totals(ctx context.Context) (Totals, error) {
	var t Totals
	if err := s.db.QueryRowContext(ctx, selectTotals).Scan(&t.Accounts, &t.Balance); err != nil {
		return Totals{}, fmt.Errorf("failed to read totals: %w", err)
	}
	return t, nil
}

func (s *SQLStore) Seeded(ctx context.Context) (bool, error) {
	return seeded(ctx, func(ctx context.Context, query string) row {
		return s.db.QueryRowContext(ctx, query)
	})
}

func (s *SQLStore) LedgerCount(ctx context.Context, runID uuid.UUID) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, countTransfers, runID.String()).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count ledger rows: %w", err)
	}
	return n, nil
}

type sqlConn struct{ tx *sqltx.Tx }

func (c sqlConn) exec(ctx context.Context, query string, args ...any) error {
	_, err := c.tx.ExecContext(ctx, query, args...)
	return err
}

func (c sqlConn) queryRow(ctx context.Context, query string, args ...any) row {
	return c.tx.QueryRowContext(ctx, query, args...)
}

func (sqlConn) isNoRows(err error) bool { return errors.Is(err, sql.ErrNoRows) }
