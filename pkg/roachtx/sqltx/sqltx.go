// Package sqltx adapts database/sql transactions to the roachtx retry
// protocol. It works with any driver registered with database/sql; the
// bank workload uses lib/pq.
//
//	db, _ := sql.Open("postgres", connString)
//	err := roachtx.ExecuteTx(ctx, exec, sqltx.NewSession(db), func(ctx context.Context, tx *sqltx.Tx) error {
//	    _, err := tx.ExecContext(ctx, "UPDATE accounts SET balance = balance - $1 WHERE id = $2", amount, from)
//	    return err
//	})
package sqltx

import (
	"context"
	"database/sql"
	"sync/atomic"

	"github.com/vvka-141/roachtx/pkg/roachtx"
)

// Beginner starts database/sql transactions. Satisfied by *sql.DB and *sql.Conn.
type Beginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// Session begins database/sql transactions for roachtx.ExecuteTx.
type Session struct {
	db   Beginner
	opts *sql.TxOptions
}

var _ roachtx.Session[*Tx] = (*Session)(nil)

// NewSession creates a Session over db using the driver's default options.
func NewSession(db Beginner) *Session {
	return &Session{db: db}
}

// WithTxOptions returns a new Session that begins transactions with opts.
func (s *Session) WithTxOptions(opts *sql.TxOptions) *Session {
	return &Session{db: s.db, opts: opts}
}

// Begin starts a new outer transaction.
func (s *Session) Begin(ctx context.Context) (*Tx, error) {
	tx, err := s.db.BeginTx(ctx, s.opts)
	if err != nil {
		return nil, err
	}
	return Wrap(tx), nil
}

// Tx is a *sql.Tx that also satisfies roachtx.Tx. Commit and Rollback take
// a context to match the interface and shadow the *sql.Tx methods.
//
// database/sql does not expose the server's transaction state, so
// RollbackOnly is tracked on the client: a database error from ExecStmt,
// ExecContext, QueryContext or QueryRowContext marks the transaction, and a
// successful ROLLBACK TO SAVEPOINT clears it. Errors that only surface while
// iterating *sql.Rows are not seen.
type Tx struct {
	*sql.Tx
	status  atomic.Int32
	aborted atomic.Bool
}

var _ roachtx.Tx = (*Tx)(nil)

// Wrap adapts an already-begun transaction.
func Wrap(tx *sql.Tx) *Tx {
	return &Tx{Tx: tx}
}

// ExecStmt executes a statement that takes no arguments and returns no rows.
func (t *Tx) ExecStmt(ctx context.Context, stmt string) error {
	_, err := t.Tx.ExecContext(ctx, stmt)
	t.track(err)
	if err == nil && stmt == roachtx.RollbackToSavepointStmt {
		t.aborted.Store(false)
	}
	return err
}

// ExecContext executes a query that returns no rows.
func (t *Tx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	res, err := t.Tx.ExecContext(ctx, query, args...)
	t.track(err)
	return res, err
}

// QueryContext executes a query that returns rows.
func (t *Tx) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	rows, err := t.Tx.QueryContext(ctx, query, args...)
	t.track(err)
	return rows, err
}

// QueryRowContext executes a query expected to return at most one row.
func (t *Tx) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	row := t.Tx.QueryRowContext(ctx, query, args...)
	t.track(row.Err())
	return row
}

func (t *Tx) track(err error) {
	if roachtx.IsDatabaseError(err) {
		t.aborted.Store(true)
	}
}

func (t *Tx) Commit(context.Context) error {
	err := t.Tx.Commit()
	if err == nil {
		t.status.Store(int32(roachtx.TxStatusCommitted))
	}
	return err
}

func (t *Tx) Rollback(context.Context) error {
	err := t.Tx.Rollback()
	t.status.Store(int32(roachtx.TxStatusRolledBack))
	return err
}

// Status reports the lifecycle state of the transaction.
func (t *Tx) Status() roachtx.TxStatus {
	s := roachtx.TxStatus(t.status.Load())
	if s == roachtx.TxStatusActive && t.RollbackOnly() {
		return roachtx.TxStatusMarkedRollbackOnly
	}
	return s
}

// RollbackOnly reports whether a statement in this transaction has failed
// with a database error since the last successful savepoint rollback.
func (t *Tx) RollbackOnly() bool {
	return t.aborted.Load()
}
