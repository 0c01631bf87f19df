// Package pgxtx adapts pgx transactions to the roachtx retry protocol.
//
// Both *pgxpool.Pool and *pgx.Conn can back a Session:
//
//	pool, _ := pgxpool.New(ctx, connString)
//	err := roachtx.ExecuteTx(ctx, exec, pgxtx.NewSession(pool), func(ctx context.Context, tx *pgxtx.Tx) error {
//	    _, err := tx.Exec(ctx, "UPDATE accounts SET balance = balance - $1 WHERE id = $2", amount, from)
//	    return err
//	})
package pgxtx

import (
	"context"
	"sync/atomic"

	"github.com/jackc/pgx/v5"

	"github.com/vvka-141/roachtx/pkg/roachtx"
)

// Beginner starts pgx transactions. Satisfied by *pgxpool.Pool and *pgx.Conn.
type Beginner interface {
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// Session begins pgx transactions for roachtx.ExecuteTx.
type Session struct {
	db   Beginner
	opts pgx.TxOptions
}

var _ roachtx.Session[*Tx] = (*Session)(nil)

// NewSession creates a Session over db using default transaction options.
func NewSession(db Beginner) *Session {
	return &Session{db: db}
}

// WithTxOptions returns a new Session that begins transactions with opts.
func (s *Session) WithTxOptions(opts pgx.TxOptions) *Session {
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

// Tx is a pgx.Tx that also satisfies roachtx.Tx. All pgx methods (Exec,
// Query, QueryRow, CopyFrom, SendBatch) remain available to the unit of work.
type Tx struct {
	pgx.Tx
	status atomic.Int32
}

var _ roachtx.Tx = (*Tx)(nil)

// Wrap adapts an already-begun pgx transaction. Use it with roachtx.RunInTx
// when the caller manages commit and rollback itself.
func Wrap(tx pgx.Tx) *Tx {
	return &Tx{Tx: tx}
}

// ExecStmt executes a statement that takes no arguments and returns no rows.
func (t *Tx) ExecStmt(ctx context.Context, stmt string) error {
	_, err := t.Tx.Exec(ctx, stmt)
	return err
}

func (t *Tx) Commit(ctx context.Context) error {
	err := t.Tx.Commit(ctx)
	if err == nil {
		t.status.Store(int32(roachtx.TxStatusCommitted))
	}
	return err
}

func (t *Tx) Rollback(ctx context.Context) error {
	err := t.Tx.Rollback(ctx)
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

// RollbackOnly reports whether the server has placed the transaction in the
// aborted state, where every statement but ROLLBACK fails.
func (t *Tx) RollbackOnly() bool {
	conn := t.Tx.Conn()
	if conn == nil || conn.PgConn() == nil {
		return false
	}
	return conn.PgConn().TxStatus() == 'E'
}
