package pgxtx

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vvka-141/roachtx/pkg/roachtx"
)

// stubTx implements only the pgx.Tx methods the adapter calls.
type stubTx struct {
	pgx.Tx
	execs       []string
	execErr     error
	commitErr   error
	rollbackErr error
}

func (s *stubTx) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	s.execs = append(s.execs, sql)
	return pgconn.CommandTag{}, s.execErr
}

func (s *stubTx) Commit(context.Context) error   { return s.commitErr }
func (s *stubTx) Rollback(context.Context) error { return s.rollbackErr }
func (s *stubTx) Conn() *pgx.Conn                { return nil }

type stubBeginner struct {
	tx   pgx.Tx
	err  error
	opts []pgx.TxOptions
}

func (b *stubBeginner) BeginTx(_ context.Context, opts pgx.TxOptions) (pgx.Tx, error) {
	b.opts = append(b.opts, opts)
	return b.tx, b.err
}

func TestSession_BeginWrapsTransaction(t *testing.T) {
	stub := &stubTx{}
	b := &stubBeginner{tx: stub}

	tx, err := NewSession(b).Begin(context.Background())

	require.NoError(t, err)
	assert.Same(t, stub, tx.Tx)
	assert.Equal(t, roachtx.TxStatusActive, tx.Status())
	assert.False(t, tx.RollbackOnly())
}

func TestSession_WithTxOptions(t *testing.T) {
	b := &stubBeginner{tx: &stubTx{}}
	base := NewSession(b)
	opts := pgx.TxOptions{IsoLevel: pgx.Serializable, AccessMode: pgx.ReadWrite}

	_, err := base.WithTxOptions(opts).Begin(context.Background())
	require.NoError(t, err)
	_, err = base.Begin(context.Background())
	require.NoError(t, err)

	require.Len(t, b.opts, 2)
	assert.Equal(t, opts, b.opts[0])
	assert.Equal(t, pgx.TxOptions{}, b.opts[1])
}

func TestSession_BeginError(t *testing.T) {
	beginErr := errors.New("connection refused")

	tx, err := NewSession(&stubBeginner{err: beginErr}).Begin(context.Background())

	assert.Nil(t, tx)
	assert.Same(t, beginErr, err)
}

func TestTx_ExecStmt(t *testing.T) {
	stub := &stubTx{}
	tx := Wrap(stub)

	require.NoError(t, tx.ExecStmt(context.Background(), roachtx.SavepointStmt))
	assert.Equal(t, []string{"SAVEPOINT cockroach_restart"}, stub.execs)

	stub.execErr = &pgconn.PgError{Code: "40001"}
	err := tx.ExecStmt(context.Background(), roachtx.ReleaseSavepointStmt)
	assert.True(t, roachtx.IsRetryable(err))
}

func TestTx_StatusTracksTerminalCalls(t *testing.T) {
	committed := Wrap(&stubTx{})
	require.NoError(t, committed.Commit(context.Background()))
	assert.Equal(t, roachtx.TxStatusCommitted, committed.Status())

	failed := Wrap(&stubTx{commitErr: errors.New("commit failed")})
	require.Error(t, failed.Commit(context.Background()))
	assert.Equal(t, roachtx.TxStatusActive, failed.Status())

	rolledBack := Wrap(&stubTx{rollbackErr: errors.New("conn closed")})
	require.Error(t, rolledBack.Rollback(context.Background()))
	assert.Equal(t, roachtx.TxStatusRolledBack, rolledBack.Status())
}

func TestExecuteTx_WithPgxAdapter(t *testing.T) {
	stub := &stubTx{}
	calls := 0

	err := roachtx.ExecuteTx(context.Background(), nil, NewSession(&stubBeginner{tx: stub}), func(ctx context.Context, tx *Tx) error {
		calls++
		if calls == 1 {
			return &pgconn.PgError{Code: roachtx.SQLStateSerializationFailure}
		}
		_, err := tx.Exec(ctx, "UPDATE accounts SET balance = balance + 1")
		return err
	})

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, []string{
		roachtx.SavepointStmt,
		roachtx.RollbackToSavepointStmt,
		"UPDATE accounts SET balance = balance + 1",
		roachtx.ReleaseSavepointStmt,
	}, stub.execs)
}
