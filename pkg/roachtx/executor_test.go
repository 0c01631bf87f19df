package roachtx

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecuteTx_SuccessOnFirstAttempt(t *testing.T) {
	tx := newFakeTx()
	sess := &fakeSession{tx: tx}
	work := &scriptedWork{}

	err := ExecuteTx(context.Background(), NewExecutor(), sess, work.run)

	require.NoError(t, err)
	assert.Equal(t, 1, sess.begins)
	assert.Equal(t, 1, work.calls)
	assert.Equal(t, []string{SavepointStmt, ReleaseSavepointStmt}, tx.stmts)
	assert.Equal(t, 0, tx.count(RollbackToSavepointStmt))
	assert.Equal(t, 1, tx.commits)
	assert.Equal(t, 0, tx.rollbacks)
	assert.Equal(t, TxStatusCommitted, tx.Status())
}

func TestExecuteTx_RetriesSerializationFailures(t *testing.T) {
	for _, n := range []int{1, 2, 5, 25} {
		t.Run(fmt.Sprintf("%d conflicts", n), func(t *testing.T) {
			tx := newFakeTx()
			sess := &fakeSession{tx: tx}
			work := &scriptedWork{}
			for i := 0; i < n; i++ {
				work.errs = append(work.errs, pgError(SQLStateSerializationFailure))
			}

			err := ExecuteTx(context.Background(), NewExecutor(), sess, work.run)

			require.NoError(t, err)
			assert.Equal(t, n+1, work.calls)
			assert.Equal(t, 1, tx.count(SavepointStmt))
			assert.Equal(t, n, tx.count(RollbackToSavepointStmt))
			assert.Equal(t, 1, tx.count(ReleaseSavepointStmt))
			assert.Equal(t, 1, sess.begins)
			assert.Equal(t, 1, tx.commits)
			assert.Equal(t, 0, tx.rollbacks)
		})
	}
}

func TestExecuteTx_StatementOrderAcrossOneRetry(t *testing.T) {
	tx := newFakeTx()
	work := &scriptedWork{errs: []error{pgError("40001")}}

	err := ExecuteTx(context.Background(), NewExecutor(), &fakeSession{tx: tx}, work.run)

	require.NoError(t, err)
	assert.Equal(t, []string{
		"SAVEPOINT cockroach_restart",
		"ROLLBACK TO SAVEPOINT cockroach_restart",
		"RELEASE SAVEPOINT cockroach_restart",
	}, tx.stmts)
	assert.Equal(t, 2, work.calls)
	assert.Equal(t, 1, tx.commits)
}

func TestExecuteTx_NonRetryableDatabaseErrorIsFatal(t *testing.T) {
	tx := newFakeTx()
	constraintErr := pgError("23505")
	work := &scriptedWork{errs: []error{constraintErr}}

	err := ExecuteTx(context.Background(), NewExecutor(), &fakeSession{tx: tx}, work.run)

	require.Error(t, err)
	assert.Same(t, constraintErr, err, "fatal errors must be returned unchanged")
	assert.Equal(t, KindFatal, KindOf(err))
	assert.Equal(t, 1, work.calls)
	assert.Equal(t, 0, tx.count(RollbackToSavepointStmt))
	assert.Equal(t, 0, tx.count(ReleaseSavepointStmt))
	assert.Equal(t, 0, tx.commits)
	assert.Equal(t, 1, tx.rollbacks)
}

func TestExecuteTx_NonDatabaseErrorIsFatal(t *testing.T) {
	tx := newFakeTx()
	appErr := errors.New("insufficient funds")
	work := &scriptedWork{errs: []error{appErr}}

	err := ExecuteTx(context.Background(), NewExecutor(), &fakeSession{tx: tx}, work.run)

	assert.Same(t, appErr, err)
	assert.Equal(t, 1, work.calls)
	assert.Equal(t, []string{SavepointStmt}, tx.stmts)
	assert.Equal(t, 1, tx.rollbacks)
	assert.Equal(t, 0, tx.commits)
}

func TestExecuteTx_ReleaseFailureIsAmbiguous(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "serialization failure", err: pgError(SQLStateSerializationFailure)},
		{name: "connection failure", err: pgError("08006")},
		{name: "constraint violation", err: pgError("23505")},
		{name: "non-database error", err: errors.New("broken pipe")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := newFakeTx().failNext(ReleaseSavepointStmt, tt.err)
			work := &scriptedWork{}

			err := ExecuteTx(context.Background(), NewExecutor(), &fakeSession{tx: tx}, work.run)

			require.Error(t, err)
			assert.ErrorIs(t, err, ErrAmbiguousCommit)
			assert.ErrorIs(t, err, tt.err)
			assert.Equal(t, KindAmbiguousCommit, KindOf(err))

			var ambiguous *AmbiguousCommitError
			require.ErrorAs(t, err, &ambiguous)
			assert.Same(t, tt.err, ambiguous.Err)

			assert.Equal(t, 1, work.calls)
			assert.Equal(t, 0, tx.count(RollbackToSavepointStmt))
			assert.Equal(t, 1, tx.rollbacks)
			assert.Equal(t, 0, tx.commits)
		})
	}
}

func TestExecuteTx_ReleaseFailureKeepsDriverErrorReachable(t *testing.T) {
	tx := newFakeTx().failNext(ReleaseSavepointStmt, pgError("08006"))

	err := ExecuteTx(context.Background(), NewExecutor(), &fakeSession{tx: tx}, (&scriptedWork{}).run)

	var pgErr *pgconn.PgError
	require.ErrorAs(t, err, &pgErr)
	assert.Equal(t, "08006", pgErr.Code)
}

func TestExecuteTx_RollbackToSavepointFailureIsRestartFailed(t *testing.T) {
	rbErr := errors.New("connection reset by peer")
	conflict := pgError(SQLStateSerializationFailure)
	tx := newFakeTx().failNext(RollbackToSavepointStmt, rbErr)
	work := &scriptedWork{errs: []error{conflict}}

	err := ExecuteTx(context.Background(), NewExecutor(), &fakeSession{tx: tx}, work.run)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRestartFailed)
	assert.Equal(t, KindRestartFailed, KindOf(err))

	var restartErr *TxnRestartError
	require.ErrorAs(t, err, &restartErr)
	assert.Same(t, rbErr, restartErr.Err)
	assert.Same(t, conflict, restartErr.Conflict)

	assert.Equal(t, 1, work.calls, "work must not run again after a failed restart")
	assert.Equal(t, 0, tx.count(ReleaseSavepointStmt))
	assert.Equal(t, 1, tx.rollbacks)
	assert.Equal(t, 0, tx.commits)
}

func TestExecuteTx_SavepointFailureIsFatal(t *testing.T) {
	spErr := pgError("25P02")
	tx := newFakeTx().failNext(SavepointStmt, spErr)
	work := &scriptedWork{}

	err := ExecuteTx(context.Background(), NewExecutor(), &fakeSession{tx: tx}, work.run)

	assert.Same(t, spErr, err)
	assert.Equal(t, KindFatal, KindOf(err))
	assert.Equal(t, 0, work.calls)
	assert.Equal(t, 1, tx.rollbacks)
	assert.Equal(t, 0, tx.commits)
}

func TestExecuteTx_SavepointRetryableCodeIsNotRetried(t *testing.T) {
	tx := newFakeTx().failNext(SavepointStmt, pgError(SQLStateSerializationFailure))
	work := &scriptedWork{}

	err := ExecuteTx(context.Background(), NewExecutor(), &fakeSession{tx: tx}, work.run)

	require.Error(t, err)
	assert.Equal(t, KindFatal, KindOf(err))
	assert.Equal(t, 0, work.calls)
	assert.Equal(t, []string{SavepointStmt}, tx.stmts)
}

func TestExecuteTx_BeginFailure(t *testing.T) {
	beginErr := errors.New("connection refused")
	sess := &fakeSession{beginErr: beginErr}
	work := &scriptedWork{}

	err := ExecuteTx(context.Background(), NewExecutor(), sess, work.run)

	assert.Same(t, beginErr, err)
	assert.Equal(t, 0, work.calls)
}

func TestExecuteTx_CommitFailurePropagatesWithoutRetry(t *testing.T) {
	commitErr := pgError(SQLStateSerializationFailure)
	tx := newFakeTx()
	tx.commitErr = commitErr
	work := &scriptedWork{}

	err := ExecuteTx(context.Background(), NewExecutor(), &fakeSession{tx: tx}, work.run)

	assert.Same(t, commitErr, err)
	assert.Equal(t, 1, work.calls)
	assert.Equal(t, 1, tx.commits)
	assert.Equal(t, 0, tx.rollbacks)
}

func TestExecuteTx_RollbackFailureDoesNotMaskOriginalError(t *testing.T) {
	appErr := pgError("23503")
	tx := newFakeTx()
	tx.rollbackErr = errors.New("conn closed")
	logger := &recordingLogger{}
	work := &scriptedWork{errs: []error{appErr}}

	err := ExecuteTx(context.Background(), NewExecutor(WithLogger(logger)), &fakeSession{tx: tx}, work.run)

	assert.Same(t, appErr, err)
	assert.Equal(t, 1, tx.rollbacks)
	require.NotEmpty(t, logger.errors)
	assert.Contains(t, logger.errors[len(logger.errors)-1], "conn closed")
}

func TestExecuteTx_ContextCancelledBetweenAttempts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	tx := newFakeTx()
	calls := 0
	work := func(context.Context, *fakeTx) error {
		calls++
		cancel()
		return pgError(SQLStateSerializationFailure)
	}

	err := ExecuteTx(ctx, NewExecutor(), &fakeSession{tx: tx}, work)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, KindFatal, KindOf(err))
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, tx.count(RollbackToSavepointStmt))
	assert.Equal(t, 1, tx.rollbacks)
}

func TestExecuteTx_NilExecutorUsesDefaults(t *testing.T) {
	tx := newFakeTx()
	work := &scriptedWork{errs: []error{pgError("40001")}}

	err := ExecuteTx(context.Background(), nil, &fakeSession{tx: tx}, work.run)

	require.NoError(t, err)
	assert.Equal(t, 2, work.calls)
}

func TestExecute_ReturnsValueOfSuccessfulAttempt(t *testing.T) {
	tx := newFakeTx()
	calls := 0
	work := func(context.Context, *fakeTx) (int, error) {
		calls++
		if calls < 3 {
			return calls, pgError(SQLStateSerializationFailure)
		}
		return calls * 100, nil
	}

	got, err := Execute(context.Background(), NewExecutor(), &fakeSession{tx: tx}, work)

	require.NoError(t, err)
	assert.Equal(t, 300, got)
	assert.Equal(t, 2, tx.count(RollbackToSavepointStmt))
}

func TestExecute_ZeroValueOnFailure(t *testing.T) {
	tx := newFakeTx()
	work := func(context.Context, *fakeTx) (string, error) {
		return "partial", pgError("42P01")
	}

	got, err := Execute(context.Background(), NewExecutor(), &fakeSession{tx: tx}, work)

	require.Error(t, err)
	assert.Empty(t, got)
}

func TestExecuteTx_ObserverSeesAttemptsRetriesAndOutcome(t *testing.T) {
	obs := &recordingObserver{}
	tx := newFakeTx()
	work := &scriptedWork{errs: []error{pgError("40001"), pgError("40001")}}

	err := ExecuteTx(context.Background(), NewExecutor(WithObserver(obs)), &fakeSession{tx: tx}, work.run)

	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, obs.attempts)
	assert.Equal(t, []int{1, 2}, obs.retries)
	assert.Equal(t, []Outcome{OutcomeSuccess}, obs.outcomes)
	assert.Equal(t, []int{3}, obs.counts)
}

func TestExecuteTx_ObserverOutcomes(t *testing.T) {
	tests := []struct {
		name     string
		tx       func() *fakeTx
		workErrs []error
		want     Outcome
		attempts int
	}{
		{
			name:     "savepoint failure",
			tx:       func() *fakeTx { return newFakeTx().failNext(SavepointStmt, pgError("08006")) },
			want:     OutcomeFatal,
			attempts: 0,
		},
		{
			name:     "fatal on second attempt",
			tx:       newFakeTx,
			workErrs: []error{pgError("40001"), pgError("23505")},
			want:     OutcomeFatal,
			attempts: 2,
		},
		{
			name:     "ambiguous",
			tx:       func() *fakeTx { return newFakeTx().failNext(ReleaseSavepointStmt, pgError("08006")) },
			want:     OutcomeAmbiguousCommit,
			attempts: 1,
		},
		{
			name:     "restart failed",
			tx:       func() *fakeTx { return newFakeTx().failNext(RollbackToSavepointStmt, pgError("08006")) },
			workErrs: []error{pgError("40001")},
			want:     OutcomeRestartFailed,
			attempts: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obs := &recordingObserver{}
			work := &scriptedWork{errs: tt.workErrs}

			err := ExecuteTx(context.Background(), NewExecutor(WithObserver(obs)), &fakeSession{tx: tt.tx()}, work.run)

			require.Error(t, err)
			assert.Equal(t, []Outcome{tt.want}, obs.outcomes)
			assert.Equal(t, []int{tt.attempts}, obs.counts)
		})
	}
}

func TestExecuteTx_LogsDiagnosticsOnFatalFailure(t *testing.T) {
	logger := &recordingLogger{}
	tx := newFakeTx()
	tx.abort = true
	work := &scriptedWork{errs: []error{pgError("23505")}}

	_ = ExecuteTx(context.Background(), NewExecutor(WithLogger(logger)), &fakeSession{tx: tx}, work.run)

	require.NotEmpty(t, logger.info)
	assert.Contains(t, logger.info[0], "SQLSTATE 23505")
	assert.Contains(t, logger.verbose, "transaction status: Active")
	assert.Contains(t, logger.verbose, "transaction rollback-only: true")
}

func TestExecutor_WithLoggerReturnsNewInstance(t *testing.T) {
	base := NewExecutor()
	logger := &recordingLogger{}

	derived := base.WithLogger(logger)

	assert.NotSame(t, base, derived)
	assert.Equal(t, logger, derived.logger)
	assert.Equal(t, nopLogger{}, base.logger)
}

func TestExecutor_WithObserverReturnsNewInstance(t *testing.T) {
	base := NewExecutor()
	obs := &recordingObserver{}

	derived := base.WithObserver(obs)

	assert.NotSame(t, base, derived)
	assert.Equal(t, obs, derived.observer)
	assert.Equal(t, nopObserver{}, base.observer)
}

func TestRunInTx_DoesNotCommitOrRollback(t *testing.T) {
	tx := newFakeTx()
	work := &scriptedWork{errs: []error{pgError("40001")}}

	err := RunInTx(context.Background(), NewExecutor(), tx, work.run)

	require.NoError(t, err)
	assert.Equal(t, 0, tx.commits)
	assert.Equal(t, 0, tx.rollbacks)
	assert.Equal(t, 2, work.calls)
}

func TestRun_ReturnsValue(t *testing.T) {
	tx := newFakeTx()

	got, err := Run(context.Background(), NewExecutor(), tx, func(context.Context, *fakeTx) (string, error) {
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", got)
}
