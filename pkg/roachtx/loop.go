package roachtx

import (
	"context"
)

// RunInTx runs work inside tx, which must already have begun, retrying it on
// serialization failures. It neither commits nor rolls back tx; that is the
// caller's job (ExecuteTx does both).
//
// WARNING: do not execute any statement on tx before calling RunInTx. Only
// statements issued from within work are re-run when the transaction
// restarts; anything issued earlier is silently not retried.
func RunInTx[X Tx](ctx context.Context, e *Executor, tx X, work func(context.Context, X) error) error {
	e = e.orDefault()

	if err := tx.ExecStmt(ctx, SavepointStmt); err != nil {
		e.logger.Error("error while executing savepoint: %v", err)
		e.observer.ObserveOutcome(OutcomeFatal, 0)
		return err
	}

	for attempt := 1; ; attempt++ {
		e.observer.ObserveAttempt(attempt)

		state := PreRelease
		err := work(ctx, tx)
		if err == nil {
			// RELEASE acts like COMMIT in CockroachDB. From here on a failure
			// cannot be told apart from a lost acknowledgement.
			state = ReleaseSent
			if err = tx.ExecStmt(ctx, ReleaseSavepointStmt); err == nil {
				e.observer.ObserveOutcome(OutcomeSuccess, attempt)
				return nil
			}
		}

		switch outcome := Classify(err, state); outcome {
		case OutcomeRetryableConflict:
			e.logger.Verbose("serialization failure on attempt %d, retrying transaction: %v", attempt, err)
			e.observer.ObserveRetry(attempt, err)

			if rbErr := tx.ExecStmt(ctx, RollbackToSavepointStmt); rbErr != nil {
				e.logger.Error("rollback to savepoint failed on attempt %d: %v", attempt, rbErr)
				e.observer.ObserveOutcome(OutcomeRestartFailed, attempt)
				return &TxnRestartError{Err: rbErr, Conflict: err}
			}

			if ctxErr := ctx.Err(); ctxErr != nil {
				e.observer.ObserveOutcome(OutcomeFatal, attempt)
				return ctxErr
			}

		case OutcomeAmbiguousCommit:
			e.logFailure(tx, state, err)
			e.logger.Error("release savepoint failed, transaction may have committed: %v", err)
			e.observer.ObserveOutcome(outcome, attempt)
			return &AmbiguousCommitError{Err: err}

		default:
			e.logFailure(tx, state, err)
			e.observer.ObserveOutcome(outcome, attempt)
			return err
		}
	}
}

// logFailure records the transaction state around a non-retryable failure.
func (e *Executor) logFailure(tx Tx, state ReleaseState, err error) {
	if IsDatabaseError(err) {
		code, _ := SQLState(err)
		e.logger.Info("non-serialization failure (SQLSTATE %s, %s): %v", code, state, err)
	} else {
		e.logger.Info("non-database failure (%s): %v", state, err)
	}
	e.logger.Verbose("transaction status: %s", tx.Status())
	e.logger.Verbose("transaction rollback-only: %t", tx.RollbackOnly())
}

// Run is RunInTx for units of work that produce a value.
func Run[X Tx, T any](ctx context.Context, e *Executor, tx X, work func(context.Context, X) (T, error)) (T, error) {
	var result T
	err := RunInTx(ctx, e, tx, func(ctx context.Context, tx X) error {
		v, err := work(ctx, tx)
		if err != nil {
			return err
		}
		result = v
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}
