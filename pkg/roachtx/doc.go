// Package roachtx runs units of work inside database transactions and retries
// them when the database reports a serialization failure (SQLSTATE 40001).
//
// The protocol follows CockroachDB's client-side retry contract: the outer
// transaction is begun once, a savepoint named cockroach_restart is established
// before any other statement, and every attempt of the unit of work ends with
// either RELEASE SAVEPOINT (which acts as the commit point) or ROLLBACK TO
// SAVEPOINT followed by another attempt.
//
// # Example Usage
//
//	exec := roachtx.NewExecutor(roachtx.WithLogger(logger))
//	session := pgxtx.NewSession(pool)
//
//	err := roachtx.ExecuteTx(ctx, exec, session, func(ctx context.Context, tx *pgxtx.Tx) error {
//	    _, err := tx.Exec(ctx, "UPDATE accounts SET balance = balance - 10 WHERE id = $1", 1)
//	    return err
//	})
//
// # Outcomes
//
// A call returns nil when the work committed. Any other error falls into one of
// three kinds, reported by KindOf:
//
//   - Fatal: the original error, unchanged. The transaction was rolled back.
//   - AmbiguousCommit (*AmbiguousCommitError): RELEASE SAVEPOINT was sent and
//     failed. The transaction may or may not have committed; callers must
//     re-check state before retrying the operation.
//   - RestartFailed (*TxnRestartError): ROLLBACK TO SAVEPOINT failed while
//     preparing a retry. The session is most likely unusable.
//
// # Retries
//
// Retries are unbounded. A caller that needs a deadline cancels the context,
// which is passed to every statement and checked between attempts.
//
// The unit of work may run more than once for a single logical transaction,
// so it must not have side effects other than its effects on the database.
//
// # Thread Safety
//
// Executor instances are safe for concurrent use as long as each call uses its
// own Session. Sessions and transactions are not shared between goroutines.
package roachtx
