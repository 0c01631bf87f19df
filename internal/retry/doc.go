// Package retry reconnects to the database with exponential backoff when
// establishing a connection fails for a transient reason.
//
// It is deliberately separate from the transaction retry protocol in
// pkg/roachtx: a serialization failure (SQLSTATE 40001) is never retried
// here, because re-running a statement outside its savepoint would re-apply
// it in a different transaction.
//
// # Example Usage
//
//	executor := retry.NewExecutor(retry.NewConnectionErrorClassifier(),
//	    retry.NewExponentialBackoff(5, retry.WithInitialDelay(100*time.Millisecond)))
//
//	err := executor.Execute(ctx, func(ctx context.Context) error {
//	    return pool.Ping(ctx)
//	})
//
// # Thread Safety
//
// Executor instances are safe for concurrent use. Every Execute call builds
// its own backoff sequence. Use WithOnRetry() to create independent
// configurations per goroutine.
package retry
