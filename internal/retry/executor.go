package retry

import (
	"context"
	"time"

	goretry "github.com/sethvargo/go-retry"
)

// ErrorClassifier decides whether a failed connection attempt may be retried.
type ErrorClassifier interface {
	IsTransient(err error) bool
}

// BackoffStrategy produces a fresh backoff sequence for each Execute call.
type BackoffStrategy interface {
	New() goretry.Backoff
}

// Executor retries connection attempts. Execute is safe for concurrent use;
// WithOnRetry derives a copy instead of mutating the shared instance.
type Executor struct {
	classifier ErrorClassifier
	strategy   BackoffStrategy
	onRetry    func(attempt int, err error, delay time.Duration)
}

// NewExecutor panics if classifier or strategy is nil.
func NewExecutor(classifier ErrorClassifier, strategy BackoffStrategy) *Executor {
	if classifier == nil {
		panic("classifier cannot be nil")
	}
	if strategy == nil {
		panic("strategy cannot be nil")
	}
	return &Executor{
		classifier: classifier,
		strategy:   strategy,
	}
}

// WithOnRetry returns a copy of e that reports every scheduled retry.
// attempt counts retries from zero; the first attempt is not reported.
func (e *Executor) WithOnRetry(callback func(attempt int, err error, delay time.Duration)) *Executor {
	clone := *e
	clone.onRetry = callback
	return &clone
}

// Execute runs operation, retrying transient failures until the backoff is
// exhausted or ctx is done. Returns the error of the last attempt unwrapped.
func (e *Executor) Execute(ctx context.Context, operation func(ctx context.Context) error) error {
	var (
		lastErr error
		attempt int
	)

	backoff := e.strategy.New()
	if e.onRetry != nil {
		next := backoff
		backoff = goretry.BackoffFunc(func() (time.Duration, bool) {
			delay, stop := next.Next()
			if !stop {
				e.onRetry(attempt, lastErr, delay)
				attempt++
			}
			return delay, stop
		})
	}

	return goretry.Do(ctx, backoff, func(ctx context.Context) error {
		lastErr = operation(ctx)
		if lastErr != nil && e.classifier.IsTransient(lastErr) {
			return goretry.RetryableError(lastErr)
		}
		return lastErr
	})
}
