package roachtx

import (
	"context"
)

// Executor runs units of work through the savepoint retry protocol.
//
// Thread Safety:
// The Executor itself is safe for concurrent use when each call is given its
// own Session or Tx. WithLogger() and WithObserver() return NEW instances,
// leaving the receiver unchanged.
type Executor struct {
	logger   Logger
	observer Observer
}

// Option configures an Executor.
type Option func(*Executor)

// WithLogger sets the logger used for diagnostics.
func WithLogger(l Logger) Option {
	return func(e *Executor) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithObserver sets the observer notified of attempts, retries and outcomes.
func WithObserver(o Observer) Option {
	return func(e *Executor) {
		if o != nil {
			e.observer = o
		}
	}
}

// NewExecutor creates an Executor. Without options it logs nothing and
// reports to no observer.
func NewExecutor(opts ...Option) *Executor {
	e := &Executor{
		logger:   nopLogger{},
		observer: nopObserver{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// WithLogger returns a new Executor with the specified logger.
func (e *Executor) WithLogger(l Logger) *Executor {
	clone := *e.orDefault()
	WithLogger(l)(&clone)
	return &clone
}

// WithObserver returns a new Executor with the specified observer.
func (e *Executor) WithObserver(o Observer) *Executor {
	clone := *e.orDefault()
	WithObserver(o)(&clone)
	return &clone
}

var defaultExecutor = NewExecutor()

func (e *Executor) orDefault() *Executor {
	if e == nil {
		return defaultExecutor
	}
	return e
}

// ExecuteTx begins a transaction on s, runs work inside it through RunInTx,
// and commits on success. On failure the transaction is rolled back and the
// original error is returned unchanged; a rollback failure is logged and
// never replaces it. A commit failure is returned as-is and not retried.
//
// Exactly one Begin and at most one Commit or Rollback are issued per call,
// however many times work runs. A nil Executor uses the defaults.
//
// The supplied work must not have external side effects beyond changes to
// the database, since it may run more than once.
func ExecuteTx[X Tx](ctx context.Context, e *Executor, s Session[X], work func(context.Context, X) error) error {
	e = e.orDefault()

	tx, err := s.Begin(ctx)
	if err != nil {
		return err
	}

	if err := RunInTx(ctx, e, tx, work); err != nil {
		// The caller's context may already be done; the rollback still needs
		// to reach the server to release the transaction.
		if rbErr := tx.Rollback(context.WithoutCancel(ctx)); rbErr != nil {
			e.logger.Error("rollback after failed transaction: %v", rbErr)
		}
		return err
	}

	return tx.Commit(ctx)
}

// Execute is ExecuteTx for units of work that produce a value.
// The value of the last, successful attempt is returned.
func Execute[X Tx, T any](ctx context.Context, e *Executor, s Session[X], work func(context.Context, X) (T, error)) (T, error) {
	var result T
	err := ExecuteTx(ctx, e, s, func(ctx context.Context, tx X) error {
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
