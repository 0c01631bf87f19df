package roachtx

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/pgconn"
)

// fakeTx records every statement and terminal call. Errors queued in
// execErrs are returned by successive executions of the matching statement.
type fakeTx struct {
	stmts       []string
	execErrs    map[string][]error
	commits     int
	rollbacks   int
	commitErr   error
	rollbackErr error
	status      TxStatus
	abort       bool
}

func newFakeTx() *fakeTx {
	return &fakeTx{execErrs: make(map[string][]error)}
}

func (f *fakeTx) failNext(stmt string, errs ...error) *fakeTx {
	f.execErrs[stmt] = append(f.execErrs[stmt], errs...)
	return f
}

func (f *fakeTx) ExecStmt(_ context.Context, stmt string) error {
	f.stmts = append(f.stmts, stmt)
	if q := f.execErrs[stmt]; len(q) > 0 {
		f.execErrs[stmt] = q[1:]
		return q[0]
	}
	return nil
}

func (f *fakeTx) Commit(context.Context) error {
	f.commits++
	if f.commitErr != nil {
		return f.commitErr
	}
	f.status = TxStatusCommitted
	return nil
}

func (f *fakeTx) Rollback(context.Context) error {
	f.rollbacks++
	f.status = TxStatusRolledBack
	return f.rollbackErr
}

func (f *fakeTx) Status() TxStatus { return f.status }

func (f *fakeTx) RollbackOnly() bool { return f.abort }

func (f *fakeTx) count(stmt string) int {
	n := 0
	for _, s := range f.stmts {
		if s == stmt {
			n++
		}
	}
	return n
}

type fakeSession struct {
	tx       *fakeTx
	beginErr error
	begins   int
}

func (s *fakeSession) Begin(context.Context) (*fakeTx, error) {
	s.begins++
	if s.beginErr != nil {
		return nil, s.beginErr
	}
	return s.tx, nil
}

// scriptedWork fails with the queued errors, in order, then succeeds.
type scriptedWork struct {
	errs  []error
	calls int
}

func (w *scriptedWork) run(context.Context, *fakeTx) error {
	w.calls++
	if len(w.errs) > 0 {
		err := w.errs[0]
		w.errs = w.errs[1:]
		return err
	}
	return nil
}

func pgError(code string) *pgconn.PgError {
	return &pgconn.PgError{Code: code, Message: fmt.Sprintf("error %s", code)}
}

type recordingObserver struct {
	mu       sync.Mutex
	attempts []int
	retries  []int
	outcomes []Outcome
	counts   []int
}

func (o *recordingObserver) ObserveAttempt(attempt int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.attempts = append(o.attempts, attempt)
}

func (o *recordingObserver) ObserveRetry(attempt int, _ error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.retries = append(o.retries, attempt)
}

func (o *recordingObserver) ObserveOutcome(outcome Outcome, attempts int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes = append(o.outcomes, outcome)
	o.counts = append(o.counts, attempts)
}

type recordingLogger struct {
	mu      sync.Mutex
	verbose []string
	info    []string
	errors  []string
}

func (l *recordingLogger) Verbose(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.verbose = append(l.verbose, fmt.Sprintf(format, args...))
}

func (l *recordingLogger) Info(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.info = append(l.info, fmt.Sprintf(format, args...))
}

func (l *recordingLogger) Error(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, fmt.Sprintf(format, args...))
}
