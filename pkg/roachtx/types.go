package roachtx

import (
	"context"
	"fmt"
)

// Tx is the minimal transaction surface the retry protocol needs.
// Driver adapters (pgxtx, sqltx) implement it on top of their native
// transaction types.
type Tx interface {
	// ExecStmt executes a raw statement that returns no rows.
	ExecStmt(ctx context.Context, stmt string) error

	// Commit commits the outer transaction.
	Commit(ctx context.Context) error

	// Rollback rolls back the outer transaction.
	Rollback(ctx context.Context) error

	// Status reports the transaction status as last seen by the driver.
	// Used for diagnostics only; it never drives control flow.
	Status() TxStatus

	// RollbackOnly reports whether the driver has forced the transaction
	// into a rollback-only (aborted) state.
	RollbackOnly() bool
}

// Session begins transactions of a driver-specific type X.
//
// A Session must not have an open transaction or previously issued
// statements when handed to ExecuteTx.
type Session[X Tx] interface {
	Begin(ctx context.Context) (X, error)
}

// TxStatus is the lifecycle state of an outer transaction.
type TxStatus int

const (
	TxStatusActive TxStatus = iota
	TxStatusMarkedRollbackOnly
	TxStatusCommitted
	TxStatusRolledBack
)

// String returns a human-readable string representation of the TxStatus.
func (s TxStatus) String() string {
	switch s {
	case TxStatusActive:
		return "Active"
	case TxStatusMarkedRollbackOnly:
		return "MarkedRollbackOnly"
	case TxStatusCommitted:
		return "Committed"
	case TxStatusRolledBack:
		return "RolledBack"
	default:
		return fmt.Sprintf("Unknown(%d)", s)
	}
}

// ReleaseState records whether RELEASE SAVEPOINT has been sent during the
// current attempt. Once it has, no failure can be retried.
type ReleaseState int

const (
	// PreRelease means the attempt has not yet sent RELEASE SAVEPOINT.
	PreRelease ReleaseState = iota
	// ReleaseSent means RELEASE SAVEPOINT was sent; the commit may have
	// taken effect on the server whatever the client observed.
	ReleaseSent
)

// String returns a human-readable string representation of the ReleaseState.
func (s ReleaseState) String() string {
	switch s {
	case PreRelease:
		return "PreRelease"
	case ReleaseSent:
		return "ReleaseSent"
	default:
		return fmt.Sprintf("Unknown(%d)", s)
	}
}

// Outcome is the result of one attempt of a unit of work.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeRetryableConflict
	OutcomeAmbiguousCommit
	OutcomeRestartFailed
	OutcomeFatal
)

// String returns a snake_case name suitable for logs and metric labels.
func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeRetryableConflict:
		return "retryable_conflict"
	case OutcomeAmbiguousCommit:
		return "ambiguous_commit"
	case OutcomeRestartFailed:
		return "restart_failed"
	case OutcomeFatal:
		return "fatal"
	default:
		return fmt.Sprintf("unknown(%d)", int(o))
	}
}
