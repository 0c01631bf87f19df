package roachtx

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for common failure scenarios.
// These enable callers to distinguish error kinds using errors.Is().
//
// Example usage:
//
//	err := roachtx.ExecuteTx(ctx, exec, session, work)
//	if errors.Is(err, roachtx.ErrAmbiguousCommit) {
//	    // re-read state before deciding whether to retry the operation
//	}
var (
	// ErrAmbiguousCommit indicates RELEASE SAVEPOINT failed after being sent.
	ErrAmbiguousCommit = errors.New("ambiguous commit")

	// ErrRestartFailed indicates ROLLBACK TO SAVEPOINT failed during a retry.
	ErrRestartFailed = errors.New("transaction restart failed")

	// ErrInvalidConfig indicates the provided configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrConnectionFailed indicates database connection failed.
	ErrConnectionFailed = errors.New("connection failed")

	// ErrBankUnbalanced indicates the bank workload found its total balance changed.
	ErrBankUnbalanced = errors.New("bank is not in good order")

	// ErrApprovalDenied indicates the user declined a destructive operation.
	ErrApprovalDenied = errors.New("approval denied")
)

// AmbiguousCommitError is returned when RELEASE SAVEPOINT fails. The server
// may have committed the transaction before the client saw the error.
type AmbiguousCommitError struct {
	Err error
}

func (e *AmbiguousCommitError) Error() string {
	return fmt.Sprintf("%s: %v", ErrAmbiguousCommit, e.Err)
}

func (e *AmbiguousCommitError) Unwrap() error { return e.Err }

func (e *AmbiguousCommitError) Is(target error) bool { return target == ErrAmbiguousCommit }

// TxnRestartError is returned when ROLLBACK TO SAVEPOINT fails while the
// executor prepares to retry a serialization failure.
type TxnRestartError struct {
	// Err is the failure of the ROLLBACK TO SAVEPOINT statement.
	Err error
	// Conflict is the serialization failure that triggered the restart.
	Conflict error
}

func (e *TxnRestartError) Error() string {
	return fmt.Sprintf("%s: %v (restarting after: %v)", ErrRestartFailed, e.Err, e.Conflict)
}

func (e *TxnRestartError) Unwrap() error { return e.Err }

func (e *TxnRestartError) Is(target error) bool { return target == ErrRestartFailed }

// ErrorKind is the caller-facing taxonomy of executor results.
type ErrorKind int

const (
	KindSuccess ErrorKind = iota
	KindFatal
	KindAmbiguousCommit
	KindRestartFailed
)

// String returns a human-readable string representation of the ErrorKind.
func (k ErrorKind) String() string {
	switch k {
	case KindSuccess:
		return "Success"
	case KindFatal:
		return "Fatal"
	case KindAmbiguousCommit:
		return "AmbiguousCommit"
	case KindRestartFailed:
		return "RestartFailed"
	default:
		return fmt.Sprintf("Unknown(%d)", int(k))
	}
}

// KindOf maps an error returned by ExecuteTx or RunInTx onto the error taxonomy.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindSuccess
	case errors.Is(err, ErrAmbiguousCommit):
		return KindAmbiguousCommit
	case errors.Is(err, ErrRestartFailed):
		return KindRestartFailed
	default:
		return KindFatal
	}
}

// usageErrorPatterns are the prefixes cobra uses for command-line misuse.
var usageErrorPatterns = []string{
	"unknown flag",
	"unknown shorthand flag",
	"unknown command",
	"accepts ",
	"requires at least",
	"required flag",
	"invalid argument",
}

// ExitCodeForError returns the appropriate exit code for an error.
// Returns ExitSuccess (0) for nil errors, semantic codes for known errors,
// and ExitGeneralError (1) for unclassified errors.
func ExitCodeForError(err error) int {
	if err == nil {
		return ExitSuccess
	}

	switch {
	case errors.Is(err, ErrInvalidConfig):
		return ExitConfigError
	case errors.Is(err, ErrConnectionFailed):
		return ExitConnectionError
	case errors.Is(err, ErrAmbiguousCommit):
		return ExitAmbiguousCommit
	case errors.Is(err, ErrRestartFailed):
		return ExitRestartFailed
	case errors.Is(err, ErrBankUnbalanced):
		return ExitBankUnbalanced
	case errors.Is(err, ErrApprovalDenied):
		return ExitApprovalDenied
	}

	errStr := err.Error()
	for _, p := range usageErrorPatterns {
		if strings.HasPrefix(errStr, p) {
			return ExitUsageError
		}
	}

	if strings.Contains(errStr, "failed to connect") ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "no such host") {
		return ExitConnectionError
	}

	return ExitGeneralError
}
