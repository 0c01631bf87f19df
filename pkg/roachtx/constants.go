package roachtx

import "time"

// SavepointName is the savepoint CockroachDB recognises as the client-side
// restart marker.
const SavepointName = "cockroach_restart"

// Statements issued verbatim by the retry loop.
const (
	SavepointStmt           = "SAVEPOINT " + SavepointName
	ReleaseSavepointStmt    = "RELEASE SAVEPOINT " + SavepointName
	RollbackToSavepointStmt = "ROLLBACK TO SAVEPOINT " + SavepointName
)

// SQLStateSerializationFailure is the only error code the retry loop treats
// as retryable (Class 40 - Transaction Rollback).
// See: https://www.postgresql.org/docs/current/errcodes-appendix.html
const SQLStateSerializationFailure = "40001"

// Exit codes for semantic error classification.
// These follow Unix/GNU conventions:
//   - 0: Success
//   - 1: General error
//   - 2: CLI usage error (misuse of command line)
//   - 3+: Application-specific errors
const (
	ExitSuccess         = 0  // Command completed successfully
	ExitGeneralError    = 1  // Unknown or unclassified error
	ExitUsageError      = 2  // CLI usage error (missing args, invalid flags)
	ExitPanic           = 3  // Internal panic (unexpected crash)
	ExitConfigError     = 10 // Invalid configuration or parameters
	ExitConnectionError = 11 // Failed to connect to database
	ExitAmbiguousCommit = 12 // Commit state of a transaction is unknown
	ExitRestartFailed   = 13 // ROLLBACK TO SAVEPOINT failed during a retry
	ExitBankUnbalanced  = 14 // Bank workload invariant violated
	ExitApprovalDenied  = 15 // User declined to reset an existing bank
)

const (
	// DefaultConnectInitialDelay is the delay before the first connection retry.
	DefaultConnectInitialDelay = 100 * time.Millisecond

	// DefaultConnectMaxDelay caps the delay between connection retries.
	DefaultConnectMaxDelay = 10 * time.Second

	// DefaultConnectMaxAttempts is the number of connection retries after the
	// initial attempt.
	DefaultConnectMaxAttempts = 5

	// DefaultDatabase is used when no database name is configured.
	DefaultDatabase = "defaultdb"

	// DefaultPort is CockroachDB's SQL port.
	DefaultPort = 26257
)
