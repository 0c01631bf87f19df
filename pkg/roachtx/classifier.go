package roachtx

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// sqlStater is implemented by driver errors that expose a SQLSTATE code.
type sqlStater interface {
	SQLState() string
}

// SQLState extracts the SQLSTATE code carried by err or any error it wraps.
// The second result is false for errors that did not come from the database.
func SQLState(err error) (string, bool) {
	if err == nil {
		return "", false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code, pgErr.Code != ""
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code), pqErr.Code != ""
	}

	var s sqlStater
	if errors.As(err, &s) {
		code := s.SQLState()
		return code, code != ""
	}

	return "", false
}

// Classify decides what the retry loop does with err.
//
//   - ReleaseSent: always OutcomeAmbiguousCommit, whatever the code.
//   - PreRelease with SQLSTATE 40001: OutcomeRetryableConflict.
//   - Anything else: OutcomeFatal.
//
// Classify is pure: it performs no I/O and depends only on its arguments.
func Classify(err error, state ReleaseState) Outcome {
	if state == ReleaseSent {
		return OutcomeAmbiguousCommit
	}
	if code, ok := SQLState(err); ok && code == SQLStateSerializationFailure {
		return OutcomeRetryableConflict
	}
	return OutcomeFatal
}

// IsRetryable reports whether err is a serialization failure that the retry
// loop would restart if it surfaced before RELEASE SAVEPOINT.
func IsRetryable(err error) bool {
	return Classify(err, PreRelease) == OutcomeRetryableConflict
}

// IsDatabaseError reports whether err carries a SQLSTATE code.
func IsDatabaseError(err error) bool {
	_, ok := SQLState(err)
	return ok
}
