package retry

import (
	"context"
	"errors"
	"net"
	"strings"
	"syscall"

	"github.com/vvka-141/roachtx/pkg/roachtx"
)

// SQLSTATE classes and codes that indicate a connection-level condition
// which may clear up on its own.
// See: https://www.postgresql.org/docs/current/errcodes-appendix.html
const (
	pgClassConnectionException   = "08"
	pgClassTransactionRollback   = "40"
	pgClassInsufficientResources = "53"
	pgClassOperatorIntervention  = "57"

	pgCodeLockNotAvailable = "55P03"
)

// transientPatterns match driver messages for failures that carry no SQLSTATE.
var transientPatterns = []string{
	"connection refused",
	"connection reset",
	"connection timeout",
	"connection failure",
	"network is unreachable",
	"i/o timeout",
	"broken pipe",
	"too many connections",
	"server closed the connection",
	"unexpected eof",
	"connection pool exhausted",
}

// ConnectionErrorClassifier implements ErrorClassifier for failures while
// establishing a connection. It works with both pgx and lib/pq errors.
//
// Class 40 (transaction rollback) is never transient here. Serialization
// failures are retried only by the savepoint protocol in pkg/roachtx.
type ConnectionErrorClassifier struct{}

// NewConnectionErrorClassifier creates a new connection error classifier.
func NewConnectionErrorClassifier() *ConnectionErrorClassifier {
	return &ConnectionErrorClassifier{}
}

// IsTransient determines if an error is temporary and retryable.
func (c *ConnectionErrorClassifier) IsTransient(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	if code, ok := roachtx.SQLState(err); ok {
		return isTransientSQLState(code)
	}

	if isNetworkError(err) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, pattern := range transientPatterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}

	return false
}

func isTransientSQLState(code string) bool {
	switch {
	case strings.HasPrefix(code, pgClassTransactionRollback):
		return false
	case strings.HasPrefix(code, pgClassConnectionException),
		strings.HasPrefix(code, pgClassInsufficientResources),
		strings.HasPrefix(code, pgClassOperatorIntervention):
		return true
	case code == pgCodeLockNotAvailable:
		return true
	default:
		return false
	}
}

func isNetworkError(err error) bool {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.Temporary() || dnsErr.Timeout()
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if opErr.Timeout() {
			return true
		}
		switch {
		case errors.Is(opErr.Err, syscall.ECONNREFUSED),
			errors.Is(opErr.Err, syscall.ECONNRESET),
			errors.Is(opErr.Err, syscall.ENETUNREACH),
			errors.Is(opErr.Err, syscall.EHOSTUNREACH):
			return true
		}
	}

	return false
}
