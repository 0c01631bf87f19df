package db

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vvka-141/roachtx/internal/retry"
	"github.com/vvka-141/roachtx/pkg/roachtx"
)

// Connection pool configuration constants
const (
	// DefaultMaxConns is used when ConnectionConfig.MaxConns is zero.
	DefaultMaxConns = 8

	// DefaultMinConns maintains at least one connection in the pool.
	DefaultMinConns = 1

	// DefaultMaxConnIdleTime keeps connections alive across quiet periods
	// of a long workload run.
	DefaultMaxConnIdleTime = 30 * time.Minute
)

func configurePool(poolConfig *pgxpool.Config, config *ConnectionConfig) {
	poolConfig.MaxConns = DefaultMaxConns
	if config.MaxConns > 0 {
		poolConfig.MaxConns = config.MaxConns
	}
	poolConfig.MinConns = DefaultMinConns
	poolConfig.MaxConnIdleTime = DefaultMaxConnIdleTime
}

// newConnectExecutor returns the executor every connector uses to retry
// transient failures while establishing a connection.
func newConnectExecutor(logger roachtx.Logger) *retry.Executor {
	strategy := retry.NewExponentialBackoff(roachtx.DefaultConnectMaxAttempts,
		retry.WithInitialDelay(roachtx.DefaultConnectInitialDelay),
		retry.WithMaxDelay(roachtx.DefaultConnectMaxDelay),
	)
	return retry.NewExecutor(retry.NewConnectionErrorClassifier(), strategy).
		WithOnRetry(func(attempt int, err error, delay time.Duration) {
			logger.Verbose("connect attempt %d failed, retrying in %v: %v", attempt+1, delay, err)
		})
}

// openPool parses connStr, applies pool settings and pings the server.
// beforeConnect, when set, runs before each new connection is dialed.
func openPool(ctx context.Context, config *ConnectionConfig, connStr string, beforeConnect func(context.Context, *pgx.ConnConfig) error) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse connection config: %w", roachtx.ErrInvalidConfig, err)
	}

	configurePool(poolConfig, config)
	poolConfig.BeforeConnect = beforeConnect

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, wrapConnectionError(err, config.Host, config.Port, config.Database)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, wrapConnectionError(err, config.Host, config.Port, config.Database)
	}

	return pool, nil
}

// StandardConnector implements the Connector interface for standard
// username/password authentication with automatic retry on transient failures.
type StandardConnector struct {
	config        *ConnectionConfig
	retryExecutor *retry.Executor
}

// NewStandardConnector creates a new StandardConnector with the given configuration.
// Retry behavior uses DefaultConnectMaxAttempts attempts with exponential
// backoff from DefaultConnectInitialDelay up to DefaultConnectMaxDelay.
func NewStandardConnector(config *ConnectionConfig, logger roachtx.Logger) *StandardConnector {
	return &StandardConnector{
		config:        config,
		retryExecutor: newConnectExecutor(logger),
	}
}

// Connect establishes a connection pool using standard authentication with automatic retry.
func (c *StandardConnector) Connect(ctx context.Context) (*pgxpool.Pool, error) {
	var pool *pgxpool.Pool
	connStr := BuildConnectionString(c.config)

	err := c.retryExecutor.Execute(ctx, func(ctx context.Context) error {
		var err error
		pool, err = openPool(ctx, c.config, connStr, nil)
		return err
	})
	if err != nil {
		return nil, err
	}

	return pool, nil
}

// NewConnector is a factory function that creates the appropriate Connector
// based on the ConnectionConfig's AuthMethod.
func NewConnector(config *ConnectionConfig, logger roachtx.Logger) (Connector, error) {
	switch config.AuthMethod {
	case AuthMethodStandard:
		return NewStandardConnector(config, logger), nil
	case AuthMethodAWSIAM:
		return newAWSConnector(config, logger)
	case AuthMethodGoogleIAM:
		return newGoogleConnector(config, logger)
	case AuthMethodAzureEntraID:
		return newAzureConnector(config, logger)
	default:
		return nil, fmt.Errorf("%w: unsupported auth method %v", roachtx.ErrInvalidConfig, config.AuthMethod)
	}
}

// OpenPool connects with the connector matching config.AuthMethod. The
// returned func closes the pool and then any resources the connector holds.
func OpenPool(ctx context.Context, config *ConnectionConfig, logger roachtx.Logger) (*pgxpool.Pool, func(), error) {
	connector, err := NewConnector(config, logger)
	if err != nil {
		return nil, nil, err
	}
	pool, err := connector.Connect(ctx)
	if err != nil {
		releaseConnector(connector, logger)
		return nil, nil, err
	}
	return pool, func() {
		pool.Close()
		releaseConnector(connector, logger)
	}, nil
}

func releaseConnector(c Connector, logger roachtx.Logger) {
	closer, ok := c.(io.Closer)
	if !ok {
		return
	}
	if err := closer.Close(); err != nil {
		logger.Verbose("closing connector: %v", err)
	}
}

// ConnectionError adds actionable guidance to a failed connection attempt.
// It matches both roachtx.ErrConnectionFailed and the driver error with
// errors.Is and errors.As.
type ConnectionError struct {
	Summary string
	Hints   []string
	Err     error
}

func (e *ConnectionError) Error() string {
	var b strings.Builder
	b.WriteString(e.Summary)
	if len(e.Hints) > 0 {
		b.WriteString("\n\nPossible causes:")
		for _, h := range e.Hints {
			b.WriteString("\n  - ")
			b.WriteString(h)
		}
	}
	b.WriteString("\n\nOriginal error: ")
	b.WriteString(e.Err.Error())
	return b.String()
}

func (e *ConnectionError) Unwrap() []error {
	return []error{roachtx.ErrConnectionFailed, e.Err}
}

// wrapConnectionError wraps raw driver connection errors with actionable guidance.
func wrapConnectionError(err error, host string, port int, database string) error {
	errStr := strings.ToLower(err.Error())
	addr := fmt.Sprintf("%s:%d", host, port)

	switch {
	case strings.Contains(errStr, "connection refused") || strings.Contains(errStr, "actively refused"):
		return &ConnectionError{
			Summary: "connection refused to " + addr,
			Hints: []string{
				fmt.Sprintf("CockroachDB is not running (check: cockroach node status --host=%s)", addr),
				"Wrong host or port (CockroachDB listens on 26257 by default)",
				"Firewall blocking the connection",
			},
			Err: err,
		}

	case strings.Contains(errStr, "no such host") || strings.Contains(errStr, "no host"):
		return &ConnectionError{
			Summary: fmt.Sprintf("cannot resolve host %q", host),
			Hints: []string{
				"Hostname is misspelled",
				"DNS is not configured or reachable",
			},
			Err: err,
		}

	case strings.Contains(errStr, "password authentication failed"):
		return &ConnectionError{
			Summary: fmt.Sprintf("password authentication failed for database %q", database),
			Hints: []string{
				"Wrong password (check $PGPASSWORD)",
				"Wrong username",
				"Cluster started with --insecure does not accept passwords; use sslmode=disable",
			},
			Err: err,
		}

	case strings.Contains(errStr, "does not exist"):
		return &ConnectionError{
			Summary: fmt.Sprintf("database %q does not exist", database),
			Hints: []string{
				"Run: roachtx bank init",
			},
			Err: err,
		}

	case strings.Contains(errStr, "timeout") || strings.Contains(errStr, "timed out"):
		return &ConnectionError{
			Summary: "connection timed out to " + addr,
			Hints: []string{
				"Node is overloaded or unresponsive",
				"Firewall silently dropping packets",
				"Wrong host/port (server not listening)",
			},
			Err: err,
		}

	case strings.Contains(errStr, "ssl") || strings.Contains(errStr, "tls"):
		return &ConnectionError{
			Summary: "SSL/TLS connection error",
			Hints: []string{
				"Secure cluster requires sslmode=verify-full with certificates",
				"Insecure cluster requires sslmode=disable",
			},
			Err: err,
		}

	default:
		return &ConnectionError{Summary: "failed to connect to database", Err: err}
	}
}

// newAWSConnector creates a token-based connector with the AWS IAM token provider.
func newAWSConnector(config *ConnectionConfig, logger roachtx.Logger) (Connector, error) {
	endpoint := fmt.Sprintf("%s:%d", config.Host, config.Port)

	tokenProvider, err := NewAWSIAMTokenProvider(endpoint, config.AWSRegion, config.Username)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create AWS IAM token provider: %w", roachtx.ErrInvalidConfig, err)
	}

	return NewTokenBasedConnector(config, tokenProvider, "AWS IAM", logger), nil
}

func newGoogleConnector(config *ConnectionConfig, logger roachtx.Logger) (Connector, error) {
	if config.GoogleInstance == "" {
		return nil, fmt.Errorf("%w: Google Cloud SQL IAM auth requires --google-instance (project:region:instance)", roachtx.ErrInvalidConfig)
	}
	if config.Username == "" {
		return nil, fmt.Errorf("%w: Google Cloud SQL IAM auth requires username (-U)", roachtx.ErrInvalidConfig)
	}

	return NewGoogleCloudSQLConnector(config, config.GoogleInstance, logger), nil
}

// newAzureConnector creates a token-based connector with the Azure Entra ID token provider.
// If explicit credentials (tenant, client, secret) are provided, uses Service Principal auth.
// Otherwise, falls back to DefaultAzureCredential chain.
func newAzureConnector(config *ConnectionConfig, logger roachtx.Logger) (Connector, error) {
	tokenProvider, err := newAzureTokenProvider(config)
	if err != nil {
		return nil, err
	}
	return NewTokenBasedConnector(config, tokenProvider, "Azure", logger), nil
}

func newAzureTokenProvider(config *ConnectionConfig) (TokenProvider, error) {
	if config.AzureTenantID != "" && config.AzureClientID != "" && config.AzureClientSecret != "" {
		p, err := NewAzureServicePrincipalProvider(config.AzureTenantID, config.AzureClientID, config.AzureClientSecret)
		if err != nil {
			return nil, fmt.Errorf("failed to create Azure Service Principal provider: %w", err)
		}
		return p, nil
	}

	p, err := NewAzureDefaultCredentialProvider()
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure Default Credential provider: %w", err)
	}
	return p, nil
}
