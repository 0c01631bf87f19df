package db

import (
	"context"
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"

	"github.com/vvka-141/roachtx/internal/retry"
	"github.com/vvka-141/roachtx/pkg/roachtx"
)

// tokenExpiryWarning is how close to expiry a freshly acquired token must be
// before a warning is logged.
const tokenExpiryWarning = 5 * time.Minute

// TokenBasedConnector implements the Connector interface for cloud providers
// that authenticate via short-lived tokens (AWS IAM, Azure Entra ID).
//
// Tokens expire long before a workload run ends, so every new physical
// connection asks the TokenProvider for its own token.
type TokenBasedConnector struct {
	config        *ConnectionConfig
	tokenProvider TokenProvider
	retryExecutor *retry.Executor
	providerName  string
	logger        roachtx.Logger
}

// NewTokenBasedConnector creates a connector that uses a TokenProvider for authentication.
// providerName is used in error/warning messages (e.g., "AWS IAM", "Azure").
func NewTokenBasedConnector(config *ConnectionConfig, tokenProvider TokenProvider, providerName string, logger roachtx.Logger) *TokenBasedConnector {
	return &TokenBasedConnector{
		config:        config,
		tokenProvider: tokenProvider,
		retryExecutor: newConnectExecutor(logger),
		providerName:  providerName,
		logger:        logger,
	}
}

// Connect checks that a token can be acquired, then opens a pool whose
// connections each authenticate with a fresh token.
func (c *TokenBasedConnector) Connect(ctx context.Context) (*pgxpool.Pool, error) {
	var pool *pgxpool.Pool

	err := c.retryExecutor.Execute(ctx, func(ctx context.Context) error {
		configWithToken, err := c.withToken(ctx)
		if err != nil {
			return err
		}

		pool, err = openPool(ctx, configWithToken, BuildConnectionString(configWithToken), c.beforeConnect)
		return err
	})
	if err != nil {
		return nil, err
	}

	return pool, nil
}

// beforeConnect runs for every connection the pool dials.
func (c *TokenBasedConnector) beforeConnect(ctx context.Context, cc *pgx.ConnConfig) error {
	token, err := c.token(ctx)
	if err != nil {
		return err
	}
	cc.Password = token
	return nil
}

// withToken returns a copy of the config whose password is a fresh token.
func (c *TokenBasedConnector) withToken(ctx context.Context) (*ConnectionConfig, error) {
	token, err := c.token(ctx)
	if err != nil {
		return nil, err
	}
	configWithToken := *c.config
	configWithToken.Password = token
	return &configWithToken, nil
}

func (c *TokenBasedConnector) token(ctx context.Context) (string, error) {
	token, expiresOn, err := c.tokenProvider.GetToken(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to acquire %s token: %w", c.providerName, err)
	}

	if remaining := time.Until(expiresOn); remaining < tokenExpiryWarning {
		c.logger.Info("Warning: %s token expires in %v", c.providerName, remaining.Round(time.Second))
	}
	c.logger.Verbose("acquired token from %s", c.tokenProvider)
	return token, nil
}

// pqTokenConnector is the database/sql counterpart of beforeConnect: each
// Connect rebuilds the lib/pq DSN around a fresh token.
type pqTokenConnector struct {
	tokens *TokenBasedConnector
	dial   func(dsn string) (driver.Connector, error)
}

func newPQTokenConnector(tokens *TokenBasedConnector) *pqTokenConnector {
	return &pqTokenConnector{tokens: tokens, dial: newPQConnector}
}

func (c *pqTokenConnector) Connect(ctx context.Context) (driver.Conn, error) {
	cfg, err := c.tokens.withToken(ctx)
	if err != nil {
		return nil, err
	}
	connector, err := c.dial(BuildConnectionString(cfg))
	if err != nil {
		return nil, err
	}
	return connector.Connect(ctx)
}

func (c *pqTokenConnector) Driver() driver.Driver { return pq.Driver{} }

func newPQConnector(dsn string) (driver.Connector, error) {
	return pq.NewConnector(dsn)
}
