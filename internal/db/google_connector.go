package db

import (
	"context"
	"fmt"
	"net"
	"sync"

	"cloud.google.com/go/cloudsqlconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vvka-141/roachtx/internal/retry"
	"github.com/vvka-141/roachtx/pkg/roachtx"
)

// GoogleCloudSQLConnector dials a Cloud SQL instance through cloudsqlconn,
// which supplies the IAM token and the TLS tunnel. The dialer outlives
// Connect; call Close once the pool has been closed.
type GoogleCloudSQLConnector struct {
	config        *ConnectionConfig
	instance      string
	retryExecutor *retry.Executor

	mu     sync.Mutex
	dialer *cloudsqlconn.Dialer
}

// NewGoogleCloudSQLConnector targets instance, given as project:region:instance.
func NewGoogleCloudSQLConnector(config *ConnectionConfig, instance string, logger roachtx.Logger) *GoogleCloudSQLConnector {
	return &GoogleCloudSQLConnector{
		config:        config,
		instance:      instance,
		retryExecutor: newConnectExecutor(logger),
	}
}

func (c *GoogleCloudSQLConnector) Connect(ctx context.Context) (*pgxpool.Pool, error) {
	dialer, err := c.getDialer(ctx)
	if err != nil {
		return nil, err
	}

	// Host and password are ignored: the dialer owns the transport.
	poolConfig, err := pgxpool.ParseConfig(fmt.Sprintf("user=%s dbname=%s sslmode=disable", c.config.Username, c.config.Database))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse connection config: %w", roachtx.ErrInvalidConfig, err)
	}
	configurePool(poolConfig, c.config)
	poolConfig.ConnConfig.DialFunc = func(ctx context.Context, _, _ string) (net.Conn, error) {
		return dialer.Dial(ctx, c.instance)
	}

	var pool *pgxpool.Pool
	err = c.retryExecutor.Execute(ctx, func(ctx context.Context) error {
		p, err := pgxpool.NewWithConfig(ctx, poolConfig)
		if err == nil {
			if err = p.Ping(ctx); err != nil {
				p.Close()
			}
		}
		if err != nil {
			return wrapConnectionError(err, c.instance, c.config.Port, c.config.Database)
		}
		pool = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return pool, nil
}

func (c *GoogleCloudSQLConnector) getDialer(ctx context.Context) (*cloudsqlconn.Dialer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dialer != nil {
		return c.dialer, nil
	}
	d, err := cloudsqlconn.NewDialer(ctx, cloudsqlconn.WithIAMAuthN())
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Cloud SQL dialer: %w", roachtx.ErrConnectionFailed, err)
	}
	c.dialer = d
	return d, nil
}

// Close releases the dialer. It is safe to call more than once.
func (c *GoogleCloudSQLConnector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dialer == nil {
		return nil
	}
	err := c.dialer.Close()
	c.dialer = nil
	return err
}
