package db

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"

	"github.com/vvka-141/roachtx/pkg/roachtx"
)

// SQLOpener opens database/sql handles backed by lib/pq.
type SQLOpener struct {
	config *ConnectionConfig
	logger roachtx.Logger
}

// NewSQLOpener creates an opener for config. With AWS or Azure IAM every new
// connection fetches its own token; Google Cloud SQL needs the pgx connector.
func NewSQLOpener(config *ConnectionConfig, logger roachtx.Logger) *SQLOpener {
	return &SQLOpener{config: config, logger: logger}
}

// Open returns a pinged *sql.DB limited to config.MaxConns open connections.
func (o *SQLOpener) Open(ctx context.Context) (*sql.DB, error) {
	if _, err := newPQConnector(BuildConnectionString(o.config)); err != nil {
		return nil, fmt.Errorf("%w: failed to parse connection config: %w", roachtx.ErrInvalidConfig, err)
	}
	connector, err := o.connector()
	if err != nil {
		return nil, err
	}

	sqlDB := sql.OpenDB(connector)
	maxConns := int(o.config.MaxConns)
	if maxConns <= 0 {
		maxConns = DefaultMaxConns
	}
	sqlDB.SetMaxOpenConns(maxConns)
	sqlDB.SetMaxIdleConns(maxConns)
	sqlDB.SetConnMaxIdleTime(DefaultMaxConnIdleTime)

	err = newConnectExecutor(o.logger).Execute(ctx, func(ctx context.Context) error {
		if err := sqlDB.PingContext(ctx); err != nil {
			return wrapConnectionError(err, o.config.Host, o.config.Port, o.config.Database)
		}
		return nil
	})
	if err != nil {
		sqlDB.Close()
		return nil, err
	}

	return sqlDB, nil
}

func (o *SQLOpener) connector() (driver.Connector, error) {
	var (
		provider TokenProvider
		name     string
		err      error
	)

	switch o.config.AuthMethod {
	case AuthMethodStandard:
		return newPQConnector(BuildConnectionString(o.config))
	case AuthMethodAWSIAM:
		name = "AWS IAM"
		provider, err = NewAWSIAMTokenProvider(fmt.Sprintf("%s:%d", o.config.Host, o.config.Port), o.config.AWSRegion, o.config.Username)
		if err != nil {
			err = fmt.Errorf("%w: %w", roachtx.ErrInvalidConfig, err)
		}
	case AuthMethodAzureEntraID:
		name = "Azure"
		provider, err = newAzureTokenProvider(o.config)
	default:
		return nil, fmt.Errorf("%w: auth method %v is not supported with the pq driver; use --driver pgx", roachtx.ErrInvalidConfig, o.config.AuthMethod)
	}
	if err != nil {
		return nil, err
	}

	return newPQTokenConnector(NewTokenBasedConnector(o.config, provider, name, o.logger)), nil
}
