package testinfra

import (
	"context"
	"fmt"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	PostgresImage    = "postgres:17-alpine"
	PostgresUser     = "postgres"
	PostgresPassword = "postgres"
	PostgresDB       = "postgres"

	CockroachImage = "cockroachdb/cockroach:v24.3.5"
	CockroachUser  = "root"
	CockroachDB    = "defaultdb"

	cockroachSQLPort  = "26257/tcp"
	cockroachHTTPPort = "8080/tcp"
)

// DatabaseContainer is a running database reachable through ConnString.
type DatabaseContainer struct {
	testcontainers.Container
	ConnString string
}

// StartSimplePostgres starts a PostgreSQL server without TLS. PostgreSQL
// accepts the cockroach_restart savepoint as an ordinary savepoint and
// reports 40001 under SERIALIZABLE isolation.
func StartSimplePostgres(ctx context.Context) (*DatabaseContainer, error) {
	ctr, err := postgres.Run(ctx,
		PostgresImage,
		postgres.WithUsername(PostgresUser),
		postgres.WithPassword(PostgresPassword),
		postgres.WithDatabase(PostgresDB),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("start postgres: %w", err)
	}

	connStr, err := ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		ctr.Terminate(ctx) //nolint:errcheck
		return nil, fmt.Errorf("get connection string: %w", err)
	}

	return &DatabaseContainer{Container: ctr, ConnString: connStr}, nil
}

// StartCockroach starts an insecure single-node CockroachDB cluster.
func StartCockroach(ctx context.Context) (*DatabaseContainer, error) {
	ctr, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        CockroachImage,
			Cmd:          []string{"start-single-node", "--insecure"},
			ExposedPorts: []string{cockroachSQLPort, cockroachHTTPPort},
			WaitingFor: wait.ForHTTP("/health?ready=1").
				WithPort(cockroachHTTPPort).
				WithStartupTimeout(90 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		return nil, fmt.Errorf("start cockroach: %w", err)
	}

	host, err := ctr.Host(ctx)
	if err != nil {
		ctr.Terminate(ctx) //nolint:errcheck
		return nil, fmt.Errorf("get container host: %w", err)
	}
	port, err := ctr.MappedPort(ctx, cockroachSQLPort)
	if err != nil {
		ctr.Terminate(ctx) //nolint:errcheck
		return nil, fmt.Errorf("get mapped port: %w", err)
	}

	connStr := fmt.Sprintf("postgresql://%s@%s:%s/%s?sslmode=disable", CockroachUser, host, port.Port(), CockroachDB)
	return &DatabaseContainer{Container: ctr, ConnString: connStr}, nil
}
