package testing

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/vvka-141/roachtx/internal/db"
	"github.com/vvka-141/roachtx/internal/db/manager"
	"github.com/vvka-141/roachtx/internal/testinfra"
)

const (
	// ConnEnvVar points tests at an existing server instead of a container.
	ConnEnvVar = "ROACHTX_TEST_CONN"
	// BackendEnvVar selects the container started when ConnEnvVar is unset:
	// "cockroach" (default) or "postgres".
	BackendEnvVar = "ROACHTX_TEST_BACKEND"
)

// One container serves every test in the package binary.
var sharedServer = sync.OnceValues(func() (string, error) {
	start := testinfra.StartCockroach
	if strings.EqualFold(os.Getenv(BackendEnvVar), "postgres") {
		start = testinfra.StartSimplePostgres
	}
	c, err := start(context.Background())
	if err != nil {
		return "", err
	}
	return c.ConnString, nil
})

// RequireDatabase returns a connection string for the test server, starting
// a container on first use. The test is skipped under -short or when
// neither ROACHTX_TEST_CONN nor Docker is available.
func RequireDatabase(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("integration test skipped in short mode")
	}
	if conn := os.Getenv(ConnEnvVar); conn != "" {
		return conn
	}
	conn, err := sharedServer()
	if err != nil {
		t.Skipf("%s not set and no container could be started: %v", ConnEnvVar, err)
	}
	return conn
}

// UniqueDBName appends a random suffix so parallel tests never share a database.
func UniqueDBName(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, uuid.NewString()[:8])
}

// CreateTestDB creates dbName, drops it again on cleanup and returns a
// connection string that targets it.
func CreateTestDB(t *testing.T, connString, dbName string) string {
	t.Helper()
	ctx := context.Background()

	pool := GetTestPool(t, connString)
	require.NoError(t, manager.New().Create(ctx, pool, dbName), "create %s", dbName)
	t.Cleanup(func() { CleanupTestDB(t, connString, dbName) })

	cfg, err := db.ParseConnectionString(connString)
	require.NoError(t, err)
	cfg.Database = dbName
	return db.BuildConnectionString(cfg)
}

// CleanupTestDB drops dbName if it exists. Failures are logged, not fatal,
// so it is safe inside t.Cleanup.
func CleanupTestDB(t *testing.T, connString, dbName string) {
	t.Helper()
	ctx := context.Background()

	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		t.Logf("cleanup of %s: connect: %v", dbName, err)
		return
	}
	defer pool.Close()

	if err := manager.New().Drop(ctx, pool, dbName); err != nil {
		t.Logf("cleanup of %s: %v", dbName, err)
	}
}

// GetTestPool opens a pool that is closed when the test ends.
func GetTestPool(t *testing.T, connString string) *pgxpool.Pool {
	t.Helper()
	pool, err := pgxpool.New(context.Background(), connString)
	require.NoError(t, err, "open pool")
	t.Cleanup(pool.Close)
	return pool
}
