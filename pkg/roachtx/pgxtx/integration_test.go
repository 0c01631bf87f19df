package pgxtx_test

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	testhelpers "github.com/vvka-141/roachtx/internal/testing"
	"github.com/vvka-141/roachtx/pkg/roachtx"
	"github.com/vvka-141/roachtx/pkg/roachtx/pgxtx"
)

func cockroachPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	pool := testhelpers.GetTestPool(t, testhelpers.RequireDatabase(t))

	var version string
	require.NoError(t, pool.QueryRow(context.Background(), "SELECT version()").Scan(&version))
	if !strings.Contains(version, "CockroachDB") {
		t.Skip("savepoint restart protocol requires CockroachDB")
	}
	return pool
}

func TestExecuteTx_ForcedRetries(t *testing.T) {
	pool := cockroachPool(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	attempts := 0
	err := roachtx.ExecuteTx(ctx, nil, pgxtx.NewSession(pool), func(ctx context.Context, tx *pgxtx.Tx) error {
		attempts++
		_, err := tx.Exec(ctx, "SELECT crdb_internal.force_retry('200ms':::INTERVAL)")
		return err
	})

	require.NoError(t, err)
	assert.Greater(t, attempts, 1)
}

func TestExecuteTx_FatalErrorIsNotRetried(t *testing.T) {
	pool := cockroachPool(t)
	ctx := context.Background()
	table := fmt.Sprintf("roachtx_fatal_%d", time.Now().UnixNano())
	_, err := pool.Exec(ctx, "CREATE TABLE "+table+" (id INT PRIMARY KEY)")
	require.NoError(t, err)
	t.Cleanup(func() { _, _ = pool.Exec(ctx, "DROP TABLE IF EXISTS "+table) })

	attempts := 0
	err = roachtx.ExecuteTx(ctx, nil, pgxtx.NewSession(pool), func(ctx context.Context, tx *pgxtx.Tx) error {
		attempts++
		_, err := tx.Exec(ctx, "INSERT INTO "+table+" VALUES (1), (1)")
		return err
	})

	require.Error(t, err)
	code, ok := roachtx.SQLState(err)
	require.True(t, ok)
	assert.Equal(t, "23505", code)
	assert.Equal(t, 1, attempts)

	var n int
	require.NoError(t, pool.QueryRow(ctx, "SELECT count(*) FROM "+table).Scan(&n))
	assert.Zero(t, n)
}
