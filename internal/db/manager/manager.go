package manager

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const queryDatabaseExists = "SELECT EXISTS(SELECT 1 FROM pg_catalog.pg_database WHERE datname = $1)"

// Conn is the subset of *pgxpool.Pool and *pgx.Conn the manager needs.
type Conn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Manager implements database lifecycle operations.
// Stateless and safe for concurrent use; thread safety depends on the injected Conn.
type Manager struct{}

// New creates a new Manager instance.
func New() *Manager {
	return &Manager{}
}

// Exists checks if a database exists.
func (m *Manager) Exists(ctx context.Context, conn Conn, dbName string) (bool, error) {
	var exists bool
	if err := conn.QueryRow(ctx, queryDatabaseExists, dbName).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check database existence: %w", err)
	}
	return exists, nil
}

// Create creates a new database.
func (m *Manager) Create(ctx context.Context, conn Conn, dbName string) error {
	query := "CREATE DATABASE " + pgx.Identifier{dbName}.Sanitize()
	if _, err := conn.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create database %q: %w", dbName, err)
	}
	return nil
}

// Ensure creates dbName unless it already exists and reports whether it did.
func (m *Manager) Ensure(ctx context.Context, conn Conn, dbName string) (bool, error) {
	exists, err := m.Exists(ctx, conn, dbName)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}
	if err := m.Create(ctx, conn, dbName); err != nil {
		return false, err
	}
	return true, nil
}

// Drop drops the specified database if it exists.
func (m *Manager) Drop(ctx context.Context, conn Conn, dbName string) error {
	query := "DROP DATABASE IF EXISTS " + pgx.Identifier{dbName}.Sanitize()
	if _, err := conn.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to drop database %q: %w", dbName, err)
	}
	return nil
}
