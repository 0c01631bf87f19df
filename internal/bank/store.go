package bank

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Transfer moves Amount from account From to account To.
type Transfer struct {
	ID     uuid.UUID
	RunID  uuid.UUID
	From   int64
	To     int64
	Amount int64
}

// Totals is a snapshot of the accounts table.
type Totals struct {
	Accounts int64
	Balance  int64
}

// Store runs the bank's transactions against one database driver.
type Store interface {
	// Init creates the schema, empties it and seeds accounts, each holding
	// balance.
	Init(ctx context.Context, accounts int, balance int64) error

	// Transfer applies t inside a retried transaction. It reports false,
	// with no error, when the source account cannot cover the amount.
	Transfer(ctx context.Context, t Transfer) (bool, error)

	// Totals reads the account count and the sum of all balances.
	Totals(ctx context.Context) (Totals, error)

	// Seeded reports whether the accounts table exists and holds rows.
	Seeded(ctx context.Context) (bool, error)

	// LedgerCount returns the number of ledger rows written by runID.
	LedgerCount(ctx context.Context, runID uuid.UUID) (int64, error)
}

// errAccountNotFound is returned when a transfer names an account that was
// never seeded.
var errAccountNotFound = errors.New("account not found")

// row is the common surface of pgx.Row and *sql.Row.
type row interface {
	Scan(dest ...any) error
}

// seeded runs the two existence checks through queryRow.
func seeded(ctx context.Context, queryRow func(ctx context.Context, query string) row) (bool, error) {
	var exists bool
	if err := queryRow(ctx, accountsTableExists).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to look up the accounts table: %w", err)
	}
	if !exists {
		return false, nil
	}
	if err := queryRow(ctx, anyAccount).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to look up accounts: %w", err)
	}
	return exists, nil
}

// txConn is what a transfer needs from a driver transaction.
type txConn interface {
	exec(ctx context.Context, query string, args ...any) error
	queryRow(ctx context.Context, query string, args ...any) row
	isNoRows(err error) bool
}

// applyTransfer is the body of a transfer transaction. It may run several
// times for one Transfer; every statement goes through conn.
func applyTransfer(ctx context.Context, conn txConn, t Transfer) (bool, error) {
	from, err := balance(ctx, conn, t.From)
	if err != nil {
		return false, err
	}
	if _, err := balance(ctx, conn, t.To); err != nil {
		return false, err
	}
	if from < t.Amount {
		return false, nil
	}

	if err := conn.exec(ctx, debitAccount, t.Amount, t.From); err != nil {
		return false, err
	}
	if err := conn.exec(ctx, creditAccount, t.Amount, t.To); err != nil {
		return false, err
	}
	if err := conn.exec(ctx, insertTransfer, t.ID.String(), t.RunID.String(), t.From, t.To, t.Amount); err != nil {
		return false, err
	}
	return true, nil
}

func balance(ctx context.Context, conn txConn, id int64) (int64, error) {
	var b int64
	if err := conn.queryRow(ctx, selectBalance, id).Scan(&b); err != nil {
		if conn.isNoRows(err) {
			return 0, fmt.Errorf("%w: %d", errAccountNotFound, id)
		}
		return 0, err
	}
	return b, nil
}
