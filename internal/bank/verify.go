package bank

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/vvka-141/roachtx/pkg/roachtx"
)

// Verify checks that the bank holds exactly accounts accounts whose
// balances add up to accounts*initialBalance. A mismatch wraps
// roachtx.ErrBankUnbalanced.
func Verify(ctx context.Context, store Store, accounts int, initialBalance int64) (Totals, error) {
	totals, err := store.Totals(ctx)
	if err != nil {
		return Totals{}, err
	}

	want := int64(accounts) * initialBalance
	if totals.Accounts != int64(accounts) {
		return totals, fmt.Errorf("%w: found %d accounts, expected %d", roachtx.ErrBankUnbalanced, totals.Accounts, accounts)
	}
	if totals.Balance != want {
		return totals, fmt.Errorf("%w: total value %d, expected %d", roachtx.ErrBankUnbalanced, totals.Balance, want)
	}
	return totals, nil
}

// verifyLedger checks that runID wrote one ledger row per applied transfer.
// Transfers whose commit outcome is unknown may or may not have a row.
func verifyLedger(ctx context.Context, store Store, runID uuid.UUID, stats Stats) error {
	n, err := store.LedgerCount(ctx, runID)
	if err != nil {
		return err
	}

	maxRows := stats.Transfers + stats.Ambiguous + stats.Interrupted
	if n < stats.Transfers || n > maxRows {
		return fmt.Errorf("%w: ledger has %d rows for run %s, expected between %d and %d",
			roachtx.ErrBankUnbalanced, n, runID, stats.Transfers, maxRows)
	}
	return nil
}
