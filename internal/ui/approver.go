// Package ui asks for confirmation before roachtx destroys bank data.
package ui

import (
	"context"
	"time"
)

// Approver confirms resetting the bank in a database that already holds
// accounts.
//
// Implementations:
//   - InteractiveApprover: asks the user to type the database name
//   - ForcedApprover: shows a countdown, then approves
type Approver interface {
	RequestApproval(ctx context.Context, dbName string) (bool, error)
}

// DefaultForceCountdown is how long ForcedApprover waits before approving.
const DefaultForceCountdown = 5 * time.Second
