package ui

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"
)

// ForcedApprover approves after a countdown. It backs --force, leaving
// Ctrl+C as the last way out.
type ForcedApprover struct {
	output    io.Writer
	countdown time.Duration
	sleepFn   func(time.Duration)
}

// NewForcedApprover creates an approver that counts down on stderr.
func NewForcedApprover() Approver {
	return &ForcedApprover{output: os.Stderr, countdown: DefaultForceCountdown, sleepFn: time.Sleep}
}

// RequestApproval counts down one second at a time, then approves.
func (a *ForcedApprover) RequestApproval(ctx context.Context, dbName string) (bool, error) {
	fmt.Fprintf(a.output, "\nDANGER: resetting the bank in database '%s' (--force)\n", dbName)
	fmt.Fprintln(a.output, "Every account and transfer will be deleted.")

	for i := int(a.countdown.Seconds()); i > 0; i-- {
		select {
		case <-ctx.Done():
			fmt.Fprintln(a.output)
			return false, ctx.Err()
		default:
			fmt.Fprintf(a.output, "\rResetting in: %d seconds... (Press Ctrl+C to cancel)", i)
			a.sleepFn(time.Second)
		}
	}
	if err := ctx.Err(); err != nil {
		fmt.Fprintln(a.output)
		return false, err
	}

	fmt.Fprintf(a.output, "\r✓ Proceeding with the reset...                                  \n")
	return true, nil
}

var _ Approver = (*ForcedApprover)(nil)
