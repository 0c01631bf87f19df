package bank

import (
	"sync/atomic"

	"github.com/vvka-141/roachtx/pkg/roachtx"
)

// Counter is a roachtx.Observer that counts attempts and retries. Give it
// to the executor behind the store and to the workload with WithCounter.
type Counter struct {
	attempts atomic.Int64
	retries  atomic.Int64
}

var _ roachtx.Observer = (*Counter)(nil)

func NewCounter() *Counter {
	return &Counter{}
}

func (c *Counter) ObserveAttempt(int) { c.attempts.Add(1) }

func (c *Counter) ObserveRetry(int, error) { c.retries.Add(1) }

func (c *Counter) ObserveOutcome(roachtx.Outcome, int) {}

// Snapshot returns the attempts and retries seen so far.
func (c *Counter) Snapshot() (attempts, retries int64) {
	if c == nil {
		return 0, 0
	}
	return c.attempts.Load(), c.retries.Load()
}
