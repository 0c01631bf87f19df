package retry

import (
	"time"

	goretry "github.com/sethvargo/go-retry"
)

// ExponentialBackoff describes an exponential backoff policy. It is a
// template: New builds a fresh, stateful go-retry Backoff for each Execute.
type ExponentialBackoff struct {
	initialDelay  time.Duration
	maxDelay      time.Duration
	maxAttempts   int
	jitterPercent uint64
}

// BackoffOption is a functional option for configuring ExponentialBackoff.
type BackoffOption func(*ExponentialBackoff)

// WithInitialDelay sets the delay before the first retry attempt.
func WithInitialDelay(d time.Duration) BackoffOption {
	return func(b *ExponentialBackoff) {
		b.initialDelay = d
	}
}

// WithMaxDelay caps the delay between retry attempts.
func WithMaxDelay(d time.Duration) BackoffOption {
	return func(b *ExponentialBackoff) {
		b.maxDelay = d
	}
}

// WithJitterPercent adds up to +/- p percent of randomness to every delay.
// Zero disables jitter.
func WithJitterPercent(p uint64) BackoffOption {
	return func(b *ExponentialBackoff) {
		b.jitterPercent = p
	}
}

// NewExponentialBackoff creates an exponential backoff policy that doubles
// the delay after every attempt. maxAttempts is the number of retries after
// the first attempt; a negative value retries until the context is done.
func NewExponentialBackoff(maxAttempts int, opts ...BackoffOption) *ExponentialBackoff {
	b := &ExponentialBackoff{
		initialDelay:  100 * time.Millisecond,
		maxDelay:      30 * time.Second,
		maxAttempts:   maxAttempts,
		jitterPercent: 10,
	}

	for _, opt := range opts {
		opt(b)
	}

	return b
}

// New builds a go-retry Backoff implementing this policy.
func (b *ExponentialBackoff) New() goretry.Backoff {
	backoff := goretry.NewExponential(b.initialDelay)
	if b.maxDelay > 0 {
		backoff = goretry.WithCappedDuration(b.maxDelay, backoff)
	}
	if b.jitterPercent > 0 {
		backoff = goretry.WithJitterPercent(b.jitterPercent, backoff)
	}
	if b.maxAttempts >= 0 {
		backoff = goretry.WithMaxRetries(uint64(b.maxAttempts), backoff)
	}
	return backoff
}

// MaxAttempts returns the maximum number of retry attempts.
func (b *ExponentialBackoff) MaxAttempts() int {
	return b.maxAttempts
}

// InitialDelay returns the initial delay for tests and debugging.
func (b *ExponentialBackoff) InitialDelay() time.Duration {
	return b.initialDelay
}

// MaxDelay returns the maximum delay for tests and debugging.
func (b *ExponentialBackoff) MaxDelay() time.Duration {
	return b.maxDelay
}
