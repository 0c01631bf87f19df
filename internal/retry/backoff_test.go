package retry

import (
	"testing"
	"time"
)

func TestExponentialBackoff_DefaultValues(t *testing.T) {
	strategy := NewExponentialBackoff(3)

	if strategy.InitialDelay() != 100*time.Millisecond {
		t.Errorf("Expected InitialDelay=100ms, got %v", strategy.InitialDelay())
	}
	if strategy.MaxDelay() != 30*time.Second {
		t.Errorf("Expected MaxDelay=30s, got %v", strategy.MaxDelay())
	}
	if strategy.jitterPercent != 10 {
		t.Errorf("Expected jitter of 10%%, got %d", strategy.jitterPercent)
	}
	if strategy.MaxAttempts() != 3 {
		t.Errorf("Expected MaxAttempts=3, got %v", strategy.MaxAttempts())
	}
}

func TestExponentialBackoff_New_WithoutJitter(t *testing.T) {
	backoff := NewExponentialBackoff(5,
		WithInitialDelay(100*time.Millisecond),
		WithJitterPercent(0),
	).New()

	expected := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		800 * time.Millisecond,
		1600 * time.Millisecond,
	}

	for i, want := range expected {
		delay, stop := backoff.Next()
		if stop {
			t.Fatalf("Retry %d: backoff stopped early", i)
		}
		if delay != want {
			t.Errorf("Retry %d: delay = %v, want %v", i, delay, want)
		}
	}

	if _, stop := backoff.Next(); !stop {
		t.Error("Expected backoff to stop after MaxAttempts retries")
	}
}

func TestExponentialBackoff_New_CapsDelay(t *testing.T) {
	backoff := NewExponentialBackoff(100,
		WithInitialDelay(100*time.Millisecond),
		WithMaxDelay(1*time.Minute),
		WithJitterPercent(0),
	).New()

	for i := 0; i < 100; i++ {
		delay, stop := backoff.Next()
		if stop {
			t.Fatalf("Retry %d: backoff stopped early", i)
		}
		if delay > time.Minute {
			t.Errorf("Retry %d: delay %v exceeds cap", i, delay)
		}
		if i > 20 && delay != time.Minute {
			t.Errorf("Retry %d: expected delay capped at 1m, got %v", i, delay)
		}
	}
}

func TestExponentialBackoff_New_JitterStaysInBounds(t *testing.T) {
	backoff := NewExponentialBackoff(1,
		WithInitialDelay(100*time.Millisecond),
		WithJitterPercent(10),
	).New()

	delay, stop := backoff.Next()
	if stop {
		t.Fatal("Expected one retry")
	}
	if delay < 90*time.Millisecond || delay > 110*time.Millisecond {
		t.Errorf("Expected delay within 10%% of 100ms, got %v", delay)
	}
}

func TestExponentialBackoff_New_IsIndependentPerCall(t *testing.T) {
	strategy := NewExponentialBackoff(1, WithInitialDelay(time.Millisecond), WithJitterPercent(0))

	first := strategy.New()
	first.Next()
	if _, stop := first.Next(); !stop {
		t.Fatal("Expected first sequence to be exhausted")
	}

	if _, stop := strategy.New().Next(); stop {
		t.Error("Expected a fresh sequence from New")
	}
}

func TestExponentialBackoff_NegativeMaxAttemptsIsUnbounded(t *testing.T) {
	backoff := NewExponentialBackoff(-1,
		WithInitialDelay(time.Millisecond),
		WithMaxDelay(time.Millisecond),
		WithJitterPercent(0),
	).New()

	for i := 0; i < 1000; i++ {
		if _, stop := backoff.Next(); stop {
			t.Fatalf("Retry %d: unbounded backoff stopped", i)
		}
	}
}
