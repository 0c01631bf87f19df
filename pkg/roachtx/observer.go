package roachtx

// Observer receives structured events from the retry loop.
// Implementations must be safe for concurrent use and must not block.
type Observer interface {
	// ObserveAttempt is called before each invocation of the unit of work.
	// attempt is one-based.
	ObserveAttempt(attempt int)

	// ObserveRetry is called after a serialization failure, before
	// ROLLBACK TO SAVEPOINT is issued.
	ObserveRetry(attempt int, err error)

	// ObserveOutcome is called once per RunInTx call with the terminal
	// outcome and the number of attempts made (0 if the savepoint could not
	// be established).
	ObserveOutcome(outcome Outcome, attempts int)
}

type nopObserver struct{}

func (nopObserver) ObserveAttempt(int)          {}
func (nopObserver) ObserveRetry(int, error)     {}
func (nopObserver) ObserveOutcome(Outcome, int) {}

// MultiObserver fans events out to every non-nil observer, in order.
func MultiObserver(observers ...Observer) Observer {
	var out multiObserver
	for _, o := range observers {
		if o != nil {
			out = append(out, o)
		}
	}
	if len(out) == 0 {
		return nopObserver{}
	}
	return out
}

type multiObserver []Observer

func (m multiObserver) ObserveAttempt(attempt int) {
	for _, o := range m {
		o.ObserveAttempt(attempt)
	}
}

func (m multiObserver) ObserveRetry(attempt int, err error) {
	for _, o := range m {
		o.ObserveRetry(attempt, err)
	}
}

func (m multiObserver) ObserveOutcome(outcome Outcome, attempts int) {
	for _, o := range m {
		o.ObserveOutcome(outcome, attempts)
	}
}
