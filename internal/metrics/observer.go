// Package metrics exports retry executor activity to Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/vvka-141/roachtx/pkg/roachtx"
)

const namespace = "roachtx"

// Observer is a roachtx.Observer backed by Prometheus collectors.
type Observer struct {
	attempts        prometheus.Counter
	retries         *prometheus.CounterVec
	outcomes        *prometheus.CounterVec
	attemptsPerCall prometheus.Histogram
}

var _ roachtx.Observer = (*Observer)(nil)

// NewObserver creates the collectors and registers them with reg.
func NewObserver(reg prometheus.Registerer) (*Observer, error) {
	o := &Observer{
		attempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "attempts_total",
			Help:      "Executions of a unit of work, including retries.",
		}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retries_total",
			Help:      "Serialization failures that restarted the transaction at its savepoint.",
		}, []string{"sqlstate"}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transactions_total",
			Help:      "Transactions by terminal outcome.",
		}, []string{"outcome"}),
		attemptsPerCall: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "attempts_per_transaction",
			Help:      "Attempts needed to reach a terminal outcome.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 8),
		}),
	}

	for _, c := range []prometheus.Collector{o.attempts, o.retries, o.outcomes, o.attemptsPerCall} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return o, nil
}

func (o *Observer) ObserveAttempt(int) {
	o.attempts.Inc()
}

func (o *Observer) ObserveRetry(_ int, err error) {
	code, ok := roachtx.SQLState(err)
	if !ok {
		code = "none"
	}
	o.retries.WithLabelValues(code).Inc()
}

func (o *Observer) ObserveOutcome(outcome roachtx.Outcome, attempts int) {
	o.outcomes.WithLabelValues(outcome.String()).Inc()
	if attempts > 0 {
		o.attemptsPerCall.Observe(float64(attempts))
	}
}
