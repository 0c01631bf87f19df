package bank

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/vvka-141/roachtx/internal/config"
	"github.com/vvka-141/roachtx/internal/logging"
	"github.com/vvka-141/roachtx/pkg/roachtx"
)

// Stats summarizes one workload run.
type Stats struct {
	RunID uuid.UUID

	// Transfers moved money; Insufficient found the source too poor.
	Transfers    int64
	Insufficient int64

	// Ambiguous transfers failed at RELEASE SAVEPOINT and may have
	// committed. Interrupted transfers were cut off by the run ending.
	Ambiguous   int64
	Interrupted int64

	// Attempts and Retries come from the Counter, when one is set.
	Attempts int64
	Retries  int64

	Verifications int64
	Elapsed       time.Duration
	Totals        Totals
}

// Rate returns committed transfers per second.
func (s Stats) Rate() float64 {
	if s.Elapsed <= 0 {
		return 0
	}
	return float64(s.Transfers) / s.Elapsed.Seconds()
}

type runCounters struct {
	issued        atomic.Int64
	transfers     atomic.Int64
	insufficient  atomic.Int64
	ambiguous     atomic.Int64
	interrupted   atomic.Int64
	verifications atomic.Int64
}

// Option configures a Workload.
type Option func(*Workload)

// WithLogger sets the logger for progress and failure messages.
func WithLogger(l roachtx.Logger) Option {
	return func(w *Workload) { w.logger = l }
}

// WithCounter reports attempts and retries from c in Stats.
func WithCounter(c *Counter) Option {
	return func(w *Workload) { w.counter = c }
}

// WithSeed makes the sequence of transfers each worker picks reproducible.
func WithSeed(seed uint64) Option {
	return func(w *Workload) { w.seed = seed }
}

// Workload runs concurrent transfers against a Store.
type Workload struct {
	store   Store
	cfg     config.BankConfig
	logger  roachtx.Logger
	counter *Counter
	seed    uint64

	live atomic.Pointer[liveRun]
}

type liveRun struct {
	counters    *runCounters
	start       time.Time
	baseRetries int64
}

// Progress is a point-in-time view of a running workload.
type Progress struct {
	Transfers    int64
	Insufficient int64
	Ambiguous    int64
	Retries      int64
	Elapsed      time.Duration
}

// Progress reports the counters of the current or last run. It is safe to
// call from another goroutine while Run executes.
func (w *Workload) Progress() Progress {
	run := w.live.Load()
	if run == nil {
		return Progress{}
	}
	_, retries := w.counter.Snapshot()
	return Progress{
		Transfers:    run.counters.transfers.Load(),
		Insufficient: run.counters.insufficient.Load(),
		Ambiguous:    run.counters.ambiguous.Load(),
		Retries:      retries - run.baseRetries,
		Elapsed:      time.Since(run.start),
	}
}

// NewWorkload creates a workload. Zero fields of cfg take their defaults.
func NewWorkload(store Store, cfg config.BankConfig, opts ...Option) *Workload {
	w := &Workload{
		store:  store,
		cfg:    cfg.WithDefaults(),
		logger: logging.NewNullLogger(),
		seed:   uint64(time.Now().UnixNano()),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Config returns the effective configuration.
func (w *Workload) Config() config.BankConfig {
	return w.cfg
}

// Init creates and seeds the bank, then verifies it.
func (w *Workload) Init(ctx context.Context) (Totals, error) {
	if err := w.cfg.Validate(); err != nil {
		return Totals{}, err
	}
	if err := w.store.Init(ctx, w.cfg.Accounts, w.cfg.InitialBalance); err != nil {
		return Totals{}, err
	}
	w.logger.Info("Seeded %d accounts with %d each", w.cfg.Accounts, w.cfg.InitialBalance)
	return w.Verify(ctx)
}

// Verify checks the balance invariant once.
func (w *Workload) Verify(ctx context.Context) (Totals, error) {
	return Verify(ctx, w.store, w.cfg.Accounts, w.cfg.InitialBalance)
}

// Run moves money until Transfers transfers have been issued or Duration
// has passed, whichever comes first, verifying the bank every
// VerifyInterval and once at the end. The bank must already be seeded.
//
// Stats are returned even when err is non-nil.
func (w *Workload) Run(ctx context.Context) (Stats, error) {
	stats := Stats{RunID: uuid.New()}
	if err := w.cfg.Validate(); err != nil {
		return stats, err
	}

	runCtx := ctx
	if d := time.Duration(w.cfg.Duration); d > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	baseAttempts, baseRetries := w.counter.Snapshot()
	var counters runCounters
	start := time.Now()
	w.live.Store(&liveRun{counters: &counters, start: start, baseRetries: baseRetries})

	g, gctx := errgroup.WithContext(runCtx)
	workersDone := make(chan struct{})
	g.Go(func() error {
		defer close(workersDone)
		workers, wctx := errgroup.WithContext(gctx)
		for i := 0; i < w.cfg.Concurrency; i++ {
			workers.Go(func() error {
				return w.worker(wctx, i, stats.RunID, &counters)
			})
		}
		return workers.Wait()
	})
	g.Go(func() error {
		return w.verifyLoop(gctx, workersDone, &counters)
	})
	runErr := g.Wait()

	stats.Elapsed = time.Since(start)
	stats.Transfers = counters.transfers.Load()
	stats.Insufficient = counters.insufficient.Load()
	stats.Ambiguous = counters.ambiguous.Load()
	stats.Interrupted = counters.interrupted.Load()
	attempts, retries := w.counter.Snapshot()
	stats.Attempts = attempts - baseAttempts
	stats.Retries = retries - baseRetries

	if runErr != nil {
		stats.Verifications = counters.verifications.Load()
		return stats, runErr
	}
	if err := ctx.Err(); err != nil {
		stats.Verifications = counters.verifications.Load()
		return stats, err
	}

	totals, err := w.Verify(ctx)
	counters.verifications.Add(1)
	stats.Verifications = counters.verifications.Load()
	stats.Totals = totals
	if err != nil {
		return stats, err
	}
	if err := verifyLedger(ctx, w.store, stats.RunID, stats); err != nil {
		return stats, err
	}

	w.logger.Info("The bank is in good order.")
	return stats, nil
}

func (w *Workload) worker(ctx context.Context, id int, runID uuid.UUID, c *runCounters) error {
	rng := rand.New(rand.NewPCG(w.seed, uint64(id)))
	accounts := int64(w.cfg.Accounts)
	limit := int64(w.cfg.Transfers)

	for {
		if ctx.Err() != nil {
			return nil
		}
		if limit > 0 && c.issued.Add(1) > limit {
			return nil
		}

		from := rng.Int64N(accounts)
		to := rng.Int64N(accounts - 1)
		if to >= from {
			to++
		}
		t := Transfer{
			ID:     uuid.New(),
			RunID:  runID,
			From:   from,
			To:     to,
			Amount: 1 + rng.Int64N(w.cfg.MaxTransfer),
		}

		applied, err := w.store.Transfer(ctx, t)
		switch {
		case err == nil && applied:
			c.transfers.Add(1)
		case err == nil:
			c.insufficient.Add(1)
		case ctx.Err() != nil:
			c.interrupted.Add(1)
			return nil
		case errors.Is(err, roachtx.ErrAmbiguousCommit):
			c.ambiguous.Add(1)
			w.logger.Info("worker %d: transfer %s has unknown outcome: %v", id, t.ID, err)
		default:
			return fmt.Errorf("worker %d: transfer %d -> %d: %w", id, t.From, t.To, err)
		}
	}
}

// verifyLoop checks the invariant every VerifyInterval until the workers
// finish or ctx is done, logging throughput like the classic sql_bank
// example.
func (w *Workload) verifyLoop(ctx context.Context, workersDone <-chan struct{}, c *runCounters) error {
	ticker := time.NewTicker(time.Duration(w.cfg.VerifyInterval))
	defer ticker.Stop()

	last, lastAt := int64(0), time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-workersDone:
			return nil
		case now := <-ticker.C:
			n := c.transfers.Load()
			w.logger.Info("%d transfers were executed at %.1f/second.", n-last, float64(n-last)/now.Sub(lastAt).Seconds())
			last, lastAt = n, now

			_, err := w.Verify(ctx)
			c.verifications.Add(1)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
		}
	}
}
