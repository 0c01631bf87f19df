package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/vvka-141/roachtx/internal/bank"
	"github.com/vvka-141/roachtx/internal/config"
	"github.com/vvka-141/roachtx/internal/metrics"
	"github.com/vvka-141/roachtx/internal/tui"
	"github.com/vvka-141/roachtx/pkg/roachtx"
)

// runFlags holds the flags only `bank run` accepts.
type runFlags struct {
	init           bool
	concurrency    int
	transfers      int
	duration       time.Duration
	maxTransfer    int64
	verifyInterval time.Duration
	seed           uint64

	metricsAddr      string
	graphiteAddr     string
	graphiteInterval time.Duration
}

var runOpts runFlags

var bankRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run concurrent transfers through the retry protocol",
	Long: `Starts --concurrency workers that move random amounts between random
accounts. Each transfer is one SERIALIZABLE transaction retried on SQLSTATE
40001 with SAVEPOINT cockroach_restart. The invariant is checked every
--verify-interval and once more at the end.

The run stops after --transfers transfers or --duration, whichever comes
first. Press q to stop early when running in a terminal.

Examples:
  roachtx bank run --init --transfers 10000 --concurrency 16
  roachtx bank run --duration 5m --metrics-addr :9090`,
	Args: cobra.NoArgs,
	RunE: runBankRun,
}

func registerRunFlags(cmd *cobra.Command, f *runFlags) {
	defaults := config.DefaultBankConfig()

	cmd.Flags().BoolVar(&f.init, "init", false,
		"Create the database and seed the accounts before running")
	cmd.Flags().IntVar(&f.concurrency, "concurrency", defaults.Concurrency,
		"Number of concurrent workers")
	cmd.Flags().IntVar(&f.transfers, "transfers", 0,
		"Stop after this many transfers (0: no limit)")
	cmd.Flags().DurationVar(&f.duration, "duration", time.Duration(defaults.Duration),
		"Stop after this long (0: no limit)")
	cmd.Flags().Int64Var(&f.maxTransfer, "max-transfer", defaults.MaxTransfer,
		"Largest amount moved by one transfer")
	cmd.Flags().DurationVar(&f.verifyInterval, "verify-interval", time.Duration(defaults.VerifyInterval),
		"How often to check the invariant during the run")
	cmd.Flags().Uint64Var(&f.seed, "seed", 0,
		"Seed for the transfer generator (default: random)")

	cmd.Flags().StringVar(&f.metricsAddr, "metrics-addr", "",
		"Serve Prometheus metrics on this address during the run (e.g. :9090)")
	cmd.Flags().StringVar(&f.graphiteAddr, "graphite-addr", "",
		"Push metrics to this Graphite/Carbon endpoint (host:port)")
	cmd.Flags().DurationVar(&f.graphiteInterval, "graphite-interval", 10*time.Second,
		"How often to push to Graphite")
}

func runBankRun(cmd *cobra.Command, args []string) error {
	s, err := prepareBank(cmd, &runOpts)
	if err != nil {
		return err
	}
	if runOpts.graphiteAddr != "" && runOpts.graphiteInterval <= 0 {
		return fmt.Errorf("%w: --graphite-interval must be positive", roachtx.ErrInvalidConfig)
	}

	ctx, cancel := commandContext(s.timeout)
	defer cancel()

	reg := metrics.NewRegistry()
	observer, err := metrics.NewObserver(reg)
	if err != nil {
		return err
	}
	counter := bank.NewCounter()
	exec := roachtx.NewExecutor(
		roachtx.WithLogger(s.logger),
		roachtx.WithObserver(roachtx.MultiObserver(counter, observer)),
	)

	if runOpts.init {
		if err := ensureDatabase(ctx, s.conn, s.maintDB, s.logger); err != nil {
			return err
		}
	}

	store, closeStore, err := openStore(ctx, s, exec)
	if err != nil {
		return err
	}
	defer closeStore()

	opts := []bank.Option{bank.WithLogger(s.logger), bank.WithCounter(counter)}
	if cmd.Flags().Changed("seed") {
		opts = append(opts, bank.WithSeed(runOpts.seed))
	}
	w := bank.NewWorkload(store, s.bank, opts...)

	if runOpts.init {
		if err := confirmReset(ctx, store, s.conn.Database, selectApprover(bankOpts.force, tui.IsInteractive())); err != nil {
			return err
		}
		if _, err := w.Init(ctx); err != nil {
			return fmt.Errorf("bank init failed: %w", err)
		}
	}

	stats, runErr := runWithMetrics(ctx, w, &runOpts, reg, s.logger)

	fmt.Fprint(cmd.OutOrStdout(), tui.RenderSummary(tui.Summary{
		Driver: s.bank.Driver,
		Stats:  stats,
		Err:    runErr,
	}, tui.IsInteractive()))

	if runErr != nil {
		return fmt.Errorf("bank run failed: %w", runErr)
	}
	return nil
}

// runWithMetrics runs the workload while the configured exporters are
// active. The exporters stop when the workload returns; an exporter that
// fails stops the workload.
func runWithMetrics(ctx context.Context, r tui.Runner, f *runFlags, reg prometheus.Gatherer, logger roachtx.Logger) (bank.Stats, error) {
	g, gctx := errgroup.WithContext(ctx)
	exportCtx, stopExport := context.WithCancel(gctx)
	defer stopExport()

	if f.metricsAddr != "" {
		g.Go(func() error {
			return metrics.Serve(exportCtx, f.metricsAddr, reg, logger)
		})
	}
	if f.graphiteAddr != "" {
		g.Go(func() error {
			return metrics.PushGraphite(exportCtx, f.graphiteAddr, f.graphiteInterval, reg, logger)
		})
	}

	var (
		stats  bank.Stats
		runErr error
	)
	g.Go(func() error {
		defer stopExport()
		stats, runErr = tui.RunWithProgress(gctx, r)
		return nil
	})

	if err := g.Wait(); err != nil {
		return stats, err
	}
	return stats, runErr
}

func resetRunFlags() {
	defaults := config.DefaultBankConfig()
	runOpts = runFlags{
		concurrency:      defaults.Concurrency,
		duration:         time.Duration(defaults.Duration),
		maxTransfer:      defaults.MaxTransfer,
		verifyInterval:   time.Duration(defaults.VerifyInterval),
		graphiteInterval: 10 * time.Second,
	}
}
