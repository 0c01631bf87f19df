package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/vvka-141/roachtx/internal/bank"
	"github.com/vvka-141/roachtx/internal/config"
	"github.com/vvka-141/roachtx/internal/db"
	"github.com/vvka-141/roachtx/internal/tui"
	"github.com/vvka-141/roachtx/internal/ui"
	"github.com/vvka-141/roachtx/pkg/roachtx"
)

// bankFlags holds the flag values shared by the bank subcommands.
type bankFlags struct {
	conn connectionFlags

	configDir      string
	driver         string
	accounts       int
	initialBalance int64
	timeout        time.Duration
	force          bool
}

var bankOpts bankFlags

var bankCmd = &cobra.Command{
	Use:   "bank",
	Short: "Exercise the retry protocol with a money-transfer workload",
	Long: `The bank workload keeps a fixed number of accounts and moves random
amounts between them from concurrent workers. Every transfer runs through
the savepoint retry protocol, so the sum of all balances must never change.

  roachtx bank init    create the schema and seed the accounts
  roachtx bank run     run concurrent transfers and verify the invariant
  roachtx bank verify  check the invariant once

Settings are read from roachtx.yaml (connection and bank blocks) and .env,
and overridden by flags.`,
}

var bankInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the bank schema and seed the accounts",
	Long: `Creates the bank database when needed, (re)creates the accounts and
transfers tables and seeds every account with the initial balance.

Existing accounts and transfers are removed. When the database already
holds a bank you are asked to type its name; --force replaces the prompt
with a countdown.`,
	Args: cobra.NoArgs,
	RunE: runBankInit,
}

var bankVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check that the bank total is unchanged",
	Args:  cobra.NoArgs,
	RunE:  runBankVerify,
}

func init() {
	rootCmd.AddCommand(bankCmd)
	bankCmd.AddCommand(bankInitCmd, bankVerifyCmd, bankRunCmd)

	for _, cmd := range []*cobra.Command{bankInitCmd, bankVerifyCmd, bankRunCmd} {
		registerConnectionFlags(cmd, &bankOpts.conn)
		registerBankFlags(cmd, &bankOpts)
	}
	registerRunFlags(bankRunCmd, &runOpts)

	for _, cmd := range []*cobra.Command{bankInitCmd, bankRunCmd} {
		cmd.Flags().BoolVar(&bankOpts.force, "force", false,
			"Reset an existing bank without typing the database name\n"+
				"A short countdown still runs; use this in CI/CD pipelines")
	}
}

func registerBankFlags(cmd *cobra.Command, f *bankFlags) {
	defaults := config.DefaultBankConfig()

	cmd.Flags().StringVar(&f.configDir, "config-dir", ".",
		"Directory containing roachtx.yaml and .env")
	cmd.Flags().StringVar(&f.driver, "driver", defaults.Driver,
		"Database driver: pgx (pgxpool) or pq (database/sql with lib/pq)")
	cmd.Flags().IntVar(&f.accounts, "accounts", defaults.Accounts,
		"Number of accounts")
	cmd.Flags().Int64Var(&f.initialBalance, "initial-balance", defaults.InitialBalance,
		"Starting balance of every account")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 0,
		"Catastrophic failure protection timeout for the whole command\n"+
			"(default: roachtx.yaml timeout, or none)\n"+
			"Examples: 30s, 5m, 1h30m")
}

func resetBankFlags() {
	defaults := config.DefaultBankConfig()
	bankOpts = bankFlags{
		configDir:      ".",
		driver:         defaults.Driver,
		accounts:       defaults.Accounts,
		initialBalance: defaults.InitialBalance,
	}
	for _, cmd := range []*cobra.Command{bankInitCmd, bankVerifyCmd, bankRunCmd} {
		cmd.Flags().VisitAll(func(fl *pflag.Flag) { fl.Changed = false })
	}
}

// loadProjectConfig loads .env and roachtx.yaml from dir. A missing
// roachtx.yaml is not an error.
func loadProjectConfig(dir string, logger roachtx.Logger) (*config.ProjectConfig, error) {
	envPath := filepath.Join(dir, ".env")
	if err := godotenv.Load(envPath); err == nil {
		logger.Verbose("Loaded environment from %s", envPath)
	}

	projectCfg, err := config.Load(dir)
	if err != nil {
		if errors.Is(err, config.ErrConfigNotFound) {
			logger.Verbose("No %s in %s, using flags and defaults", config.ConfigFileName, dir)
			return nil, nil
		}
		return nil, err
	}
	logger.Verbose("Loaded %s from %s", config.ConfigFileName, dir)
	return projectCfg, nil
}

// buildBankConfig layers changed flags over the bank block of roachtx.yaml
// and fills the rest with defaults.
func buildBankConfig(cmd *cobra.Command, f *bankFlags, r *runFlags, projectCfg *config.ProjectConfig) config.BankConfig {
	var bc config.BankConfig
	if projectCfg != nil {
		bc = projectCfg.Bank
	}

	changed := cmd.Flags().Changed
	if changed("driver") {
		bc.Driver = f.driver
	}
	if changed("accounts") {
		bc.Accounts = f.accounts
	}
	if changed("initial-balance") {
		bc.InitialBalance = f.initialBalance
	}

	if r != nil {
		if changed("concurrency") {
			bc.Concurrency = r.concurrency
		}
		if changed("transfers") {
			bc.Transfers = r.transfers
		}
		if changed("duration") {
			bc.Duration = config.Duration(r.duration)
		}
		if changed("max-transfer") {
			bc.MaxTransfer = r.maxTransfer
		}
		if changed("verify-interval") {
			bc.VerifyInterval = config.Duration(r.verifyInterval)
		}
	}

	return bc.WithDefaults()
}

func commandTimeout(cmd *cobra.Command, f *bankFlags, projectCfg *config.ProjectConfig) time.Duration {
	if cmd.Flags().Changed("timeout") || projectCfg == nil {
		return f.timeout
	}
	return time.Duration(projectCfg.Timeout)
}

// commandContext returns a context cancelled on SIGINT/SIGTERM and, when
// timeout is positive, after timeout.
func commandContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), timeout)
	} else {
		ctx, cancel = context.WithCancel(context.Background())
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sigChan:
			fmt.Fprintln(os.Stderr, "\n[INTERRUPT] Received interrupt signal, stopping...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigChan)
	}()

	return ctx, cancel
}

// bankSession is everything a bank subcommand needs after flag resolution.
type bankSession struct {
	logger  roachtx.Logger
	conn    *db.ConnectionConfig
	maintDB string
	bank    config.BankConfig
	timeout time.Duration
}

func prepareBank(cmd *cobra.Command, r *runFlags) (*bankSession, error) {
	logger := newLogger(cmd)

	projectCfg, err := loadProjectConfig(bankOpts.configDir, logger)
	if err != nil {
		return nil, err
	}

	bc := buildBankConfig(cmd, &bankOpts, r, projectCfg)
	if err := bc.Validate(); err != nil {
		return nil, err
	}

	connCfg, maintenanceDB, err := resolveConnection(bankOpts.conn, projectCfg)
	if err != nil {
		return nil, err
	}
	connCfg.AppName = "roachtx"
	// Workers plus the verifier.
	connCfg.MaxConns = int32(bc.Concurrency + 1)

	if bc.Driver == config.DriverPq && connCfg.AuthMethod == db.AuthMethodGoogleIAM {
		return nil, fmt.Errorf("%w: the pq driver does not support Google Cloud SQL IAM; use --driver pgx", roachtx.ErrInvalidConfig)
	}

	logger.Verbose("Connecting to %s:%d/%s as %s (%s, driver %s)",
		connCfg.Host, connCfg.Port, connCfg.Database, connCfg.Username, connCfg.AuthMethod, bc.Driver)

	return &bankSession{
		logger:  logger,
		conn:    connCfg,
		maintDB: maintenanceDB,
		bank:    bc,
		timeout: commandTimeout(cmd, &bankOpts, projectCfg),
	}, nil
}

// openStore connects with the configured driver. The returned func
// releases the connections.
func openStore(ctx context.Context, s *bankSession, exec *roachtx.Executor) (bank.Store, func(), error) {
	switch s.bank.Driver {
	case config.DriverPq:
		sqlDB, err := db.NewSQLOpener(s.conn, s.logger).Open(ctx)
		if err != nil {
			return nil, nil, err
		}
		return bank.NewSQLStore(sqlDB, exec), func() { sqlDB.Close() }, nil
	default:
		pool, release, err := db.OpenPool(ctx, s.conn, s.logger)
		if err != nil {
			return nil, nil, err
		}
		return bank.NewPgxStore(pool, exec), release, nil
	}
}

func runBankInit(cmd *cobra.Command, args []string) error {
	s, err := prepareBank(cmd, nil)
	if err != nil {
		return err
	}

	ctx, cancel := commandContext(s.timeout)
	defer cancel()

	if err := ensureDatabase(ctx, s.conn, s.maintDB, s.logger); err != nil {
		return err
	}

	exec := roachtx.NewExecutor(roachtx.WithLogger(s.logger))
	store, closeStore, err := openStore(ctx, s, exec)
	if err != nil {
		return err
	}
	defer closeStore()

	if err := confirmReset(ctx, store, s.conn.Database, selectApprover(bankOpts.force, tui.IsInteractive())); err != nil {
		return err
	}

	w := bank.NewWorkload(store, s.bank, bank.WithLogger(s.logger))
	totals, err := w.Init(ctx)
	fmt.Fprint(cmd.OutOrStdout(), renderTotals(totals, err))
	if err != nil {
		return fmt.Errorf("bank init failed: %w", err)
	}
	return nil
}

func runBankVerify(cmd *cobra.Command, args []string) error {
	s, err := prepareBank(cmd, nil)
	if err != nil {
		return err
	}

	ctx, cancel := commandContext(s.timeout)
	defer cancel()

	exec := roachtx.NewExecutor(roachtx.WithLogger(s.logger))
	store, closeStore, err := openStore(ctx, s, exec)
	if err != nil {
		return err
	}
	defer closeStore()

	totals, err := bank.NewWorkload(store, s.bank, bank.WithLogger(s.logger)).Verify(ctx)
	fmt.Fprint(cmd.OutOrStdout(), renderTotals(totals, err))
	if err != nil {
		return fmt.Errorf("bank verify failed: %w", err)
	}
	return nil
}

func renderTotals(t bank.Totals, err error) string {
	return tui.RenderTotals(t, err, tui.IsInteractive())
}

// selectApprover returns nil when nobody can be asked.
func selectApprover(force, interactive bool) ui.Approver {
	switch {
	case force:
		return ui.NewForcedApprover()
	case interactive:
		return ui.NewInteractiveApprover()
	default:
		return nil
	}
}

// confirmReset asks approver before Init wipes a bank that already has
// accounts. A nil approver denies.
func confirmReset(ctx context.Context, store bank.Store, dbName string, approver ui.Approver) error {
	seeded, err := store.Seeded(ctx)
	if err != nil {
		return err
	}
	if !seeded {
		return nil
	}
	if approver == nil {
		return fmt.Errorf("%w: database %q already holds a bank; use --force to reset it", roachtx.ErrApprovalDenied, dbName)
	}

	approved, err := approver.RequestApproval(ctx, dbName)
	if err != nil {
		return err
	}
	if !approved {
		return fmt.Errorf("%w: bank in %q left unchanged", roachtx.ErrApprovalDenied, dbName)
	}
	return nil
}
