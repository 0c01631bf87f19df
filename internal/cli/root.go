package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vvka-141/roachtx/internal/logging"
	"github.com/vvka-141/roachtx/pkg/roachtx"
)

var rootCmd = &cobra.Command{
	Use:   "roachtx",
	Short: "Client-side transaction retries for CockroachDB",
	Long: `roachtx runs work inside SERIALIZABLE transactions and retries it on
serialization failures (SQLSTATE 40001) using the CockroachDB savepoint
protocol: SAVEPOINT cockroach_restart, RELEASE, ROLLBACK TO SAVEPOINT.

The bank commands exercise the protocol with a concurrent money-transfer
workload whose total balance must never change.

Exit Codes:
  0  - Success
  1  - General error
  2  - CLI usage error (invalid arguments or flags)
  3  - Panic or unexpected system error
  10 - Invalid configuration or parameters
  11 - Database connection failed
  12 - Commit outcome unknown (ambiguous commit)
  13 - ROLLBACK TO SAVEPOINT failed during a retry
  14 - Bank invariant violated
  15 - Reset of an existing bank not approved`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	if len(os.Args) > 1 && os.Args[1] == "--version" {
		printVersionInfo(os.Stdout)
		return nil
	}
	return rootCmd.Execute()
}

func init() {
	// Declared without a shorthand so -h stays free for --host.
	rootCmd.PersistentFlags().Bool("help", false, "Help for roachtx")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output for all commands")
}

// getVerboseFlag safely retrieves the verbose flag value
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Failed to get verbose flag: %v\n", err)
		return false
	}
	return verbose
}

func newLogger(cmd *cobra.Command) roachtx.Logger {
	return logging.NewConsoleLogger(getVerboseFlag(cmd))
}
