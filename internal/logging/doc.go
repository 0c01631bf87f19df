// Package logging provides implementations of the roachtx.Logger interface.
//
// Available implementations:
//   - ConsoleLogger: writes leveled lines to stderr or any io.Writer
//   - NullLogger: discards all messages
//
// Verbose output carries the executor's per-attempt diagnostics (retry
// notices, transaction status after a failure) and is off unless the CLI
// runs with --verbose.
package logging
