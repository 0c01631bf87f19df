package logging

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// ConsoleLogger writes log lines to an io.Writer, stderr by default.
// Safe for concurrent use by multiple goroutines; loggers derived with
// WithPrefix share the parent's writer lock.
type ConsoleLogger struct {
	out     io.Writer
	verbose bool
	prefix  string
	mu      *sync.Mutex
}

// NewConsoleLogger creates a ConsoleLogger writing to stderr.
// If verbose is false, Verbose() calls are no-ops.
func NewConsoleLogger(verbose bool) *ConsoleLogger {
	return NewWriterLogger(os.Stderr, verbose)
}

// NewWriterLogger creates a ConsoleLogger writing to out.
func NewWriterLogger(out io.Writer, verbose bool) *ConsoleLogger {
	return &ConsoleLogger{
		out:     out,
		verbose: verbose,
		mu:      &sync.Mutex{},
	}
}

// WithPrefix returns a logger that tags every line with prefix, e.g.
// "[worker 3] ". The receiver is not modified.
func (l *ConsoleLogger) WithPrefix(prefix string) *ConsoleLogger {
	clone := *l
	clone.prefix = l.prefix + prefix
	return &clone
}

// Verbose logs detailed diagnostic information if verbose mode is enabled.
func (l *ConsoleLogger) Verbose(format string, args ...interface{}) {
	if !l.verbose {
		return
	}
	l.write("[VERBOSE] ", format, args)
}

// Info logs informational messages about normal operations.
func (l *ConsoleLogger) Info(format string, args ...interface{}) {
	l.write("", format, args)
}

// Error logs error messages.
func (l *ConsoleLogger) Error(format string, args ...interface{}) {
	l.write("[ERROR] ", format, args)
}

func (l *ConsoleLogger) write(level, format string, args []interface{}) {
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprint(l.out, level+l.prefix+msg+"\n")
}
