package roachtx

// Logger receives the executor's diagnostics: every restart at Verbose,
// ambiguous commits and failed rollbacks at Error. It is shared by all
// goroutines running transactions through one Executor.
type Logger interface {
	Verbose(format string, args ...interface{})
	Info(format string, args ...interface{})
	Error(format string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Verbose(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})    {}
func (nopLogger) Error(string, ...interface{})   {}
