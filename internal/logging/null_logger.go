package logging

// NullLogger discards all log messages.
// Used by tests and by library callers that pass no logger.
type NullLogger struct{}

// NewNullLogger creates a new NullLogger.
func NewNullLogger() *NullLogger {
	return &NullLogger{}
}

func (l *NullLogger) Verbose(string, ...interface{}) {}

func (l *NullLogger) Info(string, ...interface{}) {}

func (l *NullLogger) Error(string, ...interface{}) {}
