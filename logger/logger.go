package logger

// Logger is the minimal structured logging interface the engine and the
// authentication middleware depend on. Implementations accept alternating
// key/value pairs, which keeps the interface easy to mock in tests.
type Logger interface {
	Debug(msg string, keyvals ...any)
	Info(msg string, keyvals ...any)
	Error(msg string, keyvals ...any)
}

// TraceIDFunc generates a correlation id per decision/log line. It must be
// cheap and safe for concurrent calls.
type TraceIDFunc func() string
