package log

// Logger receives protocol log events. Pass nil or NoopLogger to disable
// capture.
type Logger interface {
	// Log records a protocol event. Implementations must be thread-safe and
	// must not block for long; the caller is on a delivery path.
	Log(event Event)
}

// NoopLogger discards all events. It is usable as a zero value.
type NoopLogger struct{}

// Log discards the event.
func (NoopLogger) Log(Event) {}

// LoggerFunc adapts a function to Logger.
type LoggerFunc func(Event)

// Log calls f(event).
func (f LoggerFunc) Log(event Event) { f(event) }

var (
	_ Logger = NoopLogger{}
	_ Logger = LoggerFunc(nil)
)
