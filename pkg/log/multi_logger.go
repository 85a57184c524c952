package log

import "sync"

// MultiLogger fans events out to several loggers. Loggers can be added while
// events are flowing, which the monitor uses to attach its hub late.
type MultiLogger struct {
	mu      sync.RWMutex
	loggers []Logger
}

// NewMultiLogger creates a MultiLogger. Nil loggers are skipped.
func NewMultiLogger(loggers ...Logger) *MultiLogger {
	m := &MultiLogger{}
	for _, l := range loggers {
		m.Add(l)
	}
	return m
}

// Add appends a logger. Nil is ignored.
func (m *MultiLogger) Add(l Logger) {
	if l == nil {
		return
	}
	m.mu.Lock()
	m.loggers = append(m.loggers, l)
	m.mu.Unlock()
}

// Len returns the number of attached loggers.
func (m *MultiLogger) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.loggers)
}

// Log sends the event to all attached loggers.
func (m *MultiLogger) Log(event Event) {
	m.mu.RLock()
	loggers := m.loggers
	m.mu.RUnlock()
	for _, l := range loggers {
		l.Log(event)
	}
}

var _ Logger = (*MultiLogger)(nil)
