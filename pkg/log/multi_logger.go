package log

// MultiLogger fans a single Event out to every configured Logger.
type MultiLogger struct {
	loggers []Logger
}

// NewMultiLogger creates a MultiLogger that dispatches to every non-nil
// logger given.
func NewMultiLogger(loggers ...Logger) *MultiLogger {
	filtered := make([]Logger, 0, len(loggers))
	for _, l := range loggers {
		if l != nil {
			filtered = append(filtered, l)
		}
	}
	return &MultiLogger{loggers: filtered}
}

// Log dispatches event to every wrapped logger in order.
func (m *MultiLogger) Log(event Event) {
	for _, l := range m.loggers {
		l.Log(event)
	}
}

var _ Logger = (*MultiLogger)(nil)
