package log

import (
	"encoding/json"
	"os"
	"sync"
)

// FileLogger appends events to a file as newline-delimited JSON,
// matching the protocol's own JSON-text framing rather than introducing
// a separate binary log encoding.
type FileLogger struct {
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
}

// NewFileLogger opens (creating if necessary, appending if it exists) a
// JSON-lines log file at path.
func NewFileLogger(path string) (*FileLogger, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return &FileLogger{file: f, enc: json.NewEncoder(f)}, nil
}

// Log appends event as one JSON line. Encoding errors are swallowed
// (matching the Logger contract: logging must never block or fail the
// caller's protocol operation) but recorded would-be-lost events are not
// retried — callers needing guaranteed delivery should wrap this in a
// MultiLogger alongside a Logger they control.
func (f *FileLogger) Log(event Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_ = f.enc.Encode(event)
}

// Close flushes and closes the underlying file.
func (f *FileLogger) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.file.Close()
}

var _ Logger = (*FileLogger)(nil)
