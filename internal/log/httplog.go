package log

import (
	"fmt"
	"sync"
	"time"
)

// HTTPLogEntry is one request served by the run API.
type HTTPLogEntry struct {
	Timestamp  time.Time `json:"timestamp" msgpack:"timestamp"`
	Method     string    `json:"method" msgpack:"method"`
	Path       string    `json:"path" msgpack:"path"`
	Status     int       `json:"status" msgpack:"status"`
	DurationMS int64     `json:"duration_ms" msgpack:"duration_ms"`
	Size       int       `json:"size" msgpack:"size"`
	RemoteAddr string    `json:"remote_addr" msgpack:"remote_addr"`
	Error      string    `json:"error,omitempty" msgpack:"error,omitempty"`
}

// HTTPLogBuffer keeps the most recent request entries in a fixed-size ring.
type HTTPLogBuffer struct {
	mu      sync.Mutex
	entries []HTTPLogEntry
	next    int
	full    bool
}

// NewHTTPLogBuffer creates a buffer holding up to size entries.
func NewHTTPLogBuffer(size int) *HTTPLogBuffer {
	if size < 1 {
		size = 1
	}
	return &HTTPLogBuffer{entries: make([]HTTPLogEntry, size)}
}

// Add appends an entry, evicting the oldest when the buffer is full.
func (b *HTTPLogBuffer) Add(e HTTPLogEntry) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries[b.next] = e
	b.next = (b.next + 1) % len(b.entries)
	if b.next == 0 {
		b.full = true
	}
}

// Entries returns the buffered entries, oldest first.
func (b *HTTPLogBuffer) Entries() []HTTPLogEntry {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.full {
		return append([]HTTPLogEntry(nil), b.entries[:b.next]...)
	}
	out := make([]HTTPLogEntry, 0, len(b.entries))
	out = append(out, b.entries[b.next:]...)
	return append(out, b.entries[:b.next]...)
}

var httpLogBuffer *HTTPLogBuffer
var httpLogBufferOnce sync.Once

// GetHTTPLogBuffer returns the shared HTTP log buffer, creating it if necessary
func GetHTTPLogBuffer() *HTTPLogBuffer {
	httpLogBufferOnce.Do(func() {
		httpLogBuffer = NewHTTPLogBuffer(1000)
	})
	return httpLogBuffer
}

// LogHTTPRequest records a request in the shared buffer and the debug log.
func LogHTTPRequest(method, path string, status int, duration time.Duration, size int, remoteAddr string, err error) {
	entry := HTTPLogEntry{
		Timestamp:  time.Now(),
		Method:     method,
		Path:       path,
		Status:     status,
		DurationMS: duration.Milliseconds(),
		Size:       size,
		RemoteAddr: remoteAddr,
	}
	if err != nil {
		entry.Error = err.Error()
	}

	GetHTTPLogBuffer().Add(entry)
	Debugw(fmt.Sprintf("%s %s %d", method, path, status),
		"duration_ms", entry.DurationMS,
		"size", size,
		"remote_addr", remoteAddr,
	)
}
