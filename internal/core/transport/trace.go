package transport

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// TraceEntry is one request/response pair written to the trace file.
type TraceEntry struct {
	Timestamp   time.Time       `json:"timestamp"`
	Endpoint    string          `json:"endpoint"`
	Method      string          `json:"method"`
	DocID       string          `json:"doc_id,omitempty"`
	RequestBody json.RawMessage `json:"request_body,omitempty"`
	StatusCode  int             `json:"status_code,omitempty"`
	Response    json.RawMessage `json:"response,omitempty"`
	Error       string          `json:"error,omitempty"`
	DurationMs  int64           `json:"duration_ms"`
}

type tracer struct {
	mu   sync.Mutex
	file *os.File
}

var (
	activeTracer *tracer
	tracerMu     sync.Mutex
)

// EnableTracing appends NDJSON trace entries to path until the returned
// cleanup is called.
func EnableTracing(path string) (func(), error) {
	tracerMu.Lock()
	defer tracerMu.Unlock()

	if activeTracer != nil {
		_ = activeTracer.close()
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600) // #nosec G304 -- trace path supplied by operator
	if err != nil {
		return nil, fmt.Errorf("open trace file: %w", err)
	}
	current := &tracer{file: f}
	activeTracer = current

	return func() {
		tracerMu.Lock()
		defer tracerMu.Unlock()
		if activeTracer == current {
			_ = activeTracer.close()
			activeTracer = nil
		}
	}, nil
}

// TracingEnabled reports whether a trace file is open.
func TracingEnabled() bool {
	tracerMu.Lock()
	defer tracerMu.Unlock()
	return activeTracer != nil
}

// Trace records entry when tracing is enabled.
func Trace(entry TraceEntry) {
	tracerMu.Lock()
	t := activeTracer
	tracerMu.Unlock()
	if t == nil {
		return
	}
	t.write(entry)
}

func (t *tracer) write(entry TraceEntry) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.file == nil {
		return
	}
	_, _ = t.file.Write(append(data, '\n'))
}

func (t *tracer) close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.file == nil {
		return nil
	}
	err := t.file.Close()
	t.file = nil
	return err
}

// rawJSON keeps valid JSON bodies as-is and quotes anything else.
func rawJSON(data []byte) json.RawMessage {
	if len(data) == 0 {
		return nil
	}
	if json.Valid(data) {
		return json.RawMessage(data)
	}
	quoted, err := json.Marshal(string(data))
	if err != nil {
		return nil
	}
	return quoted
}
