// Package telemetry provides tracing and a run journal for pipeline runs.
package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"
)

// Journal records finished pipeline runs.
type Journal interface {
	// LogEvent records a named event.
	LogEvent(name string, data map[string]interface{})
	// LogRun records the outcome of a run.
	LogRun(run RunRecord)
	// Flush sends any buffered data.
	Flush() error
	// Close closes the journal.
	Close() error
}

// RunRecord summarises one critique/refine run.
type RunRecord struct {
	RunID      string        `json:"run_id"`
	Question   string        `json:"question"`
	Status     string        `json:"status"`
	Phase      string        `json:"phase"`
	Score      *float64      `json:"score,omitempty"`
	Iterations int           `json:"iterations"`
	Steps      int           `json:"steps"`
	Duration   time.Duration `json:"duration"`
	Note       string        `json:"note,omitempty"`
	Timestamp  time.Time     `json:"timestamp"`
}

// Event represents a journal event.
type Event struct {
	Name      string                 `json:"name"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// NewJournal creates a journal for protocol: "http", "file" or "noop".
func NewJournal(protocol, endpoint string) (Journal, error) {
	switch protocol {
	case "http":
		return NewHTTPJournal(endpoint), nil
	case "file":
		return NewFileJournal(endpoint)
	case "noop", "":
		return NewNoopJournal(), nil
	default:
		return nil, fmt.Errorf("unknown journal protocol: %s", protocol)
	}
}

// --- HTTP Journal ---

// HTTPJournal batches records and POSTs them as a JSON array.
type HTTPJournal struct {
	endpoint string
	client   *http.Client
	buffer   []interface{}
	mu       sync.Mutex
}

// NewHTTPJournal creates a new HTTP journal.
func NewHTTPJournal(endpoint string) *HTTPJournal {
	return &HTTPJournal{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
		buffer:   make([]interface{}, 0, 100),
	}
}

func (j *HTTPJournal) LogEvent(name string, data map[string]interface{}) {
	j.add(Event{Name: name, Timestamp: time.Now(), Data: data})
}

func (j *HTTPJournal) LogRun(run RunRecord) {
	if run.Timestamp.IsZero() {
		run.Timestamp = time.Now()
	}
	j.add(run)
}

func (j *HTTPJournal) add(v interface{}) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.buffer = append(j.buffer, v)
	if len(j.buffer) >= 100 {
		j.flush()
	}
}

func (j *HTTPJournal) Flush() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.flush()
}

func (j *HTTPJournal) flush() error {
	if len(j.buffer) == 0 {
		return nil
	}

	data, err := json.Marshal(j.buffer)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, j.endpoint, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := j.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("journal endpoint returned %d", resp.StatusCode)
	}

	j.buffer = j.buffer[:0]
	return nil
}

func (j *HTTPJournal) Close() error {
	return j.Flush()
}

// --- File Journal ---

// FileJournal appends one JSON object per line.
type FileJournal struct {
	file *os.File
	mu   sync.Mutex
}

// NewFileJournal opens path for appending.
func NewFileJournal(path string) (*FileJournal, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal file: %w", err)
	}
	return &FileJournal{file: file}, nil
}

func (j *FileJournal) LogEvent(name string, data map[string]interface{}) {
	j.write(Event{Name: name, Timestamp: time.Now(), Data: data})
}

func (j *FileJournal) LogRun(run RunRecord) {
	if run.Timestamp.IsZero() {
		run.Timestamp = time.Now()
	}
	j.write(run)
}

func (j *FileJournal) write(v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	j.file.Write(append(data, '\n'))
}

func (j *FileJournal) Flush() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.file.Sync()
}

func (j *FileJournal) Close() error {
	j.Flush()
	return j.file.Close()
}

// --- Noop Journal ---

// NoopJournal discards everything.
type NoopJournal struct{}

// NewNoopJournal creates a new noop journal.
func NewNoopJournal() *NoopJournal {
	return &NoopJournal{}
}

func (NoopJournal) LogEvent(name string, data map[string]interface{}) {}
func (NoopJournal) LogRun(run RunRecord)                              {}
func (NoopJournal) Flush() error                                      { return nil }
func (NoopJournal) Close() error                                      { return nil }
