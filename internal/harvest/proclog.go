package harvest

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Status classifies one processing-log line.
type Status string

// Processing log statuses.
const (
	StatusStart   Status = "START"
	StatusSuccess Status = "SUCCESS"
	StatusError   Status = "ERROR"
	StatusSkipped Status = "SKIPPED"
)

const logTimestampLayout = "2006-01-02 15:04:05"

// ProcessingLog is the append-only audit trail of enrichment attempts. One
// line per attempt: `timestamp | id | name | status | message?`. Lines are
// flushed as they are written and never rewritten.
type ProcessingLog struct {
	mu   sync.Mutex
	file *os.File
	now  func() time.Time
}

// OpenProcessingLog opens (or creates) the log at path in append mode.
func OpenProcessingLog(path string) (*ProcessingLog, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create log dir %s: %w", dir, err)
		}
	}
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open processing log %s: %w", path, err)
	}
	return &ProcessingLog{file: file, now: time.Now}, nil
}

// Write appends one attempt line. Entries are immutable once written.
func (l *ProcessingLog) Write(id, name string, status Status, message string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	line := fmt.Sprintf("%s | %s | %s | %s", l.now().Format(logTimestampLayout), id, name, status)
	if message != "" {
		line += " | " + message
	}
	if _, err := l.file.WriteString(line + "\n"); err != nil {
		return fmt.Errorf("append processing log: %w", err)
	}
	return nil
}

// Session marks the start of an enrichment run.
func (l *ProcessingLog) Session(runID string, total int) error {
	return l.Write("SESSION", runID, StatusStart, fmt.Sprintf("total entries: %d", total))
}

// Close releases the underlying file.
func (l *ProcessingLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}
