package executor

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

var logSeparator = strings.Repeat("=", 50)

// PipelineLog is the durable sink of the dual-sink delivery contract: one
// append-only file per pipeline run, recreated at session start and finalized
// exactly once with a completion trailer. A message counts as delivered once
// it is written here; the live channel only ever gets a best-effort copy.
type PipelineLog struct {
	mu     sync.Mutex
	path   string
	f      *os.File
	active bool
}

// NewPipelineLog creates a log bound to path. Nothing is written until Init.
func NewPipelineLog(path string) *PipelineLog {
	return &PipelineLog{path: path}
}

// Path returns the log file location.
func (l *PipelineLog) Path() string { return l.path }

// Active reports whether the log currently accepts appends.
func (l *PipelineLog) Active() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active
}

// Init truncates the log file, writes the run header and marks the log
// active. A previous run's file handle, if any, is released first.
func (l *PipelineLog) Init() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("create pipeline log: %w", err)
	}

	fmt.Fprintf(f, "=== Training Pipeline Log ===\n")
	fmt.Fprintf(f, "Started at: %s\n", time.Now().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(f, "%s\n\n", logSeparator)

	if l.f != nil {
		l.f.Close()
	}
	l.f = f
	l.active = true
	return nil
}

// Append writes one timestamped line and syncs it to disk immediately,
// trading throughput for durability. Heartbeat messages and appends after
// finalize are dropped.
func (l *PipelineLog) Append(message string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.active || strings.HasPrefix(message, "HEARTBEAT:") {
		return
	}
	fmt.Fprintf(l.f, "[%s] %s\n", time.Now().Format("15:04:05"), message)
	_ = l.f.Sync()
}

// Finalize writes the completion trailer and deactivates the log. It is safe
// to call from multiple failure paths; only the first call has any effect.
func (l *PipelineLog) Finalize(success bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.active {
		return
	}
	status := "FAILED"
	if success {
		status = "COMPLETED SUCCESSFULLY"
	}
	fmt.Fprintf(l.f, "\n%s\n", logSeparator)
	fmt.Fprintf(l.f, "Pipeline %s at: %s\n", status, time.Now().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(l.f, "%s\n", logSeparator)
	_ = l.f.Sync()
	l.f.Close()
	l.f = nil
	l.active = false
}
