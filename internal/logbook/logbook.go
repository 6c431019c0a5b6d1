// Package logbook keeps the war room decision log: one line per operator
// directive, phase change and synthesis outcome. The TUI log panel tails it
// and, when a path is given, it is also appended to disk so the record
// survives the session.
package logbook

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Level represents the severity of a log entry.
type Level string

const (
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

const defaultCapacity = 500

// Logbook holds recent entries in memory and optionally mirrors them to a file.
type Logbook struct {
	path     string
	now      func() time.Time
	mu       sync.Mutex
	lines    []string
	total    int
	capacity int
}

// New creates a logbook. An empty path keeps entries in memory only.
func New(path string) (*Logbook, error) {
	path = strings.TrimSpace(path)
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("logbook: ensure dir: %w", err)
		}
	}
	return &Logbook{path: path, now: time.Now, capacity: defaultCapacity}, nil
}

// Memory returns a logbook that never touches disk.
func Memory() *Logbook {
	l, _ := New("")
	return l
}

// Path returns the file backing this logbook, or "".
func (l *Logbook) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// Append writes a single entry to the logbook.
func (l *Logbook) Append(level Level, message string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	line := fmt.Sprintf("%s %-5s %s",
		l.now().Format("15:04:05"),
		string(level),
		strings.TrimSpace(message),
	)
	l.lines = append(l.lines, line)
	if len(l.lines) > l.capacity {
		l.lines = l.lines[len(l.lines)-l.capacity:]
	}
	l.total++
	if l.path == "" {
		return
	}
	file, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return
	}
	defer file.Close()
	_, _ = file.WriteString(l.now().UTC().Format(time.RFC3339) + " " + line[9:] + "\n")
}

// Tail returns up to maxLines of the most recent entries and the number of
// entries appended so far.
func (l *Logbook) Tail(maxLines int) ([]string, int) {
	if l == nil || maxLines <= 0 {
		return nil, 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.lines) == 0 {
		return nil, l.total
	}
	start := 0
	if len(l.lines) > maxLines {
		start = len(l.lines) - maxLines
	}
	out := make([]string, len(l.lines)-start)
	copy(out, l.lines[start:])
	return out, l.total
}

// Info appends an informational entry.
func (l *Logbook) Info(format string, args ...any) {
	l.Append(LevelInfo, fmt.Sprintf(format, args...))
}

// Warn appends a warning entry.
func (l *Logbook) Warn(format string, args ...any) {
	l.Append(LevelWarn, fmt.Sprintf(format, args...))
}

// Error appends an error entry.
func (l *Logbook) Error(format string, args ...any) {
	l.Append(LevelError, fmt.Sprintf(format, args...))
}
