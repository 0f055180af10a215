// Package logging provides structured debug logging for Recall components.
//
// Each process run gets a session id; all components append to one
// session-specific log file under the configured directory (default
// ~/.recall/logs). When the directory cannot be created the logger falls
// back to stderr so components never lose diagnostics.
package logging

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	sessionID     string
	sessionIDOnce sync.Once

	mu      sync.Mutex
	logDir  string
	sink    *log.Logger
	sinkErr error
)

// SessionID returns the id shared by every logger in this process.
func SessionID() string {
	sessionIDOnce.Do(func() {
		sessionID = uuid.New().String()
	})
	return sessionID
}

// SetDirectory overrides the log directory. Must be called before the first
// logger is created to take effect.
func SetDirectory(dir string) {
	mu.Lock()
	defer mu.Unlock()
	logDir = dir
}

// sharedSink lazily opens the session log file, falling back to stderr.
func sharedSink() (*log.Logger, error) {
	mu.Lock()
	defer mu.Unlock()

	if sink != nil {
		return sink, sinkErr
	}

	dir := logDir
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			sink = log.New(os.Stderr, "", 0)
			sinkErr = fmt.Errorf("logging: resolve home directory: %w", err)
			return sink, sinkErr
		}
		dir = filepath.Join(home, ".recall", "logs")
	}

	if err := os.MkdirAll(dir, 0o750); err != nil {
		sink = log.New(os.Stderr, "", 0)
		sinkErr = fmt.Errorf("logging: create log directory: %w", err)
		return sink, sinkErr
	}

	path := filepath.Join(dir, SessionID()+".log")
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		sink = log.New(os.Stderr, "", 0)
		sinkErr = fmt.Errorf("logging: open log file: %w", err)
		return sink, sinkErr
	}

	sink = log.New(file, "", 0) // timestamps are formatted per entry
	return sink, nil
}

// Logger writes level-tagged entries for one component.
type Logger struct {
	component string
	out       *log.Logger
}

// NewLogger creates a logger for the named component. The returned logger is
// always usable; the error only reports that file logging degraded to stderr.
func NewLogger(component string) (*Logger, error) {
	out, err := sharedSink()
	return &Logger{component: component, out: out}, err
}

func (l *Logger) write(level, format string, v ...interface{}) {
	ts := time.Now().Format("2006-01-02 15:04:05.000")
	l.out.Printf("[%s] [%s] [%s] %s", ts, l.component, level, fmt.Sprintf(format, v...))
}

// Debugf logs a debug-level message.
func (l *Logger) Debugf(format string, v ...interface{}) { l.write("DEBUG", format, v...) }

// Infof logs an info-level message.
func (l *Logger) Infof(format string, v ...interface{}) { l.write("INFO", format, v...) }

// Warnf logs a warning-level message.
func (l *Logger) Warnf(format string, v ...interface{}) { l.write("WARN", format, v...) }

// Errorf logs an error-level message.
func (l *Logger) Errorf(format string, v ...interface{}) { l.write("ERROR", format, v...) }
