// Package runlog writes the append-only per-epoch log of a training run.
package runlog

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FileName is the log file inside a run's log area.
const FileName = "train.log"

const filePerm = 0o644

// Logger appends one human-readable line per call to the run's log file.
// The file is opened lazily on the first write and lives for the logger's
// lifetime; there is no rotation and no leveled filtering.
type Logger struct {
	dir string

	mu sync.Mutex
	f  *os.File
}

// New returns a logger bound to the run's log directory. No file is
// created until the first Info call.
func New(dir string) *Logger {
	return &Logger{dir: dir}
}

// Path returns the log file's location.
func (l *Logger) Path() string {
	return filepath.Join(l.dir, FileName)
}

// Info appends one line. A write failure is an environment failure and is
// returned to the caller.
func (l *Logger) Info(msg string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.f == nil {
		f, err := os.OpenFile(l.Path(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, filePerm)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		l.f = f
	}

	line := time.Now().Format("2006-01-02 15:04:05") + " [INFO] " + msg + "\n"
	if _, err := l.f.WriteString(line); err != nil {
		return fmt.Errorf("append log line: %w", err)
	}
	return nil
}

// Infof appends one formatted line.
func (l *Logger) Infof(format string, args ...any) error {
	return l.Info(fmt.Sprintf(format, args...))
}

// Close closes the log file if it was ever opened.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.f == nil {
		return nil
	}
	err := l.f.Close()
	l.f = nil
	return err
}
