//go:build windows

package runlock

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"retrospec/internal/errors"
)

// FileName is the lock file created inside the data directory.
const FileName = "run.lock"

// Lock is a PID-file lock. Windows has no flock, so a stale file left by a
// crashed process must be removed by hand.
type Lock struct {
	path string
	file *os.File
}

// Acquire creates the lock file exclusively.
func Acquire(dataDir string) (*Lock, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	path := filepath.Join(dataDir, FileName)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0o644)
	if err != nil {
		if os.IsExist(err) {
			pid := ""
			if content, readErr := os.ReadFile(path); readErr == nil {
				pid = strings.TrimSpace(string(content))
			}
			return nil, errors.Newf(errors.Locked, err, "baseline is locked by another retrospec process (PID %s)", pid)
		}
		return nil, fmt.Errorf("opening lock file: %w", err)
	}

	if _, err := file.WriteString(strconv.Itoa(os.Getpid())); err != nil {
		file.Close()
		os.Remove(path)
		return nil, fmt.Errorf("writing PID to lock file: %w", err)
	}
	return &Lock{path: path, file: file}, nil
}

// Path returns the lock file location.
func (l *Lock) Path() string { return l.path }

// Release removes the lock file. It is safe on a nil Lock.
func (l *Lock) Release() {
	if l == nil || l.file == nil {
		return
	}
	l.file.Close()
	os.Remove(l.path)
	l.file = nil
}
