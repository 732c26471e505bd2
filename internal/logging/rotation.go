package logging

import (
	"fmt"
	"os"
	"path/filepath"
)

// OpenLogFile opens path for appending diagnostic logs. The tool runs one
// short session at a time, so rotation happens once at open: when the
// existing file already exceeds maxSizeMB it is shifted to path.1 (older
// backups move up, the oldest beyond maxBackups is removed).
func OpenLogFile(path string, maxSizeMB, maxBackups int) (*os.File, error) {
	if maxSizeMB <= 0 {
		maxSizeMB = 10
	}
	if maxBackups <= 0 {
		maxBackups = 3
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	if info, err := os.Stat(path); err == nil && info.Size() > int64(maxSizeMB)*1024*1024 {
		shiftBackups(path, maxBackups)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}

func shiftBackups(path string, maxBackups int) {
	os.Remove(backupName(path, maxBackups))
	for i := maxBackups - 1; i >= 1; i-- {
		os.Rename(backupName(path, i), backupName(path, i+1))
	}
	os.Rename(path, backupName(path, 1))
}

func backupName(path string, index int) string {
	return fmt.Sprintf("%s.%d", path, index)
}
