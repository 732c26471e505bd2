package platform

import (
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"strings"
)

var (
	// ErrToolUnavailable means the command or API needed for an operation
	// does not exist on this host.
	ErrToolUnavailable = errors.New("tool unavailable")

	// ErrPermissionDenied means the operation needs more privilege than the
	// session has.
	ErrPermissionDenied = errors.New("permission denied")
)

// Exit codes with a fixed meaning: shells report 127 for a missing command
// and 126 for a non-executable one; Windows system error 5 is access denied.
const (
	exitNotFound      = 127
	exitNotExecutable = 126
)

var permissionMarkers = []string{
	"permission denied",
	"access is denied",
	"operation not permitted",
	"must be root",
	"must be superuser",
	"only root can",
	"are not allowed",
	"requires elevation",
	"system error 5 has occurred",
}

var notFoundMarkers = []string{
	"command not found",
	"is not recognized as an internal or external command",
}

// Classify turns a failed command into an error wrapping ErrToolUnavailable
// or ErrPermissionDenied when the failure matches either, and otherwise into
// a plain wrapped error carrying the tool output.
func Classify(tool string, err error, exitCode int, output string) error {
	if err == nil {
		return nil
	}
	detail := strings.TrimSpace(output)
	lower := strings.ToLower(detail)

	switch {
	case errors.Is(err, exec.ErrNotFound), errors.Is(err, fs.ErrNotExist), exitCode == exitNotFound:
		return fmt.Errorf("%s: %w: %v", tool, ErrToolUnavailable, err)
	case errors.Is(err, fs.ErrPermission), exitCode == exitNotExecutable, containsAny(lower, permissionMarkers):
		return fmt.Errorf("%s: %w: %s", tool, ErrPermissionDenied, firstLine(detail, err))
	case containsAny(lower, notFoundMarkers):
		return fmt.Errorf("%s: %w: %s", tool, ErrToolUnavailable, firstLine(detail, err))
	}

	if detail == "" {
		return fmt.Errorf("%s failed: %w", tool, err)
	}
	return fmt.Errorf("%s failed: %w: %s", tool, err, detail)
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

func firstLine(detail string, err error) string {
	if detail == "" {
		return err.Error()
	}
	if idx := strings.IndexByte(detail, '\n'); idx > 0 {
		return strings.TrimSpace(detail[:idx])
	}
	return detail
}
