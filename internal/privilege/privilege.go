// Package privilege reports whether the session can perform account and
// package mutations.
package privilege

// Notice is printed when the session is not elevated.
const Notice = "not running with administrative privileges; account and package changes will likely fail with permission denied"

// IsElevated reports whether the process runs as root (POSIX) or with an
// elevated token (Windows).
func IsElevated() bool {
	return isElevated()
}
