// Package platform describes the host the remediation session runs on and
// how commands are executed against it.
package platform

import (
	"os"
	"path/filepath"
	"runtime"
)

// Profile selects which backend implements host operations. It is chosen
// once at startup and passed explicitly to every component that needs it.
type Profile int

const (
	Posix Profile = iota
	Windows
)

func (p Profile) String() string {
	switch p {
	case Windows:
		return "windows"
	default:
		return "posix"
	}
}

// Detect returns the profile for the running host.
func Detect() Profile {
	return profileFor(runtime.GOOS)
}

func profileFor(goos string) Profile {
	if goos == "windows" {
		return Windows
	}
	return Posix
}

// Family is the POSIX distribution family, which decides the package tooling.
type Family int

const (
	FamilyUnknown Family = iota
	FamilyDebian
	FamilyRedHat
)

func (f Family) String() string {
	switch f {
	case FamilyDebian:
		return "debian"
	case FamilyRedHat:
		return "redhat"
	default:
		return "unknown"
	}
}

// DetectFamily probes for release marker files below root ("/" on a live
// host). Debian wins when both are present. It is deliberately not cached:
// callers probe at the moment they need package tooling.
func DetectFamily(root string) Family {
	if root == "" {
		root = "/"
	}
	if fileExists(filepath.Join(root, "etc", "debian_version")) {
		return FamilyDebian
	}
	if fileExists(filepath.Join(root, "etc", "redhat-release")) {
		return FamilyRedHat
	}
	return FamilyUnknown
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
