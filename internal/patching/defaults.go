package patching

import "github.com/breeze-rmm/remediate/internal/platform"

// NewManagerFor returns the providers that fit the host. An unrecognized
// POSIX family gets an empty Manager, whose operations report
// platform.ErrToolUnavailable.
func NewManagerFor(profile platform.Profile, family platform.Family, runner platform.Runner) *Manager {
	if profile == platform.Windows {
		return NewManager(
			NewWindowsUpdateProvider(),
			NewWingetProvider(runner),
		)
	}

	switch family {
	case platform.FamilyDebian:
		return NewManager(NewAptProvider(runner))
	case platform.FamilyRedHat:
		return NewManager(NewYumProvider(runner))
	default:
		return NewManager()
	}
}
