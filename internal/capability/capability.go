// Package capability exposes the account and software operations the
// remediation workflow needs behind one interface, with a POSIX and a
// Windows backend selected once at startup.
package capability

import (
	"context"
	"errors"

	"github.com/breeze-rmm/remediate/internal/patching"
	"github.com/breeze-rmm/remediate/internal/platform"
	"github.com/breeze-rmm/remediate/internal/secmem"
)

// ErrCredentialRejected means the backend refused a new secret, usually
// because of a length or complexity policy.
var ErrCredentialRejected = errors.New("credential rejected")

// Account is a local account as listed by the host's account store.
type Account struct {
	Name    string
	UID     string
	HomeDir string
	Shell   string
}

// Status is the live state of an account. Groups is nil when membership
// could not be read.
type Status struct {
	Locked         bool
	Groups         []string
	IdentityDetail string
}

// PackageEntry is one installed software item. ID is provider-prefixed
// ("apt:openssl", "winget:Google.Chrome"); Name is the display name.
type PackageEntry = patching.Package

// Provider is the uniform capability surface over the host OS.
//
// ChangeGroup is deliberately NOT uniform across backends:
//
//   - POSIX replaces the account's supplementary groups with the new group
//     (usermod -G), so prior supplementary memberships are dropped.
//   - Windows adds the account to the new group (net localgroup /add) and
//     keeps every prior membership.
//
// Callers must not assume either behaviour without checking Profile().
//
// Operations that shell out fail with errors wrapping
// platform.ErrToolUnavailable or platform.ErrPermissionDenied when those
// conditions are detected. SetCredential fails with ErrCredentialRejected
// when the backend enforces a policy on the secret.
type Provider interface {
	Profile() platform.Profile

	// ListAccounts returns accounts in the account store's native order.
	ListAccounts(ctx context.Context) ([]Account, error)
	// AccountStatus may return a partially filled Status together with an
	// error when only some of the queries failed.
	AccountStatus(ctx context.Context, acct Account) (Status, error)
	SetCredential(ctx context.Context, acct Account, secret *secmem.SecureString) error
	ForceCredentialExpiry(ctx context.Context, acct Account) error
	ApplyAccountAction(ctx context.Context, acct Account, action Action) error

	// ApplyBaselinePolicy applies the host's automatic hardening policy, if
	// any, and describes what it did.
	ApplyBaselinePolicy(ctx context.Context) (string, error)

	ListInstalledSoftware(ctx context.Context) ([]PackageEntry, error)
	UpgradeSoftware(ctx context.Context, pkg PackageEntry) (patching.InstallResult, error)
	UpdateSystem(ctx context.Context) ([]patching.UpdateResult, error)
}

// Options tune backend construction. Zero values select the defaults.
type Options struct {
	// AdminGroup is the POSIX administrative group (default "sudo").
	AdminGroup string
	// PasswdPath is the POSIX account database (default /etc/passwd).
	PasswdPath string
	// Root prefixes release-marker probes; empty means "/".
	Root string
}

// New returns the backend for profile. Every OS command goes through runner.
func New(profile platform.Profile, runner platform.Runner, opts Options) Provider {
	if profile == platform.Windows {
		return newWindows(runner)
	}
	return newPosix(runner, opts)
}
