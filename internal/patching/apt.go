package patching

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/breeze-rmm/remediate/internal/platform"
)

var validDebPackage = regexp.MustCompile(`^[a-z0-9][a-z0-9+.\-]*(:[a-z0-9]+)?$`)

const aptRebootMarker = "/var/run/reboot-required"

var aptEnv = []string{"DEBIAN_FRONTEND=noninteractive"}

// AptProvider integrates with APT on Debian/Ubuntu systems.
type AptProvider struct {
	runner       platform.Runner
	rebootMarker string
}

// NewAptProvider creates a new AptProvider.
func NewAptProvider(runner platform.Runner) *AptProvider {
	return &AptProvider{runner: runner, rebootMarker: aptRebootMarker}
}

// ID returns the provider identifier.
func (a *AptProvider) ID() string {
	return "apt"
}

// Name returns the human-readable provider name.
func (a *AptProvider) Name() string {
	return "APT"
}

// UpdateAll refreshes the package index and upgrades every package.
func (a *AptProvider) UpdateAll(ctx context.Context) (UpdateResult, error) {
	if _, err := a.runner.Run(ctx, platform.Command{Name: "apt-get", Args: []string{"update"}, Env: aptEnv}); err != nil {
		return UpdateResult{}, err
	}

	res, err := a.runner.Run(ctx, platform.Command{Name: "apt-get", Args: []string{"-y", "upgrade"}, Env: aptEnv})
	if err != nil {
		return UpdateResult{}, err
	}

	return UpdateResult{
		Provider:       a.ID(),
		RebootRequired: a.rebootPending(),
		Message:        lastLine(res.Stdout),
	}, nil
}

// GetInstalled returns installed packages using dpkg-query.
func (a *AptProvider) GetInstalled(ctx context.Context) ([]Package, error) {
	res, err := a.runner.Run(ctx, platform.Command{
		Name: "dpkg-query",
		Args: []string{"-W", "-f=${db:Status-Abbrev}\t${binary:Package}\t${Version}\n"},
	})
	if err != nil {
		return nil, err
	}
	return parseDpkgQuery(res.Stdout), nil
}

// Upgrade upgrades an already installed package without pulling in new ones.
func (a *AptProvider) Upgrade(ctx context.Context, packageID string) (InstallResult, error) {
	if !validDebPackage.MatchString(packageID) {
		return InstallResult{}, fmt.Errorf("invalid package name: %q", packageID)
	}

	res, err := a.runner.Run(ctx, platform.Command{
		Name: "apt-get",
		Args: []string{"-y", "install", "--only-upgrade", packageID},
		Env:  aptEnv,
	})
	if err != nil {
		return InstallResult{}, err
	}

	return InstallResult{
		PackageID:      packageID,
		RebootRequired: a.rebootPending(),
		Message:        lastLine(res.Stdout),
	}, nil
}

func (a *AptProvider) rebootPending() bool {
	if a.rebootMarker == "" {
		return false
	}
	_, err := os.Stat(a.rebootMarker)
	return err == nil
}

// parseDpkgQuery keeps fully installed ("ii") packages.
func parseDpkgQuery(output string) []Package {
	scanner := bufio.NewScanner(strings.NewReader(output))
	pkgs := []Package{}
	for scanner.Scan() {
		parts := strings.Split(scanner.Text(), "\t")
		if len(parts) < 3 {
			continue
		}
		if strings.TrimSpace(parts[0]) != "ii" {
			continue
		}
		name := strings.TrimSpace(parts[1])
		if name == "" {
			continue
		}
		pkgs = append(pkgs, Package{
			ID:      name,
			Name:    name,
			Version: strings.TrimSpace(parts[2]),
		})
	}
	return pkgs
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.LastIndexByte(s, '\n'); idx >= 0 {
		return strings.TrimSpace(s[idx+1:])
	}
	return s
}
