package patching

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"

	"github.com/breeze-rmm/remediate/internal/platform"
)

var validRPMPackage = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_+.\-]*$`)

// YumProvider integrates with dnf/yum package managers.
type YumProvider struct {
	runner   platform.Runner
	lookPath func(string) (string, error)
}

func NewYumProvider(runner platform.Runner) *YumProvider {
	return &YumProvider{runner: runner, lookPath: exec.LookPath}
}

func (y *YumProvider) ID() string {
	return "yum"
}

func (y *YumProvider) Name() string {
	return "YUM/DNF"
}

// UpdateAll runs a full "update -y".
func (y *YumProvider) UpdateAll(ctx context.Context) (UpdateResult, error) {
	mgr, err := y.detectManager()
	if err != nil {
		return UpdateResult{}, err
	}

	res, err := y.runner.Run(ctx, platform.Command{Name: mgr, Args: []string{"-y", "update"}})
	if err != nil {
		return UpdateResult{}, err
	}

	return UpdateResult{
		Provider:       y.ID(),
		RebootRequired: mentionsReboot(res.Stdout),
		Message:        lastLine(res.Stdout),
	}, nil
}

// GetInstalled lists installed RPMs, one entry per package name.
func (y *YumProvider) GetInstalled(ctx context.Context) ([]Package, error) {
	res, err := y.runner.Run(ctx, platform.Command{
		Name: "rpm",
		Args: []string{"-qa", "--queryformat", "%{NAME}\t%{VERSION}-%{RELEASE}\n"},
	})
	if err != nil {
		return nil, err
	}
	return parseRPMQuery(res.Stdout), nil
}

func (y *YumProvider) Upgrade(ctx context.Context, packageID string) (InstallResult, error) {
	if !validRPMPackage.MatchString(packageID) {
		return InstallResult{}, fmt.Errorf("invalid package name: %q", packageID)
	}
	mgr, err := y.detectManager()
	if err != nil {
		return InstallResult{}, err
	}

	res, err := y.runner.Run(ctx, platform.Command{Name: mgr, Args: []string{"-y", "update", packageID}})
	if err != nil {
		return InstallResult{}, err
	}

	return InstallResult{
		PackageID:      packageID,
		RebootRequired: mentionsReboot(res.Stdout),
		Message:        lastLine(res.Stdout),
	}, nil
}

func (y *YumProvider) detectManager() (string, error) {
	if _, err := y.lookPath("dnf"); err == nil {
		return "dnf", nil
	}
	if _, err := y.lookPath("yum"); err == nil {
		return "yum", nil
	}
	return "", fmt.Errorf("%w: neither dnf nor yum found", platform.ErrToolUnavailable)
}

func parseRPMQuery(output string) []Package {
	scanner := bufio.NewScanner(strings.NewReader(output))
	pkgs := []Package{}
	seen := make(map[string]bool)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, "\t", 2)
		if len(parts) != 2 || parts[0] == "" {
			continue
		}
		// Parallel-installable packages (kernel) appear once per version.
		if seen[parts[0]] {
			continue
		}
		seen[parts[0]] = true
		pkgs = append(pkgs, Package{
			ID:      parts[0],
			Name:    parts[0],
			Version: parts[1],
		})
	}
	return pkgs
}

func mentionsReboot(output string) bool {
	lower := strings.ToLower(output)
	return strings.Contains(lower, "reboot") || strings.Contains(lower, "restart")
}
