package remediate

import (
	"context"
	"fmt"
	"strings"

	"github.com/breeze-rmm/remediate/internal/capability"
)

// autoUpgradeNames is the closed allow-list of software upgraded without a
// prompt. A display name matches when it contains any entry, ignoring case.
var autoUpgradeNames = []string{"chrome", "firefox", "edge"}

// AutoUpgrade reports whether software named name is upgraded without asking.
func AutoUpgrade(name string) bool {
	lower := strings.ToLower(name)
	for _, n := range autoUpgradeNames {
		if strings.Contains(lower, n) {
			return true
		}
	}
	return false
}

// updateSoftware runs the bulk OS update once, then walks installed
// software. A failed bulk update is reported and the walk still runs; a
// failed listing aborts the walk.
func (s *Session) updateSoftware(ctx context.Context) error {
	s.term.Printf("Running system update...\n")
	results, err := s.provider.UpdateSystem(ctx)
	for _, r := range results {
		if r.Message != "" {
			s.term.Success("  %s: %s", r.Provider, r.Message)
		} else {
			s.term.Success("  %s: update complete", r.Provider)
		}
		if r.RebootRequired {
			s.term.Notice("  %s: a reboot is required to finish installing updates", r.Provider)
		}
	}
	if err != nil {
		s.record(PhaseUpdate, "system", "update", err)
	}

	pkgs, err := s.provider.ListInstalledSoftware(ctx)
	if err != nil {
		if len(pkgs) == 0 {
			return fmt.Errorf("list installed software: %w", err)
		}
		s.record(PhaseUpdate, "software", "list", err)
	}
	if len(pkgs) == 0 {
		s.term.Notice("No installed software found.")
		return nil
	}

	for _, pkg := range pkgs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if AutoUpgrade(pkg.Name) {
			s.term.Printf("Updating %s...\n", pkg.Name)
			s.upgrade(ctx, pkg)
			continue
		}

		answer, err := s.term.ReadLine(fmt.Sprintf("Update %s? (yes/no): ", pkg.Name))
		if err != nil || !isAffirmative(answer) {
			continue
		}
		s.upgrade(ctx, pkg)
	}
	return nil
}

func (s *Session) upgrade(ctx context.Context, pkg capability.PackageEntry) {
	result, err := s.provider.UpgradeSoftware(ctx, pkg)
	if err != nil {
		s.record(PhaseUpdate, pkg.Name, "upgrade", err)
		return
	}
	s.term.Success("  %s upgraded", pkg.Name)
	if result.RebootRequired {
		s.term.Notice("  %s: a reboot is required to finish the upgrade", pkg.Name)
	}
}
