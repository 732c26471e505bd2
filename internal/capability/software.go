package capability

import (
	"context"
	"fmt"

	"github.com/breeze-rmm/remediate/internal/patching"
)

// software delegates package operations to a patching.Manager. The manager
// factory runs on every call so the package-tool family is probed when the
// caller needs it, not at construction.
type software struct {
	manager func() *patching.Manager
}

func (s software) ListInstalledSoftware(ctx context.Context) ([]PackageEntry, error) {
	return s.manager().GetInstalled(ctx)
}

func (s software) UpgradeSoftware(ctx context.Context, pkg PackageEntry) (patching.InstallResult, error) {
	if pkg.ID == "" {
		return patching.InstallResult{}, fmt.Errorf("upgrade %q: package ID is required", pkg.Name)
	}
	return s.manager().Upgrade(ctx, pkg.ID)
}

func (s software) UpdateSystem(ctx context.Context) ([]patching.UpdateResult, error) {
	return s.manager().UpdateSystem(ctx)
}
