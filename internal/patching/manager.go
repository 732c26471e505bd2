package patching

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/breeze-rmm/remediate/internal/logging"
	"github.com/breeze-rmm/remediate/internal/platform"
)

var log = logging.L("patching")

const packageIDSeparator = ":"

// Manager coordinates package providers.
type Manager struct {
	providers []Provider
	sources   map[string]SoftwareSource
}

// NewManager creates a Manager with the given providers, in priority order.
func NewManager(providers ...Provider) *Manager {
	sources := make(map[string]SoftwareSource)
	for _, p := range providers {
		if src, ok := p.(SoftwareSource); ok {
			sources[p.ID()] = src
		}
	}
	return &Manager{providers: providers, sources: sources}
}

// UpdateSystem runs every provider's bulk update once. A failing provider
// does not stop the others; their errors are joined.
func (m *Manager) UpdateSystem(ctx context.Context) ([]UpdateResult, error) {
	var results []UpdateResult
	var errs []error
	ran := false

	for _, p := range m.providers {
		updater, ok := p.(SystemUpdater)
		if !ok {
			continue
		}
		ran = true
		log.Info("running system update", "provider", p.ID())
		result, err := updater.UpdateAll(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s update failed: %w", p.ID(), err))
			continue
		}
		if result.Provider == "" {
			result.Provider = p.ID()
		}
		results = append(results, result)
	}

	if !ran {
		return nil, fmt.Errorf("system update: %w: no supported package manager found", platform.ErrToolUnavailable)
	}
	return results, errors.Join(errs...)
}

// GetInstalled aggregates installed packages from all software sources.
// Partial results are returned together with the errors of failing sources.
func (m *Manager) GetInstalled(ctx context.Context) ([]Package, error) {
	var installed []Package
	var errs []error
	ran := false

	for _, p := range m.providers {
		src, ok := m.sources[p.ID()]
		if !ok {
			continue
		}
		ran = true
		pkgs, err := src.GetInstalled(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s installed scan failed: %w", p.ID(), err))
			continue
		}
		installed = append(installed, m.decorate(p.ID(), pkgs)...)
	}

	if !ran {
		return nil, fmt.Errorf("installed software: %w: no supported package manager found", platform.ErrToolUnavailable)
	}
	if len(installed) == 0 && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return installed, errors.Join(errs...)
}

// Upgrade upgrades a package by its (optionally provider-prefixed) ID.
func (m *Manager) Upgrade(ctx context.Context, packageID string) (InstallResult, error) {
	providerID, localID, err := m.splitPackageID(packageID)
	if err != nil {
		return InstallResult{}, err
	}

	src, ok := m.sources[providerID]
	if !ok {
		return InstallResult{}, fmt.Errorf("unknown package provider: %s", providerID)
	}

	result, err := src.Upgrade(ctx, localID)
	if err != nil {
		return InstallResult{}, err
	}
	if result.Provider == "" {
		result.Provider = providerID
	}
	result.PackageID = m.formatPackageID(providerID, localID)
	return result, nil
}

// ProviderIDs returns the registered provider IDs in order.
func (m *Manager) ProviderIDs() []string {
	ids := make([]string, 0, len(m.providers))
	for _, p := range m.providers {
		ids = append(ids, p.ID())
	}
	return ids
}

func (m *Manager) splitPackageID(packageID string) (string, string, error) {
	if packageID == "" {
		return "", "", fmt.Errorf("package ID is required")
	}

	if parts := strings.SplitN(packageID, packageIDSeparator, 2); len(parts) == 2 && parts[0] != "" && parts[1] != "" {
		if _, ok := m.sources[parts[0]]; ok {
			return parts[0], parts[1], nil
		}
	}

	if len(m.sources) == 1 {
		for id := range m.sources {
			return id, packageID, nil
		}
	}

	return "", "", fmt.Errorf("package ID %q must be prefixed with provider ID", packageID)
}

func (m *Manager) decorate(providerID string, pkgs []Package) []Package {
	decorated := make([]Package, 0, len(pkgs))
	for _, pkg := range pkgs {
		pkg.Provider = providerID
		pkg.ID = m.formatPackageID(providerID, pkg.ID)
		if pkg.Name == "" {
			pkg.Name = strings.TrimPrefix(pkg.ID, providerID+packageIDSeparator)
		}
		decorated = append(decorated, pkg)
	}
	return decorated
}

func (m *Manager) formatPackageID(providerID, packageID string) string {
	if packageID == "" {
		return ""
	}
	if strings.HasPrefix(packageID, providerID+packageIDSeparator) {
		return packageID
	}
	return providerID + packageIDSeparator + packageID
}
