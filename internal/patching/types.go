package patching

import "context"

// Package is an installed software entry that can be upgraded.
type Package struct {
	ID       string // provider-prefixed once returned by Manager, e.g. "apt:firefox"
	Provider string
	Name     string // display name
	Version  string
}

// InstallResult captures the outcome of a single package upgrade.
type InstallResult struct {
	PackageID      string
	Provider       string
	RebootRequired bool
	Message        string
}

// UpdateResult captures the outcome of a bulk OS update.
type UpdateResult struct {
	Provider       string
	RebootRequired bool
	Message        string
}

// Provider identifies a package tooling backend.
type Provider interface {
	ID() string
	Name() string
}

// SystemUpdater is a provider that can run the platform's bulk update.
type SystemUpdater interface {
	Provider
	UpdateAll(ctx context.Context) (UpdateResult, error)
}

// SoftwareSource is a provider that lists and upgrades individual packages.
type SoftwareSource interface {
	Provider
	GetInstalled(ctx context.Context) ([]Package, error)
	Upgrade(ctx context.Context, packageID string) (InstallResult, error)
}
