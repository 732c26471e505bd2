// Package capabilitytest provides an in-memory capability.Provider that
// mimics the POSIX and Windows group semantics of the real backends.
package capabilitytest

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/breeze-rmm/remediate/internal/capability"
	"github.com/breeze-rmm/remediate/internal/patching"
	"github.com/breeze-rmm/remediate/internal/platform"
	"github.com/breeze-rmm/remediate/internal/secmem"
)

// AccountState is the fake host state of one account.
type AccountState struct {
	Locked  bool
	Groups  []string
	Secret  string
	Expired bool
}

// Provider is a fake capability.Provider. Error maps are keyed by account
// name or package ID and are returned instead of mutating state.
type Provider struct {
	mu      sync.Mutex
	profile platform.Profile
	order   []string
	state   map[string]*AccountState

	Software []capability.PackageEntry

	ListErr       error
	StatusErr     map[string]error
	ActionErr     map[string]error
	CredentialErr map[string]error
	ExpiryErr     map[string]error
	UpgradeErr    map[string]error
	ListSWErr     error
	UpdateErr     error
	BaselineErr   error

	Mutations      []string
	Upgraded       []string
	SystemUpdates  int
	BaselineCalls  int
	ListCalls      int
	SoftwareListed int
}

// NewProvider returns an empty fake for profile.
func NewProvider(profile platform.Profile) *Provider {
	return &Provider{
		profile:       profile,
		state:         make(map[string]*AccountState),
		StatusErr:     make(map[string]error),
		ActionErr:     make(map[string]error),
		CredentialErr: make(map[string]error),
		ExpiryErr:     make(map[string]error),
		UpgradeErr:    make(map[string]error),
	}
}

// AddAccount registers an account with its initial groups.
func (p *Provider) AddAccount(name string, groups ...string) *Provider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.order = append(p.order, name)
	p.state[name] = &AccountState{Groups: slices.Clone(groups)}
	return p
}

// State returns a copy of an account's state and whether it still exists.
func (p *Provider) State(name string) (AccountState, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	st, ok := p.state[name]
	if !ok {
		return AccountState{}, false
	}
	cp := *st
	cp.Groups = slices.Clone(st.Groups)
	return cp, true
}

// AdminGroup is the administrative group for the fake's profile.
func (p *Provider) AdminGroup() string {
	if p.profile == platform.Windows {
		return "Administrators"
	}
	return "sudo"
}

func (p *Provider) Profile() platform.Profile {
	return p.profile
}

func (p *Provider) ListAccounts(ctx context.Context) ([]capability.Account, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ListCalls++
	if p.ListErr != nil {
		return nil, p.ListErr
	}
	accounts := make([]capability.Account, 0, len(p.order))
	for _, name := range p.order {
		accounts = append(accounts, capability.Account{Name: name})
	}
	return accounts, nil
}

func (p *Provider) AccountStatus(ctx context.Context, acct capability.Account) (capability.Status, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.StatusErr[acct.Name]; err != nil {
		return capability.Status{}, err
	}
	st, ok := p.state[acct.Name]
	if !ok {
		return capability.Status{}, fmt.Errorf("no such account %q", acct.Name)
	}
	return capability.Status{
		Locked:         st.Locked,
		Groups:         slices.Clone(st.Groups),
		IdentityDetail: "name=" + acct.Name,
	}, nil
}

func (p *Provider) SetCredential(ctx context.Context, acct capability.Account, secret *secmem.SecureString) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.CredentialErr[acct.Name]; err != nil {
		return err
	}
	st, err := p.lookup(acct.Name)
	if err != nil {
		return err
	}
	st.Secret = secret.Reveal()
	p.Mutations = append(p.Mutations, "setCredential "+acct.Name)
	return nil
}

func (p *Provider) ForceCredentialExpiry(ctx context.Context, acct capability.Account) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ExpiryErr[acct.Name]; err != nil {
		return err
	}
	st, err := p.lookup(acct.Name)
	if err != nil {
		return err
	}
	st.Expired = true
	p.Mutations = append(p.Mutations, "expire "+acct.Name)
	return nil
}

func (p *Provider) ApplyAccountAction(ctx context.Context, acct capability.Account, action capability.Action) error {
	if action.Kind == capability.Skip {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ActionErr[acct.Name]; err != nil {
		return err
	}
	st, err := p.lookup(acct.Name)
	if err != nil {
		return err
	}

	switch action.Kind {
	case capability.Delete:
		delete(p.state, acct.Name)
		p.order = slices.DeleteFunc(p.order, func(n string) bool { return n == acct.Name })
	case capability.Lock:
		st.Locked = true
	case capability.Unlock:
		st.Locked = false
	case capability.AddAdmin:
		st.Groups = addGroup(st.Groups, p.AdminGroup())
	case capability.RemoveAdmin:
		st.Groups = slices.DeleteFunc(st.Groups, func(g string) bool { return g == p.AdminGroup() })
	case capability.ChangeGroup:
		if action.Group == "" {
			return fmt.Errorf("change group: group name is required")
		}
		if p.profile == platform.Windows {
			st.Groups = addGroup(st.Groups, action.Group)
		} else {
			st.Groups = []string{action.Group}
		}
	}
	p.Mutations = append(p.Mutations, action.String()+" "+acct.Name)
	return nil
}

func (p *Provider) ApplyBaselinePolicy(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.BaselineCalls++
	if p.BaselineErr != nil {
		return "", p.BaselineErr
	}
	return "baseline applied", nil
}

func (p *Provider) ListInstalledSoftware(ctx context.Context) ([]capability.PackageEntry, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.SoftwareListed++
	if p.ListSWErr != nil {
		return nil, p.ListSWErr
	}
	return slices.Clone(p.Software), nil
}

func (p *Provider) UpgradeSoftware(ctx context.Context, pkg capability.PackageEntry) (patching.InstallResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.UpgradeErr[pkg.ID]; err != nil {
		return patching.InstallResult{}, err
	}
	p.Upgraded = append(p.Upgraded, pkg.ID)
	return patching.InstallResult{PackageID: pkg.ID, Provider: pkg.Provider}, nil
}

func (p *Provider) UpdateSystem(ctx context.Context) ([]patching.UpdateResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.SystemUpdates++
	if p.UpdateErr != nil {
		return nil, p.UpdateErr
	}
	return []patching.UpdateResult{{Provider: "fake", Message: "up to date"}}, nil
}

func (p *Provider) lookup(name string) (*AccountState, error) {
	st, ok := p.state[name]
	if !ok {
		return nil, fmt.Errorf("no such account %q", name)
	}
	return st, nil
}

func addGroup(groups []string, group string) []string {
	if slices.Contains(groups, group) {
		return groups
	}
	return append(groups, group)
}

var _ capability.Provider = (*Provider)(nil)
