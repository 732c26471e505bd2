package capability

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/breeze-rmm/remediate/internal/logging"
	"github.com/breeze-rmm/remediate/internal/patching"
	"github.com/breeze-rmm/remediate/internal/platform"
	"github.com/breeze-rmm/remediate/internal/secmem"
)

const windowsAdminGroup = "Administrators"

// net.exe pads account names into 25-character columns.
const netUserColumnWidth = 25

// invalidWindowsNameChars are rejected in local account and group names.
const invalidWindowsNameChars = "\"/\\[]:;|=,+*?<>"

var windowsPolicyMarkers = []string{
	"does not meet the password policy requirements",
	"password policy",
	"system error 2245",
}

type windowsProvider struct {
	software
	runner platform.Runner
}

func newWindows(runner platform.Runner) *windowsProvider {
	return &windowsProvider{
		runner: runner,
		software: software{manager: func() *patching.Manager {
			return patching.NewManagerFor(platform.Windows, platform.FamilyUnknown, runner)
		}},
	}
}

func (w *windowsProvider) Profile() platform.Profile {
	return platform.Windows
}

func (w *windowsProvider) ListAccounts(ctx context.Context) ([]Account, error) {
	res, err := w.net(ctx, "user")
	if err != nil {
		return nil, err
	}
	return parseNetUserList(res.Stdout), nil
}

func (w *windowsProvider) AccountStatus(ctx context.Context, acct Account) (Status, error) {
	res, err := w.net(ctx, "user", acct.Name)
	if err != nil {
		return Status{}, err
	}
	return parseNetUserDetail(res.Stdout), nil
}

// SetCredential uses `net user <name> <secret>`. net.exe has no stdin mode,
// so the secret is briefly visible in the process list.
func (w *windowsProvider) SetCredential(ctx context.Context, acct Account, secret *secmem.SecureString) error {
	if err := checkWindowsName(acct.Name); err != nil {
		return err
	}
	plain := secret.Reveal()
	if plain == "" {
		return fmt.Errorf("%s: %w: empty secret", acct.Name, ErrCredentialRejected)
	}
	if strings.HasPrefix(plain, "/") {
		return fmt.Errorf("%s: %w: net user cannot set a secret starting with '/'", acct.Name, ErrCredentialRejected)
	}

	res, err := w.net(ctx, "user", acct.Name, plain)
	if err != nil {
		return rejectedOr(err, res.Combined(), windowsPolicyMarkers)
	}
	return nil
}

func (w *windowsProvider) ForceCredentialExpiry(ctx context.Context, acct Account) error {
	if err := checkWindowsName(acct.Name); err != nil {
		return err
	}
	_, err := w.net(ctx, "user", acct.Name, "/logonpasswordchg:yes")
	return err
}

func (w *windowsProvider) ApplyAccountAction(ctx context.Context, acct Account, action Action) error {
	if action.Kind == Skip {
		return nil
	}
	if err := checkWindowsName(acct.Name); err != nil {
		return err
	}

	var err error
	switch action.Kind {
	case Delete:
		_, err = w.net(ctx, "user", acct.Name, "/delete")
	case Lock:
		_, err = w.net(ctx, "user", acct.Name, "/active:no")
	case Unlock:
		_, err = w.net(ctx, "user", acct.Name, "/active:yes")
	case AddAdmin:
		_, err = w.net(ctx, "localgroup", windowsAdminGroup, acct.Name, "/add")
	case RemoveAdmin:
		_, err = w.net(ctx, "localgroup", windowsAdminGroup, acct.Name, "/delete")
	case ChangeGroup:
		group := strings.TrimSpace(action.Group)
		if group == "" {
			return fmt.Errorf("change group: group name is required")
		}
		if err := checkWindowsName(group); err != nil {
			return fmt.Errorf("change group: %w", err)
		}
		// Additive: existing memberships are kept.
		_, err = w.net(ctx, "localgroup", group, acct.Name, "/add")
	default:
		return fmt.Errorf("unsupported action %v", action.Kind)
	}
	if err == nil {
		log.Info("account action applied", logging.KeyAccount, acct.Name, logging.KeyAction, action.String())
	}
	return err
}

func (w *windowsProvider) ApplyBaselinePolicy(ctx context.Context) (string, error) {
	_, err := w.runner.Run(ctx, platform.Command{
		Name: "powershell",
		Args: []string{"-NoProfile", "-NonInteractive", "-Command", "Set-ExecutionPolicy RemoteSigned -Force"},
	})
	if err != nil {
		return "", err
	}
	return "PowerShell execution policy set to RemoteSigned", nil
}

func (w *windowsProvider) net(ctx context.Context, args ...string) (platform.Result, error) {
	return w.runner.Run(ctx, platform.Command{Name: "net", Args: args})
}

func checkWindowsName(name string) error {
	if strings.TrimSpace(name) == "" || strings.ContainsAny(name, invalidWindowsNameChars) {
		return fmt.Errorf("invalid account or group name %q", name)
	}
	return nil
}

// parseNetUserList parses the account table printed by `net user`:
//
//	User accounts for \\HOST
//
//	-------------------------------------------------------------------------------
//	Administrator            DefaultAccount           Guest
//	alice                    bob
//	The command completed successfully.
func parseNetUserList(output string) []Account {
	var accounts []Account
	scanner := bufio.NewScanner(strings.NewReader(output))
	pastSeparator := false

	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if !pastSeparator {
			if strings.HasPrefix(strings.TrimSpace(line), "---") {
				pastSeparator = true
			}
			continue
		}
		if strings.HasPrefix(line, "The command completed") {
			break
		}
		for start := 0; start < len(line); start += netUserColumnWidth {
			end := start + netUserColumnWidth
			if end > len(line) {
				end = len(line)
			}
			if name := strings.TrimSpace(line[start:end]); name != "" {
				accounts = append(accounts, Account{Name: name})
			}
		}
	}
	return accounts
}

// parseNetUserDetail extracts lock state and group memberships from
// `net user <name>`. Membership lines hold "*Group" tokens and may continue
// on following indented lines.
func parseNetUserDetail(output string) Status {
	var st Status
	var detail []string
	inGroups := false

	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "The command completed") {
			inGroups = false
			continue
		}

		switch {
		case strings.HasPrefix(line, "Account active"):
			st.Locked = strings.EqualFold(lastField(line), "No")
			inGroups = false
		case strings.HasPrefix(line, "Local Group Memberships"), strings.HasPrefix(line, "Global Group memberships"):
			inGroups = true
			st.Groups = append(st.Groups, groupTokens(line)...)
			continue
		case inGroups && (line[0] == ' ' || line[0] == '\t') && strings.Contains(line, "*"):
			st.Groups = append(st.Groups, groupTokens(line)...)
			continue
		default:
			inGroups = false
		}

		if strings.HasPrefix(line, "User name") || strings.HasPrefix(line, "Full Name") ||
			strings.HasPrefix(line, "Account expires") || strings.HasPrefix(line, "Password last set") ||
			strings.HasPrefix(line, "Password expires") || strings.HasPrefix(line, "Last logon") {
			detail = append(detail, trimmed)
		}
	}

	if st.Groups == nil {
		st.Groups = []string{}
	}
	st.IdentityDetail = strings.Join(detail, "\n")
	return st
}

// groupTokens returns the "*Name" tokens on a membership line. Group names
// may contain spaces, so tokens are split on '*' rather than whitespace.
func groupTokens(line string) []string {
	idx := strings.IndexByte(line, '*')
	if idx < 0 {
		return nil
	}
	var groups []string
	for _, tok := range strings.Split(line[idx+1:], "*") {
		name := strings.TrimSpace(tok)
		if name == "" || strings.EqualFold(name, "None") {
			continue
		}
		groups = append(groups, name)
	}
	return groups
}

func lastField(line string) string {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return ""
	}
	return fields[len(fields)-1]
}
