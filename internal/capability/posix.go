package capability

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/breeze-rmm/remediate/internal/logging"
	"github.com/breeze-rmm/remediate/internal/patching"
	"github.com/breeze-rmm/remediate/internal/platform"
	"github.com/breeze-rmm/remediate/internal/secmem"
)

var log = logging.L("capability")

const (
	defaultPosixAdminGroup = "sudo"
	defaultPasswdPath      = "/etc/passwd"
)

// validPosixName matches shadow-utils user and group names. A leading dash
// is rejected so a name can never be read as an option.
var validPosixName = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9_.-]*\$?$`)

var posixPolicyMarkers = []string{
	"bad password",
	"too short",
	"too simple",
	"dictionary",
	"password quality",
	"policy",
}

type posixProvider struct {
	software
	runner     platform.Runner
	adminGroup string
	passwdPath string
}

func newPosix(runner platform.Runner, opts Options) *posixProvider {
	p := &posixProvider{
		runner:     runner,
		adminGroup: opts.AdminGroup,
		passwdPath: opts.PasswdPath,
	}
	if p.adminGroup == "" {
		p.adminGroup = defaultPosixAdminGroup
	}
	if p.passwdPath == "" {
		p.passwdPath = defaultPasswdPath
	}
	root := opts.Root
	if root == "" {
		root = "/"
	}
	p.software = software{manager: func() *patching.Manager {
		return patching.NewManagerFor(platform.Posix, platform.DetectFamily(root), runner)
	}}
	return p
}

func (p *posixProvider) Profile() platform.Profile {
	return platform.Posix
}

// ListAccounts reads the passwd database in file order.
func (p *posixProvider) ListAccounts(ctx context.Context) ([]Account, error) {
	f, err := os.Open(p.passwdPath)
	if err != nil {
		if errors.Is(err, os.ErrPermission) {
			return nil, fmt.Errorf("read %s: %w", p.passwdPath, platform.ErrPermissionDenied)
		}
		return nil, fmt.Errorf("read %s: %w", p.passwdPath, err)
	}
	defer f.Close()

	accounts, err := parsePasswd(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", p.passwdPath, err)
	}
	return accounts, nil
}

func (p *posixProvider) AccountStatus(ctx context.Context, acct Account) (Status, error) {
	var st Status
	var errs []error

	if res, err := p.run(ctx, "id", "-Gn", acct.Name); err != nil {
		errs = append(errs, err)
	} else {
		st.Groups = strings.Fields(res.Stdout)
	}

	if res, err := p.run(ctx, "passwd", "-S", acct.Name); err != nil {
		errs = append(errs, err)
	} else {
		st.Locked = passwdStatusLocked(res.Stdout)
	}

	if res, err := p.run(ctx, "id", acct.Name); err != nil {
		errs = append(errs, err)
	} else {
		st.IdentityDetail = strings.TrimSpace(res.Stdout)
	}

	return st, errors.Join(errs...)
}

// SetCredential feeds "user:secret" to chpasswd on stdin so the secret never
// appears in argv.
func (p *posixProvider) SetCredential(ctx context.Context, acct Account, secret *secmem.SecureString) error {
	if err := checkPosixName(acct.Name); err != nil {
		return err
	}
	plain := secret.Reveal()
	if plain == "" {
		return fmt.Errorf("%s: %w: empty secret", acct.Name, ErrCredentialRejected)
	}
	if strings.ContainsAny(plain, "\r\n") {
		return fmt.Errorf("%s: %w: secret contains a line break", acct.Name, ErrCredentialRejected)
	}

	res, err := p.runner.Run(ctx, platform.Command{
		Name:  "chpasswd",
		Stdin: acct.Name + ":" + plain + "\n",
	})
	if err != nil {
		return rejectedOr(err, res.Combined(), posixPolicyMarkers)
	}
	return nil
}

func (p *posixProvider) ForceCredentialExpiry(ctx context.Context, acct Account) error {
	if err := checkPosixName(acct.Name); err != nil {
		return err
	}
	_, err := p.run(ctx, "chage", "-d", "0", acct.Name)
	return err
}

func (p *posixProvider) ApplyAccountAction(ctx context.Context, acct Account, action Action) error {
	if action.Kind == Skip {
		return nil
	}
	if err := checkPosixName(acct.Name); err != nil {
		return err
	}

	var err error
	switch action.Kind {
	case Delete:
		_, err = p.run(ctx, "userdel", acct.Name)
	case Lock:
		_, err = p.run(ctx, "passwd", "-l", acct.Name)
	case Unlock:
		_, err = p.run(ctx, "passwd", "-u", acct.Name)
	case AddAdmin:
		_, err = p.run(ctx, "usermod", "-aG", p.adminGroup, acct.Name)
	case RemoveAdmin:
		_, err = p.run(ctx, "gpasswd", "-d", acct.Name, p.adminGroup)
	case ChangeGroup:
		group := strings.TrimSpace(action.Group)
		if group == "" {
			return fmt.Errorf("change group: group name is required")
		}
		if !validPosixName.MatchString(group) {
			return fmt.Errorf("change group: invalid group name %q", group)
		}
		// -G without -a replaces the supplementary group list.
		_, err = p.run(ctx, "usermod", "-G", group, acct.Name)
	default:
		return fmt.Errorf("unsupported action %v", action.Kind)
	}
	if err == nil {
		log.Info("account action applied", logging.KeyAccount, acct.Name, logging.KeyAction, action.String())
	}
	return err
}

// ApplyBaselinePolicy has nothing to apply automatically on POSIX hosts.
func (p *posixProvider) ApplyBaselinePolicy(ctx context.Context) (string, error) {
	return "no automatic baseline policy for POSIX hosts; review /etc/login.defs and PAM settings manually", nil
}

func (p *posixProvider) run(ctx context.Context, name string, args ...string) (platform.Result, error) {
	return p.runner.Run(ctx, platform.Command{Name: name, Args: args})
}

func checkPosixName(name string) error {
	if !validPosixName.MatchString(name) {
		return fmt.Errorf("invalid account name %q", name)
	}
	return nil
}

// parsePasswd returns one Account per passwd entry, skipping blank lines,
// comments and NIS "+"/"-" markers.
func parsePasswd(r io.Reader) ([]Account, error) {
	var accounts []Account
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "+") || strings.HasPrefix(line, "-") {
			continue
		}
		fields := strings.Split(line, ":")
		if fields[0] == "" {
			continue
		}
		acct := Account{Name: fields[0]}
		if len(fields) >= 7 {
			acct.UID = fields[2]
			acct.HomeDir = fields[5]
			acct.Shell = fields[6]
		}
		accounts = append(accounts, acct)
	}
	return accounts, scanner.Err()
}

// passwdStatusLocked reads the second field of `passwd -S`, which is "L" or
// "LK" for a locked password on Debian and RedHat respectively.
func passwdStatusLocked(output string) bool {
	fields := strings.Fields(output)
	if len(fields) < 2 {
		return false
	}
	return fields[1] == "L" || fields[1] == "LK"
}

// rejectedOr maps a failed credential command to ErrCredentialRejected when
// its output carries a policy message. Tool and permission failures keep
// their classification.
func rejectedOr(err error, output string, markers []string) error {
	if errors.Is(err, platform.ErrToolUnavailable) || errors.Is(err, platform.ErrPermissionDenied) {
		return err
	}
	lower := strings.ToLower(output)
	for _, m := range markers {
		if strings.Contains(lower, m) {
			return fmt.Errorf("%w: %s", ErrCredentialRejected, firstLine(output))
		}
	}
	return err
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return strings.TrimSpace(s[:idx])
	}
	return s
}
