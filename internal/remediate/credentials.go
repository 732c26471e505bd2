package remediate

import (
	"context"
	"errors"
	"fmt"

	"github.com/breeze-rmm/remediate/internal/capability"
	"github.com/breeze-rmm/remediate/internal/secmem"
)

const sharedModePrompt = "Do you want to set a single password for all users? (yes/no): "

// rotateCredentials sets a new secret on every account and forces it to
// expire, so each user must pick their own at next login. The account list
// is read fresh here.
func (s *Session) rotateCredentials(ctx context.Context) error {
	answer, err := s.term.ReadLine(sharedModePrompt)
	if err != nil && !isEOF(err) {
		return fmt.Errorf("read rotation mode: %w", err)
	}
	shared := isAffirmative(answer)

	accounts, err := s.provider.ListAccounts(ctx)
	if err != nil {
		return fmt.Errorf("list accounts: %w", err)
	}
	if len(accounts) == 0 {
		s.term.Notice("No accounts found.")
		return nil
	}

	if shared {
		secret, err := s.term.ReadSecret("Enter new password for all users: ")
		if err != nil {
			return fmt.Errorf("read shared password: %w", err)
		}
		defer secret.Zero()
		for _, acct := range accounts {
			if err := ctx.Err(); err != nil {
				return err
			}
			s.rotate(ctx, acct, secret)
		}
		return nil
	}

	for _, acct := range accounts {
		if err := ctx.Err(); err != nil {
			return err
		}
		secret, err := s.term.ReadSecret(fmt.Sprintf("Enter new password for user %s: ", acct.Name))
		if err != nil {
			return fmt.Errorf("read password for %s: %w", acct.Name, err)
		}
		s.rotate(ctx, acct, secret)
		secret.Zero()
	}
	return nil
}

// errEmptySecret rejects a blank entry before it reaches the host.
var errEmptySecret = fmt.Errorf("%w: empty password", capability.ErrCredentialRejected)

// rotate applies one secret to one account. Expiry is only forced when the
// new secret was accepted.
func (s *Session) rotate(ctx context.Context, acct capability.Account, secret *secmem.SecureString) {
	err := errEmptySecret
	if secret.Len() > 0 {
		err = s.provider.SetCredential(ctx, acct, secret)
	}
	if err != nil {
		op := "set password"
		if errors.Is(err, capability.ErrCredentialRejected) {
			op = "set password (rejected by policy)"
		}
		s.record(PhaseHarden, acct.Name, op, err)
		return
	}
	if err := s.provider.ForceCredentialExpiry(ctx, acct); err != nil {
		s.record(PhaseHarden, acct.Name, "force password expiry", err)
		return
	}
	s.term.Success("  Password rotated for %s", acct.Name)
}
