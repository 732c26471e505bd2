package remediate

import (
	"context"
	"fmt"
	"strings"

	"github.com/breeze-rmm/remediate/internal/capability"
)

var actionPrompt = fmt.Sprintf("Choose action (%s): ", strings.Join(capability.ActionTokens(), ", "))

// reviewAccounts walks every account once: show its status, read one action
// token and apply it. Per-account failures are recorded and the walk goes on;
// only a failed account listing aborts the phase.
func (s *Session) reviewAccounts(ctx context.Context) error {
	accounts, err := s.provider.ListAccounts(ctx)
	if err != nil {
		return fmt.Errorf("list accounts: %w", err)
	}
	if len(accounts) == 0 {
		s.term.Notice("No accounts found.")
		return nil
	}

	for _, acct := range accounts {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.showAccount(ctx, acct)

		action, ok := s.readAction(acct)
		if !ok || !action.Kind.Mutates() {
			s.term.Printf("  Skipped.\n")
			continue
		}

		if err := s.provider.ApplyAccountAction(ctx, acct, action); err != nil {
			s.record(PhaseAccountReview, acct.Name, action.String(), err)
			continue
		}
		s.term.Success("  %s applied to %s", action, acct.Name)
	}
	return nil
}

func (s *Session) showAccount(ctx context.Context, acct capability.Account) {
	s.term.Printf("\nAccount: %s\n", acct.Name)

	st, err := s.provider.AccountStatus(ctx, acct)
	if err != nil {
		s.record(PhaseAccountReview, acct.Name, "status", err)
	}
	locked := "no"
	if st.Locked {
		locked = "yes"
	}
	s.term.Printf("  Locked: %s\n", locked)
	if st.Groups != nil {
		s.term.Printf("  Groups: %s\n", strings.Join(st.Groups, ", "))
	}
	if st.IdentityDetail != "" {
		for _, line := range strings.Split(st.IdentityDetail, "\n") {
			s.term.Printf("  %s\n", line)
		}
	}
}

// readAction maps the operator's token to an Action. Unknown tokens and end
// of input become Skip; ok is false when nothing should be applied.
func (s *Session) readAction(acct capability.Account) (capability.Action, bool) {
	token, err := s.term.ReadLine(actionPrompt)
	if err != nil {
		return capability.Action{Kind: capability.Skip}, false
	}

	kind, known := capability.ParseActionKind(token)
	if !known {
		if strings.TrimSpace(token) != "" {
			s.term.Notice("  Unrecognized action %q, treating as skip.", strings.TrimSpace(token))
		}
		return capability.Action{Kind: capability.Skip}, false
	}
	if kind != capability.ChangeGroup {
		return capability.Action{Kind: kind}, true
	}

	group, err := s.term.ReadLine(fmt.Sprintf("Enter new group for user %s: ", acct.Name))
	if err != nil {
		return capability.Action{Kind: capability.Skip}, false
	}
	return capability.Action{Kind: kind, Group: strings.TrimSpace(group)}, true
}
