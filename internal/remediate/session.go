// Package remediate drives the operator-gated remediation session: a fixed
// sequence of phases, each behind a yes/no gate, that review accounts,
// rotate credentials and apply updates through a capability.Provider.
package remediate

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/breeze-rmm/remediate/internal/capability"
	"github.com/breeze-rmm/remediate/internal/inspector"
	"github.com/breeze-rmm/remediate/internal/logging"
)

var log = logging.L("remediate")

// Phase is one step of the session, in execution order.
type Phase int

const (
	PhaseEnumerate Phase = iota
	PhaseHarden
	PhaseAccountReview
	PhasePortFlag
	PhaseBaseline
	PhaseUpdate
)

var phaseOrder = []Phase{
	PhaseEnumerate,
	PhaseHarden,
	PhaseAccountReview,
	PhasePortFlag,
	PhaseBaseline,
	PhaseUpdate,
}

var phaseInfo = map[Phase]struct {
	name   string
	title  string
	prompt string
}{
	PhaseEnumerate:     {"enumerate", "Enumerate", "Enumerate current system status?"},
	PhaseHarden:        {"harden", "Initial hardening", "Perform initial hardening?"},
	PhaseAccountReview: {"account_review", "Account review", "Review and manage user accounts?"},
	PhasePortFlag:      {"port_flag", "Open ports and firewall", "Flag open ports and firewall exclusions?"},
	PhaseBaseline:      {"baseline", "Baseline", "Perform baseline operation?"},
	PhaseUpdate:        {"update", "Update", "Update system and apps?"},
}

// String returns the phase's log name.
func (p Phase) String() string {
	if info, ok := phaseInfo[p]; ok {
		return info.name
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// Title returns the operator-facing phase heading.
func (p Phase) Title() string {
	if info, ok := phaseInfo[p]; ok {
		return info.title
	}
	return p.String()
}

// Prompt returns the gate question asked before the phase.
func (p Phase) Prompt() string {
	return phaseInfo[p].prompt
}

// Session runs the phases against one host.
type Session struct {
	term     Terminal
	gate     Gate
	provider capability.Provider
	reports  Reporter
	summary  *Summary
}

// NewSession wires a session. The provider's profile is fixed for the
// session's lifetime.
func NewSession(term Terminal, provider capability.Provider, reports Reporter) *Session {
	return &Session{
		term:     term,
		gate:     NewGate(term),
		provider: provider,
		reports:  reports,
		summary:  &Summary{},
	}
}

// Summary returns the failures collected so far.
func (s *Session) Summary() *Summary {
	return s.summary
}

// Run executes every phase in order. Declining a gate stops the session
// immediately with ErrOperatorCancelled; nothing already applied is undone.
// A phase whose required listing fails is reported and the next gate is
// still offered. Cancelling ctx stops the session the same way a declined
// gate does.
func (s *Session) Run(ctx context.Context) error {
	log.Info("session started", logging.KeyProfile, s.provider.Profile().String())

	for _, phase := range phaseOrder {
		if ctx.Err() != nil {
			return s.cancel(phase, "session interrupted")
		}
		if err := s.gate.Confirm(phase.Prompt()); err != nil {
			reason := "gate declined"
			if ctx.Err() != nil {
				reason = "session interrupted"
			}
			return s.cancel(phase, reason)
		}
		if ctx.Err() != nil {
			return s.cancel(phase, "session interrupted")
		}

		plog := logging.WithPhase(log, phase.String())
		s.term.Banner(phase.Title())
		plog.Info("phase started")

		if err := s.runPhase(ctx, phase); err != nil {
			if ctx.Err() != nil {
				return s.cancel(phase, "session interrupted")
			}
			plog.Warn("phase aborted", logging.KeyError, err)
			s.term.Failure("%s aborted: %v", phase.Title(), err)
			s.summary.add(phase, "", "phase", err)
			continue
		}
		s.summary.complete(phase)
		plog.Info("phase completed")
	}

	s.summary.Print(s.term)
	log.Info("session completed", "failures", len(s.summary.Failures()))
	return nil
}

// cancel ends the session at phase: the operator sees the cancellation and
// whatever failures were already collected.
func (s *Session) cancel(phase Phase, reason string) error {
	log.Info(reason, logging.KeyPhase, phase.String())
	s.term.Notice("Operation cancelled.")
	s.summary.Print(s.term)
	return ErrOperatorCancelled
}

func (s *Session) runPhase(ctx context.Context, phase Phase) error {
	switch phase {
	case PhaseEnumerate:
		s.showReport(ctx, phase, inspector.Enumerate)
		return nil
	case PhaseHarden:
		return s.harden(ctx)
	case PhaseAccountReview:
		return s.reviewAccounts(ctx)
	case PhasePortFlag:
		s.showReport(ctx, phase, inspector.Ports)
		return nil
	case PhaseBaseline:
		s.showReport(ctx, phase, inspector.Baseline)
		return nil
	case PhaseUpdate:
		return s.updateSoftware(ctx)
	}
	return fmt.Errorf("unknown phase %v", phase)
}

func (s *Session) showReport(ctx context.Context, phase Phase, report inspector.Report) {
	for _, section := range s.reports.Collect(ctx, report) {
		s.term.Printf("\n--- %s ---\n", section.Title)
		if section.Body != "" {
			s.term.Printf("%s\n", section.Body)
		}
		if section.Err != nil {
			s.term.Failure("%s: %v", section.Title, section.Err)
			s.summary.add(phase, section.Title, "report", section.Err)
		}
	}
}

// harden applies the automatic baseline policy, then rotates credentials.
// A policy failure is reported and rotation still runs.
func (s *Session) harden(ctx context.Context) error {
	s.term.Printf("Setting basic security policies...\n")
	msg, err := s.provider.ApplyBaselinePolicy(ctx)
	if err != nil {
		s.term.Failure("Baseline policy failed: %v", err)
		s.summary.add(PhaseHarden, "", "baseline policy", err)
	} else {
		s.term.Success("%s", msg)
	}
	return s.rotateCredentials(ctx)
}

// record reports a per-entity failure to the operator and the summary.
func (s *Session) record(phase Phase, entity, op string, err error) {
	s.term.Failure("  %s %s failed: %v", op, entity, err)
	s.summary.add(phase, entity, op, err)
	logging.WithPhase(log, phase.String()).Warn("operation failed",
		"entity", entity, "op", op, logging.KeyError, err)
}

func isEOF(err error) bool {
	return errors.Is(err, io.EOF)
}
