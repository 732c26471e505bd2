package remediate

// Failure is one operation that failed during the session.
type Failure struct {
	Phase  Phase
	Entity string
	Op     string
	Err    error
}

// Summary collects per-entity failures for the end-of-session report. It is
// printed only and never written to disk.
type Summary struct {
	failures  []Failure
	completed []Phase
}

func (s *Summary) add(phase Phase, entity, op string, err error) {
	s.failures = append(s.failures, Failure{Phase: phase, Entity: entity, Op: op, Err: err})
}

func (s *Summary) complete(phase Phase) {
	s.completed = append(s.completed, phase)
}

// Failures returns the recorded failures in the order they happened.
func (s *Summary) Failures() []Failure {
	out := make([]Failure, len(s.failures))
	copy(out, s.failures)
	return out
}

// Completed returns the phases that ran to the end.
func (s *Summary) Completed() []Phase {
	out := make([]Phase, len(s.completed))
	copy(out, s.completed)
	return out
}

// Print writes the failures grouped by phase.
func (s *Summary) Print(term Terminal) {
	failures := s.Failures()
	term.Banner("Session summary")
	term.Printf("Phases completed: %d of %d\n", len(s.Completed()), len(phaseOrder))
	if len(failures) == 0 {
		term.Success("No failures recorded.")
		return
	}

	term.Failure("%d operation(s) failed:", len(failures))
	for _, phase := range phaseOrder {
		printed := false
		for _, f := range failures {
			if f.Phase != phase {
				continue
			}
			if !printed {
				term.Printf("  %s:\n", phase.Title())
				printed = true
			}
			if f.Entity != "" {
				term.Printf("    %s %s: %v\n", f.Op, f.Entity, f.Err)
			} else {
				term.Printf("    %s: %v\n", f.Op, f.Err)
			}
		}
	}
}
