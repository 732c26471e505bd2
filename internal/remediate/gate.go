package remediate

import (
	"errors"
	"strings"
)

// ErrOperatorCancelled is returned when the operator declines a phase gate.
var ErrOperatorCancelled = errors.New("operation cancelled")

// affirmative is the only answer that lets a gate proceed.
const affirmative = "yes"

// Gate is the go/no-go checkpoint before each phase. There is no re-prompt:
// anything but "yes" (case-insensitive, surrounding whitespace ignored)
// cancels the session, including empty input and end of input.
type Gate struct {
	term Terminal
}

func NewGate(term Terminal) Gate {
	return Gate{term: term}
}

// Confirm asks prompt and returns ErrOperatorCancelled unless the operator
// answers "yes".
func (g Gate) Confirm(prompt string) error {
	answer, err := g.term.ReadLine(prompt + " (yes/no): ")
	if err != nil || !isAffirmative(answer) {
		return ErrOperatorCancelled
	}
	return nil
}

func isAffirmative(answer string) bool {
	return strings.EqualFold(strings.TrimSpace(answer), affirmative)
}
