package capability

import (
	"fmt"
	"strings"
)

// ActionKind is the closed set of per-account remediation decisions.
type ActionKind int

const (
	Skip ActionKind = iota
	Delete
	Lock
	Unlock
	AddAdmin
	RemoveAdmin
	ChangeGroup
)

var actionTokens = []string{
	Skip:        "skip",
	Delete:      "delete",
	Lock:        "lock",
	Unlock:      "unlock",
	AddAdmin:    "addAdmin",
	RemoveAdmin: "removeAdmin",
	ChangeGroup: "changeGroup",
}

// String returns the operator-facing token for k.
func (k ActionKind) String() string {
	if k < 0 || int(k) >= len(actionTokens) {
		return fmt.Sprintf("ActionKind(%d)", int(k))
	}
	return actionTokens[k]
}

// Mutates reports whether k changes host state.
func (k ActionKind) Mutates() bool {
	return k != Skip
}

// ActionTokens lists the accepted tokens in prompt order.
func ActionTokens() []string {
	return []string{"delete", "lock", "unlock", "addAdmin", "removeAdmin", "changeGroup", "skip"}
}

// ParseActionKind maps an operator token case-insensitively to an ActionKind.
// Unrecognized input yields Skip and false.
func ParseActionKind(token string) (ActionKind, bool) {
	token = strings.TrimSpace(token)
	for k, t := range actionTokens {
		if strings.EqualFold(token, t) {
			return ActionKind(k), true
		}
	}
	return Skip, false
}

// Action is one operator decision for one account. Group is only read for
// ChangeGroup.
type Action struct {
	Kind  ActionKind
	Group string
}

func (a Action) String() string {
	if a.Kind == ChangeGroup {
		return a.Kind.String() + "(" + a.Group + ")"
	}
	return a.Kind.String()
}
