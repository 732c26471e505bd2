package capability

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseActionKind(t *testing.T) {
	tests := []struct {
		token string
		want  ActionKind
		ok    bool
	}{
		{"delete", Delete, true},
		{"LOCK", Lock, true},
		{" unlock ", Unlock, true},
		{"addAdmin", AddAdmin, true},
		{"addadmin", AddAdmin, true},
		{"RemoveAdmin", RemoveAdmin, true},
		{"changegroup", ChangeGroup, true},
		{"skip", Skip, true},
		{"", Skip, false},
		{"nuke", Skip, false},
		{"add admin", Skip, false},
	}
	for _, tt := range tests {
		got, ok := ParseActionKind(tt.token)
		require.Equal(t, tt.want, got, "token %q", tt.token)
		require.Equal(t, tt.ok, ok, "token %q", tt.token)
	}
}

func TestActionString(t *testing.T) {
	require.Equal(t, "changeGroup(docker)", Action{Kind: ChangeGroup, Group: "docker"}.String())
	require.Equal(t, "lock", Action{Kind: Lock, Group: "ignored"}.String())
	require.Equal(t, "ActionKind(42)", ActionKind(42).String())
	require.False(t, Skip.Mutates())
	require.True(t, Delete.Mutates())
	require.Len(t, ActionTokens(), 7)
}
