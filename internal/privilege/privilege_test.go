//go:build !windows

package privilege

import (
	"os"
	"testing"
)

func TestIsElevatedMatchesEffectiveUID(t *testing.T) {
	if got, want := IsElevated(), os.Geteuid() == 0; got != want {
		t.Fatalf("IsElevated() = %v, want %v", got, want)
	}
}
