package platform

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"
	"time"
)

func TestProfileFor(t *testing.T) {
	tests := map[string]Profile{
		"windows": Windows,
		"linux":   Posix,
		"darwin":  Posix,
		"freebsd": Posix,
	}
	for goos, want := range tests {
		if got := profileFor(goos); got != want {
			t.Errorf("profileFor(%q) = %v, want %v", goos, got, want)
		}
	}
	if Windows.String() != "windows" || Posix.String() != "posix" {
		t.Fatal("unexpected profile names")
	}
}

func TestDetectFamily(t *testing.T) {
	tests := []struct {
		name  string
		files []string
		want  Family
	}{
		{name: "debian", files: []string{"debian_version"}, want: FamilyDebian},
		{name: "redhat", files: []string{"redhat-release"}, want: FamilyRedHat},
		{name: "both prefers debian", files: []string{"redhat-release", "debian_version"}, want: FamilyDebian},
		{name: "neither", want: FamilyUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			if err := os.MkdirAll(filepath.Join(root, "etc"), 0755); err != nil {
				t.Fatal(err)
			}
			for _, f := range tt.files {
				if err := os.WriteFile(filepath.Join(root, "etc", f), []byte("x\n"), 0644); err != nil {
					t.Fatal(err)
				}
			}
			if got := DetectFamily(root); got != tt.want {
				t.Fatalf("DetectFamily = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	generic := errors.New("exit status 1")
	tests := []struct {
		name     string
		err      error
		exitCode int
		output   string
		want     error
	}{
		{name: "missing binary", err: exec.ErrNotFound, exitCode: -1, want: ErrToolUnavailable},
		{name: "missing path", err: &fs.PathError{Op: "fork/exec", Path: "/usr/sbin/chage", Err: fs.ErrNotExist}, exitCode: -1, want: ErrToolUnavailable},
		{name: "shell 127", err: generic, exitCode: 127, want: ErrToolUnavailable},
		{name: "windows not recognized", err: generic, exitCode: 1, output: "'winget' is not recognized as an internal or external command", want: ErrToolUnavailable},
		{name: "posix permission", err: generic, exitCode: 1, output: "passwd: Permission denied.", want: ErrPermissionDenied},
		{name: "usermod root", err: generic, exitCode: 1, output: "usermod: Permission denied.\nusermod: cannot lock /etc/passwd; try again later.", want: ErrPermissionDenied},
		{name: "windows access denied", err: generic, exitCode: 2, output: "System error 5 has occurred.\n\nAccess is denied.", want: ErrPermissionDenied},
		{name: "eperm", err: fs.ErrPermission, exitCode: -1, want: ErrPermissionDenied},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify("tool", tt.err, tt.exitCode, tt.output)
			if !errors.Is(got, tt.want) {
				t.Fatalf("Classify() = %v, want wrapping %v", got, tt.want)
			}
		})
	}
}

func TestClassifyPlainFailureKeepsOutput(t *testing.T) {
	got := Classify("userdel", errors.New("exit status 6"), 6, "userdel: user 'ghost' does not exist")
	if errors.Is(got, ErrToolUnavailable) || errors.Is(got, ErrPermissionDenied) {
		t.Fatalf("unexpected classification: %v", got)
	}
	want := "userdel failed: exit status 6: userdel: user 'ghost' does not exist"
	if got.Error() != want {
		t.Fatalf("Classify() = %q, want %q", got.Error(), want)
	}
	if Classify("x", nil, 0, "") != nil {
		t.Fatal("nil error should stay nil")
	}
}

func TestCommandStringOmitsStdin(t *testing.T) {
	c := Command{Name: "chpasswd", Stdin: "alice:hunter2\n"}
	if got := c.String(); got != "chpasswd" {
		t.Fatalf("String() = %q", got)
	}
	c = Command{Name: "passwd", Args: []string{"-l", "alice"}}
	if got := c.String(); got != "passwd -l alice" {
		t.Fatalf("String() = %q", got)
	}
}

func TestExecRunnerMissingTool(t *testing.T) {
	r := NewExecRunner(5 * time.Second)
	_, err := r.Run(context.Background(), Command{Name: "breeze-remediate-definitely-missing-tool"})
	if !errors.Is(err, ErrToolUnavailable) {
		t.Fatalf("expected ErrToolUnavailable, got %v", err)
	}
}

func TestExecRunnerCapturesOutputAndStdin(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses POSIX cat")
	}
	if _, err := exec.LookPath("cat"); err != nil {
		t.Skip("cat not available")
	}
	r := NewExecRunner(5 * time.Second)
	res, err := r.Run(context.Background(), Command{Name: "cat", Stdin: "hello\n"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Stdout != "hello\n" || res.ExitCode != 0 {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestExecRunnerNonZeroExit(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses POSIX sh")
	}
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	r := NewExecRunner(5 * time.Second)
	res, err := r.Run(context.Background(), Command{Name: "sh", Args: []string{"-c", "echo boom >&2; exit 3"}})
	if err == nil {
		t.Fatal("expected error")
	}
	if res.ExitCode != 3 || res.Combined() != "boom" {
		t.Fatalf("unexpected result %+v", res)
	}
	if got := fmt.Sprint(err); got != "sh failed: exit status 3: boom" {
		t.Fatalf("err = %q", got)
	}
}
