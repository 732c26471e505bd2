package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestPreInitLoggerUsesConfiguredHandler(t *testing.T) {
	logger := L("capability")

	var buf bytes.Buffer
	Init("text", "info", &buf)

	logger.Info("account action applied", KeyAccount, "alice", KeyAction, "lock")

	out := buf.String()
	if !strings.Contains(out, `msg="account action applied"`) {
		t.Fatalf("expected message, got: %s", out)
	}
	if !strings.Contains(out, "component=capability") {
		t.Fatalf("expected component field, got: %s", out)
	}
	if !strings.Contains(out, "account=alice") {
		t.Fatalf("expected account field, got: %s", out)
	}
}

func TestPreInitLoggerRespectsConfiguredLevel(t *testing.T) {
	logger := L("remediate")

	var buf bytes.Buffer
	Init("text", "warn", &buf)

	logger.Info("hidden")
	logger.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info log should be filtered at warn level: %s", out)
	}
	if !strings.Contains(out, "shown") {
		t.Fatalf("warn log should be emitted: %s", out)
	}
}

func TestJSONFormatAndPhase(t *testing.T) {
	var buf bytes.Buffer
	Init("json", "debug", &buf)

	WithPhase(L("remediate"), "update").Debug("phase started")

	out := buf.String()
	if !strings.Contains(out, `"phase":"update"`) {
		t.Fatalf("expected json phase field, got: %s", out)
	}
	if !strings.Contains(out, `"component":"remediate"`) {
		t.Fatalf("expected json component field, got: %s", out)
	}
}

func TestGroupsAndAttrsReplayInOrder(t *testing.T) {
	logger := L("patching").WithGroup("pkg").With("name", "firefox")

	var buf bytes.Buffer
	Init("json", "info", &buf)
	logger.Info("upgraded")

	out := buf.String()
	if !strings.Contains(out, `"component":"patching"`) {
		t.Fatalf("component should stay outside the group: %s", out)
	}
	if !strings.Contains(out, `"pkg":{"name":"firefox"}`) {
		t.Fatalf("expected grouped attr, got: %s", out)
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]string{
		"debug":   "DEBUG",
		"WARNING": "WARN",
		" error ": "ERROR",
		"":        "INFO",
		"bogus":   "INFO",
	}
	for in, want := range tests {
		if got := parseLevel(in).String(); got != want {
			t.Errorf("parseLevel(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestOpenLogFileRotatesOversizedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "remediate.log")

	if err := os.WriteFile(path, bytes.Repeat([]byte("x"), 2*1024*1024), 0600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path+".1", []byte("older"), 0600); err != nil {
		t.Fatal(err)
	}

	f, err := OpenLogFile(path, 1, 2)
	if err != nil {
		t.Fatalf("OpenLogFile: %v", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() != 0 {
		t.Fatalf("expected fresh log file, size = %d", info.Size())
	}
	if data, err := os.ReadFile(path + ".2"); err != nil || string(data) != "older" {
		t.Fatalf("expected previous backup shifted to .2, got %q (%v)", data, err)
	}
	if info, err := os.Stat(path + ".1"); err != nil || info.Size() != 2*1024*1024 {
		t.Fatalf("expected oversized log moved to .1: %v", err)
	}
}

func TestOpenLogFileAppendsSmallFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "remediate.log")
	if err := os.WriteFile(path, []byte("line\n"), 0600); err != nil {
		t.Fatal(err)
	}

	f, err := OpenLogFile(path, 1, 2)
	if err != nil {
		t.Fatalf("OpenLogFile: %v", err)
	}
	f.WriteString("next\n")
	f.Close()

	data, _ := os.ReadFile(path)
	if string(data) != "line\nnext\n" {
		t.Fatalf("unexpected content %q", data)
	}
	if _, err := os.Stat(path + ".1"); !os.IsNotExist(err) {
		t.Fatalf("small file should not rotate")
	}
}
