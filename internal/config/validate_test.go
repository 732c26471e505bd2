package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := Default()
	if errs := cfg.Validate(); len(errs) != 0 {
		t.Fatalf("default config should validate cleanly, got %v", errs)
	}
}

func TestValidateClampsCommandTimeout(t *testing.T) {
	tests := []struct {
		name  string
		value int
		want  int
	}{
		{name: "below minimum", value: 1, want: minCommandTimeout},
		{name: "above maximum", value: 99999, want: maxCommandTimeout},
		{name: "in range", value: 120, want: 120},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.CommandTimeoutSeconds = tt.value
			cfg.Validate()
			if cfg.CommandTimeoutSeconds != tt.want {
				t.Fatalf("CommandTimeoutSeconds = %d, want %d", cfg.CommandTimeoutSeconds, tt.want)
			}
		})
	}
}

func TestValidateRejectsBadLogSettings(t *testing.T) {
	cfg := Default()
	cfg.LogLevel = "verbose"
	cfg.LogFormat = "xml"

	errs := cfg.Validate()
	if len(errs) != 2 {
		t.Fatalf("expected 2 errors, got %d: %v", len(errs), errs)
	}
	if cfg.LogLevel != "info" || cfg.LogFormat != "text" {
		t.Fatalf("expected defaults restored, got level=%q format=%q", cfg.LogLevel, cfg.LogFormat)
	}
}

func TestValidateAdminGroup(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "wheel", want: "wheel"},
		{in: "  admin ", want: "admin"},
		{in: "", want: "sudo", wantErr: true},
		{in: "bad group", want: "sudo", wantErr: true},
		{in: "a:b", want: "sudo", wantErr: true},
	}
	for _, tt := range tests {
		cfg := Default()
		cfg.PosixAdminGroup = tt.in
		errs := cfg.Validate()
		if (len(errs) > 0) != tt.wantErr {
			t.Errorf("Validate(%q) errs = %v, wantErr %v", tt.in, errs, tt.wantErr)
		}
		if cfg.PosixAdminGroup != tt.want {
			t.Errorf("PosixAdminGroup for %q = %q, want %q", tt.in, cfg.PosixAdminGroup, tt.want)
		}
	}
}

func TestLoadReadsFileAndEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "remediate.yaml")
	content := strings.Join([]string{
		"log_level: debug",
		"posix_admin_group: wheel",
		"command_timeout_seconds: 90",
	}, "\n")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("BREEZE_REMEDIATE_LOG_FORMAT", "json")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
	if cfg.PosixAdminGroup != "wheel" {
		t.Errorf("PosixAdminGroup = %q, want wheel", cfg.PosixAdminGroup)
	}
	if cfg.CommandTimeoutSeconds != 90 {
		t.Errorf("CommandTimeoutSeconds = %d, want 90", cfg.CommandTimeoutSeconds)
	}
	if cfg.LogFormat != "json" {
		t.Errorf("LogFormat = %q, want json from env", cfg.LogFormat)
	}
	if cfg.LogMaxBackups != 3 {
		t.Errorf("LogMaxBackups = %d, want default 3", cfg.LogMaxBackups)
	}
}
