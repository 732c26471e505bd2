package config

import (
	"fmt"
	"log/slog"
	"strings"
	"unicode"
)

var validLogLevels = map[string]bool{
	"debug":   true,
	"info":    true,
	"warn":    true,
	"warning": true,
	"error":   true,
}

const (
	minCommandTimeout = 10
	maxCommandTimeout = 7200
)

// Validate checks the config for invalid values and returns all errors found.
// Out-of-range numbers are clamped and unusable strings fall back to their
// defaults, so a bad config never blocks a remediation session.
func (c *Config) Validate() []error {
	var errs []error
	def := Default()

	if c.LogLevel != "" && !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Errorf("log_level %q is not valid (use debug, info, warn, error)", c.LogLevel))
		c.LogLevel = def.LogLevel
	}

	if c.LogFormat != "" && c.LogFormat != "text" && c.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("log_format %q is not valid (use text or json)", c.LogFormat))
		c.LogFormat = def.LogFormat
	}

	if c.CommandTimeoutSeconds < minCommandTimeout {
		errs = append(errs, fmt.Errorf("command_timeout_seconds %d is below minimum %d, clamping", c.CommandTimeoutSeconds, minCommandTimeout))
		c.CommandTimeoutSeconds = minCommandTimeout
	} else if c.CommandTimeoutSeconds > maxCommandTimeout {
		errs = append(errs, fmt.Errorf("command_timeout_seconds %d exceeds maximum %d, clamping", c.CommandTimeoutSeconds, maxCommandTimeout))
		c.CommandTimeoutSeconds = maxCommandTimeout
	}

	if c.LogMaxSizeMB < 1 {
		errs = append(errs, fmt.Errorf("log_max_size_mb %d is below minimum 1, clamping", c.LogMaxSizeMB))
		c.LogMaxSizeMB = 1
	}
	if c.LogMaxBackups < 0 {
		errs = append(errs, fmt.Errorf("log_max_backups %d is negative, clamping", c.LogMaxBackups))
		c.LogMaxBackups = 0
	}

	group := strings.TrimSpace(c.PosixAdminGroup)
	if group == "" || strings.IndexFunc(group, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsControl(r) || r == ':' || r == ','
	}) >= 0 {
		errs = append(errs, fmt.Errorf("posix_admin_group %q is not a valid group name, using %q", c.PosixAdminGroup, def.PosixAdminGroup))
		c.PosixAdminGroup = def.PosixAdminGroup
	} else {
		c.PosixAdminGroup = group
	}

	for _, err := range errs {
		slog.Warn("config validation", "error", err)
	}

	return errs
}
