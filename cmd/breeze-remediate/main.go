package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/breeze-rmm/remediate/internal/capability"
	"github.com/breeze-rmm/remediate/internal/config"
	"github.com/breeze-rmm/remediate/internal/console"
	"github.com/breeze-rmm/remediate/internal/inspector"
	"github.com/breeze-rmm/remediate/internal/logging"
	"github.com/breeze-rmm/remediate/internal/platform"
	"github.com/breeze-rmm/remediate/internal/privilege"
	"github.com/breeze-rmm/remediate/internal/remediate"
	"github.com/spf13/cobra"
)

var version = "0.1.0"

var log = logging.L("main")

var rootCmd = &cobra.Command{
	Use:   "breeze-remediate",
	Short: "Breeze host remediation",
	Long: `Breeze Remediate - operator-driven host remediation for Windows and Linux.

Every phase (enumerate, harden, account review, port flagging, baseline,
update) asks for confirmation first. Answering anything but "yes" stops
the session.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSession()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("Breeze Remediate v%s\n", version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, remediate.ErrOperatorCancelled) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func runSession() error {
	cfg, err := config.Load("")
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg.Validate()

	logOut, closeLog := openLogOutput(cfg)
	defer closeLog()
	logging.Init(cfg.LogFormat, cfg.LogLevel, logOut)

	term := console.Stdio()

	if !privilege.IsElevated() {
		log.Warn("session is not elevated", "requireElevation", cfg.RequireElevation)
		term.Notice("Warning: %s.", privilege.Notice)
		if cfg.RequireElevation {
			return errors.New("administrative privileges are required (require_elevation is set)")
		}
	}

	profile := platform.Detect()
	runner := platform.NewExecRunner(time.Duration(cfg.CommandTimeoutSeconds) * time.Second)
	provider := capability.New(profile, runner, capability.Options{AdminGroup: cfg.PosixAdminGroup})
	reports := inspector.New(profile, runner)

	log.Info("starting remediation session",
		"version", version,
		logging.KeyProfile, profile.String(),
		"elevated", privilege.IsElevated(),
	)

	// Ctrl-C cancels ctx; the console gives up any pending prompt so the
	// session can print its summary and exit.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	term.BindContext(ctx)

	return remediate.NewSession(term, provider, reports).Run(ctx)
}

// openLogOutput returns stderr unless log_file is configured. A log file
// that cannot be opened falls back to stderr rather than failing the session.
func openLogOutput(cfg *config.Config) (io.Writer, func()) {
	if cfg.LogFile == "" {
		return os.Stderr, func() {}
	}
	f, err := logging.OpenLogFile(cfg.LogFile, cfg.LogMaxSizeMB, cfg.LogMaxBackups)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v, logging to stderr\n", err)
		return os.Stderr, func() {}
	}
	return f, func() { f.Close() }
}
