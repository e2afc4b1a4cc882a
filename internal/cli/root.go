// Package cli implements the sealcheck command line.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/qube-forensics/sealcheck/pkg/color"
	"github.com/qube-forensics/sealcheck/pkg/config"
	"github.com/qube-forensics/sealcheck/pkg/logging"
)

var (
	jsonOutput bool
	noColor    bool
	configPath string
	logLevel   string

	// cfg is the effective configuration, loaded before any subcommand runs.
	cfg = config.Default()

	rootCmd = &cobra.Command{
		Use:   "sealcheck",
		Short: "sealcheck - verify canonical hashes of forensic telemetry",
		Long: `sealcheck recomputes the canonical JSON digest of telemetry records and
compares it with the hash each record declares, reporting PASS or FAIL per
record. It also canonicalizes, digests and seals JSON for producers.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: loadRuntime,
	}
)

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ./"+config.DefaultFileName+")")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override logging.level (debug, info, warn, error)")
}

// exitError ends the process with code. err, when set, is printed first.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

// Exit codes.
const (
	exitTampered  = 1
	exitToolError = 2
)

// Execute runs the root command.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(exitCode(err))
	}
}

// exitCode prints err and maps it to a process exit code. Tooling errors
// exit 2 so they are never mistaken for a tamper verdict.
func exitCode(err error) int {
	var ee *exitError
	if errors.As(err, &ee) {
		if ee.err != nil {
			fmtErr("%v", ee.err)
		}
		return ee.code
	}
	fmtErr("%v", err)
	return exitToolError
}

func loadRuntime(cmd *cobra.Command, _ []string) error {
	color.Init(noColor)
	if noColor {
		color.Disable()
	}

	loaded, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if logLevel != "" {
		loaded.Logging.Level = logLevel
		if err := loaded.Validate(); err != nil {
			return err
		}
	}
	cfg = loaded

	logger := logging.NewLogger(logging.ParseLevel(cfg.Logging.Level))
	logger.SetFormat(logging.Format(cfg.Logging.Format))
	logging.SetGlobal(logger.WithFields(map[string]any{"cmd": cmd.Name()}))
	return nil
}

// outputJSON prints v as JSON if --json flag is set, otherwise does nothing.
func outputJSON(v any) error {
	if !jsonOutput {
		return nil
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func fmtErr(format string, args ...any) {
	prefix := "sealcheck: "
	if color.Enabled() {
		prefix = color.Error("sealcheck:") + " "
	}
	fmt.Fprintf(os.Stderr, prefix+format+"\n", args...)
}
