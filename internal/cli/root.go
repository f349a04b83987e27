package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/dig"
)

// version is overridden at build time with -ldflags "-X".
var version = "0.1.0"

// Exit codes are stable so CI can gate on them.
const (
	ExitSuccess      = 0
	ExitFindings     = 1
	ExitUsageError   = 2
	ExitAuthError    = 3
	ExitRuntimeError = 4
)

var flagVerbose bool

var rootCmd = &cobra.Command{
	Use:   "lens",
	Short: "Dependency-aware LLM code review",
	Long: `Lens reviews whole files with an LLM. Each file is sent together with the
files it imports and the files that import it, split into token-bounded units
when it is too large for one request. Findings are merged per file and emitted
with deterministic exit codes.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging(flagVerbose)
	},
}

// exitCode is set by command handlers that succeed with a non-zero outcome.
var exitCode = ExitSuccess

// exitError carries the exit code a failed command maps to.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func withCode(code int, err error) error {
	if err == nil {
		return nil
	}
	return &exitError{code: code, err: err}
}

// codeFor maps a command error to an exit code. Errors surfaced by the
// container are unwrapped to the constructor's own error first.
func codeFor(err error) int {
	var ee *exitError
	if errors.As(dig.RootCause(err), &ee) || errors.As(err, &ee) {
		return ee.code
	}
	return ExitUsageError
}

// Run executes the root command with the process arguments and returns an
// exit code.
func Run() int {
	return execute(os.Args[1:])
}

func execute(args []string) int {
	exitCode = ExitSuccess
	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		// Cobra already prints the error
		return codeFor(err)
	}
	return exitCode
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print lens version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "lens version %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.AddCommand(reviewCmd, planCmd, graphCmd, configCmd, cacheCmd, providersCmd, versionCmd)
}
