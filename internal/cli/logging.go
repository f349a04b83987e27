package cli

import (
	"os"

	"github.com/mattn/go-isatty"
	logger "github.com/sirupsen/logrus"
)

// setupLogging configures the process logger. Logs go to stderr so report
// output on stdout stays machine readable.
func setupLogging(verbose bool) {
	tty := isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())
	logger.SetOutput(os.Stderr)
	//nolint:exhaustruct // Minimal TextFormatter initialization with required fields only
	logger.SetFormatter(&logger.TextFormatter{
		ForceColors:   tty,
		DisableColors: !tty,
		FullTimestamp: true,
	})

	level := logger.InfoLevel
	if verbose || os.Getenv("LENS_DEBUG") == "true" {
		level = logger.DebugLevel
	}
	logger.SetLevel(level)
}
