package drawcli

import (
	"fmt"
	"io"
	"os"

	"github.com/okian/whattoeat/pkg/logger"
)

// SetupLogging sends logs to stderr so stdout only carries results.
func SetupLogging(verbose bool) error {
	if err := logger.Init(logger.WithOutput(os.Stderr)); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	level := "warn"
	if verbose {
		level = "debug"
	}
	return logger.SetLevelString(level)
}

// ShowHelp prints usage information for the draw tool.
func ShowHelp(w io.Writer) {
	_, _ = io.WriteString(w, `whattoeat draw
==============

Draws from a running server or from an in-process picker.

Usage:
  go run ./cmd/draw [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:9080")
  -local
        Draw in process instead of calling a server
  -catalog string
        Menu YAML for -local runs (default: embedded menu)
  -seed uint
        Random seed for -local runs (default: clock)
  -n int
        Number of draws (default 1)
  -workers int
        Number of concurrent draw workers (default CPU cores)
  -spin
        Stream one spinning session and print every tick
  -stats
        Print the per-vendor frequency table and uniformity figures
  -timeout duration
        HTTP request timeout (default 10s)
  -verbose
        Print every draw and log at debug level
  -help
        Show this help message

Examples:
  # One pick from a local server
  go run ./cmd/draw

  # Check the picker stays vendor-uniform
  go run ./cmd/draw -local -n 100000 -stats

  # Watch a spin
  go run ./cmd/draw -spin
`)
}
