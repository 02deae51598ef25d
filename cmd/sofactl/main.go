package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"unicode"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// formatVersion adds 'v' prefix if version starts with a digit
func formatVersion(ver string) string {
	if len(ver) > 0 && unicode.IsDigit(rune(ver[0])) {
		return "v" + ver
	}
	return ver
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "sofactl",
	Short: "Control BLE recliner actuators",
	Long: `Command-line controller for two-motor BLE recliners.

The actuator only moves while it keeps receiving commands, so every command is
repeated until its duration runs out and is followed by a stop.

- Scan for nearby actuators
- Run a timed motor command (press) or run until interrupted (hold)
- Stop every motor
- List the command codes of the active protocol profile`,
	Version: fmt.Sprintf("%s (commit %s, built %s)", formatVersion(version), commit, date),
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		// Ctrl+C is a normal exit, not an error - exit silently
		if errors.Is(err, context.Canceled) {
			return
		}
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", FormatUserError(err))
		os.Exit(1)
	}
}

func init() {
	// Silence Cobra's "Error:" prefix - main() prints clean errors
	rootCmd.SilenceErrors = true

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(pressCmd)
	rootCmd.AddCommand(holdCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(commandsCmd)

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "Path to the YAML config file")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("verbose", false, "Enable debug logging")
	rootCmd.PersistentFlags().String("protocol", "", "Command code profile (fama-v1, fama-v2)")

	rootCmd.Flags().BoolP("version", "v", false, "Show version information")
}
