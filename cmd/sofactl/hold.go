package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// holdCmd represents the hold command
var holdCmd = &cobra.Command{
	Use:   "hold <command> [address]",
	Short: "Run a motor command until interrupted",
	Long: `Run a motor command until Ctrl+C (or SIGTERM), then stop every motor.

The command never runs longer than max_duration from the config file.`,
	Example: `  sofactl hold motor2_close AA:BB:CC:DD:EE:FF`,
	Args:    cobra.RangeArgs(1, 2),
	RunE:    runHold,
}

func runHold(cmd *cobra.Command, args []string) error {
	command, err := parseMotorCommand(args[0])
	if err != nil {
		return err
	}

	rt, err := setupRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	fmt.Fprintf(rt.out, "Holding %s for up to %v, press Ctrl+C to stop\n", command, rt.cfg.MaxDuration)
	return rt.drive(ctx, command, addressArg(args, 1), rt.cfg.MaxDuration, fmt.Sprintf("Holding %s", command))
}
