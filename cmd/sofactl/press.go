package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/srg/sofactl/internal/actuator"
	"github.com/srg/sofactl/internal/protocol"
	"github.com/srg/sofactl/pkg/config"
)

// pressCmd represents the press command
var pressCmd = &cobra.Command{
	Use:   "press <command> [address]",
	Short: "Run one motor command for a fixed time",
	Long: `Run a motor command for a fixed duration, like holding a remote button.

The command frame is repeated every command_interval until the duration has
elapsed, then a stop is sent. Ctrl+C stops the motors immediately.

Commands: motor1_open, motor1_close, motor2_open, motor2_close, both_open, both_close.
The address may be omitted when it is set in the config file.`,
	Example: `  sofactl press motor1_open AA:BB:CC:DD:EE:FF
  sofactl press both_close --duration 20s`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runPress,
}

var pressDuration time.Duration

func init() {
	pressCmd.Flags().DurationVarP(&pressDuration, "duration", "d", 0, "How long to run the command, 1s..3m (default press_duration from config)")
}

func runPress(cmd *cobra.Command, args []string) error {
	command, err := parseMotorCommand(args[0])
	if err != nil {
		return err
	}

	rt, err := setupRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	duration := rt.cfg.PressDuration
	if pressDuration != 0 {
		duration = pressDuration
	}
	if duration < config.MinPressDuration || duration > config.MaxPressDuration {
		return fmt.Errorf("%w: %v must be between %v and %v",
			actuator.ErrInvalidDuration, duration, config.MinPressDuration, config.MaxPressDuration)
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	return rt.drive(ctx, command, addressArg(args, 1), duration, fmt.Sprintf("Pressing %s", command))
}

// drive runs command for duration and waits for it. Cancelling ctx stops every motor.
func (r *runtime) drive(ctx context.Context, command protocol.Command, address string, duration time.Duration, label string) error {
	ctrl, err := r.controller(address)
	if err != nil {
		return err
	}

	if err := ctrl.SendCommand(command, duration); err != nil {
		_ = r.shutdown(ctrl)
		return err
	}

	var progress *ProgressPrinter
	if isTerminal(r.out) {
		progress = NewCountdownProgressPrinter(r.out, label, "running", duration)
		progress.Start()
	}

	waitErr := ctrl.Wait(ctx)
	if progress != nil {
		progress.Stop()
	}

	if waitErr != nil {
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		ctrl.Stop(stopCtx)
		cancel()
		r.warn.Fprintln(r.out, "Interrupted, motors stopped")
	}

	return r.shutdown(ctrl)
}

// parseMotorCommand resolves a command name that drives a motor.
func parseMotorCommand(name string) (protocol.Command, error) {
	command, err := protocol.ParseCommand(name)
	if err != nil {
		return 0, err
	}
	if _, ok := protocol.ChannelOf(command); !ok {
		return 0, fmt.Errorf("%w: %s does not drive a motor, use 'sofactl stop'", actuator.ErrInvalidCommand, command)
	}
	return command, nil
}

func addressArg(args []string, index int) string {
	if len(args) > index {
		return args[index]
	}
	return ""
}
