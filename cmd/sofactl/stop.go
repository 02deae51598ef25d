package main

import (
	"github.com/spf13/cobra"
)

// stopCmd represents the stop command
var stopCmd = &cobra.Command{
	Use:   "stop [address]",
	Short: "Send a stop command",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runStop,
}

func runStop(cmd *cobra.Command, args []string) error {
	rt, err := setupRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	ctrl, err := rt.controller(addressArg(args, 0))
	if err != nil {
		return err
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	ctrl.Stop(ctx)
	return rt.shutdown(ctrl)
}
