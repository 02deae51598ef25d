package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/srg/sofactl/internal/protocol"
)

// commandsCmd represents the commands command
var commandsCmd = &cobra.Command{
	Use:   "commands",
	Short: "List command names and their codes",
	Long: `List every command with its wire code and frame for the active protocol
profile, including overrides from the config file.`,
	Args: cobra.NoArgs,
	RunE: runCommands,
}

func runCommands(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	cmd.SilenceUsage = true

	codes, err := cfg.CodeTable()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Profile: %s\n\n", cfg.Protocol)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tCODE\tCHANNEL\tFRAME")
	for pair := protocol.Commands().Oldest(); pair != nil; pair = pair.Next() {
		frame, err := codes.Encode(pair.Value)
		if err != nil {
			return err
		}
		channel := "-"
		if ch, ok := protocol.ChannelOf(pair.Value); ok {
			channel = string(ch)
		}
		fmt.Fprintf(w, "%s\t0x%02X\t%s\t%s\n", pair.Key, frame.Code(), channel, frame)
	}
	return w.Flush()
}
