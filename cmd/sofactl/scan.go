package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/srg/sofactl/internal/device"
	"github.com/srg/sofactl/scanner"
)

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan for nearby actuators",
	Long: `Scan for BLE actuators and list their names, addresses and signal strength.

Only devices whose advertised name starts with name_prefix ("Sofa" by default)
are shown; use --all to list every device.`,
	RunE: runScan,
}

var (
	scanDuration  time.Duration
	scanFormat    string
	scanPrefix    string
	scanAll       bool
	scanServices  []string
	scanAllowList []string
	scanBlockList []string
)

func init() {
	scanCmd.Flags().DurationVarP(&scanDuration, "duration", "d", 0, "Scan duration (default scan_timeout from config)")
	scanCmd.Flags().StringVarP(&scanFormat, "format", "f", "table", "Output format (table, json)")
	scanCmd.Flags().StringVar(&scanPrefix, "prefix", "", "Name prefix filter (default name_prefix from config)")
	scanCmd.Flags().BoolVar(&scanAll, "all", false, "Show every device regardless of name")
	scanCmd.Flags().StringSliceVarP(&scanServices, "services", "s", nil, "Filter by advertised service UUIDs")
	scanCmd.Flags().StringSliceVar(&scanAllowList, "allow", nil, "Only show devices with these addresses")
	scanCmd.Flags().StringSliceVar(&scanBlockList, "block", nil, "Hide devices with these addresses")
}

func runScan(cmd *cobra.Command, args []string) error {
	if scanFormat != "table" && scanFormat != "json" {
		return fmt.Errorf("invalid format '%s': must be one of [table json]", scanFormat)
	}

	var serviceUUIDs []string
	if len(scanServices) > 0 {
		var err error
		serviceUUIDs, err = device.ValidateUUID(scanServices...)
		if err != nil {
			return fmt.Errorf("invalid service UUID: %w", err)
		}
	}

	rt, err := setupRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	opts := rt.cfg.ScanOptions()
	if scanDuration > 0 {
		opts.Duration = scanDuration
	}
	if scanPrefix != "" {
		opts.NamePrefix = scanPrefix
	}
	if scanAll {
		opts.NamePrefix = ""
	}
	opts.ServiceUUIDs = serviceUUIDs
	opts.AllowList = scanAllowList
	opts.BlockList = scanBlockList

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	progress := func(string) {}
	if isTerminal(rt.out) {
		printer := NewCountdownProgressPrinter(rt.out, "Scanning for actuators", "Scanning", opts.Duration, "Processing results")
		printer.Start()
		defer printer.Stop()
		progress = printer.Callback()
	}

	sightings, err := rt.scanner.Scan(ctx, opts, progress)
	if err != nil {
		rt.logger.WithField("error", err).Error("Scan failed")
		return err
	}

	if scanFormat == "json" {
		return displaySightingsJSON(rt.out, sightings)
	}
	return displaySightingsTable(rt.out, sightings)
}

func displaySightingsTable(out io.Writer, sightings []scanner.Sighting) error {
	if len(sightings) == 0 {
		fmt.Fprintln(out, "No devices discovered")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tADDRESS\tRSSI\tSERVICES")
	fmt.Fprintln(w, "----\t-------\t----\t--------")

	for _, s := range sightings {
		name := s.DisplayName()
		if len(name) > 24 {
			name = name[:21] + "..."
		}
		services := strings.Join(s.Services, ",")
		if len(services) > 30 {
			services = services[:27] + "..."
		}
		fmt.Fprintf(w, "%s\t%s\t%d dBm\t%s\n", name, s.Address, s.RSSI, services)
	}

	return w.Flush()
}

type sightingJSON struct {
	Address     string    `json:"address"`
	Name        string    `json:"name,omitempty"`
	RSSI        int       `json:"rssi"`
	Connectable bool      `json:"connectable"`
	Services    []string  `json:"services,omitempty"`
	LastSeen    time.Time `json:"last_seen"`
}

func displaySightingsJSON(out io.Writer, sightings []scanner.Sighting) error {
	list := make([]sightingJSON, len(sightings))
	for i, s := range sightings {
		list[i] = sightingJSON{
			Address:     s.Address,
			Name:        s.Name,
			RSSI:        s.RSSI,
			Connectable: s.Connectable,
			Services:    s.Services,
			LastSeen:    s.LastSeen,
		}
	}
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(list)
}
