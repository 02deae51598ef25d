package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/srg/sofactl/internal/actuator"
	"github.com/srg/sofactl/internal/device"
	goble "github.com/srg/sofactl/internal/device/go-ble"
	"github.com/srg/sofactl/pkg/config"
	"github.com/srg/sofactl/pkg/connection"
	"github.com/srg/sofactl/scanner"
	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

const shutdownTimeout = 5 * time.Second

// bleAdapter is the host radio: it scans and hands out dialable peripherals.
type bleAdapter interface {
	device.ScanningDevice
	Peripheral(address, name string) device.Peripheral
	Close() error
}

// newAdapter is replaced in tests.
var newAdapter = func(logger *logrus.Logger) bleAdapter {
	return goble.NewAdapter(logger)
}

// runtime bundles what every subcommand needs.
type runtime struct {
	cfg     *config.Config
	logger  *logrus.Logger
	adapter bleAdapter
	scanner *scanner.Scanner
	out     io.Writer

	ok   *color.Color
	warn *color.Color
	bad  *color.Color
}

// setupRuntime loads the config, applies global flags and opens the adapter.
func setupRuntime(cmd *cobra.Command) (*runtime, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	logger, err := configureLogger(cmd, cfg)
	if err != nil {
		return nil, err
	}

	// All arguments validated - don't show usage on runtime errors
	cmd.SilenceUsage = true
	return newRuntime(cfg, logger, cmd.OutOrStdout()), nil
}

func newRuntime(cfg *config.Config, logger *logrus.Logger, out io.Writer) *runtime {
	adapter := newAdapter(logger)
	r := &runtime{
		cfg:     cfg,
		logger:  logger,
		adapter: adapter,
		scanner: scanner.NewScanner(adapter, adapter.Peripheral, logger),
		out:     out,
		ok:      color.New(color.FgGreen),
		warn:    color.New(color.FgYellow),
		bad:     color.New(color.FgRed, color.Bold),
	}
	r.scanner.LookupTimeout = cfg.ScanTimeout
	for _, c := range []*color.Color{r.ok, r.warn, r.bad} {
		if isTerminal(out) {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return r
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if profile, _ := cmd.Flags().GetString("protocol"); profile != "" {
		cfg.Protocol = profile
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// controller builds the connection manager and command controller for address.
// Nothing is dialed until the first frame is written.
func (r *runtime) controller(address string) (*actuator.Controller, error) {
	connOpts := r.cfg.ConnectionOptions(address)
	if connOpts.Address == "" {
		return nil, ErrNoAddress
	}
	ctrlOpts, err := r.cfg.ControllerOptions()
	if err != nil {
		return nil, err
	}

	manager := connection.NewManager(connOpts, r.scanner, r.logger)
	return actuator.NewController(manager, ctrlOpts, r.logger)
}

// shutdown disconnects the controller and reports what its loops did.
// The first loop or stop failure becomes the returned error.
func (r *runtime) shutdown(ctrl *actuator.Controller) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	disconnectErr := ctrl.Disconnect(ctx)
	if disconnectErr != nil {
		r.logger.WithField("error", disconnectErr).Debug("Disconnect failed")
	}

	var firstErr error
	for ev := range ctrl.Events() {
		switch ev.State {
		case actuator.StateRunning:
			continue
		case actuator.StateCompleted, actuator.StateCancelled, actuator.StateStopSent:
			r.ok.Fprintln(r.out, ev.String())
		case actuator.StateErrored:
			r.bad.Fprintln(r.out, ev.String())
			if firstErr == nil {
				firstErr = fmt.Errorf("%s failed: %w", ev.Command, ev.Err)
			}
		case actuator.StateStopFailed:
			r.warn.Fprintln(r.out, ev.String())
			if firstErr == nil {
				firstErr = fmt.Errorf("stop command failed: %w", ev.Err)
			}
		}
	}
	return firstErr
}

// Close releases the host adapter.
func (r *runtime) Close() {
	if err := r.adapter.Close(); err != nil {
		r.logger.WithField("error", err).Debug("Failed to close adapter")
	}
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, unix.SIGINT, unix.SIGTERM)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
