package main

import (
	"errors"
	"strings"

	"github.com/srg/sofactl/internal/actuator"
	"github.com/srg/sofactl/internal/device"
	"github.com/srg/sofactl/internal/protocol"
)

// Command-level errors
var (
	// ErrNoAddress is returned when neither the command line nor the config names a device.
	ErrNoAddress = errors.New("no device address: pass one as an argument or set 'address' in the config file")
)

// FormatUserError turns an error chain into a one-line message with a hint where one helps.
func FormatUserError(err error) string {
	if err == nil {
		return ""
	}

	var hint string
	var failed *device.ConnectionFailedError
	switch {
	case errors.Is(err, device.ErrBluetoothOff):
		hint = "turn Bluetooth on and try again"
	case errors.Is(err, device.ErrDeviceNotFound):
		hint = "make sure the actuator is powered and in range; 'sofactl scan' lists nearby devices"
	case errors.As(err, &failed):
		hint = "the actuator may be connected to another controller"
	case errors.Is(err, protocol.ErrUnknownCommand):
		hint = "'sofactl commands' lists the valid names"
	case errors.Is(err, actuator.ErrInvalidDuration):
		hint = "durations look like 30s or 1m30s"
	}

	msg := strings.TrimSpace(err.Error())
	if hint == "" {
		return msg
	}
	return msg + " (" + hint + ")"
}
