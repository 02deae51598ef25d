package protocol

import (
	"errors"
	"fmt"
)

// Command is an abstract actuator intent. Its wire code comes from a CodeTable.
type Command int

const (
	Motor1Open Command = iota + 1
	Motor1Close
	Motor2Open
	Motor2Close
	BothOpen
	BothClose
	Stop
)

// ErrUnknownCommand is returned for command values or names outside the known set.
var ErrUnknownCommand = errors.New("unknown command")

var allCommands = []Command{Motor1Open, Motor1Close, Motor2Open, Motor2Close, BothOpen, BothClose, Stop}

var commandNames = map[Command]string{
	Motor1Open:  "motor1_open",
	Motor1Close: "motor1_close",
	Motor2Open:  "motor2_open",
	Motor2Close: "motor2_close",
	BothOpen:    "both_open",
	BothClose:   "both_close",
	Stop:        "stop",
}

func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return fmt.Sprintf("command(%d)", int(c))
}

// Valid reports whether c is one of the known commands.
func (c Command) Valid() bool {
	_, ok := commandNames[c]
	return ok
}

// Channel is a logical actuation lane used for conflict arbitration.
type Channel string

const (
	ChannelMotor1 Channel = "motor1"
	ChannelMotor2 Channel = "motor2"
	ChannelBoth   Channel = "both"
)

// Channels lists every channel in a stable order.
var Channels = []Channel{ChannelMotor1, ChannelMotor2, ChannelBoth}

// ChannelOf classifies cmd into its channel. Stop has no channel.
func ChannelOf(cmd Command) (Channel, bool) {
	switch cmd {
	case Motor1Open, Motor1Close:
		return ChannelMotor1, true
	case Motor2Open, Motor2Close:
		return ChannelMotor2, true
	case BothOpen, BothClose:
		return ChannelBoth, true
	default:
		return "", false
	}
}

// ConflictsWith returns the channels whose loops must be pre-empted before cmd may start.
// A single-motor command and the combined command physically interfere, so each side
// pre-empts the other; the combined command pre-empts everything.
func ConflictsWith(cmd Command) []Channel {
	switch cmd {
	case Motor1Open, Motor1Close:
		return []Channel{ChannelMotor1, ChannelBoth}
	case Motor2Open, Motor2Close:
		return []Channel{ChannelMotor2, ChannelBoth}
	case BothOpen, BothClose:
		return []Channel{ChannelMotor1, ChannelMotor2, ChannelBoth}
	default:
		return nil
	}
}
