package actuator

import (
	"fmt"
	"time"

	"github.com/srg/sofactl/internal/protocol"
)

// State is a loop lifecycle state, or the outcome of a stop frame.
type State int

const (
	StateRunning State = iota
	StateCompleted
	StateCancelled
	StateErrored
	StateStopSent
	StateStopFailed
)

var stateNames = map[State]string{
	StateRunning:    "running",
	StateCompleted:  "completed",
	StateCancelled:  "cancelled",
	StateErrored:    "errored",
	StateStopSent:   "stop_sent",
	StateStopFailed: "stop_failed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Terminal reports whether a loop in this state has finished.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateCancelled || s == StateErrored
}

// Event reports a loop transition or a stop frame.
// Channel is empty for stop frames that are not tied to a loop.
type Event struct {
	Time    time.Time
	Channel protocol.Channel
	Command protocol.Command
	State   State
	Sends   int
	Err     error
}

func (e Event) String() string {
	s := fmt.Sprintf("%s %s", e.Command, e.State)
	if e.Channel != "" {
		s = fmt.Sprintf("[%s] %s", e.Channel, s)
	}
	if e.Sends > 0 {
		s += fmt.Sprintf(" after %d frame(s)", e.Sends)
	}
	if e.Err != nil {
		s += fmt.Sprintf(": %v", e.Err)
	}
	return s
}
