// Package actuator drives a two-motor actuator that only moves while it keeps receiving
// command frames. Each motor channel runs its own repeating sender; conflicting commands
// pre-empt each other and every loop that ends on its own leaves the device stopped.
package actuator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/sofactl/internal/protocol"
	"github.com/srg/sofactl/internal/ringchan"
)

var (
	ErrInvalidCommand  = errors.New("invalid command")
	ErrInvalidDuration = errors.New("invalid duration")
	ErrClosed          = errors.New("controller closed")
)

// Link is the connection the controller writes frames through. Close is final:
// a closed link must fail writes rather than reconnect.
type Link interface {
	Write(ctx context.Context, frame protocol.Frame) error
	Close() error
}

// Options tunes the controller.
type Options struct {
	Codes           protocol.CodeTable
	CommandInterval time.Duration
	MaxDuration     time.Duration
	// StopTimeout bounds a trailing stop frame sent after a loop ends on its own.
	StopTimeout time.Duration
	EventBuffer int
}

// DefaultOptions returns the timing the actuator firmware expects.
func DefaultOptions() *Options {
	codes, _ := protocol.Profile(protocol.DefaultProfile)
	return &Options{
		Codes:           codes,
		CommandInterval: 200 * time.Millisecond,
		MaxDuration:     180 * time.Second,
		StopTimeout:     20 * time.Second,
		EventBuffer:     64,
	}
}

// Controller is the entry point for motor commands on one actuator.
type Controller struct {
	link   Link
	opts   Options
	logger *logrus.Logger

	mu     sync.Mutex // arbitration: SendCommand, Stop, Disconnect
	closed bool
	table  *arbiter
	events *ringchan.RingChannel[Event]
}

// NewController validates the options and creates an idle controller.
func NewController(link Link, opts *Options, logger *logrus.Logger) (*Controller, error) {
	if logger == nil {
		logger = logrus.New()
	}
	if link == nil {
		return nil, errors.New("actuator: link is required")
	}

	defaults := DefaultOptions()
	if opts == nil {
		opts = defaults
	}
	o := *opts
	if o.Codes == nil {
		o.Codes = defaults.Codes
	}
	if o.CommandInterval <= 0 {
		o.CommandInterval = defaults.CommandInterval
	}
	if o.MaxDuration <= 0 {
		o.MaxDuration = defaults.MaxDuration
	}
	if o.StopTimeout <= 0 {
		o.StopTimeout = defaults.StopTimeout
	}
	if o.EventBuffer <= 0 {
		o.EventBuffer = defaults.EventBuffer
	}
	if err := o.Codes.Validate(); err != nil {
		return nil, fmt.Errorf("actuator: %w", err)
	}
	o.Codes = o.Codes.Clone()

	return &Controller{
		link:   link,
		opts:   o,
		logger: logger,
		table:  newArbiter(),
		events: ringchan.New[Event](o.EventBuffer),
	}, nil
}

// SendCommand runs cmd for duration, pre-empting any loop it conflicts with.
// It returns once the new loop has started; loop failures are reported through Events.
func (c *Controller) SendCommand(cmd protocol.Command, duration time.Duration) error {
	channel, ok := protocol.ChannelOf(cmd)
	if !ok {
		return fmt.Errorf("%w: %s", ErrInvalidCommand, cmd)
	}
	if duration <= 0 || duration > c.opts.MaxDuration {
		return fmt.Errorf("%w: %v is outside (0, %v]", ErrInvalidDuration, duration, c.opts.MaxDuration)
	}
	frame, err := c.opts.Codes.Encode(cmd)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCommand, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}

	c.table.cancel(protocol.ConflictsWith(cmd)...)

	c.logger.WithFields(logrus.Fields{
		"channel":  channel,
		"command":  cmd,
		"frame":    frame.String(),
		"duration": duration,
	}).Info("Starting command")

	ctx, cancel := context.WithCancel(context.Background())
	h := &loopHandle{
		channel: channel,
		command: cmd,
		frame:   frame,
		cancel:  cancel,
	}
	c.publish(Event{Channel: channel, Command: cmd, State: StateRunning})
	c.table.start(ctx, h, func(ctx context.Context) {
		defer cancel()
		c.runLoop(ctx, h, duration)
	})
	return nil
}

// Stop cancels every loop and sends one stop frame. A failed stop frame is logged
// and reported as an event.
func (c *Controller) Stop(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		c.logger.Debug("Stop ignored: controller closed")
		return
	}

	c.table.cancelActive()
	c.sendStop(ctx, "")
}

// Disconnect cancels every loop, waits for their cleanup and closes the link. Disconnect
// itself sends no stop frame. When ctx expires first the link and event channel are closed
// anyway and ctx's error is returned. Further commands fail with ErrClosed.
func (c *Controller) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	done := make(chan struct{})
	go func() {
		c.table.cancelAll()
		close(done)
	}()

	var waitErr error
	select {
	case <-done:
	case <-ctx.Done():
		waitErr = ctx.Err()
		c.logger.WithField("error", waitErr).Warn("Loops still running at disconnect, closing link anyway")
	}

	err := c.link.Close()
	c.events.Close()
	if waitErr != nil {
		return waitErr
	}
	return err
}

// IsRunning reports whether any loop is active. The answer may be stale by the time
// the caller acts on it.
func (c *Controller) IsRunning() bool {
	return c.table.running()
}

// Running returns the command currently driving ch, if any.
func (c *Controller) Running(ch protocol.Channel) (protocol.Command, bool) {
	if h := c.table.get(ch); h != nil {
		return h.command, true
	}
	return 0, false
}

// Events delivers loop transitions and stop outcomes. Old events are dropped when the
// reader falls behind. The channel is closed by Disconnect.
func (c *Controller) Events() <-chan Event {
	return c.events.C()
}

// Wait blocks until every loop, including its trailing stop, has finished.
func (c *Controller) Wait(ctx context.Context) error {
	for {
		handles := c.table.snapshot()
		if len(handles) == 0 {
			return nil
		}
		for _, h := range handles {
			select {
			case <-h.Done():
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

func (c *Controller) sendStop(ctx context.Context, channel protocol.Channel) {
	if ctx == nil {
		ctx = context.Background()
	}
	frame, _ := c.opts.Codes.Encode(protocol.Stop)

	logger := c.logger.WithField("frame", frame.String())
	if channel != "" {
		logger = logger.WithField("channel", channel)
	}

	if err := c.link.Write(ctx, frame); err != nil {
		logger.WithField("error", err).Warn("Failed to send stop command")
		c.publish(Event{Channel: channel, Command: protocol.Stop, State: StateStopFailed, Err: err})
		return
	}
	logger.Debug("Stop command sent")
	c.publish(Event{Channel: channel, Command: protocol.Stop, State: StateStopSent})
}

func (c *Controller) publish(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	if c.events.Send(ev) {
		c.logger.Trace("Event buffer full, dropped oldest event")
	}
}
