package actuator

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// runLoop repeats h's frame every CommandInterval until duration has elapsed.
// The device only moves while frames keep arriving, so ending the loop is what stops it.
func (c *Controller) runLoop(ctx context.Context, h *loopHandle, duration time.Duration) {
	var (
		state = StateErrored
		sends int
		err   error
	)
	defer func() {
		c.finishLoop(h, state, sends, err)
	}()

	logger := c.logger.WithFields(logrus.Fields{
		"channel":  h.channel,
		"command":  h.command,
		"duration": duration,
	})
	logger.Debug("Command loop started")

	end := time.Now().Add(duration)
	ticker := time.NewTicker(c.opts.CommandInterval)
	defer ticker.Stop()

	for time.Now().Before(end) {
		if werr := c.link.Write(ctx, h.frame); werr != nil {
			if ctx.Err() != nil {
				state = StateCancelled
				return
			}
			err = werr
			logger.WithFields(logrus.Fields{
				"sends": sends,
				"error": werr,
			}).Error("Command loop aborted")
			return
		}
		sends++

		select {
		case <-ctx.Done():
			state = StateCancelled
			return
		case <-ticker.C:
		}
	}
	state = StateCompleted
}

// finishLoop is the cleanup phase run on every loop exit. A loop that ended on its own
// leaves the actuator stopped unless another channel is still driving it.
func (c *Controller) finishLoop(h *loopHandle, state State, sends int, err error) {
	c.table.remove(h)

	c.logger.WithFields(logrus.Fields{
		"channel": h.channel,
		"command": h.command,
		"state":   state,
		"sends":   sends,
	}).Debug("Command loop finished")

	c.publish(Event{Channel: h.channel, Command: h.command, State: state, Sends: sends, Err: err})

	if state == StateCancelled || c.table.othersActive(h) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.opts.StopTimeout)
	defer cancel()
	c.sendStop(ctx, h.channel)
}
