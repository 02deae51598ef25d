package actuator

import (
	"context"
	"sync"

	"github.com/srg/sofactl/internal/groutine"
	"github.com/srg/sofactl/internal/protocol"
)

// loopHandle is one in-flight command loop.
type loopHandle struct {
	channel protocol.Channel
	command protocol.Command
	frame   protocol.Frame
	cancel  context.CancelFunc
	g       *groutine.Handle
}

// Done is closed once the loop, including its cleanup, has finished.
func (h *loopHandle) Done() <-chan struct{} {
	return h.g.Done()
}

// arbiter owns the channel -> loop table. Its mutex is only ever held for table
// bookkeeping, never while waiting for a loop, so a loop can always unwind.
//
// active holds the loop currently driving each channel. live also keeps loops that
// have left active but are still in their cleanup phase.
type arbiter struct {
	mu     sync.Mutex
	active map[protocol.Channel]*loopHandle
	live   map[*loopHandle]struct{}
}

func newArbiter() *arbiter {
	return &arbiter{
		active: make(map[protocol.Channel]*loopHandle),
		live:   make(map[*loopHandle]struct{}),
	}
}

// start records h and launches fn for it. The entry is in place before fn can run its cleanup.
func (a *arbiter) start(ctx context.Context, h *loopHandle, fn func(ctx context.Context)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	h.g = groutine.Start(ctx, "actuator-loop-"+string(h.channel), func(ctx context.Context) {
		defer a.retire(h)
		fn(ctx)
	})
	a.active[h.channel] = h
	a.live[h] = struct{}{}
}

func (a *arbiter) retire(h *loopHandle) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.live, h)
}

// remove deletes h if it is still the entry for its channel.
func (a *arbiter) remove(h *loopHandle) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.active[h.channel] == h {
		delete(a.active, h.channel)
	}
}

// othersActive reports whether any loop other than h is still in the table.
func (a *arbiter) othersActive(h *loopHandle) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, other := range a.active {
		if other != h {
			return true
		}
	}
	return false
}

func (a *arbiter) get(ch protocol.Channel) *loopHandle {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.active[ch]
}

// snapshot returns every loop that has not finished, cleanup included.
func (a *arbiter) snapshot() []*loopHandle {
	a.mu.Lock()
	defer a.mu.Unlock()
	handles := make([]*loopHandle, 0, len(a.live))
	for h := range a.live {
		handles = append(handles, h)
	}
	return handles
}

func (a *arbiter) running() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.active) > 0
}

// cancel stops the loops on the given channels and waits for each to finish.
func (a *arbiter) cancel(channels ...protocol.Channel) {
	for _, ch := range channels {
		if h := a.get(ch); h != nil {
			h.cancel()
			<-h.Done()
		}
	}
}

// cancelActive stops the loops currently driving a channel and waits for each to finish.
// Loops already past their run phase are left to complete their cleanup.
func (a *arbiter) cancelActive() {
	a.mu.Lock()
	channels := make([]protocol.Channel, 0, len(a.active))
	for ch := range a.active {
		channels = append(channels, ch)
	}
	a.mu.Unlock()
	a.cancel(channels...)
}

// cancelAll stops every loop and waits for each to finish. Loops already in their
// cleanup phase are waited for too.
func (a *arbiter) cancelAll() {
	for _, h := range a.snapshot() {
		h.cancel()
		<-h.Done()
	}
}
