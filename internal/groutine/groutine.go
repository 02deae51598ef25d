package groutine

import (
	"context"
	"runtime/pprof"
)

type ctxKey string

const goroutineNameKey ctxKey = "goroutine_name"

// Go starts a goroutine with a name, optional parent context
// Example usage:
//
//	groutine.Go(ctx, "disconnect-watch", func(ctx context.Context) {
//	    // work
//	})
//
// If parentCtx is nil, context.Background() is used.
func Go(parentCtx context.Context, name string, fn func(ctx context.Context)) {
	if parentCtx == nil {
		parentCtx = context.Background()
	}

	labels := pprof.Labels("goroutine_name", name)

	go pprof.Do(parentCtx, labels, func(ctx context.Context) {
		ctx = context.WithValue(ctx, goroutineNameKey, name)
		fn(ctx)
	})
}

// Handle tracks a goroutine started with Start.
type Handle struct {
	name string
	done chan struct{}
}

// Name returns the label the goroutine was started with.
func (h *Handle) Name() string {
	return h.name
}

// Done is closed once the goroutine function has returned, including on panic unwinding.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Start is Go with a completion signal.
func Start(parentCtx context.Context, name string, fn func(ctx context.Context)) *Handle {
	h := &Handle{name: name, done: make(chan struct{})}
	Go(parentCtx, name, func(ctx context.Context) {
		defer close(h.done)
		fn(ctx)
	})
	return h
}

// GetName retrieves the goroutine name from the context.
func GetName(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v := ctx.Value(goroutineNameKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
