package clock

import (
	"context"
	"sync"
	"time"
)

type ctxClockKey struct{}

type Clock func() time.Time

// Now returns the time from the clock in ctx, falling back to time.Now.
func Now(ctx context.Context) time.Time {
	clock, ok := ctx.Value(ctxClockKey{}).(Clock)
	if !ok {
		return time.Now()
	}
	return clock()
}

func Since(ctx context.Context, t time.Time) time.Duration {
	return Now(ctx).Sub(t)
}

func With(ctx context.Context, clock Clock) context.Context {
	return context.WithValue(ctx, ctxClockKey{}, clock)
}

// Fixed returns a Clock that always reports t.
func Fixed(t time.Time) Clock {
	return func() time.Time { return t }
}

// Stepping returns a Clock starting at t that advances by step on every call.
// Tests use it to get distinct, ordered timestamps.
func Stepping(t time.Time, step time.Duration) Clock {
	var mu sync.Mutex
	next := t
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now := next
		next = next.Add(step)
		return now
	}
}
