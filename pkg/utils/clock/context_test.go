package clock_test

import (
	"context"
	"testing"
	"time"

	"github.com/kazanshin/website/pkg/utils/clock"
	"github.com/m-mizutani/gt"
)

func TestClock(t *testing.T) {
	now := time.Date(2026, 2, 19, 0, 0, 0, 0, time.UTC)
	ctx := clock.With(context.Background(), clock.Fixed(now))
	gt.Equal(t, clock.Now(ctx), now)
	gt.Equal(t, clock.Since(ctx, now.Add(-time.Minute)), time.Minute)
}

func TestStepping(t *testing.T) {
	base := time.Date(2026, 2, 19, 0, 0, 0, 0, time.UTC)
	ctx := clock.With(context.Background(), clock.Stepping(base, time.Second))

	gt.Equal(t, clock.Now(ctx), base)
	gt.Equal(t, clock.Now(ctx), base.Add(time.Second))
	gt.Equal(t, clock.Now(ctx), base.Add(2*time.Second))
}

func TestDefault(t *testing.T) {
	before := time.Now()
	got := clock.Now(context.Background())
	gt.True(t, !got.Before(before))
}
