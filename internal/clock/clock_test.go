package clock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSystemClockSleepHonoursCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := SystemClock{}.Sleep(ctx, time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}

func TestFakeClockRecordsSleeps(t *testing.T) {
	base := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	fc := NewFakeClock(base)

	assert.NoError(t, fc.Sleep(context.Background(), 400*time.Millisecond))
	assert.NoError(t, fc.Sleep(context.Background(), 800*time.Millisecond))

	assert.Equal(t, []time.Duration{400 * time.Millisecond, 800 * time.Millisecond}, fc.Sleeps())
	assert.Equal(t, base.Add(1200*time.Millisecond), fc.Now())
}
