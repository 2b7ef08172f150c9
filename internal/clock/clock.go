package clock

import (
	"context"
	"time"

	"go.uber.org/fx"
)

// Clock is the time source of the billing engine. Sleep suspends only the
// calling unit of work and returns early with ctx.Err() on cancellation.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

type SystemClock struct{}

func NewSystemClock() Clock {
	return SystemClock{}
}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

func (SystemClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

var Module = fx.Module("clock",
	fx.Provide(NewSystemClock),
)
