package delivery

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Pacing is the delay policy the orchestrator applies between channel
// interactions. Swap in NoDelay for tests.
type Pacing struct {
	Interval     time.Duration // after every recipient, success or not
	ReleasePause time.Duration // after releasing a successful delivery's artifact

	limiter *rate.Limiter
	sleep   SleepFunc
}

// NewPacing returns a fixed-interval policy. maxPerMinute > 0 additionally
// caps throughput with a token bucket of burst 1.
func NewPacing(interval, releasePause time.Duration, maxPerMinute int) *Pacing {
	p := &Pacing{Interval: interval, ReleasePause: releasePause, sleep: sleepCtx}
	if maxPerMinute > 0 {
		p.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(maxPerMinute)), 1)
	}
	return p
}

// NoDelay never blocks.
func NoDelay() *Pacing {
	return &Pacing{sleep: sleepCtx}
}

// WithSleep replaces how the policy waits; used to observe pauses in tests.
func (p *Pacing) WithSleep(fn SleepFunc) *Pacing {
	p.sleep = fn
	return p
}

// Pause waits for d. Zero or negative durations return immediately.
func (p *Pacing) Pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	sleep := p.sleep
	if sleep == nil {
		sleep = sleepCtx
	}
	return sleep(ctx, d)
}

// Admit blocks until the rate cap allows another delivery.
func (p *Pacing) Admit(ctx context.Context) error {
	if p.limiter == nil {
		return nil
	}
	return p.limiter.Wait(ctx)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
