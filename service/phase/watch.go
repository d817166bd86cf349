package phase

import (
	"context"
	"time"
)

// DefaultTick is how often Watch re-evaluates.
const DefaultTick = time.Second

// Watch calls fn with the current state immediately and then on every tick
// until ctx is done.
func (c *Controller) Watch(ctx context.Context, tick time.Duration, fn func(State)) {
	if tick <= 0 {
		tick = DefaultTick
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	fn(c.Current())
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn(c.Current())
		}
	}
}
