package schedule

import (
	"context"
	"time"
)

// RunAt calls execute on its own goroutine once runAt is reached. A time
// in the past runs right away. If ctx ends first, execute is never called.
// The returned channel is closed once RunAt is finished either way.
func RunAt(ctx context.Context, runAt time.Time, execute func(ctx context.Context)) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)

		timer := time.NewTimer(max(time.Until(runAt), 0))
		defer timer.Stop()

		select {
		case <-timer.C:
			execute(ctx)
		case <-ctx.Done():
		}
	}()
	return done
}
