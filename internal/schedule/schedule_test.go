package schedule_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/glizzus/clipster/internal/schedule"
)

func TestRunAt(t *testing.T) {
	tc := []struct {
		name     string
		runAt    time.Duration
		cancel   bool
		wantRuns int32
	}{
		{name: "future time runs once", runAt: 20 * time.Millisecond, wantRuns: 1},
		{name: "past time runs right away", runAt: -time.Hour, wantRuns: 1},
		{name: "cancelled before the time never runs", runAt: time.Hour, cancel: true, wantRuns: 0},
	}

	for _, test := range tc {
		t.Run(test.name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			var runs atomic.Int32
			done := schedule.RunAt(ctx, time.Now().Add(test.runAt), func(context.Context) {
				runs.Add(1)
			})
			if test.cancel {
				cancel()
			}

			select {
			case <-done:
			case <-time.After(2 * time.Second):
				t.Fatal("RunAt never finished")
			}
			if got := runs.Load(); got != test.wantRuns {
				t.Errorf("execute ran %d times, want %d", got, test.wantRuns)
			}
		})
	}
}
