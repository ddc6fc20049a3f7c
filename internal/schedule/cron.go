package schedule

import (
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/cronexpr"
)

// MaxRunTimes caps how many run times one expansion may produce.
const MaxRunTimes = 500

// ErrNeverFires is returned for expressions with no future run time.
var ErrNeverFires = errors.New("cron expression has no upcoming run times")

// NextRunTimes returns the next n run times of cron, in UTC.
func NextRunTimes(cron string, n int) ([]time.Time, error) {
	return NextRunTimesAfter(cron, time.Now().UTC(), n)
}

// NextRunTimesAfter returns the next n run times strictly after after.
func NextRunTimesAfter(cron string, after time.Time, n int) ([]time.Time, error) {
	if n <= 0 {
		return nil, fmt.Errorf("count must be greater than 0")
	}
	if n > MaxRunTimes {
		return nil, fmt.Errorf("count must be at most %d, got %d", MaxRunTimes, n)
	}
	expr, err := Parse(cron)
	if err != nil {
		return nil, err
	}

	times := expr.NextN(after, uint(n))
	if len(times) == 0 {
		return nil, ErrNeverFires
	}
	return times, nil
}

func Parse(cron string) (*cronexpr.Expression, error) {
	expr, err := cronexpr.Parse(cron)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression: %w", err)
	}
	return expr, nil
}
