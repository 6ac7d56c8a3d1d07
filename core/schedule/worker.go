package schedule

import (
	"context"
	"time"
)

// optimizeWithDeadline runs the day optimizer under the configured deadline.
// The solve writes into res from its own goroutine; once the deadline fires
// the buffer is abandoned to that goroutine and the magic fallback is
// computed into a fresh one, so there is never more than one writer per
// buffer.
func (o *Orchestrator) optimizeWithDeadline(ctx context.Context, day DayProblem, res *DayResult) *DayResult {
	timeout := time.Duration(o.planner.OptimizerTimeoutSec) * time.Second
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan struct{})
	go func() {
		o.opt.OptimizeDay(day, res)
		close(done)
	}()

	select {
	case <-done:
		return res
	case <-ctx.Done():
		o.log.Warnf("day %s: optimizer exceeded %s, substituting magic charging",
			day.Day.Format("2006-01-02"), timeout)
		sub := NewDayResult(day.Periods(), len(day.Problem.Vehicles))
		solveMagic(day, sub)
		sub.Tier = TierMagic
		sub.TimedOut = true
		return sub
	}
}
