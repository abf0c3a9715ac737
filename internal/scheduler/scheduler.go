// Package scheduler derives a live-mode tick cadence from a cron
// expression per mode: ticks may be dense, five-minute cadence for ML
// modes, or sparse, hourly for lending/basis modes, using the
// cron-driven scheduling idiom from github.com/robfig/cron/v3.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// CronFor returns the standard cron expression for a mode's tick cadence.
func CronFor(hourly bool) string {
	if hourly {
		return "0 * * * *"
	}
	return "*/5 * * * *"
}

// TickSource emits a timestamp each time the cron schedule fires, until
// the context is cancelled. It is the live-mode analogue of clock.Live,
// but driven by an explicit cron expression rather than a fixed
// time.Duration so operators can reason about cadence the same way they
// configure any other cron-scheduled job in this stack.
type TickSource struct {
	expr    string
	out     chan time.Time
	cr      *cron.Cron
	current time.Time
}

func NewTickSource(expr string) (*TickSource, error) {
	sched, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, fmt.Errorf("parse cron expression %q: %w", expr, err)
	}
	ts := &TickSource{expr: expr, out: make(chan time.Time, 1)}
	ts.cr = cron.New()
	_, err = ts.cr.Schedule(sched, cron.FuncJob(func() {
		select {
		case ts.out <- time.Now().UTC():
		default:
		}
	}))
	if err != nil {
		return nil, fmt.Errorf("schedule cron job: %w", err)
	}
	return ts, nil
}

func (ts *TickSource) Start() { ts.cr.Start() }
func (ts *TickSource) Stop()  { ts.cr.Stop() }

// Next blocks until the next scheduled fire or ctx cancellation, and
// implements clock.Clock so a TickSource can back engine.Engine's live
// run loop directly.
func (ts *TickSource) Next(ctx context.Context) (time.Time, bool) {
	select {
	case <-ctx.Done():
		return time.Time{}, false
	case t := <-ts.out:
		ts.current = t
		return t, true
	}
}

// Current returns the last timestamp Next delivered, or the zero time
// before the first fire.
func (ts *TickSource) Current() time.Time {
	return ts.current
}
