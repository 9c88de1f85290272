// Package xsync provides small concurrency helpers shared by the decision
// task, the price sources, and the executor: a single-start loop runner, a
// time-based debouncer for cooldown/settlement-delay gating, and a bounded
// in-flight limiter.
package xsync

import (
	"context"
	"sync"
	"time"
)

// StartLoopOnce starts a single goroutine loop exactly once, wiring up a
// cancellable context and an optional ticker. tick <= 0 means the returned
// tick channel never fires; the caller selects on it alongside price/command
// channels.
func StartLoopOnce(
	parent context.Context,
	once *sync.Once,
	setCancel func(context.CancelFunc),
	tick time.Duration,
	run func(loopCtx context.Context, tickC <-chan time.Time),
) {
	if once == nil {
		loopCtx, cancel := context.WithCancel(parent)
		if setCancel != nil {
			setCancel(cancel)
		}
		go startLoop(loopCtx, tick, run)
		return
	}

	once.Do(func() {
		loopCtx, cancel := context.WithCancel(parent)
		if setCancel != nil {
			setCancel(cancel)
		}
		go startLoop(loopCtx, tick, run)
	})
}

func startLoop(loopCtx context.Context, tick time.Duration, run func(context.Context, <-chan time.Time)) {
	var tickC <-chan time.Time
	var ticker *time.Ticker
	if tick > 0 {
		ticker = time.NewTicker(tick)
		tickC = ticker.C
		defer ticker.Stop()
	}
	run(loopCtx, tickC)
}
