package driver

import (
	"context"
	"log"
	"time"
)

// DefaultPollInterval is how often a watch checks that the target is still loaded
const DefaultPollInterval = 30 * time.Second

// WatchLoop waits out a watch duration while polling liveness. Every detected loss gets
// exactly one re-navigation; a failed re-navigation ends the watch with an error.
type WatchLoop struct {
	Name         string
	PollInterval time.Duration
	Probe        func(ctx context.Context) bool
	Renavigate   func(ctx context.Context) error
}

// Run blocks until duration elapses, ctx is cancelled, or recovery fails. It returns the
// number of re-navigations performed.
func (w WatchLoop) Run(ctx context.Context, duration time.Duration) (int, error) {
	interval := w.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	done := time.NewTimer(duration)
	defer done.Stop()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	recoveries := 0
	for {
		select {
		case <-ctx.Done():
			return recoveries, ctx.Err()
		case <-done.C:
			return recoveries, nil
		case <-ticker.C:
			if w.Probe == nil || w.Probe(ctx) {
				continue
			}
			if ctx.Err() != nil {
				return recoveries, ctx.Err()
			}

			log.Printf("⚠️ %s: target lost, navigating back", w.Name)
			recoveries++
			if w.Renavigate == nil {
				continue
			}
			if err := w.Renavigate(ctx); err != nil {
				if ctx.Err() != nil {
					return recoveries, ctx.Err()
				}
				return recoveries, Wrap("renavigate", err)
			}
		}
	}
}
