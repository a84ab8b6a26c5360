// internal/poller/runner.go
package poller

import (
	"context"
	"time"
)

// Run starts the ticker loop and emits every PollResult on out.
// A cycle never overlaps the next one: a slow cycle delays the next tick.
func (p *Poller) Run(ctx context.Context, out chan<- PollResult) {
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, r := range p.PollOnce(ctx) {
				select {
				case out <- r:
				case <-ctx.Done():
					return
				}
			}
		}
	}
}
